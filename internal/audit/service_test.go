package audit

import (
	"context"
	"testing"

	"github.com/angelmondragon/pos-backend/pkg/db/dbtest"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/google/uuid"
)

func TestRecorderRecordPersistsEntry(t *testing.T) {
	conn := dbtest.New(t)
	rec, err := NewRecorder(NewRepository(conn))
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	actor := uuid.New()
	productID := uuid.New()
	if err := rec.Record(context.Background(), nil, Entry{
		ActorID:  &actor,
		Action:   enums.ActivityCreate,
		Entity:   EntityProduct,
		EntityID: &productID,
		Detail:   "created product 7801",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, err := rec.History(context.Background(), EntityProduct, productID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ActorID == nil || *entries[0].ActorID != actor {
		t.Fatalf("unexpected actor %v", entries[0].ActorID)
	}
	if entries[0].Detail != "created product 7801" {
		t.Fatalf("unexpected detail %q", entries[0].Detail)
	}
}

func TestRecorderRecordUsesTransaction(t *testing.T) {
	conn := dbtest.New(t)
	rec, _ := NewRecorder(NewRepository(conn))
	productID := uuid.New()

	tx := conn.Begin()
	if err := rec.Record(context.Background(), tx, Entry{
		Action:   enums.ActivityStockClamp,
		Entity:   EntityStockLevel,
		EntityID: &productID,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	tx.Rollback()

	entries, err := rec.History(context.Background(), EntityStockLevel, productID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected rollback to discard entry, got %d", len(entries))
	}
}

func TestHistoryRejectsUnknownEntity(t *testing.T) {
	rec, _ := NewRecorder(NewRepository(dbtest.New(t)))

	if _, err := rec.History(context.Background(), "users", uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := rec.History(context.Background(), EntitySale, uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for nil id, got %v", err)
	}
}

func TestRecorderRejectsInvalidEntries(t *testing.T) {
	rec, _ := NewRecorder(NewRepository(dbtest.New(t)))

	if err := rec.Record(context.Background(), nil, Entry{Action: "drop", Entity: EntityProduct}); err == nil {
		t.Fatalf("expected invalid action error")
	}
	if err := rec.Record(context.Background(), nil, Entry{Action: enums.ActivitySale, Entity: "  "}); err == nil {
		t.Fatalf("expected missing entity error")
	}
}
