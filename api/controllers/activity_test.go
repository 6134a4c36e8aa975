package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/internal/audit"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

type stubActivity struct {
	entity string
	id     uuid.UUID
}

func (s *stubActivity) History(_ context.Context, entity string, id uuid.UUID) ([]audit.Activity, error) {
	if entity != audit.EntityProduct {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown entity")
	}
	s.entity, s.id = entity, id
	return []audit.Activity{{ID: uuid.New(), Action: enums.ActivityCreate, Entity: entity, EntityID: &id, Detail: "created product 7801"}}, nil
}

func TestActivityHistory(t *testing.T) {
	svc := &stubActivity{}
	logg := testLogger()
	productID := uuid.New()

	rec := serve(ActivityHistory(svc, logg), newRequest(http.MethodGet, "/", "", manager, map[string]string{"entity": "products", "id": productID.String()}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.id != productID {
		t.Fatalf("unexpected entity id %v", svc.id)
	}
	var body struct {
		Data []struct {
			Action string `json:"action"`
			Detail string `json:"detail"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].Action != "create" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	rec = serve(ActivityHistory(svc, logg), newRequest(http.MethodGet, "/", "", manager, map[string]string{"entity": "users", "id": productID.String()}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown entity, got %d", rec.Code)
	}
	rec = serve(ActivityHistory(svc, logg), newRequest(http.MethodGet, "/", "", manager, map[string]string{"entity": "products", "id": "nope"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
}
