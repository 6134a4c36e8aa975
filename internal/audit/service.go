package audit

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entity names written to activity_log.entity.
const (
	EntityProduct    = "products"
	EntityStockLevel = "stock_levels"
	EntityMovement   = "inventory_movements"
	EntitySale       = "sales"
)

var entities = []string{EntityProduct, EntityStockLevel, EntityMovement, EntitySale}

// Entry is one audit line. ActorID is nil for system-detected events.
type Entry struct {
	ActorID  *uuid.UUID
	Action   enums.ActivityAction
	Entity   string
	EntityID *uuid.UUID
	Detail   string
}

// Recorder appends activity log entries.
type Recorder struct {
	repo Repository
	now  func() time.Time
}

// NewRecorder wires a recorder with the provided repository.
func NewRecorder(repo Repository) (*Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("activity log repository required")
	}
	return &Recorder{repo: repo, now: time.Now}, nil
}

// Record appends the entry using tx when provided.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if !entry.Action.IsValid() {
		return fmt.Errorf("invalid activity action %q", entry.Action)
	}
	entity := strings.TrimSpace(entry.Entity)
	if entity == "" {
		return fmt.Errorf("entity is required")
	}

	row := &models.ActivityLogEntry{
		ID:        uuid.New(),
		ActorID:   entry.ActorID,
		Action:    entry.Action,
		Entity:    entity,
		EntityID:  entry.EntityID,
		Detail:    entry.Detail,
		CreatedAt: r.now().UTC(),
	}
	return r.repo.WithTx(tx).Create(ctx, row)
}

// Activity is a stored entry as the API returns it.
type Activity struct {
	ID        uuid.UUID            `json:"id"`
	ActorID   *uuid.UUID           `json:"actor_id,omitempty"`
	Action    enums.ActivityAction `json:"action"`
	Entity    string               `json:"entity"`
	EntityID  *uuid.UUID           `json:"entity_id,omitempty"`
	Detail    string               `json:"detail"`
	CreatedAt time.Time            `json:"created_at"`
}

// History lists the entries recorded for one entity, oldest first.
func (r *Recorder) History(ctx context.Context, entity string, entityID uuid.UUID) ([]Activity, error) {
	if !slices.Contains(entities, entity) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown entity").
			WithDetails(map[string]any{"entity": entity, "allowed": entities})
	}
	if entityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity id is required")
	}
	rows, err := r.repo.ListByEntity(ctx, entity, entityID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list activity")
	}
	out := make([]Activity, 0, len(rows))
	for _, row := range rows {
		out = append(out, Activity{
			ID:        row.ID,
			ActorID:   row.ActorID,
			Action:    row.Action,
			Entity:    row.Entity,
			EntityID:  row.EntityID,
			Detail:    row.Detail,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}
