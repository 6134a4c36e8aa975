package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/api/validators"
	"github.com/angelmondragon/pos-backend/internal/inventory"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/pagination"
	"github.com/angelmondragon/pos-backend/pkg/types"
)

const nextCursorHeader = "X-Next-Cursor"

type inventoryService interface {
	Adjust(ctx context.Context, identity types.Identity, in inventory.AdjustInput) (*inventory.Posting, error)
	History(ctx context.Context, productID uuid.UUID, page pagination.Params) (*inventory.HistoryPage, error)
}

type adjustRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Direction string    `json:"direction" validate:"required"`
	Quantity  int       `json:"quantity" validate:"min=1"`
	Reason    string    `json:"reason" validate:"required"`
	Note      *string   `json:"note,omitempty" validate:"omitempty,max=500"`
}

func (p adjustRequest) toInput() (inventory.AdjustInput, error) {
	direction, err := enums.ParseMovementDirection(p.Direction)
	if err != nil {
		return inventory.AdjustInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid direction").
			WithDetails(map[string]any{"field": "direction"})
	}
	reason, err := enums.ParseMovementReason(p.Reason)
	if err != nil {
		return inventory.AdjustInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason").
			WithDetails(map[string]any{"field": "reason"})
	}
	return inventory.AdjustInput{
		ProductID: p.ProductID,
		Direction: direction,
		Quantity:  p.Quantity,
		Reason:    reason,
		Note:      p.Note,
	}, nil
}

// InventoryAdjust records a manual stock movement.
func InventoryAdjust(svc inventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := requireIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload adjustRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		posting, err := svc.Adjust(r.Context(), identity, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, posting)
	}
}

type movementResponse struct {
	ID        uuid.UUID  `json:"id"`
	ProductID uuid.UUID  `json:"product_id"`
	Direction string     `json:"direction"`
	Quantity  int        `json:"quantity"`
	Reason    string     `json:"reason"`
	ActorID   uuid.UUID  `json:"actor_id"`
	SaleID    *uuid.UUID `json:"sale_id,omitempty"`
	Note      *string    `json:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func InventoryHistory(svc inventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.History(r.Context(), productID, pagination.Params{
			Limit:  limit,
			Cursor: validators.SanitizeString(r.URL.Query().Get("cursor"), 256),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if page.NextCursor != "" {
			w.Header().Set(nextCursorHeader, page.NextCursor)
		}
		out := make([]movementResponse, 0, len(page.Movements))
		for _, row := range page.Movements {
			out = append(out, movementResponse{
				ID:        row.ID,
				ProductID: row.ProductID,
				Direction: string(row.Direction),
				Quantity:  row.Quantity,
				Reason:    string(row.Reason),
				ActorID:   row.ActorID,
				SaleID:    row.SaleID,
				Note:      row.Note,
				CreatedAt: row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}
