package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/internal/audit"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

type activityReader interface {
	History(ctx context.Context, entity string, entityID uuid.UUID) ([]audit.Activity, error)
}

// ActivityHistory lists the activity log of one entity, oldest first.
func ActivityHistory(svc activityReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityID, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.History(r.Context(), strings.TrimSpace(chi.URLParam(r, "entity")), entityID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}
