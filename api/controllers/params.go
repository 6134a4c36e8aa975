package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/api/middleware"
	"github.com/angelmondragon/pos-backend/api/validators"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/types"
)

const maxTerminalIDLength = 64

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "missing path parameter").
			WithDetails(map[string]any{"field": name})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid identifier").
			WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

// terminalParam returns the terminal in the path. A token bound to a terminal
// may only act on that terminal.
func terminalParam(r *http.Request) (string, error) {
	terminal := validators.SanitizeString(chi.URLParam(r, "terminal"), maxTerminalIDLength)
	if terminal == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "terminal is required").
			WithDetails(map[string]any{"field": "terminal"})
	}
	if bound := middleware.TerminalFromContext(r.Context()); bound != "" && bound != terminal {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "token is bound to another terminal")
	}
	return terminal, nil
}

func requireIdentity(r *http.Request) (types.Identity, error) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity.IsZero() {
		return types.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	return identity, nil
}
