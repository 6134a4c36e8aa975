package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/types"
)

// AccessTokenClaims is the JWT a terminal presents on every request.
type AccessTokenClaims struct {
	UserID     uuid.UUID  `json:"user_id"`
	Name       string     `json:"name"`
	Role       enums.Role `json:"role"`
	TerminalID string     `json:"terminal_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts the claims into the acting user passed to the core.
func (c AccessTokenClaims) Identity() types.Identity {
	return types.Identity{UserID: c.UserID, Name: c.Name, Role: c.Role}
}
