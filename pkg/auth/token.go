package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/types"
)

// Terminal clocks drift; a token is honored this long past its exp.
const clockSkew = 30 * time.Second

var (
	signingMethod = jwt.SigningMethodHS256

	errNoSecret   = errors.New("jwt secret is required")
	errNoIssuer   = errors.New("jwt issuer is required")
	errBadExpiry  = errors.New("jwt expiration minutes must be positive")
	errNoIdentity = errors.New("token carries no identity")
)

// MintAccessToken signs a token for identity, optionally bound to one
// terminal. Credentials are checked upstream; this is used by tooling and
// tests.
func MintAccessToken(cfg config.JWTConfig, now time.Time, identity types.Identity, terminalID string) (string, error) {
	var invalid error
	if cfg.Secret == "" {
		invalid = multierr.Append(invalid, errNoSecret)
	}
	if cfg.Issuer == "" {
		invalid = multierr.Append(invalid, errNoIssuer)
	}
	if cfg.ExpirationMinutes <= 0 {
		invalid = multierr.Append(invalid, errBadExpiry)
	}
	if identity.IsZero() {
		invalid = multierr.Append(invalid, errNoIdentity)
	}
	if !identity.Role.IsValid() {
		invalid = multierr.Append(invalid, fmt.Errorf("invalid role %q", identity.Role))
	}
	if invalid != nil {
		return "", invalid
	}

	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute
	claims := AccessTokenClaims{
		UserID:     identity.UserID,
		Name:       strings.TrimSpace(identity.Name),
		Role:       identity.Role,
		TerminalID: strings.TrimSpace(terminalID),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    cfg.Issuer,
			Subject:   identity.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry, then insists the
// claims name a user with a known role.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errNoSecret
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	claims := new(AccessTokenClaims)
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	switch {
	case claims.Identity().IsZero():
		return nil, errNoIdentity
	case !claims.Role.IsValid():
		return nil, fmt.Errorf("invalid role %q", claims.Role)
	}
	return claims, nil
}
