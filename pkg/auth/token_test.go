package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	"github.com/angelmondragon/pos-backend/pkg/types"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "pos-backend",
	ExpirationMinutes: 30,
}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now().UTC()
	identity := types.Identity{UserID: uuid.New(), Name: "María Soto", Role: enums.RoleElevated}

	token, err := MintAccessToken(testJWT, now, identity, "caja-1")
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	claims, err := ParseAccessToken(testJWT, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if got := claims.Identity(); got != identity {
		t.Fatalf("identity mismatch: %+v", got)
	}
	if claims.TerminalID != "caja-1" {
		t.Fatalf("terminal id not preserved: %q", claims.TerminalID)
	}
	if claims.Issuer != testJWT.Issuer {
		t.Fatalf("expected issuer %s, got %s", testJWT.Issuer, claims.Issuer)
	}

	exp := now.Add(time.Duration(testJWT.ExpirationMinutes) * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v", exp, claims.ExpiresAt.UTC())
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	identity := types.Identity{UserID: uuid.New(), Name: "Pedro", Role: enums.RoleStandard}
	token, err := MintAccessToken(testJWT, time.Now(), identity, "")
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	identity := types.Identity{UserID: uuid.New(), Name: "Pedro", Role: enums.RoleStandard}
	token, err := MintAccessToken(testJWT, time.Now().Add(-time.Hour), identity, "")
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	_, err = ParseAccessToken(testJWT, token)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiration error, got %v", err)
	}
}

func TestParseAccessTokenRejectsMissingIdentity(t *testing.T) {
	claims := AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.RoleStandard,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testJWT.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWT.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, token); err == nil {
		t.Fatal("expected missing name to be rejected")
	}
}

func TestMintAccessTokenInvalidRole(t *testing.T) {
	identity := types.Identity{UserID: uuid.New(), Name: "Pedro", Role: "owner"}
	if _, err := MintAccessToken(testJWT, time.Now(), identity, ""); err == nil {
		t.Fatal("expected invalid role error")
	}
	if _, err := MintAccessToken(testJWT, time.Now(), types.Identity{Role: enums.RoleStandard}, ""); err == nil {
		t.Fatal("expected missing identity error")
	}
}

func TestParseAccessTokenToleratesClockSkew(t *testing.T) {
	identity := types.Identity{UserID: uuid.New(), Name: "Pedro", Role: enums.RoleStandard}
	ttl := time.Duration(testJWT.ExpirationMinutes) * time.Minute
	token, err := MintAccessToken(testJWT, time.Now().Add(-ttl-10*time.Second), identity, "")
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, token); err != nil {
		t.Fatalf("expected token inside skew window to parse, got %v", err)
	}
}

func TestParseAccessTokenRejectsOtherAlgorithms(t *testing.T) {
	claims := AccessTokenClaims{
		UserID: uuid.New(),
		Name:   "Pedro",
		Role:   enums.RoleStandard,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testJWT.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testJWT.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, token); err == nil {
		t.Fatal("expected HS512 token to be rejected")
	}
}

func TestMintAccessTokenReportsEveryConfigProblem(t *testing.T) {
	_, err := MintAccessToken(config.JWTConfig{}, time.Now(), types.Identity{}, "")
	if err == nil {
		t.Fatal("expected config errors")
	}
	for _, want := range []string{"secret", "issuer", "expiration", "identity"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}
