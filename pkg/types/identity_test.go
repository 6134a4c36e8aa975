package types

import (
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

func TestIdentityIsZero(t *testing.T) {
	cases := []struct {
		name string
		id   Identity
		want bool
	}{
		{"empty", Identity{}, true},
		{"missing name", Identity{UserID: uuid.New()}, true},
		{"blank name", Identity{UserID: uuid.New(), Name: "  "}, true},
		{"missing id", Identity{Name: "Ana"}, true},
		{"complete", Identity{UserID: uuid.New(), Name: "Ana", Role: enums.RoleStandard}, false},
	}
	for _, tc := range cases {
		if got := tc.id.IsZero(); got != tc.want {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.want, got)
		}
	}
}

func TestIdentityIsElevated(t *testing.T) {
	admin := Identity{UserID: uuid.New(), Name: "Jefa", Role: enums.RoleElevated}
	if !admin.IsElevated() {
		t.Fatalf("expected elevated identity")
	}
	cashier := Identity{UserID: uuid.New(), Name: "Caja", Role: enums.RoleStandard}
	if cashier.IsElevated() {
		t.Fatalf("standard role must not be elevated")
	}
	if (Identity{Role: enums.RoleElevated}).IsElevated() {
		t.Fatalf("zero identity must never be elevated")
	}
}
