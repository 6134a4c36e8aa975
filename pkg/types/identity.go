package types

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// Identity is the already-authenticated acting user. It is passed explicitly
// to every operation that writes on someone's behalf.
type Identity struct {
	UserID uuid.UUID  `json:"userId"`
	Name   string     `json:"name"`
	Role   enums.Role `json:"role"`
}

// IsZero reports whether no usable identity was supplied.
func (i Identity) IsZero() bool {
	return i.UserID == uuid.Nil || strings.TrimSpace(i.Name) == ""
}

// IsElevated reports whether the identity may perform gated writes.
func (i Identity) IsElevated() bool {
	return !i.IsZero() && i.Role == enums.RoleElevated
}
