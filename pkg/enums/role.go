package enums

// Role is the closed set of acting-user roles. Catalog edits and manual stock
// movements require RoleElevated.
type Role string

const (
	RoleStandard Role = "standard"
	RoleElevated Role = "elevated"
)

var validRoles = []Role{
	RoleStandard,
	RoleElevated,
}

// String returns the stored value.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	return oneOf(validRoles, r)
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	return parse("role", validRoles, value)
}
