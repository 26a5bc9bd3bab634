// README: Authenticated caller identity handed to module services.
package types

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
	// RoleSystem is used for transitions not driven by a request.
	RoleSystem Role = "system"
)

// ParseRole maps the role claim spellings issued by the auth provider.
// The legacy "user" claim means customer.
func ParseRole(v string) (Role, bool) {
	switch v {
	case "customer", "user":
		return RoleCustomer, true
	case "technician":
		return RoleTechnician, true
	case "admin":
		return RoleAdmin, true
	}
	return "", false
}

type Actor struct {
	ID   ID
	Role Role
}

func (a Actor) Is(role Role) bool {
	return a.Role == role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
