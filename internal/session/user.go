package session

// RoleAdmin is the role that unlocks administrative features.
const RoleAdmin = "admin"

// User is the denormalized profile returned by the API at login.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IsAdmin returns true if the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
