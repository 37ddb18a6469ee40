package domain

// Role tags an account with its place in the campus platform. It is
// embedded in session tokens; authorization decisions happen elsewhere.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleRegistrar  Role = "registrar"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleRegistrar:
		return true
	}
	return false
}
