package domain

type Role string

const (
	// Student books sessions with mentors
	RoleStudent Role = "STUDENT"
	// Mentor runs sessions and manages their own profile
	RoleMentor Role = "MENTOR"
	// Admin can enable/disable any account
	RoleAdmin Role = "ADMIN"
)

func IsValidRole(r string) bool {
	return r == string(RoleStudent) || r == string(RoleMentor) || r == string(RoleAdmin)
}

// RoleRank: bigger => higher privilege
func RoleRank(r string) int {
	switch r {
	case string(RoleStudent):
		return 1
	case string(RoleMentor):
		return 2
	case string(RoleAdmin):
		return 3
	default:
		return 0
	}
}
