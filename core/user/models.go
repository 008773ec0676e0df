package user

// Roles
const (
	RoleSuperAdmin = "superadmin" // platform admin; administers many schools
	RoleAdmin      = "admin"      // school admin
	RoleTeacher    = "teacher"
	RoleStudent    = "student"
	RoleParent     = "parent"
)

var (
	// SchoolRoles are the roles bound to exactly one school.
	SchoolRoles = []string{RoleAdmin, RoleTeacher, RoleStudent, RoleParent}
	AllRoles    = append([]string{RoleSuperAdmin}, SchoolRoles...)

	Roles = []Role{
		{Name: "Super Admin", Value: RoleSuperAdmin},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Student", Value: RoleStudent},
		{Name: "Parent", Value: RoleParent},
	}
)

// IsValidRole reports whether role is one of AllRoles.
func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// User is the authenticated principal making a request.
// It is owned by the identity provider and read-only here.
type User struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

func (u User) IsSuperAdmin() bool { return u.Role == RoleSuperAdmin }
func (u User) IsAdmin() bool      { return u.Role == RoleAdmin }
func (u User) IsTeacher() bool    { return u.Role == RoleTeacher }
func (u User) IsStudent() bool    { return u.Role == RoleStudent }
func (u User) IsParent() bool     { return u.Role == RoleParent }

// HasRole reports whether the user has exactly the given role.
func HasRole(usr User, role string) bool {
	return usr.Role == role
}

// HasAnyRole reports whether the user has one of the given roles.
func HasAnyRole(usr User, roles ...string) bool {
	for _, role := range roles {
		if usr.Role == role {
			return true
		}
	}
	return false
}

// Identity is what the identity provider knows about a session.
// Role is empty when the provider record carries no role claim.
type Identity struct {
	Subject  string
	Role     string
	Email    string
	Username string
}
