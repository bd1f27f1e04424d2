package entity

// Role is the workflow authority level of an actor. Roles gate which
// transition edges an actor may fire.
type Role string

const (
	RoleSubmitter  Role = "submitter"
	RoleManager    Role = "manager"
	RoleFinance    Role = "finance"
	RoleOperations Role = "operations"
	RoleAdmin      Role = "admin"
	RoleReadOnly   Role = "readonly"
)

var validRoles = map[Role]bool{
	RoleSubmitter:  true,
	RoleManager:    true,
	RoleFinance:    true,
	RoleOperations: true,
	RoleAdmin:      true,
	RoleReadOnly:   true,
}

// IsValid returns true if the role is a known workflow role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// Actor is the identity performing an operation, resolved per request by the
// identity provider.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin returns true for the top administrative role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Owns returns true if the actor submitted the record
func (a Actor) Owns(r *Record) bool {
	return r != nil && r.SubmitterID == a.ID
}
