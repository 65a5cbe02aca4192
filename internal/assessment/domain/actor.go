package domain

import "fmt"

// Role identifies which workflow actor is making a call.
type Role int

const (
	// RoleUnspecified represents an invalid role value.
	RoleUnspecified Role = iota
	// RoleBLGU is the barangay submitter filing the self-assessment.
	RoleBLGU
	// RoleAssessor is the DILG assessor reviewing submissions.
	RoleAssessor
	// RoleValidator calibrates one governance area.
	RoleValidator
	// RoleMLGOO is the final approver.
	RoleMLGOO
	// RoleAdmin performs administrative overrides.
	RoleAdmin
)

// String returns the canonical role name.
func (r Role) String() string {
	switch r {
	case RoleBLGU:
		return "blgu"
	case RoleAssessor:
		return "assessor"
	case RoleValidator:
		return "validator"
	case RoleMLGOO:
		return "mlgoo"
	case RoleAdmin:
		return "admin"
	default:
		return "unspecified"
	}
}

// ParseRole returns the Role for a canonical role name.
func ParseRole(value string) (Role, error) {
	switch value {
	case "blgu":
		return RoleBLGU, nil
	case "assessor":
		return RoleAssessor, nil
	case "validator":
		return RoleValidator, nil
	case "mlgoo":
		return RoleMLGOO, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleUnspecified, fmt.Errorf("unknown role %q", value)
	}
}

// Actor is the identity a workflow operation runs as. AreaID is only
// meaningful for validators, who are scoped to one governance area.
type Actor struct {
	UserID string
	Role   Role
	AreaID int
}
