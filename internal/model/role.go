package model

import "strings"

// Role is the set of account roles recognised by the platform.  Roles are
// stored as upper-case strings in the users table and carried in the access
// token's "role" claim.
type Role string

const (
    RolePatient  Role = "PATIENT"
    RoleDoctor   Role = "DOCTOR"
    RoleLabOwner Role = "LAB_OWNER"
    RoleAdmin    Role = "ADMIN"
    RoleStaff    Role = "STAFF"
)

// ParseRole maps an arbitrary input string to a Role.  Matching is
// case-insensitive.  Unrecognised input yields RolePatient: self-service
// signup must never mint a privileged role from a typo, so the default
// branch is explicit rather than an error.
func ParseRole(s string) Role {
    switch strings.ToUpper(strings.TrimSpace(s)) {
    case "DOCTOR":
        return RoleDoctor
    case "LAB_OWNER", "LABOWNER":
        return RoleLabOwner
    case "ADMIN":
        return RoleAdmin
    case "STAFF":
        return RoleStaff
    case "PATIENT":
        return RolePatient
    default:
        return RolePatient
    }
}

// String returns the canonical stored form of the role.
func (r Role) String() string { return string(r) }

// In reports whether the role is a member of the given set.
func (r Role) In(roles ...Role) bool {
    for _, candidate := range roles {
        if r == candidate {
            return true
        }
    }
    return false
}
