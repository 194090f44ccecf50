package models

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleApplicant   Role = "APPLICANT"
	RoleRecruiter   Role = "RECRUITER"
	RoleInterviewer Role = "INTERVIEWER"
	RoleManager     Role = "MANAGER"
	RoleAdmin       Role = "ADMIN"
)

func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch role {
	case RoleApplicant, RoleRecruiter, RoleInterviewer, RoleManager, RoleAdmin:
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (p Principal) IsStaff() bool {
	return p.Role != RoleApplicant && p.Role != ""
}

// HasRole reports whether the principal holds one of roles.
func (p Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// NewPrincipal builds a principal from untrusted input such as job variables.
func NewPrincipal(id, role string) (Principal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Principal{}, fmt.Errorf("principal id is required")
	}
	r, err := ParseRole(role)
	if err != nil {
		return Principal{}, err
	}
	return Principal{ID: id, Role: r}, nil
}
