// Package model contains domain models passed between layers.
package model

import (
	"strings"

	"github.com/google/uuid"
)

// MemberID identifies a club member.
type MemberID = uuid.UUID

// Role distinguishes plain members from club staff.
type Role string

// Known roles. Only RoleMember takes part in partner matching.
const (
	RoleAdminPrincipal Role = "admin_principal"
	RoleAdminCoach     Role = "admin_coach"
	RoleAdminGroup     Role = "admin_group"
	RoleMember         Role = "member"
)

// IsMember reports whether r is the plain-member role.
func (r Role) IsMember() bool { return r == RoleMember }


// Member is a read-only snapshot of a club account.
type Member struct {
	ID        MemberID
	Role      Role
	FirstName string
	LastName  string
	Email     string
	PushToken string // device token for push delivery, may be blank
}

// DisplayName joins first and last name, skipping blanks.
func (m Member) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(m.FirstName) + " " + strings.TrimSpace(m.LastName))
}

// HasPushToken reports whether the member can receive pushes.
func (m Member) HasPushToken() bool {
	return strings.TrimSpace(m.PushToken) != ""
}
