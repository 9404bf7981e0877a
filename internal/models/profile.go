package models

import (
	"strings"
	"time"
)

// Role governs access to admin-only routes.
type Role string

const (
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// Roles lists every valid role.
var Roles = []Role{RoleStaff, RoleAdmin}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStaff || r == RoleAdmin
}

// Status is the admin-approval state of an account.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Statuses lists every valid status.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Profile is the application-level record linked to an auth identity.
// ID equals the identity's user ID.
type Profile struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	FirstName  string     `gorm:"size:50" json:"first_name"`
	LastName   string     `gorm:"size:50" json:"last_name"`
	Email      string     `gorm:"size:255;index" json:"email"`
	Phone      string     `gorm:"size:50" json:"phone"`
	Address    string     `gorm:"size:500" json:"address"`
	AvatarURL  string     `gorm:"size:500" json:"avatar_url"`
	Role       Role       `gorm:"size:20;not null;default:'staff'" json:"role"`
	Status     Status     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastActive *time.Time `json:"last_active"`
}

// FullName returns "first last" with surrounding blanks trimmed.
func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Initials returns up to two upper-case initials for avatar placeholders.
func (p *Profile) Initials() string {
	var b strings.Builder
	for _, part := range []string{p.FirstName, p.LastName} {
		if r := []rune(strings.TrimSpace(part)); len(r) > 0 {
			b.WriteString(strings.ToUpper(string(r[0])))
		}
	}
	return b.String()
}

// IsApproved reports whether an admin approved the account.
func (p *Profile) IsApproved() bool {
	return p.Status == StatusApproved
}

// IsAdmin reports whether the profile has the admin role.
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// AccessRole implements gate.Subject.
func (p *Profile) AccessRole() string { return string(p.Role) }

// AccessStatus implements gate.Subject.
func (p *Profile) AccessStatus() string { return string(p.Status) }
