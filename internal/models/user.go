package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an authentication identity owned by the auth service.
type User struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Email            string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash     string     `gorm:"size:255" json:"-"` // bcrypt, empty for provider-only accounts
	Provider         string     `gorm:"size:30;not null;default:'password'" json:"provider"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
}

// BeforeCreate assigns a random UUID when the caller did not set one.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
