package model

import (
	"strings"
	"time"
)

// User is a person who can act on work orders or receive escalations.
type User struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"size:128;not null"`
	Email     string `gorm:"size:256"`
	Roles     string `gorm:"size:256"` // comma separated
	Active    bool   `gorm:"not null"`
	CreatedAt time.Time
}

// RoleList returns the user's roles.
func (u User) RoleList() []string {
	var roles []string
	for _, r := range strings.Split(u.Roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// HasRole reports whether the user carries role.
func (u User) HasRole(role string) bool {
	for _, r := range u.RoleList() {
		if r == role {
			return true
		}
	}
	return false
}
