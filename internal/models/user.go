package models

import (
	"strings"
	"time"
)

const (
	UserStatusActive  = "Active"
	UserStatusBlocked = "Blocked"
)

// User is a customer account of the leads product.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	IsActive  *bool     `json:"is_active,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns "First Last", trimmed.
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ComputedStatus prefers the isActive flag over the free-form status string.
func (u *User) ComputedStatus() string {
	if u.IsActive != nil {
		if *u.IsActive {
			return UserStatusActive
		}
		return UserStatusBlocked
	}
	return u.Status
}

// Active reports whether the flag is set and true.
func (u *User) Active() bool {
	return u.IsActive != nil && *u.IsActive
}

// EffectiveStatus is the status string, falling back to the flag when empty.
func (u *User) EffectiveStatus() string {
	if s := strings.TrimSpace(u.Status); s != "" {
		return s
	}
	if u.Active() {
		return UserStatusActive
	}
	return UserStatusBlocked
}

// UserUpdate holds the optional fields of a PATCH request.
type UserUpdate struct {
	IsActive *bool
	Status   *string
}

// Empty reports whether no field is set.
func (u UserUpdate) Empty() bool {
	return u.IsActive == nil && u.Status == nil
}

// Admin is a dashboard operator account.
type Admin struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
