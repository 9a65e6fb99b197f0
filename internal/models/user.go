package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Role is the account type of a user.
type Role string

const (
	RoleRenter Role = "renter"
	RoleOwner  Role = "owner"
)

// DefaultUserImage is used when a user registers without uploading an image.
const DefaultUserImage = "https://img.freepik.com/free-photo/user-profile-front-side_187299-39595.jpg?w=740"

// ParseRole lower-cases s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleRenter, RoleOwner:
		return r, true
	}
	return r, false
}

// User represents a user account in the system.
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	Image        string    `json:"image"`
	PasswordHash string    `json:"-"` // Never expose this to the client
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// Only the relation matching Role is loaded. A loaded relation is
	// encoded even when empty; a nil one is left out.
	OwnedProperties  []Property `json:"ownedProperties,omitempty"`
	RentedProperties []Property `json:"rentedProperties,omitempty"`
}

// MarshalJSON encodes a loaded but empty relation as [] instead of dropping it.
func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	out := struct {
		plain
		OwnedProperties  *[]Property `json:"ownedProperties,omitempty"`
		RentedProperties *[]Property `json:"rentedProperties,omitempty"`
	}{plain: plain(u)}
	if u.OwnedProperties != nil {
		out.OwnedProperties = &u.OwnedProperties
	}
	if u.RentedProperties != nil {
		out.RentedProperties = &u.RentedProperties
	}
	return json.Marshal(out)
}
