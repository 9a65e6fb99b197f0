package models

import "time"

// Property is a rental listing published by an owner.
type Property struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Price       float64   `json:"price"`
	Image       string    `json:"image"`
	OwnerID     string    `json:"ownerId"`
	RenterID    *string   `json:"renterId"` // nil while the property is available
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Available reports whether nobody rents the property.
func (p Property) Available() bool {
	return p.RenterID == nil
}
