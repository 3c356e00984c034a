package models

import "time"

// Listing is a rental advertisement owned by a landlord. The deal core only
// consumes identity, owner, title, city and price; the rest of the catalog
// (images, search) lives outside this service's responsibilities.
type Listing struct {
	ID          string    `db:"id" json:"id"`
	OwnerID     string    `db:"owner_id" json:"owner_id"`
	Title       string    `db:"title" json:"title"`
	City        string    `db:"city" json:"city"`
	Price       int       `db:"price" json:"price"`
	Type        string    `db:"type" json:"type"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ListingFilter constrains catalog queries.
type ListingFilter struct {
	City    string
	OwnerID string
	Limit   int
	Offset  int
}
