package models

import "time"

// DealStatus enumerates the deal lifecycle states.
type DealStatus string

const (
	DealStatusReserved     DealStatus = "reserved"
	DealStatusDocsPending  DealStatus = "docs_pending"
	DealStatusDocsVerified DealStatus = "docs_verified"
	DealStatusReadyToSign  DealStatus = "ready_to_sign"
	DealStatusReadyToPay   DealStatus = "ready_to_pay"
	DealStatusPaid         DealStatus = "paid"
	DealStatusCompleted    DealStatus = "completed"
	DealStatusCanceled     DealStatus = "canceled"
)

// DealStatuses lists every lifecycle state in forward order.
var DealStatuses = []DealStatus{
	DealStatusReserved,
	DealStatusDocsPending,
	DealStatusDocsVerified,
	DealStatusReadyToSign,
	DealStatusReadyToPay,
	DealStatusPaid,
	DealStatusCompleted,
	DealStatusCanceled,
}

// Valid reports whether the status is one of the enumerated values.
func (s DealStatus) Valid() bool {
	for _, known := range DealStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Party identifies which side of a deal an actor or file belongs to.
type Party string

const (
	PartyTenant   Party = "tenant"
	PartyLandlord Party = "landlord"
)

// Valid reports whether the party is tenant or landlord.
func (p Party) Valid() bool {
	return p == PartyTenant || p == PartyLandlord
}

// Deal is the admin-managed negotiation between exactly one tenant and one
// landlord over one listing. It is not an instant booking: reserve ->
// documents -> signing -> payment, each step progressed by an administrator.
type Deal struct {
	ID             string     `db:"id" json:"id"`
	ListingID      string     `db:"listing_id" json:"listing_id"`
	TenantID       string     `db:"tenant_id" json:"tenant_id"`
	LandlordID     string     `db:"landlord_id" json:"landlord_id"`
	CreatedByID    string     `db:"created_by_id" json:"created_by_id"`
	Status         DealStatus `db:"status" json:"status"`
	StartDate      *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
	DatesConfirmed bool       `db:"dates_confirmed" json:"dates_confirmed"`
	AdminID        *string    `db:"admin_id" json:"admin_id,omitempty"`
	TenantNote     *string    `db:"tenant_note" json:"tenant_note,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// HasDates reports whether both rental dates are set.
func (d *Deal) HasDates() bool {
	return d.StartDate != nil && d.EndDate != nil
}

// PartyOf returns the side the given user plays in this deal, if any.
func (d *Deal) PartyOf(userID string) (Party, bool) {
	switch userID {
	case d.TenantID:
		return PartyTenant, true
	case d.LandlordID:
		return PartyLandlord, true
	default:
		return "", false
	}
}

// DealFilter constrains deal listing queries.
type DealFilter struct {
	TenantID   string
	LandlordID string
	ListingID  string
	Status     DealStatus
	Limit      int
	Offset     int
}
