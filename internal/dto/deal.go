package dto

import "github.com/relovo/relovo-api/internal/models"

// ReserveRequest starts a deal on a listing.
type ReserveRequest struct {
	TenantNote string `json:"tenant_note"`
}

// SetDatesRequest proposes the rental period (date-only, YYYY-MM-DD).
type SetDatesRequest struct {
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

// SetStatusRequest moves the deal to a new lifecycle status.
type SetStatusRequest struct {
	Status models.DealStatus `json:"status" validate:"required"`
}

// CancelRequest cancels a deal with a reason for the audit trail.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// DealQuery filters deal listings.
type DealQuery struct {
	Status models.DealStatus
}

// DealDetail is the full read view of a deal: documents, audit trail,
// contract and per-party signed copies.
type DealDetail struct {
	Deal      *models.Deal                               `json:"deal"`
	Documents []models.DealDocument                      `json:"documents"`
	Audit     []models.DealAudit                         `json:"audit"`
	Contract  *models.DealContract                       `json:"contract,omitempty"`
	Signed    map[models.Party]models.DealContractSigned `json:"signed,omitempty"`
}
