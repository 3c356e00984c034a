package models

import "time"

// ReviewStatus captures the admin review state of an uploaded document.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// ReviewDecision is the admin's verdict on a document.
type ReviewDecision string

const (
	DecisionApproved ReviewDecision = "approved"
	DecisionRejected ReviewDecision = "rejected"
)

// Valid reports whether the decision is one of the accepted verdicts.
func (d ReviewDecision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Known document type codes per party. doc_type itself stays an open string;
// this registry is advisory and drives UI pickers, not server validation.
var (
	TenantDocTypes   = []string{"passport", "visa_or_residence", "income_proof", "extra"}
	LandlordDocTypes = []string{"ownership_proof", "landlord_id", "extra"}
)

// KnownDocType reports whether the code belongs to the party's registry.
func KnownDocType(party Party, code string) bool {
	var known []string
	switch party {
	case PartyTenant:
		known = TenantDocTypes
	case PartyLandlord:
		known = LandlordDocTypes
	}
	for _, k := range known {
		if k == code {
			return true
		}
	}
	return false
}

// DealDocument is one uploaded file evidencing a requirement, e.g. a
// passport or a proof of ownership.
type DealDocument struct {
	ID                string       `db:"id" json:"id"`
	DealID            string       `db:"deal_id" json:"deal_id"`
	UploaderID        string       `db:"uploader_id" json:"uploader_id"`
	Party             Party        `db:"party" json:"party"`
	DocType           string       `db:"doc_type" json:"doc_type"`
	FilePath          string       `db:"file_path" json:"file_path"`
	Status            ReviewStatus `db:"status" json:"status"`
	Note              *string      `db:"note" json:"note,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	ReviewedAt        *time.Time   `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedByAdminID *string      `db:"reviewed_by_admin_id" json:"reviewed_by_admin_id,omitempty"`
}
