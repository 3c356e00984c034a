package models

import "time"

// Audit action tags recorded against deals.
const (
	AuditDealCreated          = "deal_created"
	AuditDatesSet             = "dates_set"
	AuditDatesConfirmed       = "dates_confirmed"
	AuditStatusChange         = "status_change"
	AuditDealCanceled         = "deal_canceled"
	AuditDocUpload            = "doc_upload"
	AuditDocReview            = "doc_review"
	AuditContractAttached     = "contract_attached"
	AuditContractAttachedAuto = "contract_attached_auto"
	AuditContractSignedUpload = "contract_signed_upload"
)

// DealAudit is an immutable append-only record of an action taken against a
// deal. Rows are never updated; they disappear only when the deal itself is
// purged by a listing cascade.
type DealAudit struct {
	ID        string    `db:"id" json:"id"`
	DealID    string    `db:"deal_id" json:"deal_id"`
	ActorID   *string   `db:"actor_id" json:"actor_id,omitempty"`
	Action    string    `db:"action" json:"action"`
	Meta      string    `db:"meta" json:"meta"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
