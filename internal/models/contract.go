package models

import "time"

// DealContract is the generated unsigned agreement artifact for a deal.
// At most one exists per deal.
type DealContract struct {
	ID             string    `db:"id" json:"id"`
	DealID         string    `db:"deal_id" json:"deal_id"`
	UnsignedPath   string    `db:"unsigned_path" json:"unsigned_path"`
	UnsignedSHA256 string    `db:"unsigned_sha256" json:"unsigned_sha256"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	CreatedByID    *string   `db:"created_by_id" json:"created_by_id,omitempty"`
}

// HasArtifact reports whether the record points at a stored unsigned file
// with a recorded digest. Rows missing either are treated as broken and
// repaired by the auto-attach path.
func (c *DealContract) HasArtifact() bool {
	return c != nil && c.UnsignedPath != "" && c.UnsignedSHA256 != ""
}

// DealContractSigned is one party's uploaded signed counter-copy. At most
// one exists per (contract, party); re-upload replaces the record in place.
type DealContractSigned struct {
	ID         string    `db:"id" json:"id"`
	ContractID string    `db:"contract_id" json:"contract_id"`
	Party      Party     `db:"party" json:"party"`
	FilePath   string    `db:"file_path" json:"file_path"`
	SHA256     string    `db:"sha256" json:"sha256"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
	UploaderID string    `db:"uploader_id" json:"uploader_id"`
}
