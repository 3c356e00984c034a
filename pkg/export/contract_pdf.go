package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// AgreementData carries everything the unsigned rental agreement needs.
type AgreementData struct {
	DealID        string
	ListingTitle  string
	ListingCity   string
	MonthlyRent   int
	TenantName    string
	TenantEmail   string
	LandlordName  string
	LandlordEmail string
	StartDate     time.Time
	EndDate       time.Time
	GeneratedAt   time.Time
}

// ContractRenderer produces the unsigned rental agreement PDF. There is a
// single rendering path: if rendering fails the caller gets an error, never
// a degraded artifact.
type ContractRenderer struct{}

// NewContractRenderer constructs a contract renderer.
func NewContractRenderer() *ContractRenderer {
	return &ContractRenderer{}
}

// Render produces the agreement PDF bytes for the given deal data.
func (r *ContractRenderer) Render(data AgreementData) ([]byte, error) {
	if data.DealID == "" {
		return nil, fmt.Errorf("contract requires a deal reference")
	}
	if data.StartDate.IsZero() || data.EndDate.IsZero() {
		return nil, fmt.Errorf("contract requires a rental period")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.SetCreationDate(data.GeneratedAt)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "RENTAL AGREEMENT / MIETVERTRAG", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Deal reference: %s", data.DealID), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "1. Parties", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 6, fmt.Sprintf("Landlord: %s (%s)", data.LandlordName, data.LandlordEmail), "", "", false)
	pdf.MultiCell(0, 6, fmt.Sprintf("Tenant: %s (%s)", data.TenantName, data.TenantEmail), "", "", false)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "2. Property", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 6, fmt.Sprintf("%s, %s", data.ListingTitle, data.ListingCity), "", "", false)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "3. Term and rent", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 6, fmt.Sprintf("Rental period: %s to %s",
		data.StartDate.Format("2006-01-02"), data.EndDate.Format("2006-01-02")), "", "", false)
	pdf.MultiCell(0, 6, fmt.Sprintf("Monthly rent: %d EUR", data.MonthlyRent), "", "", false)
	pdf.Ln(10)

	pdf.SetFont("Arial", "I", 9)
	pdf.MultiCell(0, 5, "This document is generated unsigned. Both parties print, sign and upload "+
		"their signed copy; progression of the deal remains subject to administrator review.", "", "", false)
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(85, 6, "Landlord signature: ____________________", "", 0, "", false, 0, "")
	pdf.CellFormat(85, 6, "Tenant signature: ____________________", "", 1, "", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render contract pdf: %w", err)
	}
	return buf.Bytes(), nil
}
