package dto

import "github.com/relovo/relovo-api/internal/models"

// ReviewDocumentRequest carries the admin decision on an uploaded document.
type ReviewDocumentRequest struct {
	Decision models.ReviewDecision `json:"decision" validate:"required"`
	Note     string                `json:"note"`
}
