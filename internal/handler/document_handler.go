package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relovo/relovo-api/internal/dto"
	"github.com/relovo/relovo-api/internal/service"
	appErrors "github.com/relovo/relovo-api/pkg/errors"
	"github.com/relovo/relovo-api/pkg/response"
)

// DocumentHandler wires HTTP endpoints to the document service.
type DocumentHandler struct {
	service *service.DocumentService
}

// NewDocumentHandler creates a new handler.
func NewDocumentHandler(svc *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// Upload godoc
// @Summary Upload a deal document
// @Description Party uploads a document for admin review; the first upload advances a reserved deal to docs_pending
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Deal ID"
// @Param doc_type formData string true "Document type code"
// @Param file formData file true "Document file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /deals/{id}/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	upload, err := readUploadedFile(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}

	doc, err := h.service.Upload(c.Request.Context(), c.Param("id"), c.PostForm("doc_type"), upload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, doc)
}

// Review godoc
// @Summary Review a deal document
// @Description Admin approves or rejects an uploaded document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.ReviewDocumentRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/{id}/review [post]
func (h *DocumentHandler) Review(c *gin.Context) {
	var req dto.ReviewDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	doc, err := h.service.Review(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, doc, nil)
}

// readUploadedFile pulls one multipart file into memory. Size limits are
// enforced by the services against the configured maximum.
func readUploadedFile(c *gin.Context, field string) (service.FileUpload, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return service.FileUpload{}, appErrors.Clone(appErrors.ErrValidation, "no file provided")
	}
	file, err := header.Open()
	if err != nil {
		return service.FileUpload{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to open uploaded file")
	}
	defer file.Close() //nolint:errcheck

	content, err := io.ReadAll(file)
	if err != nil {
		return service.FileUpload{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file")
	}
	return service.FileUpload{Filename: header.Filename, Content: content}, nil
}
