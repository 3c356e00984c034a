package handler

import (
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relovo/relovo-api/internal/service"
	appErrors "github.com/relovo/relovo-api/pkg/errors"
	"github.com/relovo/relovo-api/pkg/response"
	"github.com/relovo/relovo-api/pkg/storage"
)

// FileHandler issues signed download links for stored deal files and serves
// the downloads themselves. The link carries the authorization: the download
// endpoint validates only the HMAC signature and expiry.
type FileHandler struct {
	deals  *service.DealService
	signer *storage.SignedURLSigner
	files  *storage.LocalStorage
}

// NewFileHandler creates a new handler.
func NewFileHandler(deals *service.DealService, signer *storage.SignedURLSigner, files *storage.LocalStorage) *FileHandler {
	return &FileHandler{deals: deals, signer: signer, files: files}
}

type fileLinkRequest struct {
	Path string `json:"path" binding:"required"`
}

type fileLinkResponse struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateLink godoc
// @Summary Create a signed download link
// @Description Issues a short-lived signed URL for a stored deal file (document, contract or signed copy)
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Param payload body fileLinkRequest true "Stored file path"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /deals/{id}/files/link [post]
func (h *FileHandler) CreateLink(c *gin.Context) {
	var req fileLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid link payload"))
		return
	}

	dealID := c.Param("id")
	if err := h.deals.AuthorizeFileAccess(c.Request.Context(), dealID, req.Path, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	if !h.files.Exists(req.Path) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "stored file not found"))
		return
	}

	token, expiresAt, err := h.signer.Generate(dealID, req.Path)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link"))
		return
	}

	response.JSON(c, http.StatusOK, fileLinkResponse{
		Token:     token,
		URL:       "/api/v1/files/" + token,
		ExpiresAt: expiresAt,
	}, nil)
}

// Download godoc
// @Summary Download a stored file
// @Description Serves the file referenced by a valid signed token
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	_, relPath, _, err := h.signer.Parse(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download link"))
		return
	}
	if !h.files.Exists(relPath) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "stored file not found"))
		return
	}

	c.FileAttachment(h.files.Path(relPath), path.Base(relPath))
}
