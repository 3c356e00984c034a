package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relovo/relovo-api/internal/service"
	"github.com/relovo/relovo-api/pkg/response"
)

// ContractHandler wires HTTP endpoints to the contract service.
type ContractHandler struct {
	service *service.ContractService
}

// NewContractHandler creates a new handler.
func NewContractHandler(svc *service.ContractService) *ContractHandler {
	return &ContractHandler{service: svc}
}

// Generate godoc
// @Summary Generate the unsigned contract
// @Description Renders a fresh unsigned agreement and attaches it to the deal, discarding recorded signed copies
// @Tags Contracts
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /deals/{id}/contract/generate [post]
func (h *ContractHandler) Generate(c *gin.Context) {
	contract, err := h.service.Generate(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, contract, nil)
}

// UploadSigned godoc
// @Summary Upload a signed contract copy
// @Description Party uploads their signed copy; a re-upload replaces the party's previous copy
// @Tags Contracts
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Deal ID"
// @Param file formData file true "Signed contract file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /deals/{id}/contract/signed [post]
func (h *ContractHandler) UploadSigned(c *gin.Context) {
	upload, err := readUploadedFile(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}

	signed, err := h.service.UploadSigned(c.Request.Context(), c.Param("id"), upload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, signed)
}
