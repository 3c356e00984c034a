package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/relovo/relovo-api/internal/models"
	"github.com/relovo/relovo-api/internal/service"
	"github.com/relovo/relovo-api/pkg/response"
)

// ListingHandler wires HTTP endpoints to the listing service.
type ListingHandler struct {
	service *service.ListingService
}

// NewListingHandler creates a new handler.
func NewListingHandler(svc *service.ListingService) *ListingHandler {
	return &ListingHandler{service: svc}
}

// List godoc
// @Summary List catalog entries
// @Description Browse rental listings, optionally filtered by city or owner
// @Tags Listings
// @Produce json
// @Param city query string false "City filter"
// @Param owner_id query string false "Owner filter"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} response.Envelope
// @Router /listings [get]
func (h *ListingHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	filter := models.ListingFilter{
		City:    c.Query("city"),
		OwnerID: c.Query("owner_id"),
		Limit:   limit,
		Offset:  offset,
	}

	listings, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, listings, nil)
}

// Get godoc
// @Summary Get a listing
// @Description Fetch a single catalog entry
// @Tags Listings
// @Produce json
// @Param id path string true "Listing ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /listings/{id} [get]
func (h *ListingHandler) Get(c *gin.Context) {
	listing, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, listing, nil)
}

// Delete godoc
// @Summary Delete a listing
// @Description Admin removes a listing; every attached deal with its documents, contracts and audit trail is purged
// @Tags Listings
// @Produce json
// @Param id path string true "Listing ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /listings/{id} [delete]
func (h *ListingHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
