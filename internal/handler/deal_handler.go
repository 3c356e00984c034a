package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relovo/relovo-api/internal/dto"
	"github.com/relovo/relovo-api/internal/models"
	"github.com/relovo/relovo-api/internal/service"
	appErrors "github.com/relovo/relovo-api/pkg/errors"
	"github.com/relovo/relovo-api/pkg/response"
)

// DealHandler wires HTTP endpoints to the deal service.
type DealHandler struct {
	service *service.DealService
}

// NewDealHandler creates a new handler.
func NewDealHandler(svc *service.DealService) *DealHandler {
	return &DealHandler{service: svc}
}

// Reserve godoc
// @Summary Reserve a listing
// @Description Start a deal on a listing as the acting tenant. Re-reserving a listing with an active deal returns that deal.
// @Tags Deals
// @Accept json
// @Produce json
// @Param id path string true "Listing ID"
// @Param payload body dto.ReserveRequest false "Optional tenant note"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /listings/{id}/reserve [post]
func (h *DealHandler) Reserve(c *gin.Context) {
	var req dto.ReserveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reserve payload"))
			return
		}
	}

	deal, created, err := h.service.Reserve(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.JSON(c, status, deal, nil)
}

// List godoc
// @Summary List deals
// @Description List deals visible to the actor, optionally filtered by status
// @Tags Deals
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /deals [get]
func (h *DealHandler) List(c *gin.Context) {
	query := dto.DealQuery{Status: models.DealStatus(c.Query("status"))}

	deals, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, deals, nil)
}

// Get godoc
// @Summary Get deal detail
// @Description Full deal view with documents, audit trail, contract and signed copies
// @Tags Deals
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /deals/{id} [get]
func (h *DealHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// SetDates godoc
// @Summary Propose rental dates
// @Description Tenant proposes the rental period; any change resets the landlord confirmation
// @Tags Deals
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Param payload body dto.SetDatesRequest true "Rental period"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /deals/{id}/dates [post]
func (h *DealHandler) SetDates(c *gin.Context) {
	var req dto.SetDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid dates payload"))
		return
	}

	deal, err := h.service.SetDates(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, deal, nil)
}

// ConfirmDates godoc
// @Summary Confirm rental dates
// @Description Landlord (or admin) accepts the proposed rental period
// @Tags Deals
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /deals/{id}/dates/confirm [post]
func (h *DealHandler) ConfirmDates(c *gin.Context) {
	deal, err := h.service.ConfirmDates(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, deal, nil)
}

// SetStatus godoc
// @Summary Change deal status
// @Description Admin moves the deal to a new lifecycle status; entering ready_to_sign auto-attaches the contract
// @Tags Deals
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Param payload body dto.SetStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 424 {object} response.Envelope
// @Security BearerAuth
// @Router /deals/{id}/status [patch]
func (h *DealHandler) SetStatus(c *gin.Context) {
	var req dto.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	deal, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, deal, nil)
}

// Cancel godoc
// @Summary Cancel a deal
// @Description Admin cancels the deal from any state; files and audit trail are kept
// @Tags Deals
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Param payload body dto.CancelRequest false "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /deals/{id}/cancel [post]
func (h *DealHandler) Cancel(c *gin.Context) {
	var req dto.CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cancel payload"))
			return
		}
	}

	deal, err := h.service.Cancel(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, deal, nil)
}

// Export godoc
// @Summary Export deals as CSV
// @Description Admin-only CSV export of the deal overview
// @Tags Deals
// @Produce text/csv
// @Param status query string false "Status filter"
// @Success 200 {string} string "CSV payload"
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/deals/export [get]
func (h *DealHandler) Export(c *gin.Context) {
	query := dto.DealQuery{Status: models.DealStatus(c.Query("status"))}

	payload, err := h.service.ExportCSV(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("deals_%s.csv", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", payload)
}
