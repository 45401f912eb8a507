package handlers

import (
	"net/http"

	"github.com/01moynul/taptosell-installments/internal/installment"
	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

//
// --- Primary Seller: Review Handlers ---
//

// GetInstallmentRequests is the handler for GET /v1/seller/installments?status=
func (h *Handlers) GetInstallmentRequests(c *gin.Context) {
	status := models.RequestStatus(c.Query("status"))

	reqs, err := h.Engine.ListRequestsByStatus(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// SellerDecisionInput defines the JSON for the primary seller's verdict.
type SellerDecisionInput struct {
	Decision           string                `json:"decision" binding:"required,oneof=approve_full approve_partial reject"`
	Items              []models.ApprovedItem `json:"items"`
	Total              decimal.Decimal       `json:"total"`
	Notes              string                `json:"notes"`
	ForwardImmediately bool                  `json:"forwardImmediately"`
}

// RecordSellerDecision is the handler for POST /v1/seller/installments/:id/decision
func (h *Handlers) RecordSellerDecision(c *gin.Context) {
	// 1. --- Bind Input ---
	var input SellerDecisionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 2. --- Record ---
	result, err := h.Engine.RecordPrimarySellerDecision(c.Request.Context(), c.Param("id"), installment.PrimaryDecisionInput{
		Decision:           installment.SellerDecision(input.Decision),
		Items:              input.Items,
		Total:              input.Total,
		Notes:              input.Notes,
		ForwardImmediately: input.ForwardImmediately,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ForwardInput names the suppliers to open the request to; empty means all.
type ForwardInput struct {
	SupplierIDs []string `json:"supplierIds"`
}

// ForwardInstallmentRequest is the handler for POST /v1/seller/installments/:id/forward
func (h *Handlers) ForwardInstallmentRequest(c *gin.Context) {
	var input ForwardInput
	// An empty body forwards to every supplier.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	req, err := h.Engine.ForwardToSuppliers(c.Request.Context(), c.Param("id"), input.SupplierIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": req})
}

// CloseInput defines the JSON for closing a request.
type CloseInput struct {
	Reason string `json:"reason" binding:"required"`
}

// CloseInstallmentRequest is the handler for POST /v1/seller/installments/:id/close
func (h *Handlers) CloseInstallmentRequest(c *gin.Context) {
	var input CloseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A reason is required when closing a request"})
		return
	}

	req, err := h.Engine.CloseRequest(c.Request.Context(), c.Param("id"), input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": req})
}
