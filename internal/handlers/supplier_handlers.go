package handlers

import (
	"net/http"

	"github.com/01moynul/taptosell-installments/internal/installment"
	"github.com/01moynul/taptosell-installments/internal/middleware"
	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

//
// --- Supplier: Offer Handlers ---
//

// GetSupplierInstallmentRequests is the handler for GET /v1/supplier/installments
// It lists the forwarded requests this supplier may bid on.
func (h *Handlers) GetSupplierInstallmentRequests(c *gin.Context) {
	reqs, err := h.Engine.ListRequestsForSupplier(c.Request.Context(), middleware.GetActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// SupplierOfferInput defines the JSON for a supplier's offer.
type SupplierOfferInput struct {
	Type             string                `json:"type" binding:"required,oneof=full partial"`
	Items            []models.ApprovedItem `json:"items" binding:"required,min=1"`
	Total            decimal.Decimal       `json:"total"`
	PaymentFrequency string                `json:"paymentFrequency" binding:"omitempty,oneof=monthly weekly"`
	InstallmentCount int                   `json:"installmentCount" binding:"omitempty,min=1"`
	Notes            string                `json:"notes"`
}

// SubmitSupplierOffer is the handler for POST /v1/supplier/installments/:id/offers
func (h *Handlers) SubmitSupplierOffer(c *gin.Context) {
	// 1. --- Bind Input ---
	var input SupplierOfferInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 2. --- Submit ---
	offer, err := h.Engine.SubmitSupplierOffer(c.Request.Context(), c.Param("id"), installment.SupplierOfferInput{
		SupplierID: middleware.GetActorID(c),
		Type:       models.OfferType(input.Type),
		Items:      input.Items,
		Total:      input.Total,
		Frequency:  models.Frequency(input.PaymentFrequency),
		Count:      input.InstallmentCount,
		Notes:      input.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"offer": offer})
}
