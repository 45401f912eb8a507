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
// --- Buyer: Installment Request Handlers ---
//

// LineItemInput is one product line of a new request.
type LineItemInput struct {
	ProductID string          `json:"productId" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// CreateInstallmentRequestInput defines the JSON for a new installment request.
type CreateInstallmentRequestInput struct {
	Items            []LineItemInput `json:"items" binding:"required,min=1,dive"`
	DurationMonths   int             `json:"durationMonths" binding:"required,min=1"`
	PaymentFrequency string          `json:"paymentFrequency" binding:"omitempty,oneof=monthly weekly"`
}

// CreateInstallmentRequest is the handler for POST /v1/buyer/installments
func (h *Handlers) CreateInstallmentRequest(c *gin.Context) {
	// 1. --- Bind Input ---
	var input CreateInstallmentRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items := make([]models.LineItem, len(input.Items))
	for i, it := range input.Items {
		items[i] = models.LineItem{
			ProductID:          it.ProductID,
			QuantityRequested:  it.Quantity,
			UnitPriceRequested: it.UnitPrice,
		}
	}

	// 2. --- Create ---
	req, err := h.Engine.CreateRequest(c.Request.Context(), middleware.GetActorID(c), items, input.DurationMonths, models.Frequency(input.PaymentFrequency))
	if err != nil {
		respondError(c, err)
		return
	}

	// 3. --- Send Response ---
	c.JSON(http.StatusCreated, gin.H{"request": req})
}

// GetMyInstallmentRequests is the handler for GET /v1/buyer/installments
func (h *Handlers) GetMyInstallmentRequests(c *gin.Context) {
	reqs, err := h.Engine.ListRequestsByBuyer(c.Request.Context(), middleware.GetActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// CancelInstallmentRequest is the handler for POST /v1/buyer/installments/:id/cancel
func (h *Handlers) CancelInstallmentRequest(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := c.Param("id")

	// 1. --- Check Ownership ---
	req, err := h.Engine.GetRequest(ctx, requestID)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.BuyerID != middleware.GetActorID(c) {
		notFound(c, "Installment request")
		return
	}

	// 2. --- Cancel ---
	req, err = h.Engine.CancelRequest(ctx, requestID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"request": req})
}

// BuyerDecisionInput defines the JSON for answering an offer.
type BuyerDecisionInput struct {
	Decision string `json:"decision" binding:"required,oneof=accept reject"`
}

// DecideOffer is the handler for POST /v1/buyer/offers/:id/decision
func (h *Handlers) DecideOffer(c *gin.Context) {
	ctx := c.Request.Context()
	offerID := c.Param("id")

	// 1. --- Bind Input ---
	var input BuyerDecisionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 2. --- Check Ownership ---
	offer, err := h.Engine.GetOffer(ctx, offerID)
	if err != nil {
		respondError(c, err)
		return
	}
	req, err := h.Engine.GetRequest(ctx, offer.RequestID)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.BuyerID != middleware.GetActorID(c) {
		notFound(c, "Offer")
		return
	}

	// 3. --- Resolve ---
	result, err := h.Engine.ResolveBuyerDecision(ctx, offerID, installment.BuyerDecision(input.Decision))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetMyCreditProfile is the handler for GET /v1/buyer/credit-profile
func (h *Handlers) GetMyCreditProfile(c *gin.Context) {
	profile, err := h.Engine.GetCreditProfile(c.Request.Context(), middleware.GetActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}
