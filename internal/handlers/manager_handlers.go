package handlers

import (
	"net/http"
	"time"

	"github.com/01moynul/taptosell-installments/internal/auth"
	"github.com/01moynul/taptosell-installments/internal/installment"
	"github.com/01moynul/taptosell-installments/internal/middleware"
	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/gin-gonic/gin"
)

//
// --- Shared: Request Detail ---
//

// GetInstallmentRequest is the handler for GET /v1/installments/:id
// Buyers see only their own requests; suppliers see forwarded requests and only their own offers.
func (h *Handlers) GetInstallmentRequest(c *gin.Context) {
	ctx := c.Request.Context()
	actorID := middleware.GetActorID(c)
	role, _ := middleware.GetRole(c)

	// 1. --- Load Request ---
	req, err := h.Engine.GetRequest(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	// 2. --- Check Visibility ---
	switch role {
	case auth.RoleBuyer:
		if req.BuyerID != actorID {
			notFound(c, "Installment request")
			return
		}
	case auth.RoleSupplier:
		if !req.IsForwardedTo(actorID) {
			notFound(c, "Installment request")
			return
		}
	}

	// 3. --- Load Offers ---
	offers, err := h.Engine.ListOffersByRequest(ctx, req.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if role == auth.RoleSupplier {
		own := make([]*models.InstallmentOffer, 0, len(offers))
		for _, o := range offers {
			if o.SupplierID != nil && *o.SupplierID == actorID {
				own = append(own, o)
			}
		}
		offers = own
	}

	c.JSON(http.StatusOK, gin.H{
		"request": req,
		"offers":  offers,
	})
}

//
// --- Manager: Contract & Reporting Handlers ---
//

// MarkPaidInput defines the optional payment details.
type MarkPaidInput struct {
	PaymentMethod    *string `json:"paymentMethod"`
	PaymentReference *string `json:"paymentReference"`
}

// MarkInstallmentPaid is the handler for POST /v1/manager/offers/:id/installments/:installmentId/pay
func (h *Handlers) MarkInstallmentPaid(c *gin.Context) {
	var input MarkPaidInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	offer, err := h.Engine.MarkInstallmentPaid(c.Request.Context(), c.Param("id"), c.Param("installmentId"), input.PaymentMethod, input.PaymentReference)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offer": offer})
}

// GetBuyerCreditProfile is the handler for GET /v1/manager/credit-profiles/:buyerId
func (h *Handlers) GetBuyerCreditProfile(c *gin.Context) {
	profile, err := h.Engine.GetCreditProfile(c.Request.Context(), c.Param("buyerId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// GetInstallmentStats is the handler for GET /v1/manager/installments/stats
func (h *Handlers) GetInstallmentStats(c *gin.Context) {
	stats, err := h.Engine.GetStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// GetInstallmentEvents is the handler for GET /v1/manager/installments/:id/events
func (h *Handlers) GetInstallmentEvents(c *gin.Context) {
	ctx := c.Request.Context()
	req, err := h.Engine.GetRequest(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	evts, err := h.Engine.ListEvents(ctx, req.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evts})
}

// RunOverdueSweep is the handler for POST /v1/manager/sweeps
func (h *Handlers) RunOverdueSweep(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		report installment.SweepReport
		err    error
	)
	if h.Sweeper != nil {
		report, err = h.Sweeper.RunOnce(ctx)
	} else {
		report, err = h.Engine.SweepOverdue(ctx, time.Now())
	}

	// A partial failure still reports what was swept.
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Sweep finished with errors",
			"report": report,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}
