package handlers

import (
	"errors"
	"net/http"

	"github.com/01moynul/taptosell-installments/internal/installment"
	"github.com/01moynul/taptosell-installments/internal/lock"
	"github.com/01moynul/taptosell-installments/internal/logger"
	"github.com/01moynul/taptosell-installments/internal/middleware"
	"github.com/01moynul/taptosell-installments/internal/schedule"
	"github.com/gin-gonic/gin"
)

// errorStatus maps engine errors to HTTP status codes and stable error codes.
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{installment.ErrValidation, http.StatusBadRequest, "validation_error"},
	{schedule.ErrInvalidScheduleInput, http.StatusBadRequest, "invalid_schedule"},
	{installment.ErrPolicyViolation, http.StatusUnprocessableEntity, "policy_violation"},
	{installment.ErrRequestNotFound, http.StatusNotFound, "request_not_found"},
	{installment.ErrOfferNotFound, http.StatusNotFound, "offer_not_found"},
	{installment.ErrInstallmentNotFound, http.StatusNotFound, "installment_not_found"},
	{installment.ErrInvalidStateForDecision, http.StatusConflict, "invalid_state_for_decision"},
	{installment.ErrRequestNotOpenForSuppliers, http.StatusConflict, "request_not_open_for_suppliers"},
	{installment.ErrOfferAlreadyResolved, http.StatusConflict, "offer_already_resolved"},
	{installment.ErrCannotCancelActiveContract, http.StatusConflict, "cannot_cancel_active_contract"},
	{installment.ErrInstallmentAlreadyPaid, http.StatusConflict, "installment_already_paid"},
	{installment.ErrDuplicateSupplierOffer, http.StatusConflict, "duplicate_supplier_offer"},
	{lock.ErrLockTimeout, http.StatusConflict, "request_busy"},
}

// respondError writes the JSON error for err. Unknown errors are logged and hidden.
func respondError(c *gin.Context, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": err.Error(), "code": m.code})
			return
		}
	}

	logger.Error(c.Request.Context(), "request failed", "error", err, "path", c.Request.URL.Path)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":      "Internal server error",
		"request_id": middleware.GetRequestID(c),
	})
}

// notFound answers 404 without revealing whether the resource exists for someone else.
func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}
