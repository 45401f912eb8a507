package installment

import (
	"errors"
	"fmt"

	"github.com/01moynul/taptosell-installments/internal/store"
)

var (
	// ErrValidation covers malformed or out-of-policy input.
	ErrValidation = errors.New("validation error")
	// ErrPolicyViolation is an operation the current policy forbids.
	ErrPolicyViolation = errors.New("policy violation")

	ErrRequestNotFound     = errors.New("installment request not found")
	ErrOfferNotFound       = errors.New("offer not found")
	ErrInstallmentNotFound = errors.New("installment not found")

	// State machine guards.
	ErrInvalidStateForDecision    = errors.New("invalid state for decision")
	ErrRequestNotOpenForSuppliers = errors.New("request not open for suppliers")
	ErrOfferAlreadyResolved       = errors.New("offer already resolved")
	ErrCannotCancelActiveContract = errors.New("cannot cancel an active contract")
	ErrInstallmentAlreadyPaid     = errors.New("installment already paid")
	ErrDuplicateSupplierOffer     = errors.New("supplier already has a live offer on this request")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func policyf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPolicyViolation, fmt.Sprintf(format, args...))
}

func statef(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// notFound maps store.ErrNotFound to the engine sentinel for the entity.
func notFound(err error, sentinel error, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", sentinel, id)
	}
	return err
}
