package installment

import (
	"context"
	"errors"

	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/01moynul/taptosell-installments/internal/store"
)

// supplierVisibleStatuses are the states in which a forwarded request can take offers.
var supplierVisibleStatuses = []models.RequestStatus{
	models.StatusAwaitingBuyerOnPrimaryOffer,
	models.StatusRejectedByPrimary,
	models.StatusForwardedToSuppliers,
	models.StatusWaitingForSupplierOffers,
	models.StatusAwaitingBuyerOnSupplierOffer,
}

func (e *Engine) GetRequest(ctx context.Context, id string) (*models.InstallmentRequest, error) {
	r, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrRequestNotFound, id)
	}
	return r, nil
}

func (e *Engine) GetOffer(ctx context.Context, id string) (*models.InstallmentOffer, error) {
	o, err := e.store.GetOffer(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrOfferNotFound, id)
	}
	return o, nil
}

func (e *Engine) ListRequestsByBuyer(ctx context.Context, buyerID string) ([]*models.InstallmentRequest, error) {
	return e.store.ListRequests(ctx, store.RequestFilter{BuyerID: buyerID})
}

// ListRequestsByStatus lists requests in status, or every request when status is empty.
func (e *Engine) ListRequestsByStatus(ctx context.Context, status models.RequestStatus) ([]*models.InstallmentRequest, error) {
	if status == "" {
		return e.store.ListRequests(ctx, store.RequestFilter{})
	}
	if !status.Valid() {
		return nil, validationf("unknown status %q", status)
	}
	return e.store.ListRequests(ctx, store.RequestFilter{Statuses: []models.RequestStatus{status}})
}

// ListRequestsForSupplier lists the open requests the supplier may bid on.
func (e *Engine) ListRequestsForSupplier(ctx context.Context, supplierID string) ([]*models.InstallmentRequest, error) {
	all, err := e.store.ListRequests(ctx, store.RequestFilter{Statuses: supplierVisibleStatuses})
	if err != nil {
		return nil, err
	}
	out := make([]*models.InstallmentRequest, 0, len(all))
	for _, r := range all {
		if r.IsForwardedTo(supplierID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (e *Engine) ListOffersByRequest(ctx context.Context, requestID string) ([]*models.InstallmentOffer, error) {
	if _, err := e.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return e.store.ListOffersByRequest(ctx, requestID)
}

// GetCreditProfile returns the buyer's profile, or an empty one if they have no history.
func (e *Engine) GetCreditProfile(ctx context.Context, buyerID string) (*models.CustomerCreditProfile, error) {
	p, err := e.store.GetCreditProfile(ctx, buyerID)
	if errors.Is(err, store.ErrNotFound) {
		return models.NewCreditProfile(buyerID), nil
	}
	return p, err
}

func (e *Engine) GetStats(ctx context.Context) (models.InstallmentStats, error) {
	return e.store.Stats(ctx)
}

// ListEvents returns the outbox entries of a request.
func (e *Engine) ListEvents(ctx context.Context, requestID string) ([]models.Event, error) {
	return e.store.ListEvents(ctx, requestID)
}
