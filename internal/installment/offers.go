package installment

import (
	"context"
	"time"

	"github.com/01moynul/taptosell-installments/internal/logger"
	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/01moynul/taptosell-installments/internal/policy"
	"github.com/01moynul/taptosell-installments/internal/schedule"
	"github.com/01moynul/taptosell-installments/internal/store"
	"github.com/shopspring/decimal"
)

// SupplierOfferInput is the payload of SubmitSupplierOffer.
type SupplierOfferInput struct {
	SupplierID string
	Type       models.OfferType
	Items      []models.ApprovedItem
	// Total must equal the sum of the items when set.
	Total     decimal.Decimal
	Frequency models.Frequency
	// Count of installments. Zero derives it from the request's duration.
	Count int
	Notes string
}

type offerSpec struct {
	source     models.OfferSource
	supplierID *string
	offerType  models.OfferType
	items      []models.ApprovedItem
	total      decimal.Decimal
	frequency  models.Frequency
	count      int
	notes      string
}

// SubmitSupplierOffer records a supplier's offer on a forwarded request.
// Several suppliers may each hold one live offer on the same request.
func (e *Engine) SubmitSupplierOffer(ctx context.Context, requestID string, in SupplierOfferInput) (*models.InstallmentOffer, error) {
	pol := e.policy.Current()
	now := e.clock()

	// 1. --- Validate Input ---
	if in.SupplierID == "" {
		return nil, validationf("supplier id is required")
	}
	if !in.Type.Valid() {
		return nil, validationf("unknown offer type %q", in.Type)
	}
	if in.Frequency == "" {
		in.Frequency = pol.DefaultFrequency()
	}
	if !in.Frequency.Valid() {
		return nil, validationf("unknown payment frequency %q", in.Frequency)
	}

	// 2. --- Lock Request & Create Offer ---
	var (
		offer       *models.InstallmentOffer
		statusMoved bool
	)
	err := e.inTx(ctx, now, func(tx store.Tx, out *outbox) error {
		req, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return notFound(err, ErrRequestNotFound, requestID)
		}
		if !req.AllowedForSuppliers || req.Status.IsTerminal() || !req.IsForwardedTo(in.SupplierID) {
			return statef(ErrRequestNotOpenForSuppliers, "request %s (%s)", req.ID, req.Status)
		}
		if in.Type == models.OfferPartial && !pol.IsPartialApprovalAllowed(policy.ActorSupplier) {
			return policyf("partial offers by suppliers are disabled")
		}

		siblings, err := tx.ListOffersByRequestForUpdate(ctx, req.ID)
		if err != nil {
			return err
		}
		for _, o := range siblings {
			if o.SupplierID != nil && *o.SupplierID == in.SupplierID &&
				(o.Status == models.OfferWaitingForBuyer || o.Status == models.OfferAccepted) {
				return statef(ErrDuplicateSupplierOffer, "offer %s", o.ID)
			}
		}

		count := in.Count
		if count == 0 {
			count = schedule.InstallmentCount(req.RequestedDurationMonths, in.Frequency)
		}
		count = pol.ClampInstallmentCount(in.Frequency, count)

		offer, err = e.buildOffer(req, offerSpec{
			source:     models.SourceSupplier,
			supplierID: strPtr(in.SupplierID),
			offerType:  in.Type,
			items:      in.Items,
			total:      in.Total,
			frequency:  in.Frequency,
			count:      count,
			notes:      in.Notes,
		}, now)
		if err != nil {
			return err
		}
		if err := tx.InsertOffer(ctx, offer); err != nil {
			return err
		}

		if req.Status == models.StatusForwardedToSuppliers || req.Status == models.StatusWaitingForSupplierOffers {
			req.Status = models.StatusAwaitingBuyerOnSupplierOffer
			req.UpdatedAt = now
			if err := tx.UpdateRequest(ctx, req); err != nil {
				return err
			}
			statusMoved = true
		}

		out.add(models.EventOfferSubmitted, offer.ID, req.ID, string(offer.Status), map[string]string{
			"source":     string(offer.SourceType),
			"supplierId": in.SupplierID,
			"type":       string(offer.Type),
			"total":      offer.TotalApprovedValue.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.OfferSubmitted(ctx, string(models.SourceSupplier), string(offer.Type))
	logger.Info(ctx, "supplier offer submitted",
		"installment_request_id", requestID,
		"offer_id", offer.ID,
		"supplier_id", in.SupplierID,
		"request_status_moved", statusMoved,
	)
	return offer, nil
}

// buildOffer validates the approved items against the request and generates
// the schedule.
func (e *Engine) buildOffer(req *models.InstallmentRequest, spec offerSpec, now time.Time) (*models.InstallmentOffer, error) {
	if len(spec.items) == 0 {
		return nil, validationf("an offer needs at least one approved item")
	}

	seen := make(map[string]bool, len(spec.items))
	items := make([]models.ApprovedItem, len(spec.items))
	for i, it := range spec.items {
		if err := e.validate.Struct(it); err != nil {
			return nil, validationf("approved item %d: %v", i, err)
		}
		li, ok := req.LineItem(it.RequestItemID)
		if !ok {
			return nil, validationf("approved item %d references unknown line item %q", i, it.RequestItemID)
		}
		if seen[it.RequestItemID] {
			return nil, validationf("line item %q approved twice", it.RequestItemID)
		}
		seen[it.RequestItemID] = true
		if it.QuantityApproved > li.QuantityRequested {
			return nil, validationf("approved quantity %d exceeds requested %d for line item %q", it.QuantityApproved, li.QuantityRequested, li.ID)
		}
		if !it.UnitPriceApproved.IsPositive() {
			return nil, validationf("approved item %d: unit price must be positive", i)
		}
		items[i] = it
	}

	sum := models.SumApproved(items)
	if !spec.total.IsZero() && !spec.total.Equal(sum) {
		return nil, validationf("total %s does not match approved items %s", spec.total, sum)
	}

	sched, err := schedule.Generate(sum, spec.frequency, spec.count, now, e.newID)
	if err != nil {
		return nil, err
	}

	return &models.InstallmentOffer{
		ID:                 e.newID(),
		RequestID:          req.ID,
		SourceType:         spec.source,
		SupplierID:         spec.supplierID,
		Type:               spec.offerType,
		ItemsApproved:      items,
		TotalApprovedValue: sum,
		Schedule:           sched,
		Status:             models.OfferWaitingForBuyer,
		Notes:              spec.notes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}
