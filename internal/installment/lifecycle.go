package installment

import (
	"context"
	"strconv"
	"time"

	"github.com/01moynul/taptosell-installments/internal/logger"
	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/01moynul/taptosell-installments/internal/policy"
	"github.com/01moynul/taptosell-installments/internal/schedule"
	"github.com/01moynul/taptosell-installments/internal/store"
	"github.com/shopspring/decimal"
)

// SellerDecision is the primary seller's verdict on a pending request.
type SellerDecision string

const (
	ApproveFull    SellerDecision = "approve_full"
	ApprovePartial SellerDecision = "approve_partial"
	Reject         SellerDecision = "reject"
)

// Closed reasons recorded by cascades.
const (
	ReasonBuyerRejectedPrimary  = "buyer rejected primary seller offer"
	ReasonBuyerRejectedSupplier = "buyer rejected supplier offer"
)

// PrimaryDecisionInput is the payload of RecordPrimarySellerDecision.
type PrimaryDecisionInput struct {
	Decision SellerDecision
	// Items and Total describe the offer for approvals. A full approval with
	// no items offers every line item at the requested quantity and price.
	Items []models.ApprovedItem
	Total decimal.Decimal
	// Notes are kept on the request as admin notes and, for approvals, on the offer.
	Notes string
	// ForwardImmediately only applies to Reject.
	ForwardImmediately bool
}

// DecisionResult is the request after a decision, plus the offer it concerned.
type DecisionResult struct {
	Request *models.InstallmentRequest `json:"request"`
	Offer   *models.InstallmentOffer   `json:"offer,omitempty"`
}

// CreateRequest opens a new installment request in PENDING_SINICAR_REVIEW.
func (e *Engine) CreateRequest(ctx context.Context, buyerID string, items []models.LineItem, durationMonths int, freq models.Frequency) (*models.InstallmentRequest, error) {
	pol := e.policy.Current()
	now := e.clock()

	// 1. --- Validate Input ---
	if !pol.Enabled() {
		return nil, policyf("installment requests are disabled")
	}
	if buyerID == "" {
		return nil, validationf("buyer id is required")
	}
	if len(items) == 0 {
		return nil, validationf("at least one line item is required")
	}
	if freq == "" {
		freq = pol.DefaultFrequency()
	}
	if !freq.Valid() {
		return nil, validationf("unknown payment frequency %q", freq)
	}
	if !pol.DurationInBounds(durationMonths) {
		p := pol.Policy()
		return nil, validationf("duration %d months is outside %d-%d", durationMonths, p.MinDurationMonths, p.MaxDurationMonths)
	}

	lineItems := make([]models.LineItem, len(items))
	total := decimal.Zero
	for i, li := range items {
		if err := e.validate.Struct(li); err != nil {
			return nil, validationf("line item %d: %v", i, err)
		}
		if !li.UnitPriceRequested.IsPositive() {
			return nil, validationf("line item %d: unit price must be positive", i)
		}
		li.ID = e.newID()
		lineItems[i] = li
		total = total.Add(li.Total())
	}

	p := pol.Policy()
	if total.LessThan(p.MinAmount) || total.GreaterThan(p.MaxAmount) {
		return nil, validationf("total %s is outside %s-%s", total, p.MinAmount, p.MaxAmount)
	}
	count := pol.ClampInstallmentCount(freq, schedule.InstallmentCount(durationMonths, freq))
	if _, err := schedule.Generate(total, freq, count, now, func() string { return "" }); err != nil {
		return nil, validationf("total %s cannot be paid in %d %s installments", total, count, freq)
	}

	// 2. --- Persist ---
	req := &models.InstallmentRequest{
		ID:                      e.newID(),
		BuyerID:                 buyerID,
		LineItems:               lineItems,
		TotalRequestedValue:     total,
		RequestedDurationMonths: durationMonths,
		PaymentFrequency:        freq,
		Status:                  models.StatusPendingPrimaryReview,
		PrimarySellerDecision:   models.DecisionPending,
		AllowedForSuppliers:     false,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	err := e.inTx(ctx, now, func(tx store.Tx, out *outbox) error {
		if err := tx.InsertRequest(ctx, req); err != nil {
			return err
		}
		out.add(models.EventRequestCreated, req.ID, req.ID, string(req.Status), map[string]string{
			"buyerId": buyerID,
			"total":   total.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.RequestCreated(ctx, string(freq))
	logger.Info(ctx, "installment request created", "installment_request_id", req.ID, "buyer_id", buyerID, "total", total.String())
	return req, nil
}

// RecordPrimarySellerDecision applies the primary seller's verdict. Approvals
// create a waiting offer; a rejection either parks the request in
// REJECTED_BY_SINICAR or forwards it straight to suppliers.
func (e *Engine) RecordPrimarySellerDecision(ctx context.Context, requestID string, in PrimaryDecisionInput) (*DecisionResult, error) {
	pol := e.policy.Current()
	now := e.clock()

	switch in.Decision {
	case ApproveFull, ApprovePartial, Reject:
	default:
		return nil, validationf("unknown decision %q", in.Decision)
	}
	if in.Decision == ApprovePartial && !pol.IsPartialApprovalAllowed(policy.ActorPrimarySeller) {
		return nil, policyf("partial approval by the primary seller is disabled")
	}

	var result DecisionResult
	err := e.inTx(ctx, now, func(tx store.Tx, out *outbox) error {
		req, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return notFound(err, ErrRequestNotFound, requestID)
		}
		if req.Status != models.StatusPendingPrimaryReview {
			return statef(ErrInvalidStateForDecision, "request %s is %s", req.ID, req.Status)
		}

		req.ReviewedAt = &now
		req.UpdatedAt = now
		if in.Notes != "" {
			req.AdminNotes = in.Notes
		}

		if in.Decision == Reject {
			req.PrimarySellerDecision = models.DecisionRejected
			if pol.AutoForwardOnPrimaryReject() || in.ForwardImmediately {
				req.Status = models.StatusForwardedToSuppliers
				req.AllowedForSuppliers = true
				req.ForwardedSupplierIDs = nil
			} else {
				req.Status = models.StatusRejectedByPrimary
			}
			if err := tx.UpdateRequest(ctx, req); err != nil {
				return err
			}
			out.add(models.EventDecisionRecorded, req.ID, req.ID, string(req.Status), map[string]string{
				"decision": string(in.Decision),
			})
			if req.Status == models.StatusForwardedToSuppliers {
				out.add(models.EventRequestForwarded, req.ID, req.ID, string(req.Status), nil)
			}
			result.Request = req
			return nil
		}

		offerType := models.OfferFull
		req.PrimarySellerDecision = models.DecisionApprovedFull
		if in.Decision == ApprovePartial {
			offerType = models.OfferPartial
			req.PrimarySellerDecision = models.DecisionApprovedPartial
		}

		items := in.Items
		if len(items) == 0 && in.Decision == ApproveFull {
			items = fullApproval(req)
		}
		count := pol.ClampInstallmentCount(req.PaymentFrequency, schedule.InstallmentCount(req.RequestedDurationMonths, req.PaymentFrequency))
		offer, err := e.buildOffer(req, offerSpec{
			source:    models.SourcePrimarySeller,
			offerType: offerType,
			items:     items,
			total:     in.Total,
			frequency: req.PaymentFrequency,
			count:     count,
			notes:     in.Notes,
		}, now)
		if err != nil {
			return err
		}

		req.Status = models.StatusAwaitingBuyerOnPrimaryOffer
		if err := tx.InsertOffer(ctx, offer); err != nil {
			return err
		}
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}
		out.add(models.EventDecisionRecorded, req.ID, req.ID, string(req.Status), map[string]string{
			"decision": string(in.Decision),
			"offerId":  offer.ID,
		})
		out.add(models.EventOfferSubmitted, offer.ID, req.ID, string(offer.Status), map[string]string{
			"source": string(offer.SourceType),
			"type":   string(offer.Type),
			"total":  offer.TotalApprovedValue.String(),
		})
		result.Request = req
		result.Offer = offer
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Offer != nil {
		e.metrics.OfferSubmitted(ctx, string(result.Offer.SourceType), string(result.Offer.Type))
	}
	logger.Info(ctx, "primary seller decision recorded", "installment_request_id", requestID, "decision", string(in.Decision), "status", string(result.Request.Status))
	return &result, nil
}

// forwardableStatuses are the states ForwardToSuppliers may run from.
var forwardableStatuses = map[models.RequestStatus]bool{
	models.StatusRejectedByPrimary:           true,
	models.StatusAwaitingBuyerOnPrimaryOffer: true,
	models.StatusForwardedToSuppliers:        true,
	models.StatusWaitingForSupplierOffers:    true,
}

// ForwardToSuppliers opens the request to suppliers. An empty supplierIDs
// opens it to every eligible supplier.
func (e *Engine) ForwardToSuppliers(ctx context.Context, requestID string, supplierIDs []string) (*models.InstallmentRequest, error) {
	pol := e.policy.Current()
	now := e.clock()

	ids := dedupe(supplierIDs)
	if limit := pol.MaxSuppliersPerRequest(); limit > 0 && len(ids) > limit {
		return nil, validationf("at most %d suppliers may be named, got %d", limit, len(ids))
	}

	var req *models.InstallmentRequest
	err := e.inTx(ctx, now, func(tx store.Tx, out *outbox) error {
		var err error
		req, err = tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return notFound(err, ErrRequestNotFound, requestID)
		}
		if req.PrimarySellerDecision == models.DecisionPending || !forwardableStatuses[req.Status] {
			return statef(ErrInvalidStateForDecision, "request %s cannot be forwarded from %s", req.ID, req.Status)
		}

		req.AllowedForSuppliers = true
		req.ForwardedSupplierIDs = ids
		req.Status = models.StatusForwardedToSuppliers
		req.UpdatedAt = now
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}
		out.add(models.EventRequestForwarded, req.ID, req.ID, string(req.Status), map[string]string{
			"suppliers": strconv.Itoa(len(ids)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "installment request forwarded", "installment_request_id", requestID, "suppliers", len(ids))
	return req, nil
}

// CloseRequest ends a non-terminal request. Waiting offers are superseded.
func (e *Engine) CloseRequest(ctx context.Context, requestID, reason string) (*models.InstallmentRequest, error) {
	now := e.clock()

	var req *models.InstallmentRequest
	err := e.inTx(ctx, now, func(tx store.Tx, out *outbox) error {
		var err error
		req, err = tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return notFound(err, ErrRequestNotFound, requestID)
		}
		if req.Status.IsTerminal() {
			return statef(ErrInvalidStateForDecision, "request %s is already %s", req.ID, req.Status)
		}
		return closeRequest(ctx, tx, out, req, models.StatusClosed, reason, now)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "installment request closed", "installment_request_id", requestID, "reason", reason)
	return req, nil
}

// CancelRequest is the buyer walking away. It is legal from every state
// except ACTIVE_CONTRACT and the other terminal states.
func (e *Engine) CancelRequest(ctx context.Context, requestID string) (*models.InstallmentRequest, error) {
	now := e.clock()

	var req *models.InstallmentRequest
	err := e.inTx(ctx, now, func(tx store.Tx, out *outbox) error {
		var err error
		req, err = tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return notFound(err, ErrRequestNotFound, requestID)
		}
		switch req.Status {
		case models.StatusActiveContract:
			return statef(ErrCannotCancelActiveContract, "request %s", req.ID)
		case models.StatusClosed, models.StatusCancelled:
			return statef(ErrInvalidStateForDecision, "request %s is already %s", req.ID, req.Status)
		}
		return closeRequest(ctx, tx, out, req, models.StatusCancelled, "cancelled by buyer", now)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "installment request cancelled", "installment_request_id", requestID)
	return req, nil
}

// closeRequest moves req to CLOSED or CANCELLED and supersedes its waiting offers.
func closeRequest(ctx context.Context, tx store.Tx, out *outbox, req *models.InstallmentRequest, status models.RequestStatus, reason string, now time.Time) error {
	offers, err := tx.ListOffersByRequestForUpdate(ctx, req.ID)
	if err != nil {
		return err
	}
	if err := supersedeWaiting(ctx, tx, out, offers, "", now); err != nil {
		return err
	}

	req.Status = status
	req.ClosedAt = &now
	req.UpdatedAt = now
	if reason != "" {
		req.ClosedReason = strPtr(reason)
	}
	if err := tx.UpdateRequest(ctx, req); err != nil {
		return err
	}

	evt := models.EventRequestClosed
	if status == models.StatusCancelled {
		evt = models.EventRequestCancelled
	}
	out.add(evt, req.ID, req.ID, string(status), map[string]string{"reason": reason})
	return nil
}

func fullApproval(req *models.InstallmentRequest) []models.ApprovedItem {
	items := make([]models.ApprovedItem, len(req.LineItems))
	for i, li := range req.LineItems {
		items[i] = models.ApprovedItem{
			RequestItemID:     li.ID,
			QuantityApproved:  li.QuantityRequested,
			UnitPriceApproved: li.UnitPriceRequested,
		}
	}
	return items
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

