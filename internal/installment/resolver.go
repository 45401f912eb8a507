package installment

import (
	"context"
	"fmt"

	"github.com/01moynul/taptosell-installments/internal/credit"
	"github.com/01moynul/taptosell-installments/internal/logger"
	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/01moynul/taptosell-installments/internal/policy"
	"github.com/01moynul/taptosell-installments/internal/store"
)

// BuyerDecision is the buyer's answer to an offer.
type BuyerDecision string

const (
	BuyerAccept BuyerDecision = "accept"
	BuyerReject BuyerDecision = "reject"
)

// ResolveBuyerDecision is the only path by which a buyer's action changes an
// offer or request. Decisions on the same request are serialised.
func (e *Engine) ResolveBuyerDecision(ctx context.Context, offerID string, decision BuyerDecision) (*DecisionResult, error) {
	if decision != BuyerAccept && decision != BuyerReject {
		return nil, validationf("unknown decision %q", decision)
	}

	// The offer's request never changes, so it is safe to read before locking.
	peek, err := e.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, notFound(err, ErrOfferNotFound, offerID)
	}

	unlock, err := e.locker.Lock(ctx, peek.RequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock request %s: %w", peek.RequestID, err)
	}
	defer unlock()

	pol := e.policy.Current()
	now := e.clock()

	var (
		result  DecisionResult
		outcome string
	)
	err = e.inTx(ctx, now, func(tx store.Tx, out *outbox) error {
		// 1. --- Lock request, then its offers ---
		req, err := tx.GetRequestForUpdate(ctx, peek.RequestID)
		if err != nil {
			return notFound(err, ErrRequestNotFound, peek.RequestID)
		}
		offers, err := tx.ListOffersByRequestForUpdate(ctx, req.ID)
		if err != nil {
			return err
		}
		var offer *models.InstallmentOffer
		for _, o := range offers {
			if o.ID == offerID {
				offer = o
			}
		}
		if offer == nil {
			return fmt.Errorf("%w: %s", ErrOfferNotFound, offerID)
		}

		// 2. --- Guards ---
		if offer.Status != models.OfferWaitingForBuyer {
			return statef(ErrOfferAlreadyResolved, "offer %s is %s", offer.ID, offer.Status)
		}
		if req.Status.IsTerminal() {
			return statef(ErrInvalidStateForDecision, "request %s is %s", req.ID, req.Status)
		}

		offer.UpdatedAt = now
		offer.ResolvedAt = &now
		req.UpdatedAt = now

		// 3. --- Apply ---
		if decision == BuyerAccept {
			outcome = "active_contract"
			if err := e.accept(ctx, tx, out, req, offer, offers); err != nil {
				return err
			}
		} else {
			var err error
			outcome, err = e.reject(ctx, tx, out, pol, req, offer, offers)
			if err != nil {
				return err
			}
		}

		result.Request = req
		result.Offer = offer
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.OfferResolved(ctx, string(decision), outcome)
	logger.Info(ctx, "buyer decision resolved",
		"offer_id", offerID,
		"installment_request_id", result.Request.ID,
		"decision", string(decision),
		"outcome", outcome,
		"status", string(result.Request.Status),
	)
	return &result, nil
}

func (e *Engine) accept(ctx context.Context, tx store.Tx, out *outbox, req *models.InstallmentRequest, offer *models.InstallmentOffer, offers []*models.InstallmentOffer) error {
	now := out.now

	offer.Status = models.OfferAccepted
	if err := tx.UpdateOffer(ctx, offer); err != nil {
		return err
	}
	if err := supersedeWaiting(ctx, tx, out, offers, offer.ID, now); err != nil {
		return err
	}

	req.Status = models.StatusActiveContract
	req.AcceptedOfferID = strPtr(offer.ID)
	if err := tx.UpdateRequest(ctx, req); err != nil {
		return err
	}

	profile, err := tx.GetCreditProfileForUpdate(ctx, req.BuyerID)
	if err != nil {
		return err
	}
	credit.ApplyAcceptance(profile, offer.TotalApprovedValue, now)
	if err := tx.SaveCreditProfile(ctx, profile); err != nil {
		return err
	}

	out.add(models.EventOfferResolved, offer.ID, req.ID, string(offer.Status), map[string]string{
		"decision": string(BuyerAccept),
		"total":    offer.TotalApprovedValue.String(),
	})
	return nil
}

// reject applies the cascade for the offer's source and returns its name.
func (e *Engine) reject(ctx context.Context, tx store.Tx, out *outbox, pol *policy.Store, req *models.InstallmentRequest, offer *models.InstallmentOffer, offers []*models.InstallmentOffer) (string, error) {
	now := out.now

	offer.Status = models.OfferRejected
	if err := tx.UpdateOffer(ctx, offer); err != nil {
		return "", err
	}
	out.add(models.EventOfferResolved, offer.ID, req.ID, string(offer.Status), map[string]string{
		"decision": string(BuyerReject),
	})

	var (
		cascade policy.CascadeOutcome
		reason  string
	)
	if offer.SourceType == models.SourcePrimarySeller {
		cascade = pol.CascadeOnPrimaryOfferReject()
		reason = ReasonBuyerRejectedPrimary
	} else {
		cascade = pol.CascadeOnSupplierOfferReject()
		reason = ReasonBuyerRejectedSupplier
	}

	switch cascade {
	case policy.Close:
		if err := closeRequest(ctx, tx, out, req, models.StatusClosed, reason, now); err != nil {
			return "", err
		}

	case policy.ForwardToSuppliers:
		req.AllowedForSuppliers = true
		// Supplier offers made after an explicit early forward keep the buyer's attention.
		if req.Status != models.StatusAwaitingBuyerOnSupplierOffer {
			req.Status = models.StatusForwardedToSuppliers
		}
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return "", err
		}
		out.add(models.EventRequestForwarded, req.ID, req.ID, string(req.Status), nil)

	case policy.KeepWaiting:
		if hasWaitingSibling(offers, offer.ID) {
			req.Status = models.StatusAwaitingBuyerOnSupplierOffer
		} else {
			req.Status = models.StatusWaitingForSupplierOffers
		}
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return "", err
		}
	}

	return cascade.String(), nil
}

func hasWaitingSibling(offers []*models.InstallmentOffer, exceptID string) bool {
	for _, o := range offers {
		if o.ID != exceptID && o.Status == models.OfferWaitingForBuyer {
			return true
		}
	}
	return false
}
