package installment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/01moynul/taptosell-installments/internal/credit"
	"github.com/01moynul/taptosell-installments/internal/logger"
	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/01moynul/taptosell-installments/internal/store"
)

// SweepReport summarises one Delinquency Sweeper pass.
type SweepReport struct {
	ContractsScanned int `json:"contractsScanned"`
	NewlyOverdue     int `json:"newlyOverdue"`
	Failed           int `json:"failed"`
}

// SweepOverdue marks pending installments whose due date plus the grace
// period is before now as overdue. Each contract is its own transaction and
// installments already overdue are left alone, so re-running is harmless.
func (e *Engine) SweepOverdue(ctx context.Context, now time.Time) (SweepReport, error) {
	pol := e.policy.Current()
	grace := pol.GracePeriodDays()

	contracts, err := e.store.ListActiveContracts(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("failed to list active contracts: %w", err)
	}

	var (
		report SweepReport
		errs   []error
	)
	for _, c := range contracts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report.ContractsScanned++

		n, err := e.sweepContract(ctx, c, grace, now)
		if err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("offer %s: %w", c.OfferID, err))
			logger.Error(ctx, "overdue sweep failed for contract", "offer_id", c.OfferID, "error", err)
			continue
		}
		report.NewlyOverdue += n
	}

	e.metrics.InstallmentsOverdue(ctx, report.NewlyOverdue)
	logger.Info(ctx, "overdue sweep finished",
		"contracts_scanned", report.ContractsScanned,
		"newly_overdue", report.NewlyOverdue,
		"failed", report.Failed,
	)
	return report, errors.Join(errs...)
}

func (e *Engine) sweepContract(ctx context.Context, c store.ActiveContract, graceDays int, now time.Time) (int, error) {
	marked := 0
	err := e.inTx(ctx, now, func(tx store.Tx, out *outbox) error {
		marked = 0

		req, err := tx.GetRequestForUpdate(ctx, c.RequestID)
		if err != nil {
			return err
		}
		offer, err := tx.GetOfferForUpdate(ctx, c.OfferID)
		if err != nil {
			return err
		}
		// The contract may have changed since it was listed.
		if req.Status != models.StatusActiveContract || offer.Status != models.OfferAccepted {
			return nil
		}

		for i := range offer.Schedule.Installments {
			in := &offer.Schedule.Installments[i]
			if in.Status != models.InstallmentPending {
				continue
			}
			if !in.DueDate.AddDate(0, 0, graceDays).Before(now) {
				continue
			}
			in.Status = models.InstallmentOverdue
			marked++
			out.add(models.EventInstallmentOverdue, in.ID, req.ID, string(in.Status), map[string]string{
				"offerId": offer.ID,
				"buyerId": req.BuyerID,
				"amount":  in.Amount.String(),
				"dueDate": in.DueDate.Format(time.DateOnly),
			})
		}
		if marked == 0 {
			return nil
		}

		offer.UpdatedAt = now
		if err := tx.UpdateOffer(ctx, offer); err != nil {
			return err
		}
		profile, err := tx.GetCreditProfileForUpdate(ctx, req.BuyerID)
		if err != nil {
			return err
		}
		credit.ApplyOverdue(profile, marked, now)
		return tx.SaveCreditProfile(ctx, profile)
	})
	return marked, err
}

// MarkInstallmentPaid records a payment against one installment of an
// active contract. Paying the last outstanding installment completes the contract.
func (e *Engine) MarkInstallmentPaid(ctx context.Context, offerID, installmentID string, method, reference *string) (*models.InstallmentOffer, error) {
	now := e.clock()

	peek, err := e.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, notFound(err, ErrOfferNotFound, offerID)
	}

	var (
		offer      *models.InstallmentOffer
		wasOverdue bool
		completed  bool
	)
	err = e.inTx(ctx, now, func(tx store.Tx, out *outbox) error {
		req, err := tx.GetRequestForUpdate(ctx, peek.RequestID)
		if err != nil {
			return notFound(err, ErrRequestNotFound, peek.RequestID)
		}
		offer, err = tx.GetOfferForUpdate(ctx, offerID)
		if err != nil {
			return notFound(err, ErrOfferNotFound, offerID)
		}
		if offer.Status != models.OfferAccepted || req.Status != models.StatusActiveContract {
			return statef(ErrInvalidStateForDecision, "offer %s is not an active contract", offer.ID)
		}

		in := offer.Schedule.Installment(installmentID)
		if in == nil {
			return fmt.Errorf("%w: %s", ErrInstallmentNotFound, installmentID)
		}
		if in.Status == models.InstallmentPaid {
			return statef(ErrInstallmentAlreadyPaid, "installment %s", in.ID)
		}

		wasOverdue = in.Status == models.InstallmentOverdue
		in.Status = models.InstallmentPaid
		in.PaidAt = &now
		in.PaymentMethod = method
		in.PaymentReference = reference
		amount := in.Amount

		offer.UpdatedAt = now
		if err := tx.UpdateOffer(ctx, offer); err != nil {
			return err
		}

		profile, err := tx.GetCreditProfileForUpdate(ctx, req.BuyerID)
		if err != nil {
			return err
		}
		credit.ApplyPayment(profile, amount, now)

		out.add(models.EventInstallmentPaid, installmentID, req.ID, string(models.InstallmentPaid), map[string]string{
			"offerId":    offer.ID,
			"amount":     amount.String(),
			"wasOverdue": strconv.FormatBool(wasOverdue),
		})

		if offer.Schedule.Outstanding().IsZero() {
			completed = true
			credit.ApplyCompletion(profile, now)
			out.add(models.EventContractCompleted, offer.ID, req.ID, string(req.Status), map[string]string{
				"buyerId": req.BuyerID,
				"total":   offer.TotalApprovedValue.String(),
			})
		}
		return tx.SaveCreditProfile(ctx, profile)
	})
	if err != nil {
		return nil, err
	}

	e.metrics.InstallmentPaid(ctx, wasOverdue)
	logger.Info(ctx, "installment marked paid",
		"offer_id", offerID,
		"installment_id", installmentID,
		"was_overdue", wasOverdue,
		"contract_completed", completed,
	)
	return offer, nil
}
