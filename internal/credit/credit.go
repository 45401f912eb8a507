// Package credit keeps a buyer's running credit profile in step with
// contract acceptance, payments and delinquency.
package credit

import (
	"time"

	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/shopspring/decimal"
)

// LowScoreOverdueThreshold is the cumulative overdue count that drops a buyer to low.
const LowScoreOverdueThreshold = 3

// ApplyAcceptance records a newly active contract worth total.
// totalRequests counts requests that reached a contract.
func ApplyAcceptance(p *models.CustomerCreditProfile, total decimal.Decimal, now time.Time) {
	p.TotalRequests++
	p.TotalActiveContracts++
	p.TotalRemainingAmount = p.TotalRemainingAmount.Add(total)
	touch(p, now)
}

// ApplyPayment moves amount from remaining to paid.
func ApplyPayment(p *models.CustomerCreditProfile, amount decimal.Decimal, now time.Time) {
	p.TotalPaidAmount = p.TotalPaidAmount.Add(amount)
	p.TotalRemainingAmount = p.TotalRemainingAmount.Sub(amount)
	if p.TotalRemainingAmount.IsNegative() {
		p.TotalRemainingAmount = decimal.Zero
	}
	touch(p, now)
}

// ApplyOverdue adds n newly overdue installments. The count is cumulative
// and is not reduced when an overdue installment is later paid.
func ApplyOverdue(p *models.CustomerCreditProfile, n int, now time.Time) {
	if n <= 0 {
		return
	}
	p.TotalOverdueInstallments += n
	touch(p, now)
}

// ApplyCompletion closes out a fully paid contract.
func ApplyCompletion(p *models.CustomerCreditProfile, now time.Time) {
	if p.TotalActiveContracts > 0 {
		p.TotalActiveContracts--
	}
	touch(p, now)
}

// Score derives the advisory level from the counters.
func Score(p *models.CustomerCreditProfile) models.ScoreLevel {
	switch {
	case p.TotalOverdueInstallments >= LowScoreOverdueThreshold:
		return models.ScoreLow
	case p.TotalOverdueInstallments == 0 && p.TotalPaidAmount.IsPositive():
		return models.ScoreHigh
	default:
		return models.ScoreMedium
	}
}

func touch(p *models.CustomerCreditProfile, now time.Time) {
	p.ScoreLevel = Score(p)
	p.LastUpdated = now
}
