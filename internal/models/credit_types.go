package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScoreLevel is an advisory rating; it never gates an operation.
type ScoreLevel string

const (
	ScoreLow    ScoreLevel = "low"
	ScoreMedium ScoreLevel = "medium"
	ScoreHigh   ScoreLevel = "high"
)

// CustomerCreditProfile is the model for the 'credit_profiles' table.
// Rows are only ever upserted by the engine.
type CustomerCreditProfile struct {
	BuyerID                  string          `json:"buyerId" db:"buyer_id"`
	ScoreLevel               ScoreLevel      `json:"scoreLevel" db:"score_level"`
	TotalRequests            int             `json:"totalRequests" db:"total_requests"`
	TotalActiveContracts     int             `json:"totalActiveContracts" db:"total_active_contracts"`
	TotalOverdueInstallments int             `json:"totalOverdueInstallments" db:"total_overdue_installments"`
	TotalPaidAmount          decimal.Decimal `json:"totalPaidAmount" db:"total_paid_amount"`
	TotalRemainingAmount     decimal.Decimal `json:"totalRemainingAmount" db:"total_remaining_amount"`
	LastUpdated              time.Time       `json:"lastUpdated" db:"last_updated"`
}

// NewCreditProfile returns the empty profile for a buyer with no history.
func NewCreditProfile(buyerID string) *CustomerCreditProfile {
	return &CustomerCreditProfile{
		BuyerID:              buyerID,
		ScoreLevel:           ScoreMedium,
		TotalPaidAmount:      decimal.Zero,
		TotalRemainingAmount: decimal.Zero,
	}
}

// Clone returns a copy.
func (p *CustomerCreditProfile) Clone() *CustomerCreditProfile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
