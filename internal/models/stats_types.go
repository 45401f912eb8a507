package models

import "github.com/shopspring/decimal"

// StatusStats aggregates requests in one status.
type StatusStats struct {
	Count          int             `json:"count"`
	RequestedValue decimal.Decimal `json:"requestedValue"`
}

// MonthStats aggregates requests created in one calendar month (YYYY-MM).
type MonthStats struct {
	Month          string          `json:"month"`
	Count          int             `json:"count"`
	RequestedValue decimal.Decimal `json:"requestedValue"`
}

// InstallmentStats is the manager dashboard payload.
type InstallmentStats struct {
	TotalRequests       int                           `json:"totalRequests"`
	ByStatus            map[RequestStatus]StatusStats `json:"byStatus"`
	ByMonth             []MonthStats                  `json:"byMonth"`
	AcceptedOffers      int                           `json:"acceptedOffers"`
	AcceptedValue       decimal.Decimal               `json:"acceptedValue"`
	OverdueInstallments int                           `json:"overdueInstallments"`
}
