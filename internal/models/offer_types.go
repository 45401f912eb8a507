package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OfferSource says who made an offer.
type OfferSource string

const (
	SourcePrimarySeller OfferSource = "primary_seller"
	SourceSupplier      OfferSource = "supplier"
)

// OfferType is full or partial fulfilment.
type OfferType string

const (
	OfferFull    OfferType = "full"
	OfferPartial OfferType = "partial"
)

// Valid reports whether t is a known offer type.
func (t OfferType) Valid() bool {
	return t == OfferFull || t == OfferPartial
}

// OfferStatus is the sub-state of an InstallmentOffer.
type OfferStatus string

const (
	OfferWaitingForBuyer OfferStatus = "waiting_for_buyer"
	OfferAccepted        OfferStatus = "accepted"
	OfferRejected        OfferStatus = "rejected"
	// OfferSuperseded is terminal: a sibling was accepted or the request closed.
	OfferSuperseded OfferStatus = "superseded"
)

// ApprovedItem is one line of an offer.
type ApprovedItem struct {
	RequestItemID     string          `json:"requestItemId" validate:"required"`
	QuantityApproved  int             `json:"quantityApproved" validate:"gte=1"`
	UnitPriceApproved decimal.Decimal `json:"unitPriceApproved"`
}

// Total is quantity × unit price.
func (ai ApprovedItem) Total() decimal.Decimal {
	return ai.UnitPriceApproved.Mul(decimal.NewFromInt(int64(ai.QuantityApproved)))
}

// SumApproved totals a list of approved items.
func SumApproved(items []ApprovedItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Total())
	}
	return total
}

// InstallmentOffer is the model for the 'installment_offers' table.
type InstallmentOffer struct {
	ID                 string          `json:"id" db:"id"`
	RequestID          string          `json:"requestId" db:"request_id"`
	SourceType         OfferSource     `json:"sourceType" db:"source_type"`
	SupplierID         *string         `json:"supplierId,omitempty" db:"supplier_id"`
	Type               OfferType       `json:"type" db:"type"`
	ItemsApproved      []ApprovedItem  `json:"itemsApproved" db:"items_approved"`
	TotalApprovedValue decimal.Decimal `json:"totalApprovedValue" db:"total_approved_value"`
	Schedule           PaymentSchedule `json:"schedule" db:"schedule"`
	Status             OfferStatus     `json:"status" db:"status"`
	Notes              string          `json:"notes,omitempty" db:"notes"`
	CreatedAt          time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time       `json:"updatedAt" db:"updated_at"`
	ResolvedAt         *time.Time      `json:"resolvedAt,omitempty" db:"resolved_at"`
}

// Clone returns a deep copy.
func (o *InstallmentOffer) Clone() *InstallmentOffer {
	if o == nil {
		return nil
	}
	c := *o
	c.SupplierID = cloneString(o.SupplierID)
	c.ItemsApproved = append([]ApprovedItem(nil), o.ItemsApproved...)
	c.Schedule = o.Schedule.Clone()
	c.ResolvedAt = cloneTime(o.ResolvedAt)
	return &c
}
