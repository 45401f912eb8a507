package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus is the state of an InstallmentRequest.
type RequestStatus string

const (
	StatusPendingPrimaryReview         RequestStatus = "PENDING_SINICAR_REVIEW"
	StatusAwaitingBuyerOnPrimaryOffer  RequestStatus = "WAITING_FOR_CUSTOMER_DECISION_ON_PARTIAL_SINICAR"
	StatusRejectedByPrimary            RequestStatus = "REJECTED_BY_SINICAR"
	StatusForwardedToSuppliers         RequestStatus = "FORWARDED_TO_SUPPLIERS"
	StatusWaitingForSupplierOffers     RequestStatus = "WAITING_FOR_SUPPLIER_OFFERS"
	StatusAwaitingBuyerOnSupplierOffer RequestStatus = "WAITING_FOR_CUSTOMER_DECISION_ON_SUPPLIER_OFFER"
	StatusActiveContract               RequestStatus = "ACTIVE_CONTRACT"
	StatusClosed                       RequestStatus = "CLOSED"
	StatusCancelled                    RequestStatus = "CANCELLED"
)

// AllRequestStatuses lists every status in lifecycle order.
var AllRequestStatuses = []RequestStatus{
	StatusPendingPrimaryReview,
	StatusAwaitingBuyerOnPrimaryOffer,
	StatusRejectedByPrimary,
	StatusForwardedToSuppliers,
	StatusWaitingForSupplierOffers,
	StatusAwaitingBuyerOnSupplierOffer,
	StatusActiveContract,
	StatusClosed,
	StatusCancelled,
}

// IsTerminal reports whether no further negotiation can happen.
// REJECTED_BY_SINICAR is not terminal: it can still be forwarded.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusActiveContract || s == StatusClosed || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	for _, known := range AllRequestStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// PrimaryDecision is the primary seller's recorded verdict.
type PrimaryDecision string

const (
	DecisionPending         PrimaryDecision = "pending"
	DecisionApprovedFull    PrimaryDecision = "approved_full"
	DecisionApprovedPartial PrimaryDecision = "approved_partial"
	DecisionRejected        PrimaryDecision = "rejected"
)

// Frequency is the payment cadence of a schedule.
type Frequency string

const (
	FrequencyMonthly Frequency = "monthly"
	FrequencyWeekly  Frequency = "weekly"
)

// Valid reports whether f is a supported cadence.
func (f Frequency) Valid() bool {
	return f == FrequencyMonthly || f == FrequencyWeekly
}

// LineItem is one product the buyer wants to pay for over time.
type LineItem struct {
	ID                 string          `json:"id" db:"id"`
	ProductID          string          `json:"productId" db:"product_id" validate:"required"`
	QuantityRequested  int             `json:"quantityRequested" db:"quantity_requested" validate:"gte=1"`
	UnitPriceRequested decimal.Decimal `json:"unitPriceRequested" db:"unit_price_requested"`
}

// Total is quantity × unit price.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPriceRequested.Mul(decimal.NewFromInt(int64(li.QuantityRequested)))
}

// InstallmentRequest is the model for the 'installment_requests' table.
type InstallmentRequest struct {
	ID                      string          `json:"id" db:"id"`
	BuyerID                 string          `json:"buyerId" db:"buyer_id"`
	LineItems               []LineItem      `json:"lineItems" db:"line_items"`
	TotalRequestedValue     decimal.Decimal `json:"totalRequestedValue" db:"total_requested_value"`
	RequestedDurationMonths int             `json:"requestedDurationMonths" db:"requested_duration_months"`
	PaymentFrequency        Frequency       `json:"paymentFrequency" db:"payment_frequency"`
	Status                  RequestStatus   `json:"status" db:"status"`
	PrimarySellerDecision   PrimaryDecision `json:"primarySellerDecision" db:"primary_seller_decision"`
	AllowedForSuppliers     bool            `json:"allowedForSuppliers" db:"allowed_for_suppliers"`
	// Empty means open to every eligible supplier.
	ForwardedSupplierIDs []string   `json:"forwardedSupplierIds" db:"forwarded_supplier_ids"`
	AcceptedOfferID      *string    `json:"acceptedOfferId,omitempty" db:"accepted_offer_id"`
	AdminNotes           string     `json:"adminNotes,omitempty" db:"admin_notes"`
	ClosedReason         *string    `json:"closedReason,omitempty" db:"closed_reason"`
	CreatedAt            time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time  `json:"updatedAt" db:"updated_at"`
	ReviewedAt           *time.Time `json:"reviewedAt,omitempty" db:"reviewed_at"`
	ClosedAt             *time.Time `json:"closedAt,omitempty" db:"closed_at"`
}

// LineItem returns the line item with the given id.
func (r *InstallmentRequest) LineItem(id string) (LineItem, bool) {
	for _, li := range r.LineItems {
		if li.ID == id {
			return li, true
		}
	}
	return LineItem{}, false
}

// IsForwardedTo reports whether supplierID may see the request.
func (r *InstallmentRequest) IsForwardedTo(supplierID string) bool {
	if !r.AllowedForSuppliers {
		return false
	}
	if len(r.ForwardedSupplierIDs) == 0 {
		return true
	}
	for _, id := range r.ForwardedSupplierIDs {
		if id == supplierID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (r *InstallmentRequest) Clone() *InstallmentRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.LineItems = append([]LineItem(nil), r.LineItems...)
	c.ForwardedSupplierIDs = append([]string(nil), r.ForwardedSupplierIDs...)
	c.AcceptedOfferID = cloneString(r.AcceptedOfferID)
	c.ClosedReason = cloneString(r.ClosedReason)
	c.ReviewedAt = cloneTime(r.ReviewedAt)
	c.ClosedAt = cloneTime(r.ClosedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
