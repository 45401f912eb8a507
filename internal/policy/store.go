package policy

import (
	"sync/atomic"

	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/01moynul/taptosell-installments/internal/schedule"
)

// Store is the read-only accessor over one policy snapshot.
type Store struct {
	p NegotiationPolicy
}

// NewStore wraps a policy.
func NewStore(p NegotiationPolicy) *Store {
	return &Store{p: p}
}

// Policy returns a copy of the underlying policy.
func (s *Store) Policy() NegotiationPolicy {
	return s.p
}

// Enabled reports whether new installment requests are accepted.
func (s *Store) Enabled() bool {
	return s.p.Enabled
}

// IsPartialApprovalAllowed reports whether actor may make a partial offer.
func (s *Store) IsPartialApprovalAllowed(actor Actor) bool {
	switch actor {
	case ActorPrimarySeller:
		return s.p.AllowPartialPrimarySeller
	case ActorSupplier:
		return s.p.AllowPartialSupplier
	}
	return false
}

// DurationInBounds reports whether months is within the policy bounds.
func (s *Store) DurationInBounds(months int) bool {
	return months >= s.p.MinDurationMonths && months <= s.p.MaxDurationMonths
}

// ClampDuration forces months into [min, max].
func (s *Store) ClampDuration(months int) int {
	if months < s.p.MinDurationMonths {
		return s.p.MinDurationMonths
	}
	if months > s.p.MaxDurationMonths {
		return s.p.MaxDurationMonths
	}
	return months
}

// ClampInstallmentCount clamps an installment count to the duration bounds
// expressed in the given frequency.
func (s *Store) ClampInstallmentCount(freq models.Frequency, count int) int {
	lo := schedule.InstallmentCount(s.p.MinDurationMonths, freq)
	hi := schedule.InstallmentCount(s.p.MaxDurationMonths, freq)
	if count < lo {
		return lo
	}
	if count > hi {
		return hi
	}
	return count
}

// AutoForwardOnPrimaryReject reports whether a primary rejection forwards straight away.
func (s *Store) AutoForwardOnPrimaryReject() bool {
	return s.p.AutoForwardOnPrimaryReject
}

// CascadeOnPrimaryOfferReject is the outcome when the buyer rejects the
// primary seller's offer: ForwardToSuppliers or Close.
func (s *Store) CascadeOnPrimaryOfferReject() CascadeOutcome {
	if s.p.CascadeOnPrimaryOfferReject == "close" {
		return Close
	}
	return ForwardToSuppliers
}

// CascadeOnSupplierOfferReject is the outcome when the buyer rejects a
// supplier offer: KeepWaiting or Close.
func (s *Store) CascadeOnSupplierOfferReject() CascadeOutcome {
	if s.p.CascadeOnSupplierOfferReject == "close" {
		return Close
	}
	return KeepWaiting
}

// DefaultFrequency is used when a caller leaves the frequency blank.
func (s *Store) DefaultFrequency() models.Frequency {
	return s.p.DefaultFrequency
}

// GracePeriodDays is how long after a due date an installment becomes overdue.
func (s *Store) GracePeriodDays() int {
	return s.p.GracePeriodDays
}

// MaxSuppliersPerRequest caps the explicit forward list. Zero means no cap.
func (s *Store) MaxSuppliersPerRequest() int {
	return s.p.MaxSuppliersPerRequest
}

// NotificationEnabled reports whether events of type t should be dispatched.
func (s *Store) NotificationEnabled(t models.EventType) bool {
	n := s.p.Notifications
	switch t {
	case models.EventRequestCreated:
		return n.RequestCreated
	case models.EventDecisionRecorded:
		return n.DecisionRecorded
	case models.EventRequestForwarded:
		return n.RequestForwarded
	case models.EventRequestClosed, models.EventRequestCancelled:
		return n.RequestClosed
	case models.EventOfferSubmitted:
		return n.OfferSubmitted
	case models.EventOfferResolved:
		return n.OfferResolved
	case models.EventInstallmentOverdue:
		return n.InstallmentOverdue
	case models.EventInstallmentPaid, models.EventContractCompleted:
		return n.InstallmentPaid
	}
	return true
}

// Provider hands out the current policy snapshot.
type Provider interface {
	Current() *Store
}

// Static is a Provider with a policy that can be swapped atomically
// by the administration side.
type Static struct {
	v atomic.Pointer[Store]
}

// NewStatic returns a provider serving p.
func NewStatic(p NegotiationPolicy) *Static {
	s := &Static{}
	s.v.Store(NewStore(p))
	return s
}

// Current returns the active snapshot.
func (s *Static) Current() *Store {
	return s.v.Load()
}

// Replace swaps in a new policy for subsequent operations.
func (s *Static) Replace(p NegotiationPolicy) {
	s.v.Store(NewStore(p))
}
