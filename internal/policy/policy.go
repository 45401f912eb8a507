// Package policy holds the negotiation policy and the derived queries the
// engine consults. Policy is read-only here; administration happens out of band.
package policy

import (
	"fmt"
	"os"

	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// CascadeOutcome is what happens to a request after the buyer rejects an offer.
type CascadeOutcome int

const (
	ForwardToSuppliers CascadeOutcome = iota + 1
	Close
	KeepWaiting
)

func (c CascadeOutcome) String() string {
	switch c {
	case ForwardToSuppliers:
		return "forward_to_suppliers"
	case Close:
		return "close"
	case KeepWaiting:
		return "keep_waiting"
	default:
		return fmt.Sprintf("CascadeOutcome(%d)", int(c))
	}
}

// Actor is a party that can make offers.
type Actor string

const (
	ActorPrimarySeller Actor = "primary_seller"
	ActorSupplier      Actor = "supplier"
)

// Notifications toggles outbound notification events by type.
type Notifications struct {
	RequestCreated     bool `yaml:"request_created"`
	DecisionRecorded   bool `yaml:"decision_recorded"`
	RequestForwarded   bool `yaml:"request_forwarded"`
	RequestClosed      bool `yaml:"request_closed"`
	OfferSubmitted     bool `yaml:"offer_submitted"`
	OfferResolved      bool `yaml:"offer_resolved"`
	InstallmentOverdue bool `yaml:"installment_overdue"`
	InstallmentPaid    bool `yaml:"installment_paid"`
}

// NegotiationPolicy is the administrator-managed configuration.
type NegotiationPolicy struct {
	Enabled                      bool             `yaml:"enabled"`
	MinDurationMonths            int              `yaml:"min_duration_months"`
	MaxDurationMonths            int              `yaml:"max_duration_months"`
	MinAmount                    decimal.Decimal  `yaml:"min_amount"`
	MaxAmount                    decimal.Decimal  `yaml:"max_amount"`
	AllowPartialPrimarySeller    bool             `yaml:"allow_partial_primary_seller"`
	AllowPartialSupplier         bool             `yaml:"allow_partial_supplier"`
	AutoForwardOnPrimaryReject   bool             `yaml:"auto_forward_on_primary_reject"`
	CascadeOnPrimaryOfferReject  string           `yaml:"cascade_on_primary_offer_reject"`
	CascadeOnSupplierOfferReject string           `yaml:"cascade_on_supplier_offer_reject"`
	DefaultFrequency             models.Frequency `yaml:"default_frequency"`
	GracePeriodDays              int              `yaml:"grace_period_days"`
	MaxSuppliersPerRequest       int              `yaml:"max_suppliers_per_request"`
	Notifications                Notifications    `yaml:"notifications"`
}

// Default returns the policy used when no file is configured.
func Default() NegotiationPolicy {
	return NegotiationPolicy{
		Enabled:                      true,
		MinDurationMonths:            1,
		MaxDurationMonths:            12,
		MinAmount:                    decimal.NewFromInt(100),
		MaxAmount:                    decimal.NewFromInt(100000),
		AllowPartialPrimarySeller:    true,
		AllowPartialSupplier:         true,
		AutoForwardOnPrimaryReject:   false,
		CascadeOnPrimaryOfferReject:  "forward_to_suppliers",
		CascadeOnSupplierOfferReject: "keep_waiting",
		DefaultFrequency:             models.FrequencyMonthly,
		GracePeriodDays:              3,
		MaxSuppliersPerRequest:       10,
		Notifications: Notifications{
			RequestCreated:     true,
			DecisionRecorded:   true,
			RequestForwarded:   true,
			RequestClosed:      true,
			OfferSubmitted:     true,
			OfferResolved:      true,
			InstallmentOverdue: true,
			InstallmentPaid:    true,
		},
	}
}

// Load reads a YAML policy file. Missing keys keep their Default() values.
func Load(path string) (NegotiationPolicy, error) {
	p := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return NegotiationPolicy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return NegotiationPolicy{}, fmt.Errorf("failed to parse policy file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return NegotiationPolicy{}, err
	}
	return p, nil
}

// Validate checks the policy for contradictions.
func (p NegotiationPolicy) Validate() error {
	if p.MinDurationMonths < 1 {
		return fmt.Errorf("policy: min_duration_months must be at least 1")
	}
	if p.MaxDurationMonths < p.MinDurationMonths {
		return fmt.Errorf("policy: max_duration_months (%d) is below min_duration_months (%d)", p.MaxDurationMonths, p.MinDurationMonths)
	}
	if p.MaxAmount.LessThan(p.MinAmount) {
		return fmt.Errorf("policy: max_amount (%s) is below min_amount (%s)", p.MaxAmount, p.MinAmount)
	}
	if !p.DefaultFrequency.Valid() {
		return fmt.Errorf("policy: unknown default_frequency %q", p.DefaultFrequency)
	}
	switch p.CascadeOnPrimaryOfferReject {
	case "forward_to_suppliers", "close":
	default:
		return fmt.Errorf("policy: cascade_on_primary_offer_reject must be forward_to_suppliers or close, got %q", p.CascadeOnPrimaryOfferReject)
	}
	switch p.CascadeOnSupplierOfferReject {
	case "keep_waiting", "keep_waiting_for_other_suppliers", "close":
	default:
		return fmt.Errorf("policy: cascade_on_supplier_offer_reject must be keep_waiting or close, got %q", p.CascadeOnSupplierOfferReject)
	}
	if p.GracePeriodDays < 0 {
		return fmt.Errorf("policy: grace_period_days cannot be negative")
	}
	return nil
}
