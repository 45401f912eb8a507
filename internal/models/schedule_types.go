package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentStatus is the payment state of one installment.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"
	InstallmentOverdue InstallmentStatus = "overdue"
)

// Installment is one dated, amount-bearing payment.
type Installment struct {
	ID               string            `json:"id"`
	DueDate          time.Time         `json:"dueDate"`
	Amount           decimal.Decimal   `json:"amount"`
	Status           InstallmentStatus `json:"status"`
	PaidAt           *time.Time        `json:"paidAt,omitempty"`
	PaymentMethod    *string           `json:"paymentMethod,omitempty"`
	PaymentReference *string           `json:"paymentReference,omitempty"`
}

// PaymentSchedule is generated once per offer; only installment status changes afterwards.
type PaymentSchedule struct {
	Frequency            Frequency       `json:"frequency"`
	InstallmentCount     int             `json:"installmentCount"`
	PerInstallmentAmount decimal.Decimal `json:"perInstallmentAmount"`
	Total                decimal.Decimal `json:"total"`
	StartDate            time.Time       `json:"startDate"`
	EndDate              time.Time       `json:"endDate"`
	Installments         []Installment   `json:"installments"`
}

// Installment returns a pointer into the schedule for in-place updates.
func (s *PaymentSchedule) Installment(id string) *Installment {
	for i := range s.Installments {
		if s.Installments[i].ID == id {
			return &s.Installments[i]
		}
	}
	return nil
}

// Outstanding sums installments that are not paid.
func (s *PaymentSchedule) Outstanding() decimal.Decimal {
	total := decimal.Zero
	for _, in := range s.Installments {
		if in.Status != InstallmentPaid {
			total = total.Add(in.Amount)
		}
	}
	return total
}

// Clone returns a deep copy.
func (s PaymentSchedule) Clone() PaymentSchedule {
	c := s
	c.Installments = make([]Installment, len(s.Installments))
	for i, in := range s.Installments {
		in.PaidAt = cloneTime(in.PaidAt)
		in.PaymentMethod = cloneString(in.PaymentMethod)
		in.PaymentReference = cloneString(in.PaymentReference)
		c.Installments[i] = in
	}
	return c
}
