package handlers

import (
	"context"

	"github.com/01moynul/taptosell-installments/internal/installment"
)

// SweepTrigger runs one Delinquency Sweeper pass on demand.
type SweepTrigger interface {
	RunOnce(ctx context.Context) (installment.SweepReport, error)
}

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	Engine  *installment.Engine
	Sweeper SweepTrigger // Optional; the engine is swept directly when nil
}
