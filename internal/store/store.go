// Package store persists requests, offers, credit profiles and the event
// outbox. Every command runs inside RunInTx and either commits as a whole or
// leaves no trace.
package store

import (
	"context"
	"errors"

	"github.com/01moynul/taptosell-installments/internal/models"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

// RequestFilter narrows ListRequests. Zero fields match everything.
type RequestFilter struct {
	BuyerID  string
	Statuses []models.RequestStatus
}

// ActiveContract identifies an accepted offer whose request is ACTIVE_CONTRACT.
type ActiveContract struct {
	RequestID string
	OfferID   string
	BuyerID   string
}

// Store is the read side plus the transaction entry point.
type Store interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	GetRequest(ctx context.Context, id string) (*models.InstallmentRequest, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]*models.InstallmentRequest, error)
	GetOffer(ctx context.Context, id string) (*models.InstallmentOffer, error)
	ListOffersByRequest(ctx context.Context, requestID string) ([]*models.InstallmentOffer, error)
	ListActiveContracts(ctx context.Context) ([]ActiveContract, error)
	GetCreditProfile(ctx context.Context, buyerID string) (*models.CustomerCreditProfile, error)
	ListEvents(ctx context.Context, requestID string) ([]models.Event, error)
	Stats(ctx context.Context) (models.InstallmentStats, error)
}

// Tx is the write side. Reads through a Tx lock the rows they return until
// the transaction ends.
type Tx interface {
	GetRequestForUpdate(ctx context.Context, id string) (*models.InstallmentRequest, error)
	InsertRequest(ctx context.Context, r *models.InstallmentRequest) error
	UpdateRequest(ctx context.Context, r *models.InstallmentRequest) error

	GetOfferForUpdate(ctx context.Context, id string) (*models.InstallmentOffer, error)
	ListOffersByRequestForUpdate(ctx context.Context, requestID string) ([]*models.InstallmentOffer, error)
	InsertOffer(ctx context.Context, o *models.InstallmentOffer) error
	UpdateOffer(ctx context.Context, o *models.InstallmentOffer) error

	// GetCreditProfileForUpdate returns a fresh profile when the buyer has none yet.
	GetCreditProfileForUpdate(ctx context.Context, buyerID string) (*models.CustomerCreditProfile, error)
	SaveCreditProfile(ctx context.Context, p *models.CustomerCreditProfile) error

	AppendEvent(ctx context.Context, e models.Event) error
}
