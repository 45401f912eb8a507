package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/shopspring/decimal"
)

// MemoryStore keeps everything in maps. Transactions are serialised behind a
// single writer lock and stage their changes on copies; the copies replace
// the committed rows only when the transaction function returns nil.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*models.InstallmentRequest
	offers   map[string]*models.InstallmentOffer
	profiles map[string]*models.CustomerCreditProfile
	events   []models.Event
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[string]*models.InstallmentRequest),
		offers:   make(map[string]*models.InstallmentOffer),
		profiles: make(map[string]*models.CustomerCreditProfile),
	}
}

// RunInTx runs fn with exclusive write access.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		s:        s,
		requests: make(map[string]*models.InstallmentRequest),
		offers:   make(map[string]*models.InstallmentOffer),
		profiles: make(map[string]*models.CustomerCreditProfile),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id, r := range tx.requests {
		s.requests[id] = r
	}
	for id, o := range tx.offers {
		s.offers[id] = o
	}
	for id, p := range tx.profiles {
		s.profiles[id] = p
	}
	s.events = append(s.events, tx.events...)
	return nil
}

// GetRequest returns a copy of the request.
func (s *MemoryStore) GetRequest(_ context.Context, id string) (*models.InstallmentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return r.Clone(), nil
}

// ListRequests returns matching requests, newest first.
func (s *MemoryStore) ListRequests(_ context.Context, f RequestFilter) ([]*models.InstallmentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.InstallmentRequest, 0)
	for _, r := range s.requests {
		if f.BuyerID != "" && r.BuyerID != f.BuyerID {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, r.Status) {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetOffer returns a copy of the offer.
func (s *MemoryStore) GetOffer(_ context.Context, id string) (*models.InstallmentOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.offers[id]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", id, ErrNotFound)
	}
	return o.Clone(), nil
}

// ListOffersByRequest returns the request's offers in creation order.
func (s *MemoryStore) ListOffersByRequest(_ context.Context, requestID string) ([]*models.InstallmentOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return offersFor(s.offers, nil, requestID), nil
}

// ListActiveContracts returns accepted offers on ACTIVE_CONTRACT requests.
func (s *MemoryStore) ListActiveContracts(_ context.Context) ([]ActiveContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ActiveContract
	for _, o := range s.offers {
		if o.Status != models.OfferAccepted {
			continue
		}
		r, ok := s.requests[o.RequestID]
		if !ok || r.Status != models.StatusActiveContract {
			continue
		}
		out = append(out, ActiveContract{RequestID: r.ID, OfferID: o.ID, BuyerID: r.BuyerID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OfferID < out[j].OfferID })
	return out, nil
}

// GetCreditProfile returns ErrNotFound for a buyer with no profile.
func (s *MemoryStore) GetCreditProfile(_ context.Context, buyerID string) (*models.CustomerCreditProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[buyerID]
	if !ok {
		return nil, fmt.Errorf("credit profile %s: %w", buyerID, ErrNotFound)
	}
	return p.Clone(), nil
}

// ListEvents returns the outbox for one request, or all events when requestID is empty.
func (s *MemoryStore) ListEvents(_ context.Context, requestID string) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Event, 0)
	for _, e := range s.events {
		if requestID == "" || e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Stats aggregates the dashboard figures.
func (s *MemoryStore) Stats(_ context.Context) (models.InstallmentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.InstallmentStats{
		ByStatus:      make(map[models.RequestStatus]models.StatusStats),
		AcceptedValue: decimal.Zero,
	}
	byMonth := make(map[string]*models.MonthStats)
	for _, r := range s.requests {
		stats.TotalRequests++

		st := stats.ByStatus[r.Status]
		st.Count++
		st.RequestedValue = st.RequestedValue.Add(r.TotalRequestedValue)
		stats.ByStatus[r.Status] = st

		month := r.CreatedAt.Format("2006-01")
		m, ok := byMonth[month]
		if !ok {
			m = &models.MonthStats{Month: month}
			byMonth[month] = m
		}
		m.Count++
		m.RequestedValue = m.RequestedValue.Add(r.TotalRequestedValue)
	}
	for _, o := range s.offers {
		if o.Status != models.OfferAccepted {
			continue
		}
		stats.AcceptedOffers++
		stats.AcceptedValue = stats.AcceptedValue.Add(o.TotalApprovedValue)
		for _, in := range o.Schedule.Installments {
			if in.Status == models.InstallmentOverdue {
				stats.OverdueInstallments++
			}
		}
	}

	stats.ByMonth = make([]models.MonthStats, 0, len(byMonth))
	for _, m := range byMonth {
		stats.ByMonth = append(stats.ByMonth, *m)
	}
	sort.Slice(stats.ByMonth, func(i, j int) bool { return stats.ByMonth[i].Month < stats.ByMonth[j].Month })
	return stats, nil
}

// memoryTx stages writes until RunInTx commits them.
type memoryTx struct {
	s        *MemoryStore
	requests map[string]*models.InstallmentRequest
	offers   map[string]*models.InstallmentOffer
	profiles map[string]*models.CustomerCreditProfile
	events   []models.Event
}

func (tx *memoryTx) GetRequestForUpdate(_ context.Context, id string) (*models.InstallmentRequest, error) {
	if r, ok := tx.requests[id]; ok {
		return r.Clone(), nil
	}
	r, ok := tx.s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return r.Clone(), nil
}

func (tx *memoryTx) InsertRequest(_ context.Context, r *models.InstallmentRequest) error {
	if _, ok := tx.s.requests[r.ID]; ok {
		return fmt.Errorf("request %s already exists", r.ID)
	}
	tx.requests[r.ID] = r.Clone()
	return nil
}

func (tx *memoryTx) UpdateRequest(_ context.Context, r *models.InstallmentRequest) error {
	if _, ok := tx.s.requests[r.ID]; !ok {
		if _, staged := tx.requests[r.ID]; !staged {
			return fmt.Errorf("request %s: %w", r.ID, ErrNotFound)
		}
	}
	tx.requests[r.ID] = r.Clone()
	return nil
}

func (tx *memoryTx) GetOfferForUpdate(_ context.Context, id string) (*models.InstallmentOffer, error) {
	if o, ok := tx.offers[id]; ok {
		return o.Clone(), nil
	}
	o, ok := tx.s.offers[id]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", id, ErrNotFound)
	}
	return o.Clone(), nil
}

func (tx *memoryTx) ListOffersByRequestForUpdate(_ context.Context, requestID string) ([]*models.InstallmentOffer, error) {
	return offersFor(tx.s.offers, tx.offers, requestID), nil
}

func (tx *memoryTx) InsertOffer(_ context.Context, o *models.InstallmentOffer) error {
	if _, ok := tx.s.offers[o.ID]; ok {
		return fmt.Errorf("offer %s already exists", o.ID)
	}
	tx.offers[o.ID] = o.Clone()
	return nil
}

func (tx *memoryTx) UpdateOffer(_ context.Context, o *models.InstallmentOffer) error {
	if _, ok := tx.s.offers[o.ID]; !ok {
		if _, staged := tx.offers[o.ID]; !staged {
			return fmt.Errorf("offer %s: %w", o.ID, ErrNotFound)
		}
	}
	tx.offers[o.ID] = o.Clone()
	return nil
}

func (tx *memoryTx) GetCreditProfileForUpdate(_ context.Context, buyerID string) (*models.CustomerCreditProfile, error) {
	if p, ok := tx.profiles[buyerID]; ok {
		return p.Clone(), nil
	}
	if p, ok := tx.s.profiles[buyerID]; ok {
		return p.Clone(), nil
	}
	return models.NewCreditProfile(buyerID), nil
}

func (tx *memoryTx) SaveCreditProfile(_ context.Context, p *models.CustomerCreditProfile) error {
	tx.profiles[p.BuyerID] = p.Clone()
	return nil
}

func (tx *memoryTx) AppendEvent(_ context.Context, e models.Event) error {
	tx.events = append(tx.events, e)
	return nil
}

// offersFor merges committed and staged offers of one request, oldest first.
func offersFor(committed, staged map[string]*models.InstallmentOffer, requestID string) []*models.InstallmentOffer {
	out := make([]*models.InstallmentOffer, 0)
	for id, o := range committed {
		if o.RequestID != requestID {
			continue
		}
		if s, ok := staged[id]; ok {
			o = s
		}
		out = append(out, o.Clone())
	}
	for id, o := range staged {
		if _, ok := committed[id]; ok || o.RequestID != requestID {
			continue
		}
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func hasStatus(list []models.RequestStatus, s models.RequestStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
