package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/shopspring/decimal"
)

// queryer is the part of *sql.DB and *sql.Tx the row helpers need.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const requestColumns = `id, buyer_id, line_items, total_requested_value, requested_duration_months,
	payment_frequency, status, primary_seller_decision, allowed_for_suppliers, forwarded_supplier_ids,
	accepted_offer_id, admin_notes, closed_reason, created_at, updated_at, reviewed_at, closed_at`

const offerColumns = `id, request_id, source_type, supplier_id, type, items_approved, total_approved_value,
	schedule, status, notes, created_at, updated_at, resolved_at`

const profileColumns = `buyer_id, score_level, total_requests, total_active_contracts, total_overdue_installments,
	total_paid_amount, total_remaining_amount, last_updated`

// MySQLStore persists to MySQL. Row locks come from SELECT ... FOR UPDATE.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore wraps an open connection pool.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// RunInTx begins a transaction, runs fn and commits. Any error rolls back.
func (s *MySQLStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback() // Safety net

	if err := fn(&mysqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *MySQLStore) GetRequest(ctx context.Context, id string) (*models.InstallmentRequest, error) {
	return getRequest(ctx, s.db, id, false)
}

func (s *MySQLStore) ListRequests(ctx context.Context, f RequestFilter) ([]*models.InstallmentRequest, error) {
	var (
		where []string
		args  []any
	)
	if f.BuyerID != "" {
		where = append(where, "buyer_id = ?")
		args = append(args, f.BuyerID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}

	query := "SELECT " + requestColumns + " FROM installment_requests"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	out := make([]*models.InstallmentRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *MySQLStore) GetOffer(ctx context.Context, id string) (*models.InstallmentOffer, error) {
	return getOffer(ctx, s.db, id, false)
}

func (s *MySQLStore) ListOffersByRequest(ctx context.Context, requestID string) ([]*models.InstallmentOffer, error) {
	return listOffers(ctx, s.db, requestID, false)
}

func (s *MySQLStore) ListActiveContracts(ctx context.Context) ([]ActiveContract, error) {
	query := `
		SELECT o.request_id, o.id, r.buyer_id
		FROM installment_offers o
		JOIN installment_requests r ON r.id = o.request_id
		WHERE o.status = ? AND r.status = ?
		ORDER BY o.id`

	rows, err := s.db.QueryContext(ctx, query, string(models.OfferAccepted), string(models.StatusActiveContract))
	if err != nil {
		return nil, fmt.Errorf("failed to query active contracts: %w", err)
	}
	defer rows.Close()

	var out []ActiveContract
	for rows.Next() {
		var c ActiveContract
		if err := rows.Scan(&c.RequestID, &c.OfferID, &c.BuyerID); err != nil {
			return nil, fmt.Errorf("failed to scan active contract: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *MySQLStore) GetCreditProfile(ctx context.Context, buyerID string) (*models.CustomerCreditProfile, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM credit_profiles WHERE buyer_id = ?", buyerID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credit profile %s: %w", buyerID, ErrNotFound)
	}
	return p, err
}

func (s *MySQLStore) ListEvents(ctx context.Context, requestID string) ([]models.Event, error) {
	query := "SELECT id, type, entity_id, request_id, status, payload, occurred_at FROM installment_events"
	var args []any
	if requestID != "" {
		query += " WHERE request_id = ?"
		args = append(args, requestID)
	}
	query += " ORDER BY occurred_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	out := make([]models.Event, 0)
	for rows.Next() {
		var (
			e       models.Event
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.EntityID, &e.RequestID, &e.Status, &payload, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := unmarshalJSON(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode event payload: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *MySQLStore) Stats(ctx context.Context) (models.InstallmentStats, error) {
	stats := models.InstallmentStats{
		ByStatus:      make(map[models.RequestStatus]models.StatusStats),
		ByMonth:       make([]models.MonthStats, 0),
		AcceptedValue: decimal.Zero,
	}

	// 1. --- Requests by status ---
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_requested_value), 0)
		FROM installment_requests
		GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("failed to query status stats: %w", err)
	}
	for rows.Next() {
		var (
			status models.RequestStatus
			st     models.StatusStats
		)
		if err := rows.Scan(&status, &st.Count, &st.RequestedValue); err != nil {
			rows.Close()
			return stats, fmt.Errorf("failed to scan status stats: %w", err)
		}
		stats.ByStatus[status] = st
		stats.TotalRequests += st.Count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	// 2. --- Requests by month ---
	rows, err = s.db.QueryContext(ctx, `
		SELECT DATE_FORMAT(created_at, '%Y-%m') AS month, COUNT(*), COALESCE(SUM(total_requested_value), 0)
		FROM installment_requests
		GROUP BY month
		ORDER BY month`)
	if err != nil {
		return stats, fmt.Errorf("failed to query monthly stats: %w", err)
	}
	for rows.Next() {
		var m models.MonthStats
		if err := rows.Scan(&m.Month, &m.Count, &m.RequestedValue); err != nil {
			rows.Close()
			return stats, fmt.Errorf("failed to scan monthly stats: %w", err)
		}
		stats.ByMonth = append(stats.ByMonth, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	// 3. --- Accepted offers and their overdue installments ---
	rows, err = s.db.QueryContext(ctx, "SELECT total_approved_value, schedule FROM installment_offers WHERE status = ?", string(models.OfferAccepted))
	if err != nil {
		return stats, fmt.Errorf("failed to query accepted offers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			value decimal.Decimal
			raw   []byte
			sched models.PaymentSchedule
		)
		if err := rows.Scan(&value, &raw); err != nil {
			return stats, fmt.Errorf("failed to scan accepted offer: %w", err)
		}
		if err := unmarshalJSON(raw, &sched); err != nil {
			return stats, fmt.Errorf("failed to decode schedule: %w", err)
		}
		stats.AcceptedOffers++
		stats.AcceptedValue = stats.AcceptedValue.Add(value)
		for _, in := range sched.Installments {
			if in.Status == models.InstallmentOverdue {
				stats.OverdueInstallments++
			}
		}
	}
	return stats, rows.Err()
}

// mysqlTx implements Tx over a *sql.Tx.
type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) GetRequestForUpdate(ctx context.Context, id string) (*models.InstallmentRequest, error) {
	return getRequest(ctx, t.tx, id, true)
}

func (t *mysqlTx) InsertRequest(ctx context.Context, r *models.InstallmentRequest) error {
	lineItems, forwarded, err := requestJSON(r)
	if err != nil {
		return err
	}
	query := "INSERT INTO installment_requests (" + requestColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err = t.tx.ExecContext(ctx, query,
		r.ID, r.BuyerID, lineItems, r.TotalRequestedValue, r.RequestedDurationMonths,
		string(r.PaymentFrequency), string(r.Status), string(r.PrimarySellerDecision), r.AllowedForSuppliers, forwarded,
		r.AcceptedOfferID, r.AdminNotes, r.ClosedReason, r.CreatedAt, r.UpdatedAt, r.ReviewedAt, r.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

func (t *mysqlTx) UpdateRequest(ctx context.Context, r *models.InstallmentRequest) error {
	_, forwarded, err := requestJSON(r)
	if err != nil {
		return err
	}
	query := `
		UPDATE installment_requests
		SET status = ?, primary_seller_decision = ?, allowed_for_suppliers = ?, forwarded_supplier_ids = ?,
			accepted_offer_id = ?, admin_notes = ?, closed_reason = ?, updated_at = ?, reviewed_at = ?, closed_at = ?
		WHERE id = ?`
	_, err = t.tx.ExecContext(ctx, query,
		string(r.Status), string(r.PrimarySellerDecision), r.AllowedForSuppliers, forwarded,
		r.AcceptedOfferID, r.AdminNotes, r.ClosedReason, r.UpdatedAt, r.ReviewedAt, r.ClosedAt,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	return nil
}

func (t *mysqlTx) GetOfferForUpdate(ctx context.Context, id string) (*models.InstallmentOffer, error) {
	return getOffer(ctx, t.tx, id, true)
}

func (t *mysqlTx) ListOffersByRequestForUpdate(ctx context.Context, requestID string) ([]*models.InstallmentOffer, error) {
	return listOffers(ctx, t.tx, requestID, true)
}

func (t *mysqlTx) InsertOffer(ctx context.Context, o *models.InstallmentOffer) error {
	items, sched, err := offerJSON(o)
	if err != nil {
		return err
	}
	query := "INSERT INTO installment_offers (" + offerColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err = t.tx.ExecContext(ctx, query,
		o.ID, o.RequestID, string(o.SourceType), o.SupplierID, string(o.Type), items, o.TotalApprovedValue,
		sched, string(o.Status), o.Notes, o.CreatedAt, o.UpdatedAt, o.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert offer: %w", err)
	}
	return nil
}

func (t *mysqlTx) UpdateOffer(ctx context.Context, o *models.InstallmentOffer) error {
	_, sched, err := offerJSON(o)
	if err != nil {
		return err
	}
	query := `
		UPDATE installment_offers
		SET schedule = ?, status = ?, notes = ?, updated_at = ?, resolved_at = ?
		WHERE id = ?`
	_, err = t.tx.ExecContext(ctx, query, sched, string(o.Status), o.Notes, o.UpdatedAt, o.ResolvedAt, o.ID)
	if err != nil {
		return fmt.Errorf("failed to update offer: %w", err)
	}
	return nil
}

// GetCreditProfileForUpdate seeds an empty profile first so the locking read
// always holds a record lock rather than a gap lock on a missing row.
func (t *mysqlTx) GetCreditProfileForUpdate(ctx context.Context, buyerID string) (*models.CustomerCreditProfile, error) {
	seed := `
		INSERT IGNORE INTO credit_profiles (buyer_id, score_level, last_updated)
		VALUES (?, ?, ?)`
	if _, err := t.tx.ExecContext(ctx, seed, buyerID, string(models.ScoreMedium), time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to seed credit profile: %w", err)
	}

	row := t.tx.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM credit_profiles WHERE buyer_id = ? FOR UPDATE", buyerID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewCreditProfile(buyerID), nil
	}
	return p, err
}

func (t *mysqlTx) SaveCreditProfile(ctx context.Context, p *models.CustomerCreditProfile) error {
	query := `
		INSERT INTO credit_profiles (` + profileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			score_level = VALUES(score_level),
			total_requests = VALUES(total_requests),
			total_active_contracts = VALUES(total_active_contracts),
			total_overdue_installments = VALUES(total_overdue_installments),
			total_paid_amount = VALUES(total_paid_amount),
			total_remaining_amount = VALUES(total_remaining_amount),
			last_updated = VALUES(last_updated)`
	_, err := t.tx.ExecContext(ctx, query,
		p.BuyerID, string(p.ScoreLevel), p.TotalRequests, p.TotalActiveContracts, p.TotalOverdueInstallments,
		p.TotalPaidAmount, p.TotalRemainingAmount, p.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to save credit profile: %w", err)
	}
	return nil
}

func (t *mysqlTx) AppendEvent(ctx context.Context, e models.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}
	query := `
		INSERT INTO installment_events (id, type, entity_id, request_id, status, payload, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = t.tx.ExecContext(ctx, query, e.ID, string(e.Type), e.EntityID, e.RequestID, e.Status, payload, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

//
// --- Row helpers ---
//

func getRequest(ctx context.Context, q queryer, id string, forUpdate bool) (*models.InstallmentRequest, error) {
	query := "SELECT " + requestColumns + " FROM installment_requests WHERE id = ?"
	if forUpdate {
		query += " FOR UPDATE"
	}
	r, err := scanRequest(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return r, err
}

func scanRequest(row rowScanner) (*models.InstallmentRequest, error) {
	var (
		r                      models.InstallmentRequest
		lineItems, forwarded   []byte
		acceptedOfferID, notes sql.NullString
		reviewedAt, closedAt   sql.NullTime
		adminNotes             sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.BuyerID, &lineItems, &r.TotalRequestedValue, &r.RequestedDurationMonths,
		&r.PaymentFrequency, &r.Status, &r.PrimarySellerDecision, &r.AllowedForSuppliers, &forwarded,
		&acceptedOfferID, &adminNotes, &notes, &r.CreatedAt, &r.UpdatedAt, &reviewedAt, &closedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan request: %w", err)
	}
	if err := unmarshalJSON(lineItems, &r.LineItems); err != nil {
		return nil, fmt.Errorf("failed to decode line items: %w", err)
	}
	if err := unmarshalJSON(forwarded, &r.ForwardedSupplierIDs); err != nil {
		return nil, fmt.Errorf("failed to decode forwarded suppliers: %w", err)
	}
	r.AdminNotes = adminNotes.String
	r.AcceptedOfferID = nullString(acceptedOfferID)
	r.ClosedReason = nullString(notes)
	r.ReviewedAt = nullTime(reviewedAt)
	r.ClosedAt = nullTime(closedAt)
	return &r, nil
}

func getOffer(ctx context.Context, q queryer, id string, forUpdate bool) (*models.InstallmentOffer, error) {
	query := "SELECT " + offerColumns + " FROM installment_offers WHERE id = ?"
	if forUpdate {
		query += " FOR UPDATE"
	}
	o, err := scanOffer(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("offer %s: %w", id, ErrNotFound)
	}
	return o, err
}

func listOffers(ctx context.Context, q queryer, requestID string, forUpdate bool) ([]*models.InstallmentOffer, error) {
	query := "SELECT " + offerColumns + " FROM installment_offers WHERE request_id = ? ORDER BY created_at, id"
	if forUpdate {
		query += " FOR UPDATE"
	}
	rows, err := q.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query offers: %w", err)
	}
	defer rows.Close()

	out := make([]*models.InstallmentOffer, 0)
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOffer(row rowScanner) (*models.InstallmentOffer, error) {
	var (
		o                 models.InstallmentOffer
		supplierID, notes sql.NullString
		items, sched      []byte
		resolvedAt        sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.RequestID, &o.SourceType, &supplierID, &o.Type, &items, &o.TotalApprovedValue,
		&sched, &o.Status, &notes, &o.CreatedAt, &o.UpdatedAt, &resolvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan offer: %w", err)
	}
	if err := unmarshalJSON(items, &o.ItemsApproved); err != nil {
		return nil, fmt.Errorf("failed to decode approved items: %w", err)
	}
	if err := unmarshalJSON(sched, &o.Schedule); err != nil {
		return nil, fmt.Errorf("failed to decode schedule: %w", err)
	}
	o.SupplierID = nullString(supplierID)
	o.Notes = notes.String
	o.ResolvedAt = nullTime(resolvedAt)
	return &o, nil
}

func scanProfile(row rowScanner) (*models.CustomerCreditProfile, error) {
	var p models.CustomerCreditProfile
	err := row.Scan(
		&p.BuyerID, &p.ScoreLevel, &p.TotalRequests, &p.TotalActiveContracts, &p.TotalOverdueInstallments,
		&p.TotalPaidAmount, &p.TotalRemainingAmount, &p.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan credit profile: %w", err)
	}
	return &p, nil
}

func requestJSON(r *models.InstallmentRequest) (lineItems, forwarded []byte, err error) {
	if lineItems, err = json.Marshal(r.LineItems); err != nil {
		return nil, nil, fmt.Errorf("failed to encode line items: %w", err)
	}
	ids := r.ForwardedSupplierIDs
	if ids == nil {
		ids = []string{}
	}
	if forwarded, err = json.Marshal(ids); err != nil {
		return nil, nil, fmt.Errorf("failed to encode forwarded suppliers: %w", err)
	}
	return lineItems, forwarded, nil
}

func offerJSON(o *models.InstallmentOffer) (items, sched []byte, err error) {
	if items, err = json.Marshal(o.ItemsApproved); err != nil {
		return nil, nil, fmt.Errorf("failed to encode approved items: %w", err)
	}
	if sched, err = json.Marshal(o.Schedule); err != nil {
		return nil, nil, fmt.Errorf("failed to encode schedule: %w", err)
	}
	return items, sched, nil
}

func unmarshalJSON(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}
