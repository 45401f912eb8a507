package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requestCols = []string{
	"id", "buyer_id", "line_items", "total_requested_value", "requested_duration_months",
	"payment_frequency", "status", "primary_seller_decision", "allowed_for_suppliers", "forwarded_supplier_ids",
	"accepted_offer_id", "admin_notes", "closed_reason", "created_at", "updated_at", "reviewed_at", "closed_at",
}

func newMock(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLStore(db), mock
}

func TestMySQLStore_GetRequest(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(requestCols).AddRow(
		"r1", "b1", []byte(`[{"id":"li1","productId":"p1","quantityRequested":2,"unitPriceRequested":"500"}]`), "1000.00", int64(3),
		"monthly", "FORWARDED_TO_SUPPLIERS", "rejected", true, []byte(`["s1","s2"]`),
		nil, "", nil, created, created, created, nil,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM installment_requests WHERE id = ?")).
		WithArgs("r1").
		WillReturnRows(rows)

	r, err := s.GetRequest(context.Background(), "r1")
	require.NoError(t, err)

	assert.Equal(t, "b1", r.BuyerID)
	assert.True(t, r.TotalRequestedValue.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, models.StatusForwardedToSuppliers, r.Status)
	assert.Equal(t, []string{"s1", "s2"}, r.ForwardedSupplierIDs)
	require.Len(t, r.LineItems, 1)
	assert.Equal(t, 2, r.LineItems[0].QuantityRequested)
	assert.Nil(t, r.AcceptedOfferID)
	require.NotNil(t, r.ReviewedAt)
	assert.Nil(t, r.ClosedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_GetRequestNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM installment_requests WHERE id = ?")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(requestCols))

	_, err := s.GetRequest(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_RunInTxCommits(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO installment_events")).
		WithArgs("e1", "request.created", "r1", "r1", "PENDING_SINICAR_REVIEW", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.RunInTx(ctx, func(tx Tx) error {
		return tx.AppendEvent(ctx, models.Event{
			ID: "e1", Type: models.EventRequestCreated, EntityID: "r1", RequestID: "r1",
			Status: string(models.StatusPendingPrimaryReview), OccurredAt: time.Now(),
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_RunInTxRollsBack(t *testing.T) {
	s, mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.RunInTx(context.Background(), func(tx Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_GetRequestForUpdateLocksRow(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM installment_requests WHERE id = ? FOR UPDATE")).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(requestCols))
	mock.ExpectRollback()

	err := s.RunInTx(ctx, func(tx Tx) error {
		_, err := tx.GetRequestForUpdate(ctx, "r1")
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_CreditProfileForUpdateDefaults(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO credit_profiles (buyer_id, score_level, last_updated)")).
		WithArgs("b9", "medium", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM credit_profiles WHERE buyer_id = ? FOR UPDATE")).
		WithArgs("b9").
		WillReturnRows(sqlmock.NewRows([]string{"buyer_id"}))
	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.RunInTx(ctx, func(tx Tx) error {
		p, err := tx.GetCreditProfileForUpdate(ctx, "b9")
		if err != nil {
			return err
		}
		assert.Equal(t, "b9", p.BuyerID)
		assert.Equal(t, models.ScoreMedium, p.ScoreLevel)
		return tx.SaveCreditProfile(ctx, p)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_CreditProfileForUpdateLocksSeededRow(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	updated := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO credit_profiles")).
		WithArgs("b1", "medium", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM credit_profiles WHERE buyer_id = ? FOR UPDATE")).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{
			"buyer_id", "score_level", "total_requests", "total_active_contracts", "total_overdue_installments",
			"total_paid_amount", "total_remaining_amount", "last_updated",
		}).AddRow("b1", "high", int64(2), int64(1), int64(0), "500.00", "1500.00", updated))
	mock.ExpectCommit()

	err := s.RunInTx(ctx, func(tx Tx) error {
		p, err := tx.GetCreditProfileForUpdate(ctx, "b1")
		if err != nil {
			return err
		}
		assert.Equal(t, models.ScoreHigh, p.ScoreLevel)
		assert.Equal(t, 1, p.TotalActiveContracts)
		assert.True(t, p.TotalRemainingAmount.Equal(decimal.NewFromInt(1500)))
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_CreditProfileSeedFailureAborts(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO credit_profiles")).
		WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	err := s.RunInTx(ctx, func(tx Tx) error {
		_, err := tx.GetCreditProfileForUpdate(ctx, "b1")
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to seed credit profile")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_ListActiveContracts(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN installment_requests r ON r.id = o.request_id")).
		WithArgs("accepted", "ACTIVE_CONTRACT").
		WillReturnRows(sqlmock.NewRows([]string{"request_id", "id", "buyer_id"}).
			AddRow("r1", "o1", "b1").
			AddRow("r2", "o2", "b2"))

	contracts, err := s.ListActiveContracts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ActiveContract{
		{RequestID: "r1", OfferID: "o1", BuyerID: "b1"},
		{RequestID: "r2", OfferID: "o2", BuyerID: "b2"},
	}, contracts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_ListRequestsBuildsFilter(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE buyer_id = ? AND status IN (?, ?) ORDER BY created_at DESC")).
		WithArgs("b1", "CLOSED", "CANCELLED").
		WillReturnRows(sqlmock.NewRows(requestCols))

	out, err := s.ListRequests(context.Background(), RequestFilter{
		BuyerID:  "b1",
		Statuses: []models.RequestStatus{models.StatusClosed, models.StatusCancelled},
	})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_Stats(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "sum"}).
			AddRow("ACTIVE_CONTRACT", int64(2), "3000.00").
			AddRow("CLOSED", int64(1), "500.00"))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY month")).
		WillReturnRows(sqlmock.NewRows([]string{"month", "count", "sum"}).
			AddRow("2026-01", int64(3), "3500.00"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM installment_offers WHERE status = ?")).
		WithArgs("accepted").
		WillReturnRows(sqlmock.NewRows([]string{"total_approved_value", "schedule"}).
			AddRow("2000.00", []byte(`{"installments":[{"id":"i1","amount":"1000","status":"overdue"},{"id":"i2","amount":"1000","status":"pending"}]}`)))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, 2, stats.ByStatus[models.StatusActiveContract].Count)
	assert.Equal(t, 1, stats.AcceptedOffers)
	assert.True(t, stats.AcceptedValue.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, 1, stats.OverdueInstallments)
	require.Len(t, stats.ByMonth, 1)
	assert.Equal(t, "2026-01", stats.ByMonth[0].Month)
	assert.NoError(t, mock.ExpectationsWereMet())
}
