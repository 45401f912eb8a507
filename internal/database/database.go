package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/01moynul/taptosell-installments/internal/logger"
	"github.com/go-sql-driver/mysql"
)

// ErrEmptyDSN is returned when no DSN is configured.
var ErrEmptyDSN = errors.New("database: DSN is empty")

// OpenDB initializes and returns the primary Read/Write connection pool.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, ErrEmptyDSN
	}

	// 1. Open a new connection pool.
	dsn, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	Configure(db)

	// 2. Ping the database to verify the connection.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info(ctx, "database connection pool established")
	return db, nil
}

// normalizeDSN forces parseTime so DATETIME columns scan into time.Time.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid database DSN: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// Configure applies the connection pool settings.
func Configure(db *sql.DB) {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
}

// schema creates the installment tables. Money columns are DECIMAL; nested
// documents (line items, schedules, event payloads) are JSON.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS installment_requests (
		id VARCHAR(26) NOT NULL PRIMARY KEY,
		buyer_id VARCHAR(64) NOT NULL,
		line_items JSON NOT NULL,
		total_requested_value DECIMAL(15,2) NOT NULL,
		requested_duration_months INT NOT NULL,
		payment_frequency VARCHAR(16) NOT NULL,
		status VARCHAR(64) NOT NULL,
		primary_seller_decision VARCHAR(32) NOT NULL,
		allowed_for_suppliers BOOLEAN NOT NULL DEFAULT FALSE,
		forwarded_supplier_ids JSON NULL,
		accepted_offer_id VARCHAR(26) NULL,
		admin_notes TEXT NULL,
		closed_reason VARCHAR(255) NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		reviewed_at DATETIME(6) NULL,
		closed_at DATETIME(6) NULL,
		INDEX idx_installment_requests_buyer (buyer_id, created_at),
		INDEX idx_installment_requests_status (status)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS installment_offers (
		id VARCHAR(26) NOT NULL PRIMARY KEY,
		request_id VARCHAR(26) NOT NULL,
		source_type VARCHAR(32) NOT NULL,
		supplier_id VARCHAR(64) NULL,
		type VARCHAR(16) NOT NULL,
		items_approved JSON NOT NULL,
		total_approved_value DECIMAL(15,2) NOT NULL,
		schedule JSON NOT NULL,
		status VARCHAR(32) NOT NULL,
		notes TEXT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		resolved_at DATETIME(6) NULL,
		INDEX idx_installment_offers_request (request_id, created_at),
		INDEX idx_installment_offers_status (status),
		CONSTRAINT fk_installment_offers_request FOREIGN KEY (request_id) REFERENCES installment_requests (id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS credit_profiles (
		buyer_id VARCHAR(64) NOT NULL PRIMARY KEY,
		score_level VARCHAR(16) NOT NULL,
		total_requests INT NOT NULL DEFAULT 0,
		total_active_contracts INT NOT NULL DEFAULT 0,
		total_overdue_installments INT NOT NULL DEFAULT 0,
		total_paid_amount DECIMAL(15,2) NOT NULL DEFAULT 0,
		total_remaining_amount DECIMAL(15,2) NOT NULL DEFAULT 0,
		last_updated DATETIME(6) NOT NULL
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS installment_events (
		id VARCHAR(26) NOT NULL PRIMARY KEY,
		type VARCHAR(64) NOT NULL,
		entity_id VARCHAR(26) NOT NULL,
		request_id VARCHAR(26) NOT NULL,
		status VARCHAR(64) NOT NULL,
		payload JSON NULL,
		occurred_at DATETIME(6) NOT NULL,
		INDEX idx_installment_events_request (request_id, occurred_at)
	) ENGINE=InnoDB`,
}

// Migrate creates any missing tables. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	logger.Info(ctx, "database schema is up to date", "tables", len(schema))
	return nil
}
