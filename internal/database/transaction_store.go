package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smartstore/engine/internal/checkout"
)

// TransactionStore is the persistence collaborator behind the checkout
// coordinator. The transaction record and its line items are written in one
// SQL transaction, so a failure leaves nothing behind for a retry to
// duplicate.
type TransactionStore struct {
	db *DB
}

func NewTransactionStore(db *DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) CreateTransaction(ctx context.Context, rec checkout.TransactionRecord) (string, error) {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ref := uuid.New().String()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO shopping_sessions (session_id, identity, status)
			VALUES (?, ?, 'active')
			ON CONFLICT(session_id) DO NOTHING`,
		rec.SessionID, rec.Identity)
	if err != nil {
		return "", fmt.Errorf("failed to record session: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, session_id, identity, total, payment_method, status, created_at)
			VALUES (?, ?, ?, ?, 'biometric', 'pending', ?)`,
		ref, rec.SessionID, rec.Identity, rec.Total, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to insert transaction: %w", err)
	}

	for _, item := range rec.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transaction_items (transaction_id, product_id, name, quantity, unit_price, subtotal)
				VALUES (?, ?, ?, ?, ?, ?)`,
			ref, item.ProductID, item.Name, item.Quantity, item.UnitPrice, item.Subtotal())
		if err != nil {
			return "", fmt.Errorf("failed to insert transaction item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return ref, nil
}

func (s *TransactionStore) CompleteTransaction(ctx context.Context, ref, invoicePath string) error {
	_, err := s.db.conn.ExecContext(ctx,
		`UPDATE transactions SET status = 'completed', invoice_path = ? WHERE id = ?`,
		invoicePath, ref)
	if err != nil {
		return fmt.Errorf("failed to complete transaction: %w", err)
	}
	return nil
}

func (s *TransactionStore) CloseSession(ctx context.Context, sessionID string) error {
	_, err := s.db.conn.ExecContext(ctx,
		`UPDATE shopping_sessions SET status = 'completed', closed_at = ? WHERE session_id = ?`,
		time.Now(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// RecordActivity appends to the audit log. Callers treat failures here as
// non-fatal.
func (s *TransactionStore) RecordActivity(ctx context.Context, identity, action string, success bool) error {
	ok := 0
	if success {
		ok = 1
	}

	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO activity_logs (identity, action, success, logged_at) VALUES (?, ?, ?, ?)`,
		identity, action, ok, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// GetTransaction returns a committed transaction header, for the API.
type TransactionRow struct {
	ID          string
	SessionID   string
	Identity    string
	Total       float64
	Status      string
	InvoicePath string
	CreatedAt   time.Time
}

func (s *TransactionStore) GetTransaction(ctx context.Context, ref string) (*TransactionRow, error) {
	var row TransactionRow
	var invoicePath *string
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, session_id, identity, total, status, invoice_path, created_at
			FROM transactions WHERE id = ?`, ref).
		Scan(&row.ID, &row.SessionID, &row.Identity, &row.Total, &row.Status, &invoicePath, &row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if invoicePath != nil {
		row.InvoicePath = *invoicePath
	}
	return &row, nil
}
