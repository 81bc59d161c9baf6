package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartstore/engine/internal/checkout"
	"github.com/smartstore/engine/internal/session"
)

func sampleRecord() checkout.TransactionRecord {
	return checkout.TransactionRecord{
		SessionID: "sess-1",
		Identity:  "client-1",
		Items: []session.CartLine{
			{ProductID: "prod-1", Name: "Cola", UnitPrice: 2.50, Quantity: 2},
			{ProductID: "prod-2", Name: "Chips", UnitPrice: 1.80, Quantity: 1},
		},
		Total: 6.80,
	}
}

func TestTransactionStore_CreateAndGet(t *testing.T) {
	db := testDB(t)
	store := NewTransactionStore(db)
	ctx := context.Background()

	ref, err := store.CreateTransaction(ctx, sampleRecord())
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	row, err := store.GetTransaction(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", row.SessionID)
	assert.Equal(t, "client-1", row.Identity)
	assert.InDelta(t, 6.80, row.Total, 0.001)
	assert.Equal(t, "pending", row.Status)
	assert.Empty(t, row.InvoicePath)

	var items int
	err = db.conn.QueryRow(`SELECT COUNT(*) FROM transaction_items WHERE transaction_id = ?`, ref).Scan(&items)
	require.NoError(t, err)
	assert.Equal(t, 2, items)
}

func TestTransactionStore_CompleteTransaction(t *testing.T) {
	db := testDB(t)
	store := NewTransactionStore(db)
	ctx := context.Background()

	ref, err := store.CreateTransaction(ctx, sampleRecord())
	require.NoError(t, err)

	require.NoError(t, store.CompleteTransaction(ctx, ref, "/invoices/x.pdf"))

	row, err := store.GetTransaction(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "completed", row.Status)
	assert.Equal(t, "/invoices/x.pdf", row.InvoicePath)
}

func TestTransactionStore_CloseSession(t *testing.T) {
	db := testDB(t)
	store := NewTransactionStore(db)
	ctx := context.Background()

	_, err := store.CreateTransaction(ctx, sampleRecord())
	require.NoError(t, err)

	require.NoError(t, store.CloseSession(ctx, "sess-1"))

	var status string
	err = db.conn.QueryRow(`SELECT status FROM shopping_sessions WHERE session_id = ?`, "sess-1").Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, "completed", status)
}

func TestTransactionStore_SessionUpsertIsIdempotent(t *testing.T) {
	db := testDB(t)
	store := NewTransactionStore(db)
	ctx := context.Background()

	// Two creates against the same session id, as a retried checkout would
	// issue. The session row must not duplicate.
	_, err := store.CreateTransaction(ctx, sampleRecord())
	require.NoError(t, err)
	_, err = store.CreateTransaction(ctx, sampleRecord())
	require.NoError(t, err)

	var sessions int
	err = db.conn.QueryRow(`SELECT COUNT(*) FROM shopping_sessions WHERE session_id = ?`, "sess-1").Scan(&sessions)
	require.NoError(t, err)
	assert.Equal(t, 1, sessions)
}

func TestTransactionStore_RecordActivity(t *testing.T) {
	db := testDB(t)
	store := NewTransactionStore(db)
	ctx := context.Background()

	require.NoError(t, store.RecordActivity(ctx, "client-1", "payment", true))
	require.NoError(t, store.RecordActivity(ctx, "client-1", "biometric_verify", false))

	var count int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM activity_logs WHERE identity = ?`, "client-1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
