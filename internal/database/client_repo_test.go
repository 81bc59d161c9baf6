package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartstore/engine/internal/models"
)

func TestClientRepo_InsertAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewClientRepo(db)
	ctx := context.Background()

	client := models.NewClient("Alice Martin", "face-alice", "FP-001")
	require.NoError(t, repo.Insert(ctx, client))

	got, err := repo.GetByID(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, client.ID, got.ID)
	assert.Equal(t, "Alice Martin", got.Name)
	assert.Equal(t, "FP-001", got.FingerprintID)
	assert.True(t, got.IsActive)
}

func TestClientRepo_GetByFingerprint(t *testing.T) {
	db := testDB(t)
	repo := NewClientRepo(db)
	ctx := context.Background()

	alice := models.NewClient("Alice Martin", "face-alice", "FP-001")
	bob := models.NewClient("Bob Stone", "face-bob", "FP-002")
	require.NoError(t, repo.Insert(ctx, alice))
	require.NoError(t, repo.Insert(ctx, bob))

	got, err := repo.GetByFingerprint(ctx, "FP-002")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.ID)

	_, err = repo.GetByFingerprint(ctx, "FP-999")
	assert.Error(t, err)
}

func TestClientRepo_ResolveFingerprint(t *testing.T) {
	db := testDB(t)
	repo := NewClientRepo(db)
	ctx := context.Background()

	alice := models.NewClient("Alice Martin", "face-alice", "FP-001")
	require.NoError(t, repo.Insert(ctx, alice))

	identity, name, err := repo.ResolveFingerprint(ctx, "FP-001")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, identity)
	assert.Equal(t, "Alice Martin", name)
}

func TestClientRepo_GetUnknown(t *testing.T) {
	db := testDB(t)
	repo := NewClientRepo(db)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.Error(t, err)
}
