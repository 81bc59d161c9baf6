package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartstore/engine/internal/session"
)

type fakeStore struct {
	mu            sync.Mutex
	createCalls   int
	closeCalls    int
	completeCalls int
	activities    []string
	lastRec       TransactionRecord
	createErr     error
	closeErr      error
}

func (f *fakeStore) CreateTransaction(ctx context.Context, rec TransactionRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastRec = rec
	if f.createErr != nil {
		return "", f.createErr
	}
	return fmt.Sprintf("tx-%d", f.createCalls), nil
}

func (f *fakeStore) CompleteTransaction(ctx context.Context, ref, invoicePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	return nil
}

func (f *fakeStore) CloseSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return f.closeErr
}

func (f *fakeStore) RecordActivity(ctx context.Context, identity, action string, success bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = append(f.activities, fmt.Sprintf("%s:%s:%t", identity, action, success))
	return nil
}

type fakeResolver struct {
	identities map[string]string // fingerprint -> identity
}

func (f *fakeResolver) ResolveFingerprint(ctx context.Context, fingerprintID string) (string, string, error) {
	identity, ok := f.identities[fingerprintID]
	if !ok {
		return "", "", errors.New("fingerprint not registered")
	}
	return identity, "Client " + identity, nil
}

type fakeRenderer struct {
	err error
}

func (f *fakeRenderer) RenderReceipt(ref string, items []session.CartLine, total float64, clientName string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "/invoices/" + ref + ".pdf", nil
}

func newTestSetup(t *testing.T, store *fakeStore) (*Coordinator, *session.Store) {
	t.Helper()

	sessions := session.NewStore(30 * time.Second)
	coordinator := NewCoordinator(Config{
		Sessions:      sessions,
		Store:         store,
		Resolver:      &fakeResolver{identities: map[string]string{"FP-A": "A", "FP-B": "B"}},
		Renderer:      &fakeRenderer{},
		BiometricWait: time.Second,
	})
	return coordinator, sessions
}

func seedSession(t *testing.T, sessions *session.Store, identity string) {
	t.Helper()
	sessions.Ensure(identity, time.Now())
	require.NoError(t, sessions.MarkFaceVerified(identity))
	_, err := sessions.AddCartLine(identity, "prod-1", "Cola", 2.50)
	require.NoError(t, err)
	_, err = sessions.AddCartLine(identity, "prod-1", "Cola", 2.50)
	require.NoError(t, err)
}

func TestCoordinator_HappyPath(t *testing.T) {
	store := &fakeStore{}
	coordinator, sessions := newTestSetup(t, store)
	seedSession(t, sessions, "A")

	token, err := coordinator.RequestCheckout("A")
	require.NoError(t, err)

	require.NoError(t, coordinator.SubmitReading(Reading{Token: token, FingerprintID: "FP-A"}))
	require.NoError(t, coordinator.CompleteCheckout(context.Background(), "A", token))

	_, ok := sessions.Get("A")
	assert.False(t, ok, "session removed after commit")
	assert.Equal(t, 1, store.createCalls)
	assert.Equal(t, 1, store.closeCalls)
	assert.Equal(t, 1, store.completeCalls)
	assert.InDelta(t, 5.0, store.lastRec.Total, 0.001)
	assert.Contains(t, store.activities, "A:payment:true")
}

func TestCoordinator_EmptyCartRejected(t *testing.T) {
	store := &fakeStore{}
	coordinator, sessions := newTestSetup(t, store)
	sessions.Ensure("A", time.Now())

	_, err := coordinator.RequestCheckout("A")
	assert.ErrorIs(t, err, ErrEmptyCart)

	s, _ := sessions.Get("A")
	assert.Equal(t, session.Tracking, s.State, "guard rejection leaves the state alone")
}

func TestCoordinator_UnknownIdentity(t *testing.T) {
	store := &fakeStore{}
	coordinator, _ := newTestSetup(t, store)

	_, err := coordinator.RequestCheckout("ghost")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestCoordinator_BiometricTimeout(t *testing.T) {
	store := &fakeStore{}
	sessions := session.NewStore(30 * time.Second)
	coordinator := NewCoordinator(Config{
		Sessions:      sessions,
		Store:         store,
		Resolver:      &fakeResolver{identities: map[string]string{}},
		BiometricWait: 50 * time.Millisecond,
	})
	seedSession(t, sessions, "A")

	token, err := coordinator.RequestCheckout("A")
	require.NoError(t, err)

	err = coordinator.CompleteCheckout(context.Background(), "A", token)
	assert.ErrorIs(t, err, ErrBiometricTimeout)

	s, ok := sessions.Get("A")
	require.True(t, ok)
	assert.Equal(t, session.CheckoutRequested, s.State)
	assert.Len(t, s.Cart, 1, "cart preserved for retry")
	assert.Equal(t, 0, store.createCalls)
}

func TestCoordinator_VerificationMismatch(t *testing.T) {
	store := &fakeStore{}
	coordinator, sessions := newTestSetup(t, store)
	seedSession(t, sessions, "A")

	token, err := coordinator.RequestCheckout("A")
	require.NoError(t, err)

	// Reading resolves to customer B while session belongs to A.
	require.NoError(t, coordinator.SubmitReading(Reading{Token: token, FingerprintID: "FP-B"}))
	err = coordinator.CompleteCheckout(context.Background(), "A", token)
	assert.ErrorIs(t, err, ErrVerificationMismatch)

	s, ok := sessions.Get("A")
	require.True(t, ok)
	assert.Equal(t, session.CheckoutRequested, s.State)
	assert.False(t, s.BiometricVerified)
	assert.Equal(t, 0, store.createCalls, "mismatch never reaches persistence")
	assert.Contains(t, store.activities, "A:biometric_verify:false")
}

func TestCoordinator_UnregisteredFingerprint(t *testing.T) {
	store := &fakeStore{}
	coordinator, sessions := newTestSetup(t, store)
	seedSession(t, sessions, "A")

	token, err := coordinator.RequestCheckout("A")
	require.NoError(t, err)

	require.NoError(t, coordinator.SubmitReading(Reading{Token: token, FingerprintID: "FP-UNKNOWN"}))
	err = coordinator.CompleteCheckout(context.Background(), "A", token)
	assert.ErrorIs(t, err, ErrVerificationMismatch)
}

func TestCoordinator_FaceNotVerifiedBlocksCommit(t *testing.T) {
	store := &fakeStore{}
	coordinator, sessions := newTestSetup(t, store)
	sessions.Ensure("A", time.Now())
	_, err := sessions.AddCartLine("A", "prod-1", "Cola", 2.50)
	require.NoError(t, err)

	token, err := coordinator.RequestCheckout("A")
	require.NoError(t, err)

	require.NoError(t, coordinator.SubmitReading(Reading{Token: token, FingerprintID: "FP-A"}))
	err = coordinator.CompleteCheckout(context.Background(), "A", token)
	assert.ErrorIs(t, err, ErrVerificationIncomplete)
	assert.Equal(t, 0, store.createCalls)
}

func TestCoordinator_InvalidToken(t *testing.T) {
	store := &fakeStore{}
	coordinator, sessions := newTestSetup(t, store)
	seedSession(t, sessions, "A")

	err := coordinator.SubmitReading(Reading{Token: "bogus", FingerprintID: "FP-A"})
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err := coordinator.RequestCheckout("A")
	require.NoError(t, err)
	err = coordinator.CompleteCheckout(context.Background(), "A", "some-other-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A consumed token cannot be reused.
	require.NoError(t, coordinator.SubmitReading(Reading{Token: token, FingerprintID: "FP-A"}))
	require.NoError(t, coordinator.CompleteCheckout(context.Background(), "A", token))
	err = coordinator.CompleteCheckout(context.Background(), "A", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCoordinator_CreateFailureAllowsRetry(t *testing.T) {
	store := &fakeStore{createErr: errors.New("db down")}
	coordinator, sessions := newTestSetup(t, store)
	seedSession(t, sessions, "A")

	token, err := coordinator.RequestCheckout("A")
	require.NoError(t, err)
	require.NoError(t, coordinator.SubmitReading(Reading{Token: token, FingerprintID: "FP-A"}))
	err = coordinator.CompleteCheckout(context.Background(), "A", token)
	require.Error(t, err)

	s, ok := sessions.Get("A")
	require.True(t, ok)
	assert.Equal(t, session.CheckoutRequested, s.State)
	assert.Empty(t, s.TransactionRef, "no ref memoized for a failed create")
	assert.Len(t, s.Cart, 1)

	store.createErr = nil
	token, err = coordinator.RequestCheckout("A")
	require.NoError(t, err)
	require.NoError(t, coordinator.SubmitReading(Reading{Token: token, FingerprintID: "FP-A"}))
	require.NoError(t, coordinator.CompleteCheckout(context.Background(), "A", token))

	assert.Equal(t, 2, store.createCalls)
	_, ok = sessions.Get("A")
	assert.False(t, ok)
}

func TestCoordinator_RetryDoesNotDuplicateTransaction(t *testing.T) {
	store := &fakeStore{closeErr: errors.New("db hiccup")}
	coordinator, sessions := newTestSetup(t, store)
	seedSession(t, sessions, "A")

	token, err := coordinator.RequestCheckout("A")
	require.NoError(t, err)
	require.NoError(t, coordinator.SubmitReading(Reading{Token: token, FingerprintID: "FP-A"}))
	err = coordinator.CompleteCheckout(context.Background(), "A", token)
	require.Error(t, err)

	s, ok := sessions.Get("A")
	require.True(t, ok)
	assert.Equal(t, session.CheckoutRequested, s.State)
	assert.NotEmpty(t, s.TransactionRef, "transaction record survived the partial failure")
	assert.Equal(t, 1, store.createCalls)

	store.mu.Lock()
	store.closeErr = nil
	store.mu.Unlock()

	token, err = coordinator.RequestCheckout("A")
	require.NoError(t, err)
	require.NoError(t, coordinator.SubmitReading(Reading{Token: token, FingerprintID: "FP-A"}))
	require.NoError(t, coordinator.CompleteCheckout(context.Background(), "A", token))

	assert.Equal(t, 1, store.createCalls, "retry must not create a second transaction record")
	_, ok = sessions.Get("A")
	assert.False(t, ok)
}

func TestCoordinator_RenderFailureDoesNotRollBack(t *testing.T) {
	store := &fakeStore{}
	sessions := session.NewStore(30 * time.Second)
	coordinator := NewCoordinator(Config{
		Sessions:      sessions,
		Store:         store,
		Resolver:      &fakeResolver{identities: map[string]string{"FP-A": "A"}},
		Renderer:      &fakeRenderer{err: errors.New("printer on fire")},
		BiometricWait: time.Second,
	})
	seedSession(t, sessions, "A")

	token, err := coordinator.RequestCheckout("A")
	require.NoError(t, err)
	require.NoError(t, coordinator.SubmitReading(Reading{Token: token, FingerprintID: "FP-A"}))
	require.NoError(t, coordinator.CompleteCheckout(context.Background(), "A", token))

	assert.Equal(t, 1, store.createCalls)
	assert.Equal(t, 0, store.completeCalls, "no invoice path recorded when rendering failed")
	_, ok := sessions.Get("A")
	assert.False(t, ok, "transaction stands despite the render failure")
}
