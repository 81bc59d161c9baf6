// Package checkout drives a session from a payment request to a committed
// transaction. A commit requires dual verification: the face-derived identity
// that owns the session and the biometric identity from the fingerprint
// sensor must agree. Persistence failures return the session to
// CheckoutRequested with the cart intact; the transaction record itself is
// created at most once per session, so a retry never double-persists.
package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smartstore/engine/internal/logging"
	"github.com/smartstore/engine/internal/session"
)

// TransactionRecord is what the persistence collaborator receives on commit.
type TransactionRecord struct {
	SessionID string
	Identity  string
	Items     []session.CartLine
	Total     float64
}

// TransactionStore is the persistence collaborator contract.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, rec TransactionRecord) (string, error)
	CompleteTransaction(ctx context.Context, ref, invoicePath string) error
	CloseSession(ctx context.Context, sessionID string) error
	RecordActivity(ctx context.Context, identity, action string, success bool) error
}

// IdentityResolver maps a raw fingerprint ID to a registered identity.
type IdentityResolver interface {
	ResolveFingerprint(ctx context.Context, fingerprintID string) (identity, displayName string, err error)
}

// ReceiptRenderer is the document collaborator contract. Render failures are
// reported and retried out-of-band; they never roll back a transaction.
type ReceiptRenderer interface {
	RenderReceipt(ref string, items []session.CartLine, total float64, clientName string) (string, error)
}

// EventSink publishes committed-transaction events. Optional.
type EventSink interface {
	PublishTransaction(ctx context.Context, key string, event any) error
}

// TransactionEvent is the payload published after a successful commit.
type TransactionEvent struct {
	TransactionRef string    `json:"transaction_ref"`
	SessionID      string    `json:"session_id"`
	Identity       string    `json:"identity"`
	Total          float64   `json:"total"`
	ItemCount      int       `json:"item_count"`
	CommittedAt    time.Time `json:"committed_at"`
}

// Reading is one biometric sensor event, correlated by token.
type Reading struct {
	Token         string
	FingerprintID string
}

type pendingVerification struct {
	identity string
	readings chan Reading
}

// Coordinator sequences checkout for all sessions. Each session's checkout
// runs independently; tracking of other customers never blocks on it.
type Coordinator struct {
	sessions      *session.Store
	store         TransactionStore
	resolver      IdentityResolver
	renderer      ReceiptRenderer
	events        EventSink
	biometricWait time.Duration

	mu      sync.Mutex
	pending map[string]*pendingVerification

	log zerolog.Logger
}

// Config holds the coordinator tunables and collaborators.
type Config struct {
	Sessions      *session.Store
	Store         TransactionStore
	Resolver      IdentityResolver
	Renderer      ReceiptRenderer
	Events        EventSink
	BiometricWait time.Duration
}

func NewCoordinator(cfg Config) *Coordinator {
	if cfg.BiometricWait <= 0 {
		cfg.BiometricWait = 30 * time.Second
	}

	return &Coordinator{
		sessions:      cfg.Sessions,
		store:         cfg.Store,
		resolver:      cfg.Resolver,
		renderer:      cfg.Renderer,
		events:        cfg.Events,
		biometricWait: cfg.BiometricWait,
		pending:       make(map[string]*pendingVerification),
		log:           logging.WithComponent("checkout"),
	}
}

// RequestCheckout moves a tracking session to CheckoutRequested and issues a
// verification token for the sensor flow. An empty cart is rejected without
// a state change. Re-requesting from CheckoutRequested is allowed (retry).
func (c *Coordinator) RequestCheckout(identity string) (string, error) {
	err := c.sessions.Update(identity, func(s *session.Session) error {
		if s.State != session.Tracking && s.State != session.CheckoutRequested {
			return fmt.Errorf("%w: %s", ErrWrongState, s.State)
		}
		if len(s.Cart) == 0 {
			return ErrEmptyCart
		}
		s.State = session.CheckoutRequested
		return nil
	})
	if err != nil {
		return "", err
	}

	token := uuid.New().String()
	c.mu.Lock()
	c.pending[token] = &pendingVerification{
		identity: identity,
		readings: make(chan Reading, 1),
	}
	c.mu.Unlock()

	c.log.Info().
		Str("identity", identity).
		Str("token", token).
		Msg("checkout requested")
	return token, nil
}

// SubmitReading routes a sensor event to the checkout waiting on its token.
// Extra readings for the same token are dropped; the wait consumes one.
func (c *Coordinator) SubmitReading(reading Reading) error {
	c.mu.Lock()
	p, ok := c.pending[reading.Token]
	c.mu.Unlock()

	if !ok {
		return ErrInvalidToken
	}

	select {
	case p.readings <- reading:
	default:
	}
	return nil
}

// CompleteCheckout runs the verification wait and the commit for a
// previously requested checkout. It blocks for at most the biometric wait
// window. On any failure the session returns to CheckoutRequested with its
// cart preserved and the error describes what to retry.
func (c *Coordinator) CompleteCheckout(ctx context.Context, identity, token string) error {
	c.mu.Lock()
	p, ok := c.pending[token]
	c.mu.Unlock()
	if !ok || p.identity != identity {
		return ErrInvalidToken
	}
	defer c.discardToken(token)

	err := c.sessions.Update(identity, func(s *session.Session) error {
		if s.State != session.CheckoutRequested {
			return fmt.Errorf("%w: %s", ErrWrongState, s.State)
		}
		s.State = session.AwaitingBiometric
		return nil
	})
	if err != nil {
		return err
	}

	reading, err := c.awaitReading(ctx, p)
	if err != nil {
		c.revert(identity)
		return err
	}

	clientName, err := c.verify(ctx, identity, reading)
	if err != nil {
		c.revert(identity)
		return err
	}

	if err := c.commit(ctx, identity, clientName); err != nil {
		c.revert(identity)
		return err
	}

	c.sessions.Remove(identity)
	return nil
}

func (c *Coordinator) awaitReading(ctx context.Context, p *pendingVerification) (Reading, error) {
	select {
	case reading := <-p.readings:
		return reading, nil
	case <-time.After(c.biometricWait):
		return Reading{}, ErrBiometricTimeout
	case <-ctx.Done():
		return Reading{}, ctx.Err()
	}
}

// verify resolves the fingerprint and enforces the dual-factor invariant.
// Returns the resolved client display name for the receipt.
func (c *Coordinator) verify(ctx context.Context, identity string, reading Reading) (string, error) {
	resolved, name, err := c.resolver.ResolveFingerprint(ctx, reading.FingerprintID)
	if err != nil {
		c.recordActivity(ctx, identity, "biometric_verify", false)
		return "", fmt.Errorf("%w: fingerprint not recognized", ErrVerificationMismatch)
	}

	if resolved != identity {
		c.recordActivity(ctx, identity, "biometric_verify", false)
		c.log.Warn().
			Str("identity", identity).
			Str("resolved", resolved).
			Msg("biometric identity mismatch")
		return "", ErrVerificationMismatch
	}

	c.recordActivity(ctx, identity, "biometric_verify", true)

	err = c.sessions.Update(identity, func(s *session.Session) error {
		s.BiometricVerified = true
		if !s.FaceVerified {
			return ErrVerificationIncomplete
		}
		s.State = session.Verified
		return nil
	})
	if err != nil {
		return "", err
	}

	c.log.Info().
		Str("identity", identity).
		Str("client", name).
		Msg("dual verification complete")
	return name, nil
}

// commit performs a single transaction attempt. The transaction record is
// created only if the session does not already carry a ref from a previous
// partially failed attempt.
func (c *Coordinator) commit(ctx context.Context, identity, clientName string) error {
	var rec TransactionRecord
	var existingRef string
	err := c.sessions.Update(identity, func(s *session.Session) error {
		if s.State != session.Verified {
			return fmt.Errorf("%w: %s", ErrWrongState, s.State)
		}
		if !s.FaceVerified || !s.BiometricVerified {
			return ErrVerificationIncomplete
		}
		s.State = session.Committing

		items := make([]session.CartLine, len(s.Cart))
		copy(items, s.Cart)
		rec = TransactionRecord{
			SessionID: s.ID,
			Identity:  s.Identity,
			Items:     items,
			Total:     s.Total(),
		}
		existingRef = s.TransactionRef
		return nil
	})
	if err != nil {
		return err
	}

	ref := existingRef
	if ref == "" {
		ref, err = c.store.CreateTransaction(ctx, rec)
		if err != nil {
			return fmt.Errorf("creating transaction: %w", err)
		}
		// Memoize before anything else can fail, so a retry skips creation.
		if err := c.sessions.Update(identity, func(s *session.Session) error {
			s.TransactionRef = ref
			return nil
		}); err != nil {
			return err
		}
	}

	if invoicePath, renderErr := c.renderReceipt(ref, rec, clientName); renderErr != nil {
		c.log.Warn().Err(renderErr).
			Str("transactionRef", ref).
			Msg("receipt rendering failed, transaction stands")
	} else if invoicePath != "" {
		if err := c.store.CompleteTransaction(ctx, ref, invoicePath); err != nil {
			c.log.Warn().Err(err).
				Str("transactionRef", ref).
				Msg("failed to record invoice path")
		}
	}

	if err := c.store.CloseSession(ctx, rec.SessionID); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}

	if c.events != nil {
		event := TransactionEvent{
			TransactionRef: ref,
			SessionID:      rec.SessionID,
			Identity:       rec.Identity,
			Total:          rec.Total,
			ItemCount:      len(rec.Items),
			CommittedAt:    time.Now(),
		}
		if err := c.events.PublishTransaction(ctx, rec.SessionID, event); err != nil {
			c.log.Warn().Err(err).Msg("failed to publish transaction event")
		}
	}

	c.recordActivity(ctx, identity, "payment", true)

	if err := c.sessions.Update(identity, func(s *session.Session) error {
		s.State = session.Closed
		return nil
	}); err != nil {
		return err
	}

	c.log.Info().
		Str("identity", identity).
		Str("transactionRef", ref).
		Float64("total", rec.Total).
		Msg("transaction committed")
	return nil
}

func (c *Coordinator) renderReceipt(ref string, rec TransactionRecord, clientName string) (string, error) {
	if c.renderer == nil {
		return "", nil
	}
	if clientName == "" {
		clientName = rec.Identity
	}
	return c.renderer.RenderReceipt(ref, rec.Items, rec.Total, clientName)
}

// revert returns a session to CheckoutRequested after a failed attempt. The
// cart and any memoized transaction ref survive for the retry.
func (c *Coordinator) revert(identity string) {
	if err := c.sessions.Update(identity, func(s *session.Session) error {
		s.State = session.CheckoutRequested
		return nil
	}); err != nil {
		c.log.Warn().Err(err).Str("identity", identity).Msg("failed to revert session state")
	}
}

func (c *Coordinator) discardToken(token string) {
	c.mu.Lock()
	delete(c.pending, token)
	c.mu.Unlock()
}

// recordActivity writes the audit log entry; failures here are non-fatal.
func (c *Coordinator) recordActivity(ctx context.Context, identity, action string, success bool) {
	if err := c.store.RecordActivity(ctx, identity, action, success); err != nil {
		c.log.Debug().Err(err).Str("action", action).Msg("activity log write failed")
	}
}
