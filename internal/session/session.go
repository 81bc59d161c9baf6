// Package session owns the per-customer shopping state: one session per
// recognized identity, its cart, its verification flags, and its position in
// the checkout state machine. The session is the single source of truth for
// committed cart quantities; raw detections never touch it directly.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is a session's position in the checkout state machine.
type State int

const (
	// Tracking - the session exists and the cart is filling.
	Tracking State = iota
	// CheckoutRequested - payment was requested with a non-empty cart.
	CheckoutRequested
	// AwaitingBiometric - waiting for a biometric reading matching the identity.
	AwaitingBiometric
	// Verified - both face and biometric verification hold.
	Verified
	// Committing - transaction submitted to the persistence store.
	Committing
	// Closed - terminal; the session is being removed.
	Closed
)

func (s State) String() string {
	switch s {
	case Tracking:
		return "tracking"
	case CheckoutRequested:
		return "checkout_requested"
	case AwaitingBiometric:
		return "awaiting_biometric"
	case Verified:
		return "verified"
	case Committing:
		return "committing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// CartLine is one product entry in a session's cart. Quantity grows only on
// stable detection events.
type CartLine struct {
	ProductID string
	Name      string
	UnitPrice float64
	Quantity  int
}

// Subtotal returns the line total.
func (l CartLine) Subtotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// Session is one customer's shopping visit.
type Session struct {
	ID                string
	Identity          string
	State             State
	Cart              []CartLine
	FaceVerified      bool
	BiometricVerified bool

	// TransactionRef is set once the persistence store has created the
	// transaction record, so a retried commit never creates it twice.
	TransactionRef string

	StartedAt  time.Time
	LastSeenAt time.Time
}

func newSession(identity string, now time.Time) *Session {
	return &Session{
		ID:         uuid.New().String(),
		Identity:   identity,
		State:      Tracking,
		StartedAt:  now,
		LastSeenAt: now,
	}
}

// Total returns the cart total.
func (s *Session) Total() float64 {
	total := 0.0
	for _, line := range s.Cart {
		total += line.Subtotal()
	}
	return total
}

// ItemCount returns the summed quantity across all cart lines.
func (s *Session) ItemCount() int {
	count := 0
	for _, line := range s.Cart {
		count += line.Quantity
	}
	return count
}

func (s *Session) clone() Session {
	out := *s
	out.Cart = make([]CartLine, len(s.Cart))
	copy(out.Cart, s.Cart)
	return out
}
