package session

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartstore/engine/internal/logging"
)

// ErrSessionNotFound is returned for operations on an identity with no
// active session.
var ErrSessionNotFound = errors.New("session not found")

// Store is the in-memory registry of active sessions, keyed by identity.
// All mutations happen inside short lock-held critical sections with no I/O.
type Store struct {
	mu             sync.RWMutex
	sessions       map[string]*Session
	absenceTimeout time.Duration
	log            zerolog.Logger
}

func NewStore(absenceTimeout time.Duration) *Store {
	if absenceTimeout <= 0 {
		absenceTimeout = 30 * time.Second
	}

	return &Store{
		sessions:       make(map[string]*Session),
		absenceTimeout: absenceTimeout,
		log:            logging.WithComponent("session"),
	}
}

// Ensure returns the session for an identity, creating one in Tracking state
// if the identity was previously absent. The second return reports whether a
// new session was created.
func (st *Store) Ensure(identity string, now time.Time) (Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[identity]; ok {
		s.LastSeenAt = now
		return s.clone(), false
	}

	s := newSession(identity, now)
	st.sessions[identity] = s
	st.log.Info().
		Str("sessionId", s.ID).
		Str("identity", identity).
		Msg("shopping session started")
	return s.clone(), true
}

// Get returns a copy of the session for an identity.
func (st *Store) Get(identity string) (Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[identity]
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// List returns copies of all active sessions.
func (st *Store) List() []Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s.clone())
	}
	return out
}

// RecordPresence updates the identity's last-seen time for absence expiry.
func (st *Store) RecordPresence(identity string, now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[identity]; ok {
		s.LastSeenAt = now
	}
}

// MarkFaceVerified sets the face verification flag. Monotonic: only session
// destruction clears it.
func (st *Store) MarkFaceVerified(identity string) error {
	return st.Update(identity, func(s *Session) error {
		s.FaceVerified = true
		return nil
	})
}

// MarkBiometricVerified sets the biometric verification flag. Monotonic.
func (st *Store) MarkBiometricVerified(identity string) error {
	return st.Update(identity, func(s *Session) error {
		s.BiometricVerified = true
		return nil
	})
}

// AddCartLine appends a line for the product, or increments the quantity of
// an existing line. Callers invoke this once per stable detection event,
// which is what makes cart growth exactly-once under noisy input.
func (st *Store) AddCartLine(identity, productID, name string, unitPrice float64) (CartLine, error) {
	var added CartLine
	err := st.Update(identity, func(s *Session) error {
		for i := range s.Cart {
			if s.Cart[i].ProductID == productID {
				s.Cart[i].Quantity++
				added = s.Cart[i]
				return nil
			}
		}

		line := CartLine{
			ProductID: productID,
			Name:      name,
			UnitPrice: unitPrice,
			Quantity:  1,
		}
		s.Cart = append(s.Cart, line)
		added = line
		return nil
	})
	if err != nil {
		return CartLine{}, err
	}

	st.log.Info().
		Str("identity", identity).
		Str("productId", productID).
		Int("quantity", added.Quantity).
		Msg("cart line updated")
	return added, nil
}

// Update runs fn against the live session under the store lock. fn must not
// block or perform I/O.
func (st *Store) Update(identity string, fn func(*Session) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[identity]
	if !ok {
		return ErrSessionNotFound
	}
	return fn(s)
}

// Remove destroys the session for an identity.
func (st *Store) Remove(identity string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, identity)
}

// ExpireAbsent sweeps sessions whose last-seen exceeds the absence timeout
// and removes them without committing anything. Abandoned carts are dropped
// on purpose; a returning customer starts fresh. Returns copies of the
// removed sessions.
func (st *Store) ExpireAbsent(now time.Time) []Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	var expired []Session
	for identity, s := range st.sessions {
		if now.Sub(s.LastSeenAt) <= st.absenceTimeout {
			continue
		}

		expired = append(expired, s.clone())
		delete(st.sessions, identity)
		st.log.Info().
			Str("sessionId", s.ID).
			Str("identity", identity).
			Int("abandonedItems", s.ItemCount()).
			Msg("session expired on absence")
	}

	return expired
}

// Count reports the number of active sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
