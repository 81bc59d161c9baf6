// Package debounce turns noisy per-frame classifier output into stable
// detection events. A detection is stable only after an unbroken streak of
// identical (identity, candidate) observations; switching candidates or
// pausing longer than the staleness window resets the streak, and a stable
// event arms a cooldown so a customer lingering with the same item in view
// cannot trigger it twice.
package debounce

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartstore/engine/internal/logging"
)

// Result of a single observation.
type Result int

const (
	// Pending - the streak is still building (or the pair is cooling down).
	Pending Result = iota
	// Stable - the streak just reached the required length.
	Stable
)

func (r Result) String() string {
	if r == Stable {
		return "stable"
	}
	return "pending"
}

// Config holds the debounce tunables.
type Config struct {
	RequiredStreak  int
	MinConfidence   float64
	StalenessWindow time.Duration
	Cooldown        time.Duration
	AbsenceTimeout  time.Duration
}

// DefaultConfig mirrors the thresholds the store floor runs with.
func DefaultConfig() Config {
	return Config{
		RequiredStreak:  15,
		MinConfidence:   0.2,
		StalenessWindow: 2 * time.Second,
		Cooldown:        5 * time.Second,
		AbsenceTimeout:  30 * time.Second,
	}
}

type windowKey struct {
	identity  string
	candidate string
}

type window struct {
	count         int
	lastSeenAt    time.Time
	cooldownUntil time.Time
}

// Tracker owns the detection windows. Safe for concurrent use, though the
// frame pipeline feeds it from a single goroutine.
type Tracker struct {
	mu            sync.Mutex
	cfg           Config
	windows       map[windowKey]*window
	lastCandidate map[string]string    // identity -> candidate of the previous observation
	lastObserved  map[string]time.Time // identity -> last observation of any candidate
	log           zerolog.Logger
}

func NewTracker(cfg Config) *Tracker {
	if cfg.RequiredStreak <= 0 {
		cfg.RequiredStreak = DefaultConfig().RequiredStreak
	}
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = DefaultConfig().StalenessWindow
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	if cfg.AbsenceTimeout <= 0 {
		cfg.AbsenceTimeout = DefaultConfig().AbsenceTimeout
	}

	return &Tracker{
		cfg:           cfg,
		windows:       make(map[windowKey]*window),
		lastCandidate: make(map[string]string),
		lastObserved:  make(map[string]time.Time),
		log:           logging.WithComponent("debounce"),
	}
}

// Observe feeds one classifier detection into the tracker.
//
// Observations below the confidence floor are ignored entirely: they neither
// extend nor reset a streak, so noise-floor flicker cannot corrupt an
// otherwise steady detection.
func (t *Tracker) Observe(identity, candidateID string, confidence float64, now time.Time) Result {
	if confidence < t.cfg.MinConfidence {
		return Pending
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := windowKey{identity: identity, candidate: candidateID}
	w := t.windows[key]

	if w != nil && now.Before(w.cooldownUntil) {
		// Cooling down; ignore without mutating so the cooldown cannot be
		// extended by continued detections.
		return Pending
	}

	prevCandidate, sawBefore := t.lastCandidate[identity]
	t.lastCandidate[identity] = candidateID
	t.lastObserved[identity] = now

	switch {
	case w == nil:
		w = &window{}
		t.windows[key] = w
		w.count = 1
	case sawBefore && prevCandidate != candidateID:
		// Candidate switched; the streak must restart from scratch.
		w.count = 1
	case now.Sub(w.lastSeenAt) > t.cfg.StalenessWindow:
		w.count = 1
	default:
		w.count++
	}

	w.lastSeenAt = now

	if w.count == t.cfg.RequiredStreak {
		w.count = 0
		w.cooldownUntil = now.Add(t.cfg.Cooldown)
		t.log.Info().
			Str("identity", identity).
			Str("candidate", candidateID).
			Float64("confidence", confidence).
			Msg("detection stable")
		return Stable
	}

	return Pending
}

// Sweep garbage-collects windows for identities that have not produced any
// observation within the absence timeout. Returns the number of identities
// removed.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for identity, last := range t.lastObserved {
		if now.Sub(last) <= t.cfg.AbsenceTimeout {
			continue
		}

		for key := range t.windows {
			if key.identity == identity {
				delete(t.windows, key)
			}
		}
		delete(t.lastCandidate, identity)
		delete(t.lastObserved, identity)
		removed++
	}

	if removed > 0 {
		t.log.Debug().Int("identities", removed).Msg("swept stale detection windows")
	}

	return removed
}

// WindowCount reports the number of live detection windows.
func (t *Tracker) WindowCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}
