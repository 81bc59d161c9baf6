// Package dispatch drives one pipeline iteration per camera frame. Each
// detected region gets its own goroutine for the oracle call, so a slow or
// timed-out recognition never stalls the other regions. Results are joined
// and applied by the calling goroutine alone, which keeps all debounce and
// session mutation single-writer.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartstore/engine/internal/debounce"
	"github.com/smartstore/engine/internal/logging"
	"github.com/smartstore/engine/internal/models"
	"github.com/smartstore/engine/internal/recognition"
	"github.com/smartstore/engine/internal/session"
)

// RegionKind tells the dispatcher which oracle a region belongs to.
type RegionKind int

const (
	// FaceRegion - a detected face crop.
	FaceRegion RegionKind = iota
	// ProductRegion - the product scan zone crop.
	ProductRegion
)

// Region is one detected area within a frame.
type Region struct {
	Kind  RegionKind
	Image []byte
}

// Frame is one camera capture with zero or more detected regions.
type Frame struct {
	Regions    []Region
	CapturedAt time.Time
}

// Catalog resolves a visual signature to a registered product.
type Catalog interface {
	GetByVisualID(ctx context.Context, visualID string) (*models.Product, error)
}

// EventSink publishes stable-detection events. Optional.
type EventSink interface {
	PublishDetection(ctx context.Context, key string, event any) error
}

// DetectionEvent is published when a debounced detection mutates a cart.
type DetectionEvent struct {
	Identity  string    `json:"identity"`
	ProductID string    `json:"product_id"`
	Product   string    `json:"product"`
	Quantity  int       `json:"quantity"`
	At        time.Time `json:"at"`
}

type regionResult struct {
	kind       RegionKind
	identity   string
	candidate  string
	confidence float64
	ok         bool
}

// Dispatcher connects the gateway, tracker and session store.
type Dispatcher struct {
	gateway  recognition.Gateway
	tracker  *debounce.Tracker
	sessions *session.Store
	catalog  Catalog
	events   EventSink

	sweepInterval time.Duration
	lastSweep     time.Time

	framesProcessed atomic.Int64
	stableEvents    atomic.Int64

	log zerolog.Logger
}

// Config holds the dispatcher collaborators.
type Config struct {
	Gateway       recognition.Gateway
	Tracker       *debounce.Tracker
	Sessions      *session.Store
	Catalog       Catalog
	Events        EventSink
	SweepInterval time.Duration
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Second
	}

	return &Dispatcher{
		gateway:       cfg.Gateway,
		tracker:       cfg.Tracker,
		sessions:      cfg.Sessions,
		catalog:       cfg.Catalog,
		events:        cfg.Events,
		sweepInterval: cfg.SweepInterval,
		log:           logging.WithComponent("dispatch"),
	}
}

// ProcessFrame runs one pipeline iteration. Oracle calls for all regions run
// concurrently; state updates are applied after the join, faces before
// products so a newly recognized customer can claim the scan zone in the
// same frame.
func (d *Dispatcher) ProcessFrame(ctx context.Context, frame Frame) {
	now := frame.CapturedAt
	if now.IsZero() {
		now = time.Now()
	}

	results := d.identifyRegions(ctx, frame.Regions)

	var present []string
	for _, res := range results {
		if res.kind != FaceRegion || !res.ok {
			continue
		}

		_, created := d.sessions.Ensure(res.identity, now)
		if created {
			d.log.Info().Str("identity", res.identity).Msg("customer recognized")
		}
		d.sessions.RecordPresence(res.identity, now)
		if err := d.sessions.MarkFaceVerified(res.identity); err == nil {
			present = append(present, res.identity)
		}
	}

	for _, res := range results {
		if res.kind != ProductRegion || !res.ok {
			continue
		}
		if len(present) == 0 {
			// Nobody recognized in this frame; a product with no customer
			// to attribute it to is ignored.
			continue
		}

		identity := present[0]
		if d.tracker.Observe(identity, res.candidate, res.confidence, now) == debounce.Stable {
			d.addToCart(ctx, identity, res.candidate, now)
		}
	}

	d.framesProcessed.Add(1)
	d.maybeSweep(now)
}

// identifyRegions fans the oracle calls out and joins the results. The
// gateway owns the per-call timeout; a failed call simply yields no result.
func (d *Dispatcher) identifyRegions(ctx context.Context, regions []Region) []regionResult {
	results := make([]regionResult, len(regions))

	var wg sync.WaitGroup
	for i, region := range regions {
		wg.Add(1)
		go func(i int, region Region) {
			defer wg.Done()

			switch region.Kind {
			case FaceRegion:
				identity, ok := d.gateway.IdentifyFace(ctx, region.Image)
				results[i] = regionResult{kind: FaceRegion, identity: identity, ok: ok}
			case ProductRegion:
				candidate, confidence, ok := d.gateway.IdentifyProduct(ctx, region.Image)
				results[i] = regionResult{kind: ProductRegion, candidate: candidate, confidence: confidence, ok: ok}
			}
		}(i, region)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) addToCart(ctx context.Context, identity, visualID string, now time.Time) {
	product, err := d.catalog.GetByVisualID(ctx, visualID)
	if err != nil {
		d.log.Warn().Err(err).
			Str("visualId", visualID).
			Msg("stable detection for unknown product")
		return
	}

	line, err := d.sessions.AddCartLine(identity, product.ID, product.Name, product.Price)
	if err != nil {
		d.log.Warn().Err(err).Str("identity", identity).Msg("failed to add cart line")
		return
	}

	d.stableEvents.Add(1)

	if d.events != nil {
		event := DetectionEvent{
			Identity:  identity,
			ProductID: product.ID,
			Product:   product.Name,
			Quantity:  line.Quantity,
			At:        now,
		}
		if err := d.events.PublishDetection(ctx, identity, event); err != nil {
			d.log.Debug().Err(err).Msg("failed to publish detection event")
		}
	}
}

func (d *Dispatcher) maybeSweep(now time.Time) {
	if now.Sub(d.lastSweep) < d.sweepInterval {
		return
	}
	d.lastSweep = now

	expired := d.sessions.ExpireAbsent(now)
	swept := d.tracker.Sweep(now)
	if len(expired) > 0 || swept > 0 {
		d.log.Debug().
			Int("expiredSessions", len(expired)).
			Int("sweptIdentities", swept).
			Msg("absence sweep")
	}
}

// Stats reports pipeline counters for the stats endpoint.
type Stats struct {
	FramesProcessed int64 `json:"frames_processed"`
	StableEvents    int64 `json:"stable_events"`
	ActiveSessions  int   `json:"active_sessions"`
	OpenWindows     int   `json:"open_windows"`
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		FramesProcessed: d.framesProcessed.Load(),
		StableEvents:    d.stableEvents.Load(),
		ActiveSessions:  d.sessions.Count(),
		OpenWindows:     d.tracker.WindowCount(),
	}
}
