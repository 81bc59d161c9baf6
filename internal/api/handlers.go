package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/smartstore/engine/internal/checkout"
	"github.com/smartstore/engine/internal/dispatch"
	"github.com/smartstore/engine/internal/logging"
	"github.com/smartstore/engine/internal/session"
)

// Handlers exposes the engine over HTTP: session inspection, the explicit
// checkout trigger, and the webhook the fingerprint sensor posts readings to.
type Handlers struct {
	sessions    *session.Store
	coordinator *checkout.Coordinator
	dispatcher  *dispatch.Dispatcher
	log         zerolog.Logger
}

func NewHandlers(sessions *session.Store, coordinator *checkout.Coordinator, dispatcher *dispatch.Dispatcher) *Handlers {
	return &Handlers{
		sessions:    sessions,
		coordinator: coordinator,
		dispatcher:  dispatcher,
		log:         logging.WithComponent("api"),
	}
}

type sessionView struct {
	SessionID         string  `json:"session_id"`
	Identity          string  `json:"identity"`
	State             string  `json:"state"`
	ItemCount         int     `json:"item_count"`
	Total             float64 `json:"total"`
	FaceVerified      bool    `json:"face_verified"`
	BiometricVerified bool    `json:"biometric_verified"`
	Cart              []cartLineView `json:"cart"`
}

type cartLineView struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

func viewOf(s session.Session) sessionView {
	cart := make([]cartLineView, 0, len(s.Cart))
	for _, line := range s.Cart {
		cart = append(cart, cartLineView{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}

	return sessionView{
		SessionID:         s.ID,
		Identity:          s.Identity,
		State:             s.State.String(),
		ItemCount:         s.ItemCount(),
		Total:             s.Total(),
		FaceVerified:      s.FaceVerified,
		BiometricVerified: s.BiometricVerified,
		Cart:              cart,
	}
}

func (h *Handlers) PingHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.List()
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, viewOf(s))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(views),
		"sessions": views,
	})
}

func (h *Handlers) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")

	s, ok := h.sessions.Get(identity)
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	respondJSON(w, http.StatusOK, viewOf(s))
}

// CheckoutHandler triggers payment for a session. It validates the request
// synchronously, then runs the biometric wait and commit in the background;
// progress is visible through the session state and the sensor flow receives
// the verification token from this response.
func (h *Handlers) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")

	token, err := h.coordinator.RequestCheckout(identity)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			respondError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, checkout.ErrEmptyCart):
			respondError(w, http.StatusBadRequest, "cart is empty")
		case errors.Is(err, checkout.ErrWrongState):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	go func() {
		if err := h.coordinator.CompleteCheckout(context.Background(), identity, token); err != nil {
			h.log.Warn().Err(err).Str("identity", identity).Msg("checkout did not complete")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"token": token,
		"state": session.AwaitingBiometric.String(),
	})
}

type biometricScanRequest struct {
	Token         string `json:"token"`
	FingerprintID string `json:"fingerprint_id"`
}

// BiometricScanHandler is the endpoint the fingerprint sensor posts to.
func (h *Handlers) BiometricScanHandler(w http.ResponseWriter, r *http.Request) {
	var req biometricScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" || req.FingerprintID == "" {
		respondError(w, http.StatusBadRequest, "token and fingerprint_id are required")
		return
	}

	err := h.coordinator.SubmitReading(checkout.Reading{
		Token:         req.Token,
		FingerprintID: req.FingerprintID,
	})
	if err != nil {
		respondError(w, http.StatusNotFound, "no checkout waiting on this token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

type frameIngestRequest struct {
	Regions []frameRegion `json:"regions"`
}

type frameRegion struct {
	Kind  string `json:"kind"` // "face" or "product"
	Image []byte `json:"image"`
}

// FrameIngestHandler accepts one camera frame from the capture layer.
// Frames must arrive in capture order from a single pipeline; the debounce
// streak logic depends on per-identity ordering.
func (h *Handlers) FrameIngestHandler(w http.ResponseWriter, r *http.Request) {
	var req frameIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	frame := dispatch.Frame{CapturedAt: time.Now()}
	for _, region := range req.Regions {
		var kind dispatch.RegionKind
		switch region.Kind {
		case "face":
			kind = dispatch.FaceRegion
		case "product":
			kind = dispatch.ProductRegion
		default:
			respondError(w, http.StatusBadRequest, "region kind must be face or product")
			return
		}
		frame.Regions = append(frame.Regions, dispatch.Region{Kind: kind, Image: region.Image})
	}

	h.dispatcher.ProcessFrame(r.Context(), frame)

	respondJSON(w, http.StatusOK, map[string]int{"regions": len(frame.Regions)})
}

func (h *Handlers) StatsHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.dispatcher.Stats())
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already out; nothing useful left to do.
		return
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
