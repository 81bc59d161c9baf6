// Package recognition wraps the face and product recognition servers
// behind a typed gateway. Oracle failures of any kind (timeout, transport
// error, non-success response) translate to an absent result; the caller
// never sees an error. Each frame is a fresh opportunity, so there are no
// retries here.
package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartstore/engine/internal/logging"
)

const defaultTimeout = 2 * time.Second

// Gateway is the narrow contract the frame pipeline depends on.
type Gateway interface {
	IdentifyFace(ctx context.Context, region []byte) (identity string, ok bool)
	IdentifyProduct(ctx context.Context, region []byte) (candidateID string, confidence float64, ok bool)
}

// HTTPGateway talks to the two recognition servers over HTTP.
type HTTPGateway struct {
	faceURL    string
	productURL string
	timeout    time.Duration
	httpClient *http.Client
	log        zerolog.Logger
}

// Config holds the oracle endpoints and the per-call timeout.
type Config struct {
	FaceURL    string
	ProductURL string
	Timeout    time.Duration
}

func NewHTTPGateway(cfg Config) *HTTPGateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	return &HTTPGateway{
		faceURL:    cfg.FaceURL,
		productURL: cfg.ProductURL,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: logging.WithComponent("recognition"),
	}
}

type identifyRequest struct {
	Image string `json:"image"`
}

type faceResponse struct {
	ClientID string `json:"client_id"`
}

type productResponse struct {
	ProductID  string  `json:"product_id"`
	Confidence float64 `json:"confidence"`
}

// IdentifyFace submits a face region to the face oracle. An empty client_id
// in the response means the face is unknown.
func (g *HTTPGateway) IdentifyFace(ctx context.Context, region []byte) (string, bool) {
	body, ok := g.post(ctx, g.faceURL, region)
	if !ok {
		return "", false
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		g.log.Debug().Err(err).Msg("face oracle returned malformed response")
		return "", false
	}

	if resp.ClientID == "" {
		return "", false
	}

	return resp.ClientID, true
}

// IdentifyProduct submits a scan-zone region to the product oracle.
func (g *HTTPGateway) IdentifyProduct(ctx context.Context, region []byte) (string, float64, bool) {
	body, ok := g.post(ctx, g.productURL, region)
	if !ok {
		return "", 0, false
	}

	var resp productResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		g.log.Debug().Err(err).Msg("product oracle returned malformed response")
		return "", 0, false
	}

	if resp.ProductID == "" {
		return "", 0, false
	}

	return resp.ProductID, resp.Confidence, true
}

func (g *HTTPGateway) post(ctx context.Context, url string, region []byte) ([]byte, bool) {
	reqBody := identifyRequest{
		Image: base64.StdEncoding.EncodeToString(region),
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		g.log.Debug().Err(err).Msg("failed to marshal oracle request")
		return nil, false
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		g.log.Debug().Err(err).Msg("failed to create oracle request")
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.log.Debug().Err(err).Str("url", url).Msg("oracle unreachable")
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.log.Debug().Int("status", resp.StatusCode).Str("url", url).Msg("oracle returned non-success")
		return nil, false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		g.log.Debug().Err(err).Msg("failed to read oracle response")
		return nil, false
	}

	return body, true
}
