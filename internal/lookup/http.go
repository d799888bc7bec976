package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"price-anomaly-repair/internal/model"
	"price-anomaly-repair/internal/repair"
)

const lookupPath = "/lookup"

// HTTPOptions parameterise the authoritative pricing endpoint client.
type HTTPOptions struct {
	BaseURL        string
	AuthHeader     string
	UserAgent      string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

// HTTP queries an authoritative pricing endpoint for corrected values. Calls
// are rate limited so repair runs never hammer the upstream.
type HTTP struct {
	opts    HTTPOptions
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewHTTP constructs the HTTP repair lookup.
func NewHTTP(opts HTTPOptions, logger zerolog.Logger) *HTTP {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	rps := opts.RequestsPerSec
	if rps <= 0 {
		rps = 3.0
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}

	return &HTTP{
		opts:    opts,
		logger:  logger.With().Str("component", "http_lookup").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

type lookupRequest struct {
	Provider string `json:"provider"`
	Item     string `json:"item"`
	Region   string `json:"region,omitempty"`
	Category string `json:"category,omitempty"`
	Issue    string `json:"issue"`
}

type lookupResponse struct {
	Found  bool                       `json:"found"`
	Prices map[string]decimal.Decimal `json:"prices"`
}

// LookupPrices issues one lookup call. Ordinary not-found cases return
// repair.ErrNotFound; other errors indicate infrastructure failure.
func (h *HTTP) LookupPrices(ctx context.Context, rec model.Record, issue model.Issue) (map[string]decimal.Decimal, error) {
	if h.baseURL == "" {
		return nil, errors.New("lookup base url not configured")
	}

	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(lookupRequest{
		Provider: rec.Provider,
		Item:     rec.Item,
		Region:   rec.Region,
		Category: rec.Category,
		Issue:    string(issue),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+lookupPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if h.opts.AuthHeader != "" {
		req.Header.Set("Authorization", h.opts.AuthHeader)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, repair.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("lookup api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var res lookupResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("parse lookup response: %w", err)
	}
	if !res.Found || len(res.Prices) == 0 {
		return nil, repair.ErrNotFound
	}

	h.logger.Debug().Str("provider", rec.Provider).Str("item", rec.Item).
		Int("fields", len(res.Prices)).Msg("corrected value fetched")
	return res.Prices, nil
}

var _ repair.Lookup = (*HTTP)(nil)
