package inference

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
)

const (
	ProviderHTTP = "http"

	maxResponseBytes = 1 << 20
)

type generateRequest struct {
	Message        string          `json:"message"`
	PatientContext *PatientContext `json:"patient_context"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// HTTPClient talks to a backend that accepts
// POST {"message", "patient_context"} and answers {"response"}.
type HTTPClient struct {
	url     string
	timeout time.Duration
	client  *http.Client
	logger  zerolog.Logger
}

type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.client = c }
}

// NewHTTPClient returns a client for url. An empty url is allowed: every Ask
// then fails with KindUnconfigured without touching the network.
func NewHTTPClient(url string, timeout time.Duration, logger zerolog.Logger, opts ...HTTPOption) *HTTPClient {
	h := &HTTPClient{
		url:     strings.TrimSpace(url),
		timeout: timeout,
		client:  &http.Client{},
		logger:  logger.With().Str("component", "inference").Str("provider", ProviderHTTP).Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPClient) Configured() bool { return h.url != "" }

func (h *HTTPClient) Ask(ctx context.Context, message string, pc PatientContext) (reply string, err error) {
	start := time.Now()
	defer func() { observe(ProviderHTTP, start, err) }()

	if h.url == "" {
		return "", fail(KindUnconfigured, errors.New("no inference endpoint configured"))
	}
	if message == "" {
		return "", fail(KindBackendError, errors.New("empty message"))
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(generateRequest{Message: message, PatientContext: &pc})
	if err != nil {
		return "", fail(KindBackendError, fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return "", fail(KindUnreachable, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		f := classifyTransport(ctx, err)
		h.logger.Warn().Err(err).Str("kind", string(f.Kind)).Msg("inference request failed")
		return "", f
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		f := classifyTransport(ctx, err)
		h.logger.Warn().Err(err).Str("kind", string(f.Kind)).Msg("reading inference response failed")
		return "", f
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.logger.Warn().Int("status", resp.StatusCode).Msg("inference backend returned error status")
		return "", fail(KindBackendError, fmt.Errorf("backend status %d: %s", resp.StatusCode, truncate(string(body), 256)))
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fail(KindBackendError, fmt.Errorf("decode response: %w", err))
	}
	if out.Response == "" {
		return "", fail(KindBackendError, errors.New("backend returned an empty response"))
	}

	return out.Response, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
