// Package scorer talks to the remote survival scoring service.
package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/survival-check/internal/logging"
	"github.com/example/survival-check/internal/passenger"
)

const (
	predictPath     = "/predict"
	maxResponseSize = 1 << 20
)

// Client issues prediction requests. It keeps no state between calls and is
// safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every exchange. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New returns a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("scorer")
	return c, nil
}

// BaseURL returns the normalised service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Predict performs one POST /predict exchange for in. Every failure is
// returned as an *Error; nothing is retried.
func (c *Client) Predict(ctx context.Context, in passenger.Input) (Result, error) {
	requestID, _ := logging.RequestIDFromContext(ctx)
	opLogger := logging.WithOperation(c.logger, "scorer.predict", requestID)

	body, err := json.Marshal(in)
	if err != nil {
		return Result{}, &Error{Kind: KindTransport, Message: "encode request", Err: err}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+predictPath, bytes.NewReader(body))
	if err != nil {
		return Result{}, &Error{Kind: KindTransport, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		serr := transportError(ctx, err)
		opLogger.Warn("prediction request failed", zap.Error(serr))
		return Result{}, serr
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		serr := transportError(ctx, err)
		opLogger.Warn("reading prediction response failed", zap.Error(serr))
		return Result{}, serr
	}

	fields := []zap.Field{
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(started)),
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, ok := detailMessage(payload)
		if !ok {
			msg = genericMessage(resp.StatusCode)
		}
		opLogger.Warn("scoring service rejected request", append(fields, zap.String("detail", msg))...)
		return Result{}, &Error{Kind: KindServer, Message: msg, Status: resp.StatusCode}
	}

	result, err := DecodeResult(payload)
	if err != nil {
		opLogger.Warn("unexpected prediction response", append(fields, zap.Error(err))...)
		return Result{}, &Error{Kind: KindDecode, Message: "unexpected response shape", Status: resp.StatusCode, Err: err}
	}

	opLogger.Debug("prediction received", append(fields,
		zap.Int("prediction", result.Prediction),
		zap.Float64("survival_probability", result.SurvivalProbability),
	)...)
	return result, nil
}

// Ping reports whether the service root answers with a 2xx status.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return logging.NewOperationError("scorer.ping", "", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return logging.NewOperationError("scorer.ping", "", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return logging.Errorf("scorer.ping", "", "unexpected status %d", resp.StatusCode)
	}
	return nil
}

func transportError(ctx context.Context, err error) *Error {
	if isTimeout(ctx, err) {
		return &Error{Kind: KindTimeout, Message: "scoring service did not answer in time", Err: err}
	}
	return &Error{Kind: KindTransport, Message: "scoring service unreachable", Err: err}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
