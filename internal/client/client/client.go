package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/logging"
)

const (
	DefaultTimeout     = 12 * time.Second
	defaultMaxBodySize = 1 << 20
)

// Config configures a Client.
type Config struct {
	// BaseURL is the boundary's root, e.g. https://custody.example.com.
	BaseURL string
	// HTTPClient executes requests. When nil a plain client is used; the
	// per-call Timeout applies either way.
	HTTPClient *http.Client
	Timeout    time.Duration
	// Unavailable is wrapped into transport and 5xx errors. Defaults to
	// common.ErrUnavailable.
	Unavailable error
	// NotFound is wrapped into 404 errors. Defaults to common.ErrNotFound.
	NotFound     error
	MaxBodyBytes int64
	Logger       logging.Logger
}

// Client sends JSON requests to one boundary.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
	unavailable  error
	notFound     error
	maxBodyBytes int64
	log          logging.Logger
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("client: BaseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("client: BaseURL %q must be a valid URL", baseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("client: BaseURL scheme must be http or https")
	}
	if parsed.User != nil {
		return nil, errors.New("client: BaseURL must not include user info")
	}

	c := &Client{
		baseURL:      baseURL,
		httpClient:   cfg.HTTPClient,
		timeout:      cfg.Timeout,
		unavailable:  cfg.Unavailable,
		notFound:     cfg.NotFound,
		maxBodyBytes: cfg.MaxBodyBytes,
		log:          logging.OrNop(cfg.Logger),
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.unavailable == nil {
		c.unavailable = common.ErrUnavailable
	}
	if c.notFound == nil {
		c.notFound = common.ErrNotFound
	}
	if c.maxBodyBytes <= 0 {
		c.maxBodyBytes = defaultMaxBodySize
	}
	return c, nil
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Do sends in as the JSON body (nil for none) and decodes a 2xx body into
// out (nil to discard). It returns the HTTP status so callers can tell 200
// from 204.
func (c *Client) Do(ctx context.Context, method, path string, in, out any, opts ...RequestOption) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader = http.NoBody
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(common.RequestIDHeader, uuid.NewString())
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn(ctx, "request failed", "method", method, "path", path, "error", err)
		return 0, fmt.Errorf("%w: %s %s: %v", c.unavailable, method, path, err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, c.maxBodyBytes)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			_, _ = io.Copy(io.Discard, limited)
			return resp.StatusCode, nil
		}
		if err := json.NewDecoder(limited).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: decode %s response: %v", c.unavailable, path, err)
		}
		return resp.StatusCode, nil
	}

	raw, _ := io.ReadAll(io.LimitReader(limited, 4096))
	err = c.mapStatus(resp, raw)
	c.log.Debug(ctx, "request rejected", "method", method, "path", path, "status", resp.StatusCode, "class", common.Classify(err))
	return resp.StatusCode, err
}

// ErrorBody is the JSON shape of 4xx and 5xx responses.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (c *Client) mapStatus(resp *http.Response, raw []byte) error {
	var eb ErrorBody
	_ = json.Unmarshal(raw, &eb)
	detail := eb.Message
	if detail == "" {
		detail = eb.Error
	}
	if detail == "" {
		detail = strings.TrimSpace(string(raw))
	}
	if detail == "" {
		detail = resp.Status
	}

	var sentinel error
	switch code := resp.StatusCode; {
	case code >= 500:
		sentinel = c.unavailable
	case eb.Error == common.CodeNameTaken:
		sentinel = common.ErrNameTaken
	case eb.Error == common.CodeInvalidFormat:
		sentinel = common.ErrInvalidName
	case eb.Error == common.CodeAlreadyLinked:
		sentinel = common.ErrAlreadyLinked
	case eb.Error == common.CodeInsufficientFunds, code == http.StatusPaymentRequired:
		sentinel = common.ErrInsufficientFunds
	case eb.Error == common.CodeBlacklisted:
		sentinel = common.ErrBlacklisted
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", detail, &common.RateLimitedError{RetryAfter: retryAfter(resp.Header.Get("Retry-After"))})
	case code == http.StatusUnauthorized:
		sentinel = common.ErrUnauthorized
	case code == http.StatusForbidden:
		sentinel = common.ErrForbidden
	case code == http.StatusNotFound:
		sentinel = c.notFound
	case code == http.StatusConflict:
		sentinel = common.ErrConflict
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		sentinel = common.ErrInvalid
	default:
		sentinel = common.ErrInternal
	}
	return fmt.Errorf("%w: %s", sentinel, detail)
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
