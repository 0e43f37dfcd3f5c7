package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	errs "phototimer/pkg/errors"
	"phototimer/pkg/logger"
	"phototimer/pkg/ratelimit"
	"phototimer/pkg/retry"
)

// Response is a fully read HTTP response body
type Response struct {
	Body        []byte
	ContentType string
	// URL is the final URL after redirects
	URL *url.URL
}

// Client performs rate limited, retried GET requests and classifies
// failures as *errors.Error values
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter throttles requests through l
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithRetry sets the retry policy; nil disables retries
func WithRetry(cfg *retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithHeader sets a header sent with every request
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// NewClient creates a Client with browser-like default headers
func NewClient(timeout time.Duration, userAgent string, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers: map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
		},
		limiter: ratelimit.Unlimited{},
		logger:  log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches rawURL and reads at most maxBytes of body
func (c *Client) Get(ctx context.Context, rawURL string, maxBytes int64) (*Response, error) {
	target, err := url.Parse(rawURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeClient,
			Message: fmt.Sprintf("not an http(s) URL: %q", rawURL),
		}
	}

	attempts := c.retry
	if attempts == nil {
		attempts = &retry.Config{MaxAttempts: 1, Logger: c.logger}
	}

	return retry.DoWithResult(ctx, attempts, func(ctx context.Context) (*Response, error) {
		return c.getOnce(ctx, target, maxBytes)
	})
}

func (c *Client) getOnce(ctx context.Context, target *url.URL, maxBytes int64) (*Response, error) {
	if err := c.wait(ctx, target.String()); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &errs.Error{Type: errs.ErrorTypeClient, Message: err.Error()}
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	body, err := readLimited(resp.Body, maxBytes)
	if err != nil {
		return nil, err
	}

	return &Response{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		URL:         resp.Request.URL,
	}, nil
}

func (c *Client) wait(ctx context.Context, target string) error {
	if c.limiter.Allow() {
		return nil
	}
	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	logger.LogRateLimit(c.logger, target, time.Since(start).Milliseconds())
	return nil
}

func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: err.Error(),
		}
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, float64(duration.Microseconds())/1000)
	return resp, nil
}

func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return &errs.Error{Type: errs.ErrorTypeNotFound, Message: "resource not found", Code: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "rate limit exceeded", Code: resp.StatusCode}
	case resp.StatusCode >= 500:
		return &errs.Error{Type: errs.ErrorTypeServerError, Message: "server error", Code: resp.StatusCode}
	default:
		return &errs.Error{
			Type:    errs.ErrorTypeClient,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, &errs.Error{Type: errs.ErrorTypeNetwork, Message: fmt.Sprintf("read body: %v", err)}
	}
	if int64(len(data)) > maxBytes {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeClient,
			Message: fmt.Sprintf("response exceeds %d bytes", maxBytes),
		}
	}
	return data, nil
}

// Classify returns the *errors.Error inside err, if any
func Classify(err error) *errs.Error {
	var classified *errs.Error
	if errors.As(err, &classified) {
		return classified
	}
	return nil
}
