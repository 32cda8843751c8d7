package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/publicsuffix"

	"github.com/samhoque/apikit/pkg/storage"
)

// DefaultBaseURL is the API root used when no other base URL is configured.
const DefaultBaseURL = "https://mock-server.free.beeceptor.com"

// DefaultTimeout bounds every request that does not set its own timeout.
const DefaultTimeout = 30 * time.Second

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var tracer = otel.Tracer("github.com/samhoque/apikit/pkg/httpclient")

// Requester is the verb surface of Client.
type Requester interface {
	Get(ctx context.Context, endpoint string, cfg *RequestConfig) (*Response, error)
	Post(ctx context.Context, endpoint string, body any, cfg *RequestConfig) (*Response, error)
	Put(ctx context.Context, endpoint string, body any, cfg *RequestConfig) (*Response, error)
	Patch(ctx context.Context, endpoint string, body any, cfg *RequestConfig) (*Response, error)
	Delete(ctx context.Context, endpoint string, cfg *RequestConfig) (*Response, error)
}

type Client struct {
	client   *http.Client
	baseURL  string
	headers  map[string]string
	timeout  time.Duration
	store    storage.Store
	logger   zerolog.Logger
	language string
	strict   bool
	jar      bool
}

var _ Requester = (*Client)(nil)

// NewClient creates a new HTTP client with default configurations
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		client:  &http.Client{},
		baseURL: baseURL,
		headers: map[string]string{
			"Content-Type": "application/json",
		},
		timeout: DefaultTimeout,
		logger:  log.Logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		c.store = storage.NewMemoryStore()
	}
	if c.jar && c.client.Jar == nil {
		if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
			c.client.Jar = jar
		}
	}

	return c
}

// BaseURL returns the root relative endpoints are appended to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, endpoint string, cfg *RequestConfig) (*Response, error) {
	return c.Do(ctx, http.MethodGet, endpoint, nil, cfg)
}

// Post performs a POST request
func (c *Client) Post(ctx context.Context, endpoint string, body any, cfg *RequestConfig) (*Response, error) {
	return c.Do(ctx, http.MethodPost, endpoint, body, cfg)
}

// Put performs a PUT request
func (c *Client) Put(ctx context.Context, endpoint string, body any, cfg *RequestConfig) (*Response, error) {
	return c.Do(ctx, http.MethodPut, endpoint, body, cfg)
}

// Patch performs a PATCH request
func (c *Client) Patch(ctx context.Context, endpoint string, body any, cfg *RequestConfig) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, endpoint, body, cfg)
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, endpoint string, cfg *RequestConfig) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, endpoint, nil, cfg)
}

// Do performs a request and normalises the outcome. The returned error, when
// non-nil, is always an *Error.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any, cfg *RequestConfig) (*Response, error) {
	if cfg == nil {
		cfg = &RequestConfig{}
	}
	target := buildURL(c.baseURL, endpoint, cfg.Params)

	ctx, span := tracer.Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", target),
		))
	defer span.End()

	start := time.Now()
	resp, apiErr := c.do(ctx, method, target, body, cfg)
	if apiErr != nil {
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Message)
		span.SetAttributes(attribute.Int("http.response.status_code", apiErr.Status))
		c.logger.Debug().
			Str("method", method).
			Str("url", target).
			Int("status", apiErr.Status).
			Dur("elapsed", time.Since(start)).
			Msg(apiErr.Message)
		return nil, apiErr
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	c.logger.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.Status).
		Dur("elapsed", time.Since(start)).
		Msg("request completed")
	return resp, nil
}

// do performs the HTTP request. The per-call deadline is attached to the request
// context so a timed-out request is cancelled at the transport.
func (c *Client) do(ctx context.Context, method, target string, body any, cfg *RequestConfig) (*Response, *Error) {
	encoded, err := encodeBody(body)
	if err != nil {
		return nil, networkError(err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, encoded.reader)
	if err != nil {
		return nil, networkError(err)
	}
	c.setHeaders(req, encoded, cfg)

	if !cfg.SkipAuth {
		if token := c.AuthToken(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, httpResp.Body)
		httpResp.Body.Close()
	}()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, statusError(ctx, httpResp)
	}
	return c.parseResponse(ctx, httpResp)
}

func (c *Client) setHeaders(req *http.Request, encoded encodedBody, cfg *RequestConfig) {
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}

	if encoded.binary {
		req.Header.Del("Content-Type")
	}
	if encoded.contentType != "" {
		req.Header.Set("Content-Type", encoded.contentType)
	}

	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
}
