package httpclient

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/samhoque/apikit/pkg/storage"
)

type Option func(*Client)

// WithTimeout sets the default per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHeader adds custom header
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithStorage sets the store holding the auth token. Defaults to an
// in-memory store.
func WithStorage(store storage.Store) Option {
	return func(c *Client) {
		c.store = store
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCookieJar keeps cookies set by the server across requests, scoped with
// the public suffix list.
func WithCookieJar() Option {
	return func(c *Client) {
		c.jar = true
	}
}

// WithLanguage sends tag as Accept-Language on every request.
func WithLanguage(tag language.Tag) Option {
	return func(c *Client) {
		if tag != language.Und {
			c.language = tag.String()
		}
	}
}

// WithStrictDecoding reports success-body decode failures in
// Response.DecodeErr and logs token read failures as warnings instead of
// dropping them silently.
func WithStrictDecoding(strict bool) Option {
	return func(c *Client) {
		c.strict = strict
	}
}
