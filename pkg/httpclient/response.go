package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Response is the normalised result of a 2xx call.
type Response struct {
	// Data is the decoded JSON body, the raw text for other content types, or
	// nil for 204/205 and bodies that failed to decode.
	Data       any
	Status     int
	StatusText string
	Headers    http.Header
	// DecodeErr is set when strict decoding is on and the body could not be
	// decoded.
	DecodeErr error
}

func (c *Client) parseResponse(ctx context.Context, r *http.Response) (*Response, *Error) {
	resp := &Response{
		Status:     r.StatusCode,
		StatusText: statusText(r),
		Headers:    r.Header,
	}
	if r.StatusCode == http.StatusNoContent || r.StatusCode == http.StatusResetContent {
		return resp, nil
	}

	data, err := decodeBody(r)
	if err != nil {
		var readErr *bodyReadError
		if errors.As(err, &readErr) {
			return nil, transportError(ctx, readErr.err)
		}
		if c.strict {
			resp.DecodeErr = err
			c.logger.Warn().Err(err).Int("status", r.StatusCode).Msg("failed to decode response body")
		} else {
			c.logger.Debug().Err(err).Int("status", r.StatusCode).Msg("dropping undecodable response body")
		}
		return resp, nil
	}
	resp.Data = data
	return resp, nil
}

// bodyReadError marks a failure to read the body, as opposed to a body that
// was read but could not be decoded.
type bodyReadError struct {
	err error
}

func (e *bodyReadError) Error() string { return "read response body: " + e.err.Error() }

func (e *bodyReadError) Unwrap() error { return e.err }

// decodeBody reads the body as JSON when the content type says so and as text
// otherwise. An empty JSON body decodes to nil. Read failures are returned as
// *bodyReadError.
func decodeBody(r *http.Response) (any, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, &bodyReadError{err: err}
	}
	if !isJSON(r.Header.Get("Content-Type")) {
		return string(raw), nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

// statusText returns the reason phrase sent by the server, falling back to
// the standard text for the code.
func statusText(r *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(r.Status, strconv.Itoa(r.StatusCode)))
	if text == "" {
		text = http.StatusText(r.StatusCode)
	}
	return text
}
