package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/h2non/filetype"
)

// Params are query parameters. Nil values, including typed nil pointers, are
// left out of the query string.
type Params map[string]any

// RequestConfig holds per-call settings. A nil config is the same as the
// zero value.
type RequestConfig struct {
	Params   Params
	SkipAuth bool
	// Timeout overrides the client default when positive.
	Timeout time.Duration
	// Headers are applied last and win over every default.
	Headers map[string]string
}

// File is one file part of a Multipart body.
type File struct {
	FieldName string
	FileName  string
	Content   []byte
	// ContentType is sniffed from Content when empty.
	ContentType string
}

// Multipart is a multipart/form-data request body.
type Multipart struct {
	Fields map[string]string
	Files  []File
}

type encodedBody struct {
	reader      io.Reader
	contentType string
	binary      bool
}

func isAbsoluteURL(endpoint string) bool {
	return strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
}

// buildURL resolves endpoint against baseURL and appends params.
func buildURL(baseURL, endpoint string, params Params) string {
	target := endpoint
	if !isAbsoluteURL(endpoint) {
		target = baseURL + endpoint
	}
	if len(params) == 0 {
		return target
	}

	values := url.Values{}
	for k, v := range params {
		for _, s := range paramValues(v) {
			values.Add(k, s)
		}
	}
	query := values.Encode()
	if query == "" {
		return target
	}
	if strings.Contains(target, "?") {
		return target + "&" + query
	}
	return target + "?" + query
}

func paramValues(v any) []string {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, paramValues(rv.Index(i).Interface())...)
		}
		return out
	}
	return []string{fmt.Sprint(rv.Interface())}
}

// encodeBody turns a request body into a reader. Readers and byte slices pass
// through untouched, multipart bodies carry their own boundary content type and
// everything else is encoded as JSON.
func encodeBody(body any) (encodedBody, error) {
	switch b := body.(type) {
	case nil:
		return encodedBody{}, nil
	case *Multipart:
		if b == nil {
			return encodedBody{}, nil
		}
		return b.encode()
	case Multipart:
		return b.encode()
	case []byte:
		return encodedBody{reader: bytes.NewReader(b), binary: true}, nil
	case io.Reader:
		return encodedBody{reader: b, binary: true}, nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return encodedBody{}, fmt.Errorf("encode request body: %w", err)
		}
		return encodedBody{reader: bytes.NewReader(raw), contentType: "application/json"}, nil
	}
}

func (m Multipart) encode() (encodedBody, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, m.Fields[k]); err != nil {
			return encodedBody{}, fmt.Errorf("write field %q: %w", k, err)
		}
	}

	for _, f := range m.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.FieldName, f.FileName))
		h.Set("Content-Type", f.contentType())
		part, err := w.CreatePart(h)
		if err != nil {
			return encodedBody{}, fmt.Errorf("create part %q: %w", f.FieldName, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return encodedBody{}, fmt.Errorf("write part %q: %w", f.FieldName, err)
		}
	}
	if err := w.Close(); err != nil {
		return encodedBody{}, fmt.Errorf("close multipart body: %w", err)
	}

	return encodedBody{
		reader:      &buf,
		contentType: w.FormDataContentType(),
		binary:      true,
	}, nil
}

func (f File) contentType() string {
	if f.ContentType != "" {
		return f.ContentType
	}
	kind, err := filetype.Match(f.Content)
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}
	return kind.MIME.Value
}
