// Package gateway is the console's only path to the clinical REST backend.
// Every call prefixes the configured base URL, attaches the caller's bearer
// token from the context, and returns the backend's failure unchanged as an
// *APIError. There are no retries. Decoded responses are checked against
// their validate tags so malformed payloads fail here instead of surfacing
// as empty fields in a view.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/radconsole/internal/platform/validation"
)

// maxErrorBody caps how much of an error response is read for its detail.
const maxErrorBody = 64 * 1024

// Params is a flat query parameter map. Nil values, nil pointers, and empty
// strings are omitted when encoded.
type Params map[string]any

type Client struct {
	baseURL        string
	http           *http.Client
	logger         zerolog.Logger
	onUnauthorized func(ctx context.Context)
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets a per-request timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithUnauthorizedHook registers fn to run whenever the backend answers 401.
// The console uses it to drop the caller's session.
func WithUnauthorizedHook(fn func(ctx context.Context)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.baseURL }

type tokenKey struct{}

// WithToken returns a context whose gateway calls carry token as bearer.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token stored by WithToken.
func TokenFromContext(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// URL builds the absolute backend URL for path and params.
func (c *Client) URL(path string, params Params) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if q := EncodeParams(params); q != "" {
		u += "?" + q
	}
	return u
}

// EncodeParams serializes p as a query string with keys in sorted order.
func EncodeParams(p Params) string {
	if len(p) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		s, ok := paramString(p[k])
		if !ok {
			continue
		}
		values.Add(k, s)
	}
	return values.Encode()
}

func paramString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		v = rv.Elem().Interface()
	}

	var s string
	switch t := v.(type) {
	case string:
		s = t
	case fmt.Stringer:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	case time.Time:
		if t.IsZero() {
			return "", false
		}
		s = t.Format(time.RFC3339)
	default:
		s = fmt.Sprint(t)
	}
	if s == "" {
		return "", false
	}
	return s, true
}

func (c *Client) Get(ctx context.Context, path string, params Params, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, params, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, body, out)
}

// PostParams is Post with query parameters, for backend endpoints that take
// their arguments in the query string.
func (c *Client) PostParams(ctx context.Context, path string, params Params, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, params, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, nil, body, out)
}

// PutParams is Put with query parameters.
func (c *Client) PutParams(ctx context.Context, path string, params Params, body, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, params, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, params Params, body, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
		contentType = "application/json"
	}

	resp, err := c.send(ctx, method, path, params, reader, contentType, -1)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.decode(path, resp, out)
}

// send performs the request and turns non-2xx responses into *APIError.
// On success the caller owns resp.Body.
func (c *Client) send(ctx context.Context, method, path string, params Params, body io.Reader, contentType string, length int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, params), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if length >= 0 {
		req.ContentLength = length
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if tok := TokenFromContext(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("backend request failed")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode, Detail: parseDetail(raw)}
	c.logger.Warn().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("detail", apiErr.Detail).
		Msg("backend error response")

	if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
		c.onUnauthorized(ctx)
	}
	return nil, apiErr
}

func (c *Client) decode(path string, resp *http.Response, out any) error {
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return &DecodeError{Path: path, Err: errors.New("empty response body")}
		}
		return &DecodeError{Path: path, Err: err}
	}
	if err := check(out); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

// check validates a decoded value: a struct, or each struct element of a
// slice. Maps and scalars carry no schema and pass.
func check(out any) error {
	rv := reflect.ValueOf(out)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		return validation.Struct(rv.Addr().Interface())
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			el := rv.Index(i)
			for el.Kind() == reflect.Pointer {
				if el.IsNil() {
					return fmt.Errorf("item %d: null", i)
				}
				el = el.Elem()
			}
			if el.Kind() != reflect.Struct {
				continue
			}
			if err := validation.Struct(el.Addr().Interface()); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	}
	return nil
}

// Blob is a raw backend payload such as a preview image.
type Blob struct {
	ContentType string
	Data        []byte
}

// Fetch reads a binary resource fully into memory.
func (c *Client) Fetch(ctx context.Context, path string) (*Blob, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil, nil, "", -1)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Blob{ContentType: resp.Header.Get("Content-Type"), Data: data}, nil
}

// Stream is an open binary response. The caller must Close it.
type Stream struct {
	io.ReadCloser
	ContentType        string
	ContentLength      int64
	ContentDisposition string
}

// Open starts a binary GET and hands back the body for pass-through copying.
func (c *Client) Open(ctx context.Context, path string) (*Stream, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil, nil, "", -1)
	if err != nil {
		return nil, err
	}
	return &Stream{
		ReadCloser:         resp.Body,
		ContentType:        resp.Header.Get("Content-Type"),
		ContentLength:      resp.ContentLength,
		ContentDisposition: resp.Header.Get("Content-Disposition"),
	}, nil
}
