// Package upstream executes outbound calls against configured sources.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/artpar/fusion/domain/source"
	"github.com/artpar/fusion/ports"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 50 << 20 // 50 MiB

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.Code)
}

// Client fetches JSON payloads from upstream sources.
type Client struct {
	http *http.Client
}

// Config tunes the shared outbound client.
type Config struct {
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// NewClient creates the outbound HTTP client. The client itself
// carries no timeout; deadlines come from each source's configured
// budget via the request context.
func NewClient(cfg Config) *Client {
	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 100
	}
	idleTimeout := cfg.IdleConnTimeout
	if idleTimeout == 0 {
		idleTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        maxIdle,
		MaxIdleConnsPerHost: maxIdle,
		IdleConnTimeout:     idleTimeout,
	}

	return &Client{
		http: &http.Client{Transport: transport},
	}
}

// Fetch composes and executes the call for one source and returns the
// upstream's JSON payload. Non-2xx statuses, unreachable upstreams,
// and non-JSON bodies are errors.
func (c *Client) Fetch(ctx context.Context, src source.Source) ([]byte, error) {
	if src.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, src.Timeout)
		defer cancel()
	}

	req, err := NewRequest(ctx, src)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", src.Code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", src.Code, err)
	}

	body = bytes.TrimSpace(body)
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("source %s returned invalid JSON", src.Code)
	}
	return body, nil
}

// NewRequest maps a source onto its outbound HTTP request: query
// params, headers, auth variant, body variant. The method is always
// GET, even with a body attached; that is the upstream protocol's
// contract.
func NewRequest(ctx context.Context, src source.Source) (*http.Request, error) {
	u, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("source %s url: %w", src.Code, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("source %s url %q is not an absolute HTTP URL", src.Code, src.URL)
	}

	q := u.Query()
	for k, v := range src.Params {
		q.Set(k, v)
	}
	if src.Auth.Kind == source.AuthParam {
		q.Set(src.Auth.ParamKey, src.Auth.ParamValue)
	}
	u.RawQuery = q.Encode()

	body, contentType, err := encodeBody(src.Body)
	if err != nil {
		return nil, fmt.Errorf("source %s body: %w", src.Code, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("compose %s request: %w", src.Code, err)
	}

	for k, v := range src.Headers {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	switch src.Auth.Kind {
	case source.AuthBasic:
		req.SetBasicAuth(src.Auth.Username, src.Auth.Password)
	case source.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+src.Auth.Token)
	}

	return req, nil
}

func encodeBody(b source.Body) (io.Reader, string, error) {
	switch b.Kind {
	case source.BodyNone:
		return nil, "", nil
	case source.BodyText:
		return strings.NewReader(b.Text), "", nil
	case source.BodyJSON:
		return bytes.NewReader(b.JSON), "application/json", nil
	case source.BodyForm:
		form := url.Values{}
		for k, v := range b.Fields {
			form.Set(k, v)
		}
		return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
	case source.BodyMulti:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for k, v := range b.Fields {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", err
			}
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	}
	return nil, "", fmt.Errorf("unknown body kind %q", b.Kind)
}

// IsTimeout reports whether an upstream error was a deadline miss,
// which the dispatcher maps to BadRequest instead of Internal.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Ensure interface compliance.
var _ ports.Fetcher = (*Client)(nil)
