// Package ollama is a small HTTP client for the Ollama REST API.
//
// Streaming calls (Generate, Chat) hand back the raw NDJSON body; callers
// decide how to read it. Non-streaming calls decode their JSON answers.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is where a stock Ollama install listens.
const DefaultBaseURL = "http://127.0.0.1:11434"

// maxErrorBody caps how much of a non-2xx body is kept for diagnostics.
const maxErrorBody = 4096

// Client talks to one Ollama server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient constructs a client for baseURL. connectTimeout bounds TCP
// connection setup only; request deadlines come from the caller's context.
func NewClient(baseURL string, connectTimeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout=0: every call carries a context deadline instead, so long
	// generations and pulls are not cut off by a client-wide limit.
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: tr, Timeout: 0},
		log:        zerolog.Nop(),
	}
}

// SetLogger installs a logger for client diagnostics.
func (c *Client) SetLogger(l zerolog.Logger) { c.log = l }

// BaseURL returns the server address this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// StatusError is returned for non-2xx answers.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	msg := strings.TrimSpace(e.Body)
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(msg), &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	if msg == "" {
		return "ollama http error: " + e.Status
	}
	return "ollama http error: " + e.Status + ": " + msg
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// UnavailableError means the server could not be reached at all.
type UnavailableError struct {
	URL string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("ollama unreachable at %s: %v", e.URL, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is a connection-level failure.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// do sends a request and returns the response when the status is 2xx.
// The caller owns resp.Body.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UnavailableError{URL: c.baseURL, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(b)}
	}
	return resp, nil
}

// getJSON performs a request and decodes a JSON answer into out.
func (c *Client) getJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Version returns the server version string from GET /api/version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var v struct {
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, http.MethodGet, "/api/version", nil, &v); err != nil {
		return "", err
	}
	return v.Version, nil
}

// Health reports whether the server answers GET /api/version.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/version", nil)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return resp.Body.Close()
}

// WaitHealthy polls Health up to attempts times, sleeping delay between
// tries. It returns the last error when the server never comes up.
func (c *Client) WaitHealthy(ctx context.Context, attempts int, delay time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = c.Health(hctx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Debug().Int("attempt", i).Int("of", attempts).Err(err).Msg("ollama not ready")
		if i == attempts {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}
