// Package rest talks to a PostgREST-compatible relational API and a
// Supabase-style object storage API over HTTP. Both are addressed from a single
// project URL and authenticated with the same API key.
package rest

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

	"github.com/rs/zerolog"

	"github.com/tbourn/go-merchant-directory/internal/remote"
)

const (
	restPrefix    = "/rest/v1/"
	storagePrefix = "/storage/v1/object/"

	// DefaultBucket is the storage bucket holding menu images and logos.
	DefaultBucket = "menu-images"
)

// Options configures a Client.
type Options struct {
	URL     string
	APIKey  string
	Bucket  string
	Timeout time.Duration
	// HTTPClient overrides the default transport (tests).
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client implements remote.Backend and remote.Blobs.
type Client struct {
	base   *url.URL
	key    string
	bucket string
	http   *http.Client
	log    zerolog.Logger
}

var (
	_ remote.Backend = (*Client)(nil)
	_ remote.Blobs   = (*Client)(nil)
)

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.URL) == "" || strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("rest: url and api key are required")
	}
	u, err := url.Parse(strings.TrimRight(opts.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("rest: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("rest: unsupported scheme %q", u.Scheme)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	bucket := opts.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &Client{base: u, key: opts.APIKey, bucket: bucket, http: hc, log: opts.Logger}, nil
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    io.Reader
	ctype   string
	headers map[string]string
}

func (c *Client) do(ctx context.Context, op string, r request, out any) error {
	u := *c.base
	u.Path = c.base.Path + r.path
	if r.query != nil {
		u.RawQuery = r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), r.body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	if r.ctype != "" {
		req.Header.Set("Content-Type", r.ctype)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	c.log.Debug().
		Str("op", op).
		Str("method", r.method).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("remote request")

	if resp.StatusCode >= 400 {
		return &remote.StatusError{Op: op, Status: resp.StatusCode, Message: errorMessage(body)}
	}
	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, payload any, headers map[string]string, out any) error {
	var body io.Reader
	ctype := ""
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		body = bytes.NewReader(b)
		ctype = "application/json"
	}
	return c.do(ctx, op, request{
		method: method, path: path, query: query,
		body: body, ctype: ctype, headers: headers,
	}, out)
}

// errorMessage pulls a human readable message out of a PostgREST or storage
// error body.
func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		switch {
		case e.Message != "":
			return e.Message
		case e.Error != "":
			return e.Error
		case e.Details != "":
			return e.Details
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
