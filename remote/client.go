package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eringen/bulletin/content"
)

const (
	defaultDataPath  = "/api/data"
	defaultUserAgent = "bulletin/1"
	maxPayloadSize   = content.MaxDocumentSize
)

// Client is the polling Backend: a JSON document fetched with GET and
// replaced with POST.
type Client struct {
	baseURL   *url.URL
	dataPath  string
	http      *http.Client
	userAgent string
	log       logrus.FieldLogger
}

var _ Backend = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client. The default has no
// timeout of its own.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithDataPath sets the document path (default /api/data).
func WithDataPath(p string) ClientOption {
	return func(c *Client) { c.dataPath = p }
}

// WithClientLogger sets the logger.
func WithClientLogger(l logrus.FieldLogger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient builds a Client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		dataPath:  defaultDataPath,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("remote: base url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("remote: base url %q has no host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func (c *Client) Kind() Kind { return KindPolling }

func (c *Client) endpoint() string {
	u := *c.baseURL
	u.Path = u.Path + c.dataPath
	return u.String()
}

// Read fetches the current document. A non-success status reads as the
// empty snapshot; only transport failures and undecodable bodies are errors.
func (c *Client) Read(ctx context.Context) (content.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(), nil)
	if err != nil {
		return content.Snapshot{}, newError("read", Unreachable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return content.Snapshot{}, newError("read", Unreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.WithField("status", resp.StatusCode).Warn("remote read returned non-success status, using empty snapshot")
		return content.Snapshot{}, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return content.Snapshot{}, newError("read", Unreachable, err)
	}
	snap, err := content.Decode(body)
	if err != nil {
		return content.Snapshot{}, newError("read", MalformedPayload, err)
	}
	return snap, nil
}

// Write replaces the remote document with snap.
func (c *Client) Write(ctx context.Context, snap content.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return newError("write", InvalidWrite, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return newError("write", Unreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return newError("write", Unreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	c.log.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"latency": time.Since(start),
	}).Debug("remote write")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError("write", InvalidWrite, fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}
