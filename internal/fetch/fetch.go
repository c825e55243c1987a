// Package fetch retrieves remote content for the proxy handler, with a hard
// download size cap and an optional disk-backed HTTP cache.
package fetch

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gonzojive/httpcache"
	"github.com/gonzojive/httpcache/diskcache"
)

// Config controls fetching behavior.
type Config struct {
	// CacheDir enables the disk cache when non-empty.
	CacheDir  string
	Timeout   time.Duration
	MaxSize   int64
	UserAgent string
}

// Result is one fetched resource.
type Result struct {
	Body      []byte
	FinalURL  string // after redirects
	Header    http.Header
	MediaType string // e.g. "text/html"
	Subtype   string // e.g. "html"
	Charset   string // declared charset, may be empty
}

// DefaultMaxSize is the download cap used when Config.MaxSize is unset.
const DefaultMaxSize = 16 << 20

// Client fetches URLs. Safe for reuse; the proxy handler calls it once per
// extracted URL.
type Client struct {
	http      *http.Client
	userAgent string
	maxSize   int64
}

func New(cfg Config) *Client {
	var transport http.RoundTripper = http.DefaultTransport
	if cfg.CacheDir != "" {
		t := httpcache.NewTransport(diskcache.New(cfg.CacheDir))
		t.Transport = http.DefaultTransport
		transport = t
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	return &Client{
		http:      &http.Client{Transport: transport, Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		maxSize:   cfg.MaxSize,
	}
}

// Fetch downloads url. It fails on transport errors, HTTP error statuses
// and bodies larger than the configured size cap.
func (c *Client) Fetch(url string) (*Result, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Cache-Control", "no-transform")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSize))
	if err != nil {
		return nil, err
	}
	// A successful read of one more byte means the body exceeds the cap.
	var probe [1]byte
	if n, _ := resp.Body.Read(probe[:]); n > 0 {
		return nil, fmt.Errorf("content exceeds maximum size of %d bytes", c.maxSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "application/octet-stream"
		params = nil
	}
	subtype := ""
	if i := strings.IndexByte(mediaType, '/'); i >= 0 {
		subtype = mediaType[i+1:]
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		Body:      body,
		FinalURL:  finalURL,
		Header:    resp.Header,
		MediaType: mediaType,
		Subtype:   subtype,
		Charset:   params["charset"],
	}, nil
}
