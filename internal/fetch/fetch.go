package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/finscrape/finscrape/internal/logger"
)

const (
	UserAgent      = "Mozilla/5.0 (X11; Linux x86_64; rv:134.0) Gecko/20100101 Firefox/134.0"
	AcceptEncoding = "gzip, deflate, br"
	Timeout        = 30 * time.Second
)

var (
	ErrTransport = errors.New("transport failure")
	ErrStatus    = errors.New("unexpected status")
	ErrDecode    = errors.New("decoding body")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.Code, e.URL)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// Fetcher returns the body of the page at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Client is the resty-backed Fetcher.
type Client struct {
	http    *resty.Client
	lenient bool
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each request. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithUserAgent replaces the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.http.SetHeader("User-Agent", ua)
		}
	}
}

// WithLenient makes the client return the body of non-2xx responses instead
// of a StatusError. An error page then parses to zero matches downstream.
func WithLenient(lenient bool) Option {
	return func(c *Client) {
		c.lenient = lenient
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	rc := resty.New()
	rc.SetTimeout(Timeout)
	rc.SetHeaders(map[string]string{
		"User-Agent":      UserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"Accept-Encoding": AcceptEncoding,
	})

	c := &Client{http: rc}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch performs a single GET and returns the decoded body.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()

	res, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %w", ErrTransport, url, err)
	}
	raw := res.RawBody()
	defer raw.Close()

	logger.Debug("fetched page", logger.Fields{
		"url":      url,
		"status":   res.StatusCode(),
		"encoding": res.Header().Get("Content-Encoding"),
		"elapsed":  time.Since(start).String(),
	})

	if res.StatusCode() < http.StatusOK || res.StatusCode() >= http.StatusMultipleChoices {
		if !c.lenient {
			return nil, &StatusError{URL: url, Code: res.StatusCode()}
		}
		logger.Warn("non-2xx response parsed anyway", logger.Fields{
			"url":    url,
			"status": res.StatusCode(),
		})
	}

	body, err := io.ReadAll(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body from %s: %w", ErrTransport, url, err)
	}

	decoded, err := Decode(res.Header().Get("Content-Encoding"), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, url, err)
	}
	return decoded, nil
}

// Decode reverses a Content-Encoding. Unknown or identity encodings return body unchanged.
func Decode(encoding string, body []byte) ([]byte, error) {
	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		gr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gr.Close()
		r = gr
	case "deflate":
		// Servers disagree on whether deflate means zlib-wrapped or raw.
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			fr := flate.NewReader(bytes.NewReader(body))
			defer fr.Close()
			r = fr
		} else {
			defer zr.Close()
			r = zr
		}
	case "br":
		r = brotli.NewReader(bytes.NewReader(body))
	default:
		return body, nil
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}
