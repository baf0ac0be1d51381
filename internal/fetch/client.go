// Package fetch is the network side of the plugin host: the HTTP client
// behind req/http/fetch, and the readers that fetch plugin sources from
// local paths, http(s) URLs and S3.
package fetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultUserAgent is sent when a request names no User-Agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Defaults for the client.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRedirects = 5
	DefaultMaxBodySize  = 16 << 20
)

// Request describes one plugin request.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string

	// ContentType is set when Headers has none.
	ContentType string

	// Timeout bounds the whole exchange. Zero uses the client default.
	Timeout time.Duration

	// NoRedirect returns 3xx responses as they are.
	NoRedirect bool

	// Base64 returns the raw body base64-encoded instead of decoded text.
	Base64 bool

	// MaxBytes caps the body read. Zero uses the client default.
	MaxBytes int64
}

// Response is what plugins see. Failures never surface as errors; they
// produce a Response with OK false, Status 500 and the cause in StatusText.
type Response struct {
	OK         bool              `json:"ok"`
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	URL        string            `json:"url"`
	Redirected bool              `json:"redirected"`
	Content    string            `json:"content"`
}

// Failure builds the response for a request that did not complete.
func Failure(url string, err error) Response {
	return Response{
		Status:     http.StatusInternalServerError,
		StatusText: err.Error(),
		Headers:    map[string]string{},
		URL:        url,
	}
}

// Client performs plugin requests.
type Client struct {
	http      *http.Client
	logger    *zap.Logger
	userAgent string
	timeout   time.Duration
	maxBody   int64
	s3        ObjectGetter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Its CheckRedirect is
// overridden per request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent sets the default User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout sets the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxBodySize sets the default body cap.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithObjectGetter enables s3:// sources.
func WithObjectGetter(g ObjectGetter) Option {
	return func(c *Client) {
		c.s3 = g
	}
}

// New creates a client.
func New(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{},
		logger:    zap.NewNop(),
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
		maxBody:   DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do performs req. It never returns an error; see Response.
func (c *Client) Do(ctx context.Context, req Request) Response {
	resp, err := c.do(ctx, req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("url", req.URL), zap.Error(err))
		return Failure(req.URL, err)
	}
	return resp
}

func (c *Client) do(ctx context.Context, req Request) (Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return Response{}, err
	}
	for k, v := range req.Headers {
		hr.Header.Set(k, v)
	}
	if hr.Header.Get("User-Agent") == "" {
		hr.Header.Set("User-Agent", c.userAgent)
	}
	if req.ContentType != "" && hr.Header.Get("Content-Type") == "" {
		hr.Header.Set("Content-Type", req.ContentType)
	}

	hc := *c.http
	hc.CheckRedirect = redirectPolicy(req.NoRedirect)

	res, err := hc.Do(hr)
	if err != nil {
		return Response{}, err
	}
	defer res.Body.Close()

	limit := req.MaxBytes
	if limit <= 0 {
		limit = c.maxBody
	}
	raw, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return Response{}, err
	}
	if int64(len(raw)) > limit {
		return Response{}, fmt.Errorf("response body exceeds %d bytes", limit)
	}

	out := Response{
		OK:         res.StatusCode >= 200 && res.StatusCode < 300,
		Status:     res.StatusCode,
		StatusText: statusText(res),
		Headers:    flattenHeaders(res.Header),
		URL:        res.Request.URL.String(),
	}
	out.Redirected = out.URL != req.URL

	if req.Base64 {
		out.Content = base64.StdEncoding.EncodeToString(raw)
	} else {
		out.Content = DecodeText(raw, res.Header.Get("Content-Type"))
	}
	return out, nil
}

var errTooManyRedirects = errors.New("stopped after too many redirects")

func redirectPolicy(disabled bool) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if disabled {
			return http.ErrUseLastResponse
		}
		if len(via) > DefaultMaxRedirects {
			return errTooManyRedirects
		}
		return nil
	}
}

func statusText(res *http.Response) string {
	// Status is "200 OK"; keep the text only
	if _, text, ok := strings.Cut(res.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(res.StatusCode)
}

// flattenHeaders lower-cases names and joins repeated values with ", ".
// Set-Cookie values are joined with "; " so cookies stay usable.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		name := strings.ToLower(k)
		sep := ", "
		if name == "set-cookie" {
			sep = "; "
		}
		out[name] = strings.Join(vs, sep)
	}
	return out
}
