package executor

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/vikasavnish/curlrun/pkg/decoder"
	"github.com/vikasavnish/curlrun/pkg/ir"
	"golang.org/x/net/http2"
)

// defaultFormContentType mirrors curl's Content-Type for -d without an
// explicit one.
const defaultFormContentType = "application/x-www-form-urlencoded; charset=utf-8"

// Executor executes parsed curl requests (no business logic)
type Executor struct {
	http1        *http.Client
	http2        *http.Client
	displayLimit int
	logger       *slog.Logger
}

// Option configures an Executor
type Option func(*options)

type options struct {
	transport    *http.Transport
	displayLimit int
	logger       *slog.Logger
}

// WithTransport sets the base transport. It is cloned, never modified.
func WithTransport(t *http.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithDisplayLimit sets how many decoded body bytes are rendered.
func WithDisplayLimit(n int) Option {
	return func(o *options) {
		o.displayLimit = n
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// NewExecutor creates a new HTTP executor
func NewExecutor(opts ...Option) (*Executor, error) {
	o := options{
		displayLimit: decoder.DefaultDisplayLimit,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	base := o.transport
	if base == nil {
		base = http.DefaultTransport.(*http.Transport)
	}

	// HTTP/1.1 only.
	t1 := base.Clone()
	t1.DisableCompression = true
	t1.ForceAttemptHTTP2 = false
	t1.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	if t1.TLSClientConfig != nil {
		t1.TLSClientConfig.NextProtos = nil
	}

	// HTTP/2 over TLS when the server agrees, HTTP/1.1 otherwise.
	t2 := base.Clone()
	t2.DisableCompression = true
	t2.TLSNextProto = nil
	h2, err := http2.ConfigureTransports(t2)
	if err != nil {
		return nil, fmt.Errorf("configure http2 transport: %w", err)
	}
	h2.DisableCompression = true

	return &Executor{
		http1:        newClient(t1),
		http2:        newClient(t2),
		displayLimit: o.displayLimit,
		logger:       o.logger,
	}, nil
}

func newClient(t http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: t,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse // redirects are shown, not followed
		},
	}
}

// Execute sends req and returns the decoded, display-ready response.
// Cancelling ctx aborts both the request and the body read.
func (e *Executor) Execute(ctx context.Context, req *ir.Request) (*ir.Response, error) {
	httpReq, err := e.buildRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	client := e.http1
	if req.UseHTTP2 {
		client = e.http2
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	encodings := decoder.ParseEncodings(resp.Header.Values("Content-Encoding")...)
	body, err := decoder.Decode(resp.Body, encodings)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	latency := time.Since(start)

	display := decoder.Render(body, e.displayLimit)

	e.logger.DebugContext(ctx, "Request executed",
		slog.String("method", httpReq.Method),
		slog.String("url", httpReq.URL.String()),
		slog.String("proto", resp.Proto),
		slog.Int("status", resp.StatusCode),
		slog.Int("size", len(body)),
		slog.Duration("latency", latency),
	)

	return &ir.Response{
		Status:     resp.Status,
		StatusCode: resp.StatusCode,
		Proto:      resp.Proto,
		Headers:    headerLines(resp.Header),
		Encodings:  encodings,
		Body:       display.Text,
		Truncated:  display.Truncated,
		SizeBytes:  int64(len(body)),
		LatencyMs:  float64(latency.Microseconds()) / 1000.0,
	}, nil
}

func (e *Executor) buildRequest(ctx context.Context, req *ir.Request) (*http.Request, error) {
	var body io.Reader
	if req.HasBody() {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	hasContentHeaders := false
	for _, h := range req.Headers.Entries() {
		if strings.EqualFold(h.Name, "Host") {
			httpReq.Host = h.Value
			continue
		}
		if isContentHeader(h.Name) {
			hasContentHeaders = true
		}
		httpReq.Header.Set(h.Name, h.Value)
	}

	// Content-* headers without a body describe an empty one.
	if !req.HasBody() && hasContentHeaders {
		httpReq.Body = http.NoBody
		httpReq.ContentLength = 0
	}

	if req.HasBody() && !req.Headers.Has("Content-Type") {
		httpReq.Header.Set("Content-Type", defaultFormContentType)
	}

	return httpReq, nil
}

// isContentHeader reports whether name describes the body rather than the
// request.
func isContentHeader(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "content-")
}

func headerLines(headers http.Header) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %s", name, strings.Join(headers[name], ", ")))
	}
	return lines
}
