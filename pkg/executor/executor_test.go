package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vikasavnish/curlrun/pkg/ir"
	"github.com/vikasavnish/curlrun/pkg/parser"
)

// echoHandler replies with a JSON description of the request it received.
func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Add("X-Multi", "a")
	w.Header().Add("X-Multi", "b")
	json.NewEncoder(w).Encode(map[string]any{
		"method":  r.Method,
		"host":    r.Host,
		"proto":   r.Proto,
		"body":    string(body),
		"headers": r.Header,
	})
}

type echo struct {
	Method  string              `json:"method"`
	Host    string              `json:"host"`
	Proto   string              `json:"proto"`
	Body    string              `json:"body"`
	Headers map[string][]string `json:"headers"`
}

func parse(t *testing.T, cmd string) *ir.Request {
	t.Helper()
	req, err := parser.NewCurlParser().Parse(cmd)
	require.NoError(t, err)
	return req
}

func execute(t *testing.T, e *Executor, cmd string) (*ir.Response, echo) {
	t.Helper()
	resp, err := e.Execute(context.Background(), parse(t, cmd))
	require.NoError(t, err)

	var got echo
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &got))
	return resp, got
}

func newExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	e, err := NewExecutor(opts...)
	require.NoError(t, err)
	return e
}

func TestExecute_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(echoHandler))
	defer srv.Close()

	resp, got := execute(t, newExecutor(t), "curl -H 'X-Token: abc' "+srv.URL+"/path")

	assert.Equal(t, "200 OK", resp.Status)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "HTTP/1.1", resp.Proto)
	assert.False(t, resp.Truncated)
	assert.Contains(t, resp.Headers, "X-Multi: a, b")
	assert.Contains(t, resp.Headers, "Content-Type: application/json")
	assert.True(t, strings.HasPrefix(resp.Body, "{\n  \""), "body should be indented: %q", resp.Body)

	assert.Equal(t, "GET", got.Method)
	assert.Equal(t, []string{"abc"}, got.Headers["X-Token"])
	assert.Empty(t, got.Body)
	assert.Empty(t, got.Headers["Content-Type"])
}

func TestExecute_PostDefaultsToFormContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(echoHandler))
	defer srv.Close()

	_, got := execute(t, newExecutor(t), "curl -d a=1 -d b=2 "+srv.URL)

	assert.Equal(t, "POST", got.Method)
	assert.Equal(t, "a=1&b=2", got.Body)
	assert.Equal(t, []string{defaultFormContentType}, got.Headers["Content-Type"])
}

func TestExecute_ExplicitContentHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(echoHandler))
	defer srv.Close()

	_, got := execute(t, newExecutor(t),
		`curl -X PUT -H 'content-type: application/json' -H 'Content-Language: vi' -H 'Host: api.internal' -d '{"a":1}' `+srv.URL)

	assert.Equal(t, "PUT", got.Method)
	assert.Equal(t, `{"a":1}`, got.Body)
	assert.Equal(t, []string{"application/json"}, got.Headers["Content-Type"])
	assert.Equal(t, []string{"vi"}, got.Headers["Content-Language"])
	assert.Equal(t, "api.internal", got.Host)
}

func TestExecute_ContentHeadersWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(echoHandler))
	defer srv.Close()

	_, got := execute(t, newExecutor(t), "curl -X POST -H 'Content-Type: text/plain' "+srv.URL)

	assert.Equal(t, "POST", got.Method)
	assert.Empty(t, got.Body)
	assert.Equal(t, []string{"text/plain"}, got.Headers["Content-Type"])
}

func TestExecute_DecodesContentEncoding(t *testing.T) {
	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	zw.Write([]byte(`{"ok":true}`))
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(compressed.Bytes())
	}))
	defer srv.Close()

	resp, err := newExecutor(t).Execute(context.Background(), parse(t, "curl -H 'Accept-Encoding: gzip' "+srv.URL))
	require.NoError(t, err)

	assert.Equal(t, []string{"gzip"}, resp.Encodings)
	assert.Equal(t, "{\n  \"ok\": true\n}", resp.Body)
	assert.Equal(t, int64(len(`{"ok":true}`)), resp.SizeBytes)
}

func TestExecute_EmptyEncodedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	for _, cmd := range []string{"curl -I " + srv.URL, "curl -X DELETE " + srv.URL} {
		resp, err := newExecutor(t).Execute(context.Background(), parse(t, cmd))
		require.NoError(t, err, cmd)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, []string{"gzip"}, resp.Encodings)
		assert.Empty(t, resp.Body)
		assert.Zero(t, resp.SizeBytes)
	}
}

func TestExecute_DoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	resp, err := newExecutor(t).Execute(context.Background(), parse(t, "curl -L "+srv.URL))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Headers, "Location: /elsewhere")
}

func TestExecute_Truncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	resp, err := newExecutor(t, WithDisplayLimit(10)).Execute(context.Background(), parse(t, "curl "+srv.URL))
	require.NoError(t, err)
	assert.True(t, resp.Truncated)
	assert.Equal(t, int64(100), resp.SizeBytes)
	assert.Equal(t, "xxxxxxxxxx\n\n--- truncated at 10 bytes ---", resp.Body)
}

func TestExecute_HTTP2Hint(t *testing.T) {
	srv := httptest.NewUnstartedServer(http.HandlerFunc(echoHandler))
	srv.EnableHTTP2 = true
	srv.StartTLS()
	defer srv.Close()

	e := newExecutor(t, WithTransport(srv.Client().Transport.(*http.Transport)))

	resp, got := execute(t, e, "curl --http2 "+srv.URL)
	assert.Equal(t, "HTTP/2.0", resp.Proto)
	assert.Equal(t, "HTTP/2.0", got.Proto)

	resp, got = execute(t, e, "curl "+srv.URL)
	assert.Equal(t, "HTTP/1.1", resp.Proto)
	assert.Equal(t, "HTTP/1.1", got.Proto)
}

func TestExecute_Cancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newExecutor(t).Execute(ctx, parse(t, "curl "+srv.URL))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecute_BadURL(t *testing.T) {
	_, err := newExecutor(t).Execute(context.Background(), parse(t, "curl ://nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build request")
}

func TestIsContentHeader(t *testing.T) {
	assert.True(t, isContentHeader("Content-Type"))
	assert.True(t, isContentHeader("content-md5"))
	assert.False(t, isContentHeader("Contents"))
	assert.False(t, isContentHeader("Accept"))
}
