package webclient_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/raysh454/freename/internal/webclient"
)

// ─── Do: real HTTP round-trip via httptest ──────────────────────────────

func newTestClient(t *testing.T, ts *httptest.Server) *webclient.NetHTTPClient {
	t.Helper()
	httpClient := ts.Client()
	httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	client, err := webclient.NewNetHTTPClient(webclient.Config{}, &noopLogger{}, httpClient)
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNetHTTPClient_Do_GET_ReturnsBodyAndHeaders(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Profile", "steam")
		_, _ = io.WriteString(w, "<html>profile page</html>")
	}))
	defer ts.Close()

	client := newTestClient(t, ts)
	resp, err := client.Do(context.Background(), &webclient.Request{Method: "get", URL: ts.URL + "/id/alice"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if string(resp.Body) != "<html>profile page</html>" {
		t.Errorf("unexpected body %q", resp.Body)
	}
	if resp.Headers.Get("X-Profile") != "steam" {
		t.Errorf("expected X-Profile header, got %q", resp.Headers.Get("X-Profile"))
	}
	if resp.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
}

func TestNetHTTPClient_Do_POST_SendsBodyAndHeaders(t *testing.T) {
	t.Parallel()
	var gotMethod, gotBody, gotType string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	client := newTestClient(t, ts)
	hdrs := http.Header{}
	hdrs.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := client.Do(context.Background(), &webclient.Request{
		Method:  "POST",
		URL:     ts.URL,
		Headers: hdrs,
		Body:    []byte("a=1&b=2+x"),
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if gotMethod != http.MethodPost || gotBody != "a=1&b=2+x" {
		t.Errorf("server saw %s %q", gotMethod, gotBody)
	}
	if gotType != "application/x-www-form-urlencoded" {
		t.Errorf("content type = %q", gotType)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}
}

// Error statuses are data at this layer; only Engine interprets them.
func TestNetHTTPClient_Do_PropagatesStatusCode(t *testing.T) {
	t.Parallel()
	for _, code := range []int{200, 302, 404, 429, 500} {
		code := code
		t.Run(http.StatusText(code), func(t *testing.T) {
			t.Parallel()
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if code == http.StatusFound {
					w.Header().Set("Location", "/elsewhere")
				}
				w.WriteHeader(code)
			}))
			defer ts.Close()

			resp, err := newTestClient(t, ts).Do(context.Background(), &webclient.Request{Method: "GET", URL: ts.URL})
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			if resp.StatusCode != code {
				t.Errorf("expected %d, got %d", code, resp.StatusCode)
			}
		})
	}
}

func TestNetHTTPClient_Do_NilRequest_ReturnsError(t *testing.T) {
	t.Parallel()
	client, _ := webclient.NewNetHTTPClient(webclient.Config{}, &noopLogger{}, nil)
	defer client.Close()

	if _, err := client.Do(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil request")
	}
}

func TestNetHTTPClient_Do_ConnectionRefused_ReturnsError(t *testing.T) {
	t.Parallel()
	client, _ := webclient.NewNetHTTPClient(webclient.Config{}, &noopLogger{}, &http.Client{Timeout: time.Second})
	defer client.Close()

	_, err := client.Do(context.Background(), &webclient.Request{
		Method: "GET",
		URL:    "http://127.0.0.1:1", // port 1 is unlikely to be open
	})
	if err == nil {
		t.Fatal("expected error for connection refused")
	}
}

func TestNetHTTPClient_Do_ContextCanceled_ReturnsError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestClient(t, ts).Do(ctx, &webclient.Request{Method: "GET", URL: ts.URL}); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestNetHTTPClient_Get_ReturnsBody(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		_, _ = io.WriteString(w, "get-response")
	}))
	defer ts.Close()

	resp, err := newTestClient(t, ts).Get(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(resp.Body) != "get-response" {
		t.Errorf("expected 'get-response', got %q", resp.Body)
	}
}

// ─── Content-Encoding ──────────────────────────────────────────────────

const encodedPage = "<h3>The specified profile could not be found.</h3>"

func compress(t *testing.T, enc string, plain string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch enc {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "deflate":
		w = zlib.NewWriter(&buf)
	case "br":
		w = brotli.NewWriter(&buf)
	case "zstd":
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatalf("zstd writer: %v", err)
		}
		w = zw
	default:
		t.Fatalf("unknown encoding %s", enc)
	}
	if _, err := io.WriteString(w, plain); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func TestNetHTTPClient_Do_DecodesContentEncoding(t *testing.T) {
	t.Parallel()
	for _, enc := range []string{"gzip", "deflate", "br", "zstd"} {
		enc := enc
		t.Run(enc, func(t *testing.T) {
			t.Parallel()
			payload := compress(t, enc, encodedPage)
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", enc)
				_, _ = w.Write(payload)
			}))
			defer ts.Close()

			hdrs := http.Header{}
			hdrs.Set("Accept-Encoding", "gzip, deflate, br, zstd")
			resp, err := newTestClient(t, ts).Do(context.Background(), &webclient.Request{Method: "GET", URL: ts.URL, Headers: hdrs})
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			if string(resp.Body) != encodedPage {
				t.Errorf("decoded body = %q", resp.Body)
			}
			if resp.Headers.Get("Content-Encoding") != "" {
				t.Errorf("Content-Encoding should be dropped after decoding")
			}
		})
	}
}

func TestNetHTTPClient_Do_UnsupportedEncoding_ReturnsError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "compress")
		_, _ = w.Write([]byte{0x1f, 0x9d, 0x90})
	}))
	defer ts.Close()

	hdrs := http.Header{}
	hdrs.Set("Accept-Encoding", "compress")
	if _, err := newTestClient(t, ts).Do(context.Background(), &webclient.Request{Method: "GET", URL: ts.URL, Headers: hdrs}); err == nil {
		t.Fatal("expected error for unsupported content encoding")
	}
}

func TestNetHTTPClient_Do_EmptyEncodedBody(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		method string
		status int
		enc    string
	}{
		{"head gzip", http.MethodHead, http.StatusOK, "gzip"},
		{"head zstd", http.MethodHead, http.StatusOK, "zstd"},
		{"no content gzip", http.MethodGet, http.StatusNoContent, "gzip"},
		{"not modified br", http.MethodGet, http.StatusNotModified, "br"},
		{"empty 200 gzip", http.MethodGet, http.StatusOK, "gzip"},
		{"empty 200 deflate", http.MethodGet, http.StatusOK, "deflate"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", tc.enc)
				w.WriteHeader(tc.status)
			}))
			defer ts.Close()

			resp, err := newTestClient(t, ts).Do(context.Background(), &webclient.Request{
				Method:  tc.method,
				URL:     ts.URL,
				Headers: webclient.DefaultIdentity().Header(),
			})
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			if resp.StatusCode != tc.status || len(resp.Body) != 0 {
				t.Errorf("got %d %q, want %d and empty body", resp.StatusCode, resp.Body, tc.status)
			}
		})
	}
}

func TestEngine_HEADWithEncodedEmptyBodySucceeds(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	e, err := webclient.NewEngine(newTestClient(t, ts), nil, webclient.EngineConfig{}, &noopLogger{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	resp, err := e.Request(context.Background(), "HEAD", ts.URL, nil)
	if err != nil {
		t.Fatalf("HEAD with gzip header and no body should succeed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
