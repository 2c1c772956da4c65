package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/google/go-symtrie/internal/config"
	"github.com/google/go-symtrie/internal/index"
	"github.com/google/go-symtrie/prefixtree"
)

func newTestServer(t *testing.T, idx prefixtree.Index) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	g, err := index.NewGuarded(idx, reg)
	require.NoError(t, err)
	srv := New(g, reg, zap.NewNop(), config.ServerConfig{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, reg
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body %q", raw)
	}
	return resp, decoded
}

func TestSequenceLifecycle(t *testing.T) {
	ts, _ := newTestServer(t, prefixtree.NewSparse(prefixtree.WithName("words")))
	base := ts.URL + "/v1/sequences/"

	resp, body := do(t, http.MethodPut, base+"cat", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "cat", body["sequence"])
	assert.Equal(t, 1.0, body["data"], "auto-assigned index")

	resp, body = do(t, http.MethodPut, base+"cake", `{"data": {"color": "brown"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, map[string]any{"color": "brown"}, body["data"])

	resp, body = do(t, http.MethodGet, base+"cat", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, body["data"])

	resp, _ = do(t, http.MethodGet, base+"ca", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "prefix is not a stored sequence")

	resp, body = do(t, http.MethodPatch, base+"cat", `{"data": 0}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.0, body["data"])

	resp, body = do(t, http.MethodGet, base+"cat", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.0, body["data"], "zero is present")

	resp, _ = do(t, http.MethodPatch, base+"cat", `{"data": null}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodPatch, base+"dog", `{"data": 1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, base+"cat", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodDelete, base+"cat", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, http.MethodGet, ts.URL+"/v1/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "words", body["name"])
	assert.Equal(t, 1.0, body["size"])
}

func TestEncodedSequence(t *testing.T) {
	ts, _ := newTestServer(t, prefixtree.NewSparse())
	resp, body := do(t, http.MethodPut, ts.URL+"/v1/sequences/caf%C3%A9%2Fau%20lait", `{"data": "drink"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "café/au lait", body["sequence"])
}

func TestMalformedBody(t *testing.T) {
	ts, _ := newTestServer(t, prefixtree.NewSparse())
	resp, body := do(t, http.MethodPut, ts.URL+"/v1/sequences/cat", `{"data":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "malformed body")
}

func TestInvalidSymbol(t *testing.T) {
	tree, err := prefixtree.NewDense(10, "")
	require.NoError(t, err)
	ts, _ := newTestServer(t, tree)

	resp, body := do(t, http.MethodPut, ts.URL+"/v1/sequences/12a4", "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "a", body["symbol"])
	assert.Equal(t, 2.0, body["position"])

	resp, _ = do(t, http.MethodGet, ts.URL+"/v1/sequences/12", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "failed insert leaves nothing behind")
}

func TestPath(t *testing.T) {
	ts, _ := newTestServer(t, prefixtree.NewSparse())
	do(t, http.MethodPut, ts.URL+"/v1/sequences/ca", "")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/paths/cat", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Sequence string         `json:"sequence"`
		Steps    []stepResponse `json:"steps"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got.Steps, 4)
	assert.Equal(t, stepResponse{Depth: 0, Reached: true}, got.Steps[0])
	assert.Equal(t, "a", got.Steps[2].Symbol)
	assert.True(t, got.Steps[2].EndOfWord)
	assert.Equal(t, stepResponse{Depth: 3, Symbol: "t"}, got.Steps[3])
}

func TestRequestID(t *testing.T) {
	ts, _ := newTestServer(t, prefixtree.NewSparse())

	resp, _ := do(t, http.MethodGet, ts.URL+"/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, resp.Header.Get(requestIDHeader), 36, "generated uuid")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "abc-123")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(requestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, prefixtree.NewSparse(prefixtree.WithName("m")))
	do(t, http.MethodPut, ts.URL+"/v1/sequences/cat", "")

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `symtrie_sequences{index="m"} 1`)
	assert.Contains(t, string(raw), `symtrie_operations_total{index="m",op="insert",result="ok"} 1`)
}

func TestRunShutsDown(t *testing.T) {
	srv := New(prefixtree.NewSparse(), nil, zap.NewNop(), config.ServerConfig{
		Addr:            "127.0.0.1:0",
		ShutdownTimeout: time.Second,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestMalformedSequence(t *testing.T) {
	ts, _ := newTestServer(t, prefixtree.NewSparse())
	resp, _ := do(t, http.MethodPut, ts.URL+"/v1/sequences/%EF%BF%BD", `{"data": "replacement"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, http.MethodPut, ts.URL+"/v1/sequences/a%FF", "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["error"], "invalid UTF-8")
	assert.Equal(t, 1.0, body["position"])
	assert.NotContains(t, body, "symbol")

	resp, _ = do(t, http.MethodGet, ts.URL+"/v1/sequences/%FF", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "malformed byte must not match U+FFFD")
}

func TestConcurrentPutsEchoOwnData(t *testing.T) {
	ts, _ := newTestServer(t, prefixtree.NewSparse())
	const writers = 16
	got := make([]any, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPut, ts.URL+"/v1/sequences/shared", nil)
			if err != nil {
				t.Error(err)
				return
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Error(err)
				return
			}
			defer resp.Body.Close()
			var body sequenceResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Error(err)
				return
			}
			got[i] = body.Data
		}()
	}
	wg.Wait()

	seen := map[any]bool{}
	for _, data := range got {
		assert.False(t, seen[data], "auto index %v returned to two writers", data)
		seen[data] = true
	}
	assert.Len(t, seen, writers)
}
