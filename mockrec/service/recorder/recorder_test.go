package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-appsec/mockrec/mockrec/service/match"
	"github.com/go-appsec/mockrec/mockrec/service/sanitize"
	"github.com/go-appsec/mockrec/mockrec/service/store"
)

type backend struct {
	*httptest.Server
	calls atomic.Int64
}

func newBackend(t *testing.T, handler http.HandlerFunc) *backend {
	t.Helper()

	b := &backend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(b.Close)
	return b
}

func postsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Set-Cookie", "session=live-cookie")
	_, _ = w.Write([]byte(`[{"id":1,"userId":1}]`))
}

type testEnv struct {
	rec    *Recorder
	store  *store.ArtifactStore
	root   string
	client *http.Client
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	root := filepath.Join(t.TempDir(), "mocks")
	s := sanitize.New(sanitize.DefaultOptions(), nil)
	artifacts := store.NewArtifactStore(root, store.NewFileStorage(root), s, nil)
	rec := New(artifacts, opts, nil)
	return &testEnv{
		rec:    rec,
		store:  artifacts,
		root:   root,
		client: &http.Client{Transport: &Transport{Recorder: rec}},
	}
}

func (e *testEnv) do(t *testing.T, method, url string, header http.Header) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func readArtifact(t *testing.T, path string) *store.RecordedArtifact {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	a, err := store.DecodeArtifact(data)
	require.NoError(t, err)
	return a
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Mode
	}{
		{"record", ModeRecord},
		{"RECORD", ModeRecord},
		{"replay", ModeReplay},
		{"mock", ModeReplay},
		{" Mock ", ModeReplay},
		{"passthrough", ModePassthrough},
		{"", ModePassthrough},
		{"anything", ModePassthrough},
	}
	for _, tc := range tests {
		t.Run("parse_"+tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseMode(tc.in))
		})
	}
}

func TestRecorderUninitialized(t *testing.T) {
	t.Parallel()

	be := newBackend(t, postsHandler)
	env := newTestEnv(t, Options{AutoFallback: true})

	state := env.rec.State()
	assert.Equal(t, ModePassthrough, state.Mode)
	assert.False(t, state.Active)
	assert.Equal(t, Counters{}, state.Counters)

	resp, body := env.do(t, http.MethodGet, be.URL+"/posts?userId=1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"id":1,"userId":1}]`, string(body))
	assert.Equal(t, int64(1), be.calls.Load())
	assert.Equal(t, Counters{}, env.rec.State().Counters)

	list, err := env.store.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRecordThenReplay(t *testing.T) {
	t.Parallel()

	be := newBackend(t, postsHandler)
	env := newTestEnv(t, Options{AutoFallback: false})
	url := be.URL + "/posts?userId=1"

	env.rec.Initialize(ModeRecord)
	resp, body := env.do(t, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"id":1,"userId":1}]`, string(body))

	state := env.rec.State()
	assert.True(t, state.IsRecording)
	assert.Equal(t, Counters{Intercepted: 1, Recorded: 1}, state.Counters)

	path := filepath.Join(env.root, "posts", "get_posts_4eurae.json")
	artifact := readArtifact(t, path)
	assert.Equal(t, "GET", artifact.Method)
	assert.Equal(t, "/posts", artifact.Pathname)
	assert.Equal(t, map[string]string{"userId": "1"}, artifact.QueryParams)
	assert.Equal(t, []any{map[string]any{"id": 1.0, "userId": 1.0}}, artifact.Response)
	assert.Equal(t, "OK", artifact.StatusMessage)
	assert.NotContains(t, artifact.ResponseHeaders, "Content-Length")
	assert.Equal(t, []string{path}, env.store.SessionRecorded())

	env.rec.Initialize(ModeReplay)
	assert.Equal(t, Counters{}, env.rec.State().Counters)

	resp, body = env.do(t, http.MethodGet, url, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"id":1,"userId":1}]`, string(body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, int64(1), be.calls.Load())

	state = env.rec.State()
	assert.True(t, state.IsReplaying)
	assert.Equal(t, Counters{Intercepted: 1, Replayed: 1}, state.Counters)

	t.Run("query_order_irrelevant", func(t *testing.T) {
		_, err := env.store.Save(store.CapturedRequest{Method: "GET", URL: be.URL + "/search?b=2&a=1"},
			store.CapturedResponse{Status: 200, Body: "found"}, 0)
		require.NoError(t, err)

		resp, body := env.do(t, http.MethodGet, be.URL+"/search?a=1&b=2", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "found", string(body))
		assert.Equal(t, int64(1), be.calls.Load())
	})
}

func TestReplayMissWithoutFallback(t *testing.T) {
	t.Parallel()

	be := newBackend(t, postsHandler)
	env := newTestEnv(t, Options{AutoFallback: false})
	env.rec.Initialize(ModeReplay)

	resp, body := env.do(t, http.MethodDelete, be.URL+"/posts/1", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int64(0), be.calls.Load())

	var payload map[string]string
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "Mock not found", payload["error"])
	assert.Equal(t, "DELETE", payload["method"])
	assert.Equal(t, be.URL+"/posts/1", payload["url"])
	assert.Contains(t, payload["message"], "autoFallback")

	assert.Equal(t, Counters{Intercepted: 1, Missed: 1}, env.rec.State().Counters)
}

func TestReplayMissOutcome(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	env.rec.Initialize(ModeReplay)

	req := httptest.NewRequest(http.MethodGet, "http://offline.invalid/x", nil)
	outcome, err := env.rec.Intercept(t.Context(), req, roundTripFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("backend must not be called")
		return nil, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, Failed, outcome.Kind)
	assert.Contains(t, outcome.Reason, "GET http://offline.invalid/x")
	assert.Equal(t, "miss", outcome.Response.Header.Get("X-Mockrec"))
}

func TestReplayMissWithFallback(t *testing.T) {
	t.Parallel()

	be := newBackend(t, postsHandler)
	env := newTestEnv(t, Options{AutoFallback: true})
	env.rec.Initialize(ModeReplay)
	url := be.URL + "/posts?userId=1"

	resp, body := env.do(t, http.MethodGet, url, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"id":1,"userId":1}]`, string(body))
	assert.Equal(t, int64(1), be.calls.Load())
	assert.Equal(t, Counters{Intercepted: 1, Recorded: 1, Missed: 1}, env.rec.State().Counters)
	assert.True(t, env.store.Exists(match.BuildSignature("GET", url)))

	_, _ = env.do(t, http.MethodGet, url, nil)
	assert.Equal(t, int64(1), be.calls.Load())
	assert.Equal(t, Counters{Intercepted: 2, Recorded: 1, Replayed: 1, Missed: 1}, env.rec.State().Counters)
}

func TestRecordSanitizesOnlyPersistedCopy(t *testing.T) {
	t.Parallel()

	be := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Set-Cookie", "session=live-cookie")
		_, _ = w.Write([]byte(`{"auth":"` + r.Header.Get("Authorization") + `"}`))
	})
	env := newTestEnv(t, Options{})
	env.rec.Initialize(ModeRecord)

	resp, body := env.do(t, http.MethodGet, be.URL+"/me?token=t0ps3cret",
		http.Header{"Authorization": {"Bearer abc123"}})
	assert.Equal(t, "session=live-cookie", resp.Header.Get("Set-Cookie"))
	assert.JSONEq(t, `{"auth":"Bearer abc123"}`, string(body))

	paths := env.store.SessionRecorded()
	require.Len(t, paths, 1)
	artifact := readArtifact(t, paths[0])
	assert.Equal(t, sanitize.DefaultMask, artifact.RequestHeaders["Authorization"])
	assert.Equal(t, sanitize.DefaultMask, artifact.ResponseHeaders["Set-Cookie"])
	assert.Equal(t, sanitize.DefaultMask, artifact.QueryParams["token"])
	assert.Equal(t, true, artifact.Metadata["sanitized"])

	raw, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "t0ps3cret")
	assert.NotContains(t, string(raw), "live-cookie")
}

func TestRecordMasksTokenBesideMalformedEscape(t *testing.T) {
	t.Parallel()

	be := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":0}`))
	})
	env := newTestEnv(t, Options{})
	env.rec.Initialize(ModeRecord)

	resp, _ := env.do(t, http.MethodGet, be.URL+"/search?token=secret123&q=100%", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	paths := env.store.SessionRecorded()
	require.Len(t, paths, 1)
	assert.True(t, strings.HasPrefix(filepath.Base(paths[0]), "get_search_"), paths[0])

	artifact := readArtifact(t, paths[0])
	assert.Equal(t, "/search", artifact.Pathname)
	assert.Equal(t, sanitize.DefaultMask, artifact.QueryParams["token"])
	assert.Equal(t, "100%", artifact.QueryParams["q"])

	raw, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret123")

	env.rec.Initialize(ModeReplay)
	resp, body := env.do(t, http.MethodGet, be.URL+"/search?token=secret123&q=100%", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"hits":0}`, string(body))
	assert.Equal(t, int64(1), be.calls.Load())
}

func TestJSONStringBodyRoundTrip(t *testing.T) {
	t.Parallel()

	be := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`"ok"`))
	})
	env := newTestEnv(t, Options{})
	env.rec.Initialize(ModeRecord)

	_, live := env.do(t, http.MethodGet, be.URL+"/health", nil)
	assert.Equal(t, `"ok"`, string(live))

	artifact := readArtifact(t, env.store.SessionRecorded()[0])
	assert.Equal(t, "ok", artifact.Response)
	assert.Equal(t, "json-string", artifact.Metadata["bodyEncoding"])

	env.rec.Initialize(ModeReplay)
	resp, replayed := env.do(t, http.MethodGet, be.URL+"/health", nil)
	assert.Equal(t, string(live), string(replayed))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.True(t, json.Valid(replayed))
	assert.Equal(t, int64(1), be.calls.Load())
}

func TestFilteredCallsBypassRecorder(t *testing.T) {
	t.Parallel()

	be := newBackend(t, postsHandler)
	filter := match.NewFilter(nil, []string{`\.css$`}, nil)
	env := newTestEnv(t, Options{Filter: filter})
	env.rec.Initialize(ModeReplay)

	resp, _ := env.do(t, http.MethodGet, be.URL+"/static/app.css", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), be.calls.Load())
	assert.Equal(t, Counters{}, env.rec.State().Counters)
}

func TestStopKeepsCounters(t *testing.T) {
	t.Parallel()

	be := newBackend(t, postsHandler)
	env := newTestEnv(t, Options{})
	env.rec.Initialize(ModeRecord)
	_, _ = env.do(t, http.MethodGet, be.URL+"/posts", nil)

	state := env.rec.Stop()
	assert.False(t, state.Active)
	assert.False(t, state.IsRecording)
	assert.Equal(t, ModePassthrough, env.rec.Mode())
	assert.Equal(t, Counters{Intercepted: 1, Recorded: 1}, state.Counters)

	_, _ = env.do(t, http.MethodGet, be.URL+"/users", nil)
	assert.Equal(t, Counters{Intercepted: 1, Recorded: 1}, env.rec.State().Counters)
	assert.Len(t, env.store.SessionRecorded(), 1)

	sessionID := state.SessionID
	env.rec.Initialize(ModeRecord)
	assert.NotEqual(t, sessionID, env.rec.State().SessionID)
	assert.Equal(t, Counters{}, env.rec.State().Counters)
}

func TestClearAllThenReplayMisses(t *testing.T) {
	t.Parallel()

	be := newBackend(t, postsHandler)
	env := newTestEnv(t, Options{})
	env.rec.Initialize(ModeRecord)
	_, _ = env.do(t, http.MethodGet, be.URL+"/posts", nil)

	env.rec.Initialize(ModeReplay)
	_, _ = env.do(t, http.MethodGet, be.URL+"/posts", nil)
	require.Equal(t, int64(1), env.rec.State().Counters.Replayed)

	require.NoError(t, env.store.ClearAll())
	list, err := env.store.List()
	require.NoError(t, err)
	assert.Empty(t, list)

	resp, _ := env.do(t, http.MethodGet, be.URL+"/posts", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCancelledCallLeavesNoState(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	be := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })
	env := newTestEnv(t, Options{AutoFallback: true})

	for _, mode := range []Mode{ModeRecord, ModeReplay} {
		t.Run(mode.String(), func(t *testing.T) {
			env.rec.Initialize(mode)
			ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, be.URL+"/slow", nil)
			require.NoError(t, err)
			_, err = env.client.Do(req)
			require.Error(t, err)
			assert.ErrorIs(t, err, context.DeadlineExceeded)

			counters := env.rec.State().Counters
			assert.Equal(t, int64(0), counters.Recorded)
			assert.Equal(t, int64(0), counters.Replayed)

			list, err := env.store.List()
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestConcurrentRecording(t *testing.T) {
	t.Parallel()

	be := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	})
	env := newTestEnv(t, Options{})
	env.rec.Initialize(ModeRecord)

	const n = 40
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, be.URL+"/items/x"+strconv.Itoa(i), nil)
			if !assert.NoError(t, err) {
				return
			}
			resp, err := env.client.Do(req)
			if !assert.NoError(t, err) {
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, Counters{Intercepted: n, Recorded: n}, env.rec.State().Counters)
	assert.Len(t, env.store.SessionRecorded(), n)
	list, err := env.store.List()
	require.NoError(t, err)
	assert.Len(t, list, n)
}

type failingStorage struct {
	*store.MemStorage
}

func (failingStorage) WriteArtifact(string, *store.RecordedArtifact) error {
	return errors.New("disk full")
}

func TestSaveFailureKeepsLiveResponse(t *testing.T) {
	t.Parallel()

	be := newBackend(t, postsHandler)
	artifacts := store.NewArtifactStore("mocks", failingStorage{store.NewMemStorage()},
		sanitize.New(sanitize.DefaultOptions(), nil), nil)
	rec := New(artifacts, Options{}, nil)
	rec.Initialize(ModeRecord)

	req := httptest.NewRequest(http.MethodGet, be.URL+"/posts", nil)
	req.RequestURI = ""
	outcome, err := rec.Intercept(t.Context(), req, http.DefaultTransport)
	require.NoError(t, err)
	require.Error(t, outcome.SaveErr)
	assert.Equal(t, Forwarded, outcome.Kind)

	body, err := io.ReadAll(outcome.Response.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"userId":1}]`, string(body))
	assert.Equal(t, Counters{Intercepted: 1}, rec.State().Counters)
}

func TestCompressedResponseStoredDecoded(t *testing.T) {
	t.Parallel()

	var compressed bytes.Buffer
	gw := gzip.NewWriter(&compressed)
	_, _ = gw.Write([]byte(`{"ok":true}`))
	require.NoError(t, gw.Close())

	be := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(compressed.Bytes())
	})
	env := newTestEnv(t, Options{})
	env.rec.Initialize(ModeRecord)

	resp, body := env.do(t, http.MethodGet, be.URL+"/status", http.Header{"Accept-Encoding": {"gzip"}})
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	assert.Equal(t, compressed.Bytes(), body)

	paths := env.store.SessionRecorded()
	require.Len(t, paths, 1)
	artifact := readArtifact(t, paths[0])
	assert.Equal(t, map[string]any{"ok": true}, artifact.Response)
	assert.NotContains(t, artifact.ResponseHeaders, "Content-Encoding")

	env.rec.Initialize(ModeReplay)
	resp, body = env.do(t, http.MethodGet, be.URL+"/status", nil)
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestBinaryBodyRoundTrip(t *testing.T) {
	t.Parallel()

	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0xff}
	be := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	})
	env := newTestEnv(t, Options{})
	env.rec.Initialize(ModeRecord)
	_, _ = env.do(t, http.MethodGet, be.URL+"/logo", nil)

	artifact := readArtifact(t, env.store.SessionRecorded()[0])
	assert.Equal(t, "base64", artifact.Metadata["bodyEncoding"])

	env.rec.Initialize(ModeReplay)
	resp, body := env.do(t, http.MethodGet, be.URL+"/logo", nil)
	assert.Equal(t, png, body)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, int64(1), be.calls.Load())
}

func TestRequestBodyCaptured(t *testing.T) {
	t.Parallel()

	be := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(data)
	})
	env := newTestEnv(t, Options{})
	env.rec.Initialize(ModeRecord)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, be.URL+"/api/users", bytes.NewReader([]byte(`{"name":"ann"}`)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	echoed, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"name":"ann"}`, string(echoed))

	artifact := readArtifact(t, filepath.Join(env.root, "api", "users", "post_api_users.json"))
	assert.Equal(t, map[string]any{"name": "ann"}, artifact.RequestBody)
	assert.Equal(t, "Created", artifact.StatusMessage)
}

func TestReplayResolvesDynamicValues(t *testing.T) {
	t.Parallel()

	dyn := sanitize.NewDynamicValues()
	env := newTestEnv(t, Options{DynamicValues: dyn})
	_, err := env.store.Save(store.CapturedRequest{Method: "GET", URL: "http://api.test/session"},
		store.CapturedResponse{Status: 200, Body: map[string]any{"id": sanitize.DefaultPlaceholder, "name": "n"}}, 0)
	require.NoError(t, err)

	dyn.Set("id", "live-42")
	env.rec.Initialize(ModeReplay)

	_, body := env.do(t, http.MethodGet, "http://api.test/session", nil)
	assert.JSONEq(t, `{"id":"live-42","name":"n"}`, string(body))
}

func TestTransportSimulatedLatency(t *testing.T) {
	t.Parallel()

	root := "mocks"
	mem := store.NewMemStorage()
	artifacts := store.NewArtifactStore(root, mem, sanitize.New(sanitize.DefaultOptions(), nil), nil)
	sig := match.BuildSignature("GET", "http://api.test/slow")
	require.NoError(t, mem.WriteArtifact(match.BuildPath(root, sig), &store.RecordedArtifact{
		Method: "GET", URL: sig.URL, Pathname: sig.Pathname, Status: 200, Response: "late", ResponseTime: 5000,
	}))

	rec := New(artifacts, Options{}, nil)
	rec.Initialize(ModeReplay)

	t.Run("cancelled_while_waiting", func(t *testing.T) {
		client := &http.Client{Transport: &Transport{Recorder: rec, SimulateLatency: true}}
		ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://api.test/slow", nil)
		require.NoError(t, err)

		_, err = client.Do(req)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("disabled", func(t *testing.T) {
		client := &http.Client{Transport: &Transport{Recorder: rec}}
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "http://api.test/slow", nil)
		require.NoError(t, err)

		start := time.Now()
		resp, err := client.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
