package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/checkout"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/consent"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/metrics"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/notify"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/orderapi"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/storage"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/tab"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// fakeOrderAPI records submissions and answers with a configurable status.
type fakeOrderAPI struct {
	mu     sync.Mutex
	status int
	body   string
	orders []map[string]any
	keys   []string
	srv    *httptest.Server
}

func newFakeOrderAPI(t *testing.T) *fakeOrderAPI {
	t.Helper()
	f := &fakeOrderAPI{status: http.StatusCreated, body: `{"id":"order-1"}`}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var order map[string]any
		_ = json.NewDecoder(r.Body).Decode(&order)

		f.mu.Lock()
		f.orders = append(f.orders, order)
		f.keys = append(f.keys, r.Header.Get("Idempotency-Key"))
		status, body := f.status, f.body
		f.mu.Unlock()

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOrderAPI) respond(status int, body string) {
	f.mu.Lock()
	f.status, f.body = status, body
	f.mu.Unlock()
}

func (f *fakeOrderAPI) submissions() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.orders...)
}

type testEnv struct {
	srv      *httptest.Server
	storage  storage.Storage
	registry *tab.Registry
	orderAPI *fakeOrderAPI
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, storage.NewMemoryStorage(), notify.NewMemoryBroadcaster())
}

func newTestEnvWith(t *testing.T, st storage.Storage, broadcaster notify.Broadcaster) *testEnv {
	t.Helper()
	registry := tab.NewRegistry(st, broadcaster, tab.Options{SweepInterval: time.Hour})
	t.Cleanup(func() { _ = registry.Close() })

	orderAPI := newFakeOrderAPI(t)
	reg := prometheus.NewRegistry()

	router := NewRouter(Deps{
		Registry: registry,
		Orders:   orderapi.NewClient(orderapi.Options{BaseURL: orderAPI.srv.URL, HTTPClient: orderAPI.srv.Client()}),
		Consent:  consent.NewService(st),
		Checkout: checkout.Options{RedirectDelay: 50 * time.Millisecond},
		Metrics:  metrics.New(reg),
		Gatherer: reg,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, storage: st, registry: registry, orderAPI: orderAPI}
}

// browser is one shopper origin (cookie jar); tab selects the X-Tab-ID.
type browser struct {
	t      *testing.T
	env    *testEnv
	client *http.Client
}

func (e *testEnv) newBrowser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, env: e, client: &http.Client{Jar: jar}}
}

func (b *browser) do(method, tabID, path string, body any, out any) int {
	b.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(b.t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, b.env.srv.URL+path, reader)
	require.NoError(b.t, err)
	if tabID != "" {
		req.Header.Set(TabHeader, tabID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(b.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (b *browser) origin() string {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.env.srv.URL, nil)
	require.NoError(b.t, err)
	for _, c := range b.client.Jar.Cookies(req.URL) {
		if c.Name == OriginCookie {
			return c.Value
		}
	}
	b.t.Fatal("origin cookie not set")
	return ""
}
