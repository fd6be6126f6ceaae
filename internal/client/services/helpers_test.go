package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/offlinesync/internal/client/client"
	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/client/repositories/actions"
	"github.com/dmitrijs2005/offlinesync/internal/client/store"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: base} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeRegistrar struct {
	names []string
}

func (f *fakeRegistrar) Register(name string) { f.names = append(f.names, name) }

// fakeClient records sends and answers from presets.
type fakeClient struct {
	client.Client

	mu      sync.Mutex
	sent    []string
	devices []string
	fetched []string
	respond func(a *models.QueuedAction) (*models.Response, error)
	preload func(p *models.Preload) (json.RawMessage, error)
	assets  map[string]*http.Response
	baseURL *url.URL
}

func newFakeClient() *fakeClient {
	u, _ := url.Parse("http://app.test")
	return &fakeClient{baseURL: u}
}

func (f *fakeClient) BaseURL() *url.URL { return f.baseURL }

func (f *fakeClient) Send(ctx context.Context, a *models.QueuedAction, deviceID string) (*models.Response, error) {
	f.mu.Lock()
	f.sent = append(f.sent, a.ID)
	f.devices = append(f.devices, deviceID)
	respond := f.respond
	f.mu.Unlock()

	if respond == nil {
		return &models.Response{StatusCode: 200, Body: []byte(`{"ok":true}`)}, nil
	}
	return respond(a)
}

func (f *fakeClient) FetchPreload(ctx context.Context, p *models.Preload) (json.RawMessage, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, p.ID)
	preload := f.preload
	f.mu.Unlock()

	if preload == nil {
		return json.RawMessage(`{"rows":[]}`), nil
	}
	return preload(p)
}

func (f *fakeClient) Fetch(ctx context.Context, rawURL string) (*http.Response, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, rawURL)
	f.mu.Unlock()

	resp, ok := f.assets[rawURL]
	if !ok {
		return nil, client.ErrUnavailable
	}
	return resp, nil
}

func (f *fakeClient) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeClient) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

func assetResponse(status int, rawURL, contentType, body string) *http.Response {
	u, _ := url.Parse(rawURL)
	h := http.Header{}
	h.Set("Content-Type", contentType)
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Request:    &http.Request{URL: u},
	}
}

var errNetwork = errors.New("network unreachable")

// harness wires every service over one in-memory store.
type harness struct {
	db       *sql.DB
	clock    *testClock
	client   *fakeClient
	reg      *fakeRegistrar
	queue    QueueService
	device   DeviceService
	effects  EffectsService
	preloads PreloadService
	sync     SyncService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		db:     setupDB(t),
		clock:  newTestClock(),
		client: newFakeClient(),
		reg:    &fakeRegistrar{},
	}
	h.queue = NewQueueService(h.db, QueueOptions{Registrar: h.reg, Clock: h.clock.Now})
	h.device = NewDeviceService(h.db, h.clock.Now)
	h.effects = NewEffectsService(h.queue)
	h.preloads = NewPreloadService(h.db, h.client, nil, h.clock.Now, nil)
	h.sync = NewSyncService(h.queue, actions.NewSQLiteRepository(h.db), h.client, h.device, h.preloads, h.clock.Now, nil)
	return h
}

func (h *harness) enqueue(t *testing.T, alias, action string, effects ...models.Effect) string {
	t.Helper()
	env, err := models.NewEnvelope("/api/"+alias, http.MethodPost, action, map[string]any{"n": 1}, h.clock.Now())
	require.NoError(t, err)
	id, err := h.queue.Enqueue(context.Background(), env, alias, action, effects)
	require.NoError(t, err)
	return id
}

func (h *harness) get(t *testing.T, id string) *models.QueuedAction {
	t.Helper()
	a, err := h.queue.Get(context.Background(), id)
	require.NoError(t, err)
	return a
}
