package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/offlinesync/internal/client/config"
	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	newLogger = func(*config.Config) logging.Logger { return logging.Nop() }
	m.Run()
}

type env struct {
	t      *testing.T
	db     string
	server string
	posts  atomic.Int32
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{t: t, db: filepath.Join(t.TempDir(), "offlinesync.db")}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("POST /orders", func(w http.ResponseWriter, r *http.Request) {
		e.posts.Add(1)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("GET /preloads/orders", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rows":[{"id":"1","state":"open"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	e.server = srv.URL
	return e
}

// run executes one command line in a fresh App and returns stdout and stderr
// combined.
func (e *env) run(stdin string, args ...string) (string, error) {
	e.t.Helper()
	a := &App{}
	defer a.Close()

	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--db", e.db, "--server", e.server}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *env) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run("", args...)
	require.NoError(e.t, err, out)
	return out
}

func (e *env) enqueue() string {
	e.t.Helper()
	out := e.mustRun("enqueue", "--url", "/orders", "--object", "orders", "--action", "create", "--data", `{"sku":"A-1"}`)
	return strings.TrimSpace(out)
}

func (e *env) listJSON() []models.ActionQueueView {
	e.t.Helper()
	var views []models.ActionQueueView
	require.NoError(e.t, json.Unmarshal([]byte(e.mustRun("list", "--json")), &views))
	return views
}

func TestEnqueueListShow(t *testing.T) {
	e := newEnv(t)
	id := e.enqueue()
	require.NotEmpty(t, id)

	out := e.mustRun("list")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "offline")

	views := e.listJSON()
	require.Len(t, views, 1)
	assert.Equal(t, id, views[0].ID)
	assert.Equal(t, models.StatusOffline, views[0].Status)

	out = e.mustRun("show", id)
	assert.Contains(t, out, `"action_alias": "create"`)
	assert.NotContains(t, out, "A-1")

	out = e.mustRun("effects", "orders")
	assert.Contains(t, out, id)
}

func TestEnqueue_PayloadFromStdin(t *testing.T) {
	e := newEnv(t)
	out, err := e.run("{\"sku\":\n\"B-2\"}\n\n", "enqueue", "--url", "/orders", "--object", "orders", "--action", "create", "--data", "-")
	require.NoError(t, err, out)
	assert.Len(t, e.listJSON(), 1)
}

func TestEnqueue_RejectsBadPayload(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("", "enqueue", "--url", "/orders", "--object", "orders", "--action", "create", "--data", "[1]")
	assert.Error(t, err)
	assert.Empty(t, e.listJSON())
}

func TestList_UnknownStatus(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("", "list", "--status", "lost")
	assert.ErrorContains(t, err, "unknown status")
}

func TestSync_SendsAndCleansUp(t *testing.T) {
	e := newEnv(t)
	e.enqueue()
	e.enqueue()

	out := e.mustRun("sync")
	assert.Contains(t, out, "0 action(s) still offline")
	assert.EqualValues(t, 2, e.posts.Load())
	assert.Empty(t, e.listJSON())
}

func TestSync_ServerDownKeepsActions(t *testing.T) {
	e := newEnv(t)
	id := e.enqueue()

	e.server = "http://127.0.0.1:1"
	out, err := e.run("", "sync")
	assert.Error(t, err)
	assert.Contains(t, out, "Sync stopped at "+id)
	assert.Contains(t, out, "1 action(s) still offline")

	views := e.listJSON()
	require.Len(t, views, 1)
	assert.Equal(t, models.StatusOffline, views[0].Status)
	assert.Equal(t, 1, views[0].Tries)
}

func TestPreloadCommands(t *testing.T) {
	e := newEnv(t)
	e.mustRun("preload", "add", "orders", "--sync")

	out := e.mustRun("preload", "show", "orders")
	assert.Contains(t, out, `"state": "open"`)

	e.mustRun("preload", "merge", "orders", "--rows", `[{"id":"1","state":"closed"},{"id":"2","state":"open"}]`)
	out = e.mustRun("preload", "show", "orders")
	assert.Contains(t, out, `"state": "closed"`)
	assert.Contains(t, out, `"id": "2"`)

	out = e.mustRun("preload", "list")
	assert.Contains(t, out, "orders")
	assert.NotContains(t, out, "never")

	out, err := e.run("n\n", "preload", "reset")
	require.NoError(t, err, out)
	assert.Contains(t, e.mustRun("preload", "list"), "orders")

	e.mustRun("preload", "reset", "-y")
	assert.NotContains(t, e.mustRun("preload", "list"), "orders")
}

func TestDelete(t *testing.T) {
	e := newEnv(t)
	id := e.enqueue()

	out, err := e.run("no\n", "delete", id)
	require.NoError(t, err, out)
	assert.Len(t, e.listJSON(), 1)

	out, err = e.run("y\n", "delete", id)
	require.NoError(t, err, out)
	assert.Empty(t, e.listJSON())
}

func TestDevice_Stable(t *testing.T) {
	e := newEnv(t)
	first := e.mustRun("device")
	assert.NotEmpty(t, strings.TrimSpace(first))
	assert.Equal(t, first, e.mustRun("device"))
}

func TestStatus(t *testing.T) {
	e := newEnv(t)
	e.enqueue()

	out := e.mustRun("status")
	assert.Contains(t, out, "connectivity: online")
	assert.Contains(t, out, "offline:      1")
}

func TestFetch_ServesCacheWhenServerGone(t *testing.T) {
	e := newEnv(t)
	data := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "hello")
	}))

	out := e.mustRun("fetch", data.URL+"/greeting")
	assert.Contains(t, out, "200 OK")
	assert.Contains(t, out, "hello")

	data.Close()
	e.server = "http://127.0.0.1:1"

	out = e.mustRun("fetch", data.URL+"/greeting")
	assert.Contains(t, out, "hello")

	_, err := e.run("", "fetch", data.URL+"/other")
	assert.Error(t, err)
}

func TestFetch_NetworkFirstMissIs503(t *testing.T) {
	e := newEnv(t)
	data := httptest.NewServer(http.NotFoundHandler())
	data.Close()

	out := e.mustRun("fetch", "--status-only", data.URL+"/missing")
	assert.Contains(t, out, "503")
}

func TestDisabledStoreStillRuns(t *testing.T) {
	e := newEnv(t)
	e.db = filepath.Join(t.TempDir(), "missing", "offlinesync.db")

	out := e.mustRun("list")
	assert.Contains(t, out, "offline features are disabled")
	assert.Contains(t, out, "No actions")
}

func TestInvalidConfig(t *testing.T) {
	e := newEnv(t)
	_, err := e.run("", "--asset-store", "ftp", "list")
	assert.ErrorContains(t, err, "unknown asset store")
}

func TestShell(t *testing.T) {
	e := newEnv(t)
	script := strings.Join([]string{
		"enqueue --url /orders --object orders --action create",
		"list --status offline",
		"bogus",
		"sync",
		"list",
		"exit",
	}, "\n")

	out, err := e.run(script, "shell", "--watch=false")
	require.NoError(t, err, out)
	assert.Contains(t, out, "offline")
	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "0 action(s) still offline")
	assert.Contains(t, out, "No actions")
	assert.Contains(t, out, "Bye!")
	assert.EqualValues(t, 1, e.posts.Load())
}
