// Package requestcache caches request/response pairs, including those of
// state-changing methods that HTTP caches normally skip, and provides
// cache-favoring and network-favoring http.RoundTripper strategies selected
// by connectivity.
package requestcache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/client/repositories/requests"
	"github.com/dmitrijs2005/offlinesync/internal/logging"
	"github.com/dmitrijs2005/offlinesync/internal/timex"
)

// DefaultCacheName partitions the generic request cache in the store.
const DefaultCacheName = "requests"

// volatileHeaders change between otherwise identical requests and are left
// out of the cache key.
var volatileHeaders = map[string]bool{
	"accept-encoding": true,
	"connection":      true,
	"content-length":  true,
	"cookie":          true,
	"date":            true,
	"user-agent":      true,
	"x-device-id":     true,
	"x-request-id":    true,
}

type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

type Response struct {
	StatusCode int         `json:"status"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body,omitempty"`

	// Synthesized marks the 503 produced by Match on a miss.
	Synthesized bool `json:"-"`
}

// Unavailable is the response Match returns when nothing usable is cached.
func Unavailable() Response {
	return Response{
		StatusCode:  http.StatusServiceUnavailable,
		Header:      http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:        []byte(http.StatusText(http.StatusServiceUnavailable)),
		Synthesized: true,
	}
}

// Key returns the canonical serialization of r: upper-cased method, url,
// lower-cased and sorted non-volatile headers, and body.
func Key(r Request) string {
	type header struct {
		Name  string `json:"n"`
		Value string `json:"v"`
	}
	canon := struct {
		Method  string   `json:"method"`
		URL     string   `json:"url"`
		Headers []header `json:"headers"`
		Body    string   `json:"body"`
	}{
		Method:  strings.ToUpper(r.Method),
		URL:     r.URL,
		Headers: []header{},
		Body:    string(r.Body),
	}
	if canon.Method == "" {
		canon.Method = http.MethodGet
	}

	for name, values := range r.Headers {
		n := strings.ToLower(name)
		if volatileHeaders[n] {
			continue
		}
		canon.Headers = append(canon.Headers, header{Name: n, Value: strings.Join(values, ",")})
	}
	sort.Slice(canon.Headers, func(i, j int) bool {
		if canon.Headers[i].Name != canon.Headers[j].Name {
			return canon.Headers[i].Name < canon.Headers[j].Name
		}
		return canon.Headers[i].Value < canon.Headers[j].Value
	})

	// marshaling a struct of strings cannot fail
	b, _ := json.Marshal(canon)
	return string(b)
}

// Cache is one named partition of the request cache.
type Cache struct {
	repo  requests.Repository
	name  string
	clock timex.Clock
	log   logging.Logger
}

func New(repo requests.Repository, name string, clock timex.Clock, log logging.Logger) *Cache {
	if name == "" {
		name = DefaultCacheName
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Cache{repo: repo, name: name, clock: clock, log: log}
}

func (c *Cache) Name() string { return c.name }

// Put stores resp under the canonical key of req, replacing any previous
// entry.
func (c *Cache) Put(ctx context.Context, req Request, resp Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return c.repo.Put(ctx, &models.CachedRequest{
		CacheName: c.name,
		Key:       Key(req),
		Response:  b,
		Timestamp: c.clock.Now().UTC(),
	})
}

// Match never fails: a miss, a store error or an undecodable entry all
// yield Unavailable().
func (c *Cache) Match(ctx context.Context, req Request) Response {
	resp, _, ok := c.lookup(ctx, req)
	if !ok {
		return Unavailable()
	}
	return resp
}

func (c *Cache) lookup(ctx context.Context, req Request) (Response, time.Time, bool) {
	e, err := c.repo.Get(ctx, c.name, Key(req))
	if err != nil {
		return Response{}, time.Time{}, false
	}
	var resp Response
	if err := json.Unmarshal(e.Response, &resp); err != nil {
		c.log.Warn(ctx, "dropping undecodable cache entry", "cache", c.name, "error", err)
		return Response{}, time.Time{}, false
	}
	return resp, e.Timestamp, true
}

// Evict applies the entry and age bounds. Zero disables a bound.
func (c *Cache) Evict(ctx context.Context, maxEntries int, maxAge time.Duration) error {
	var olderThan time.Time
	if maxAge > 0 {
		olderThan = c.clock.Now().Add(-maxAge)
	}
	n, err := c.repo.Evict(ctx, c.name, maxEntries, olderThan)
	if err != nil {
		return err
	}
	if n > 0 {
		c.log.Debug(ctx, "cache entries evicted", "cache", c.name, "count", n)
	}
	return nil
}

// FromHTTP captures r as a Request. The body is read and restored so r can
// still be sent.
func FromHTTP(r *http.Request) (Request, error) {
	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		b, err := io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			return Request{}, err
		}
		body = b
		r.Body = io.NopCloser(bytes.NewReader(b))
		r.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(b)), nil }
	}
	return Request{Method: r.Method, URL: r.URL.String(), Headers: r.Header.Clone(), Body: body}, nil
}

// ResponseFromHTTP drains resp and captures it.
func ResponseFromHTTP(resp *http.Response) (Response, error) {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}
	return Response{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), Body: b}, nil
}

// ToHTTP builds an *http.Response answering req.
func (r Response) ToHTTP(req *http.Request) *http.Response {
	h := r.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", r.StatusCode, http.StatusText(r.StatusCode)),
		StatusCode:    r.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}
