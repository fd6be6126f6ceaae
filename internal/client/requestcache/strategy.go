package requestcache

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/offlinesync/internal/client/connectivity"
	"github.com/dmitrijs2005/offlinesync/internal/logging"
)

// Limits bound a strategy cache. Zero disables a bound.
type Limits struct {
	MaxEntries int
	MaxAge     time.Duration
}

func isSuccess(code int) bool { return code >= 200 && code < 300 }

// store caches a 2xx response and applies the limits.
func store(ctx context.Context, c *Cache, lim Limits, req Request, resp Response, log logging.Logger) {
	if !isSuccess(resp.StatusCode) {
		return
	}
	if err := c.Put(ctx, req, resp); err != nil {
		log.Warn(ctx, "cache put failed", "cache", c.Name(), "error", err)
		return
	}
	if err := c.Evict(ctx, lim.MaxEntries, lim.MaxAge); err != nil {
		log.Warn(ctx, "cache eviction failed", "cache", c.Name(), "error", err)
	}
}

// StaleWhileRevalidate answers from cache when an entry younger than MaxAge
// exists and refreshes it in the background. Misses go to the network.
type StaleWhileRevalidate struct {
	Cache  *Cache
	Next   http.RoundTripper
	Limits Limits
	Log    logging.Logger

	wg sync.WaitGroup
}

func (s *StaleWhileRevalidate) logger() logging.Logger {
	if s.Log == nil {
		return logging.Nop()
	}
	return s.Log
}

func (s *StaleWhileRevalidate) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	req, err := FromHTTP(r)
	if err != nil {
		return nil, err
	}

	cached, ts, ok := s.Cache.lookup(ctx, req)
	fresh := ok && (s.Limits.MaxAge <= 0 || s.Cache.clock.Now().Sub(ts) <= s.Limits.MaxAge)
	if fresh {
		s.revalidate(r.Clone(context.WithoutCancel(ctx)), req)
		return cached.ToHTTP(r), nil
	}

	resp, err := s.Next.RoundTrip(r)
	if err != nil {
		if ok {
			// an expired entry still beats no answer
			return cached.ToHTTP(r), nil
		}
		return nil, err
	}

	captured, err := ResponseFromHTTP(resp)
	if err != nil {
		return nil, err
	}
	store(ctx, s.Cache, s.Limits, req, captured, s.logger())
	return captured.ToHTTP(r), nil
}

func (s *StaleWhileRevalidate) revalidate(r *http.Request, req Request) {
	if r.GetBody != nil {
		if body, err := r.GetBody(); err == nil {
			r.Body = body
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := r.Context()

		resp, err := s.Next.RoundTrip(r)
		if err != nil {
			s.logger().Debug(ctx, "revalidation failed", "url", req.URL, "error", err)
			return
		}
		captured, err := ResponseFromHTTP(resp)
		if err != nil {
			return
		}
		store(ctx, s.Cache, s.Limits, req, captured, s.logger())
	}()
}

// Wait blocks until background revalidations finished.
func (s *StaleWhileRevalidate) Wait() {
	s.wg.Wait()
}

// NetworkFirst sends every request and caches 2xx answers. When the
// network fails it answers from cache, or with Unavailable() on a miss.
type NetworkFirst struct {
	Cache  *Cache
	Next   http.RoundTripper
	Limits Limits
	Log    logging.Logger
}

func (n *NetworkFirst) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	log := n.Log
	if log == nil {
		log = logging.Nop()
	}

	req, err := FromHTTP(r)
	if err != nil {
		return nil, err
	}

	resp, err := n.Next.RoundTrip(r)
	if err != nil {
		log.Debug(ctx, "network failed, answering from cache", "url", req.URL, "error", err)
		return n.Cache.Match(ctx, req).ToHTTP(r), nil
	}

	captured, err := ResponseFromHTTP(resp)
	if err != nil {
		return nil, err
	}
	store(ctx, n.Cache, n.Limits, req, captured, log)
	return captured.ToHTTP(r), nil
}

// Selector routes each request by connectivity: degraded and offline use
// the cache-favoring strategy, online the network-favoring one.
type Selector struct {
	Prober          connectivity.Prober
	CacheFavoring   http.RoundTripper
	NetworkFavoring http.RoundTripper
}

func (s *Selector) Select(level connectivity.Level) http.RoundTripper {
	if level == connectivity.Online {
		return s.NetworkFavoring
	}
	return s.CacheFavoring
}

func (s *Selector) RoundTrip(r *http.Request) (*http.Response, error) {
	return s.Select(s.Prober.Classify(r.Context())).RoundTrip(r)
}
