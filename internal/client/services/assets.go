package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/offlinesync/internal/client/client"
	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/logging"
	"github.com/dmitrijs2005/offlinesync/internal/timex"
)

// AssetStore is the dedicated asset cache. See repositories/assets and
// assetstore for implementations.
type AssetStore interface {
	Put(ctx context.Context, a *models.Asset) error
}

// AssetService prefetches binary assets. It is best-effort: nothing is
// retried and individual failures are only logged.
type AssetService interface {
	// SyncImages fetches every distinct url and stores the same-origin 200
	// responses. It returns how many assets were stored.
	SyncImages(ctx context.Context, urls []string) (int, error)
}

type assetService struct {
	client client.Client
	store  AssetStore
	clock  timex.Clock
	log    logging.Logger
}

func NewAssetService(c client.Client, store AssetStore, clock timex.Clock, log logging.Logger) AssetService {
	if log == nil {
		log = logging.Nop()
	}
	return &assetService{client: c, store: store, clock: clock, log: log}
}

func (s *assetService) SyncImages(ctx context.Context, urls []string) (int, error) {
	seen := make(map[string]struct{}, len(urls))
	stored := 0

	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}

		if err := ctx.Err(); err != nil {
			return stored, err
		}

		ok, err := s.fetch(ctx, u)
		if err != nil {
			s.log.Debug(ctx, "asset skipped", "url", u, "error", err)
			continue
		}
		if ok {
			stored++
		}
	}
	return stored, nil
}

func (s *assetService) fetch(ctx context.Context, rawURL string) (bool, error) {
	resp, err := s.client.Fetch(ctx, rawURL)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}
	if !sameOrigin(s.client.BaseURL(), finalURL(resp, rawURL)) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("cross-origin response")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}

	a := &models.Asset{
		URL:         rawURL,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   s.clock.Now().UTC(),
	}
	if err := s.store.Put(ctx, a); err != nil {
		return false, err
	}
	return true, nil
}

// finalURL is the url that produced resp after redirects.
func finalURL(resp *http.Response, rawURL string) *url.URL {
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL
	}
	u, _ := url.Parse(rawURL)
	return u
}

func sameOrigin(base, u *url.URL) bool {
	if base == nil || u == nil {
		return false
	}
	if !u.IsAbs() {
		return true
	}
	return base.Scheme == u.Scheme && base.Host == u.Host
}
