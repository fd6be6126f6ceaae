package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/offlinesync/internal/client/models"
)

type Client interface {
	// BaseURL is the server origin requests are resolved against.
	BaseURL() *url.URL
	// Send transmits a queued action. A nil error means a response was
	// received, whatever its status.
	Send(ctx context.Context, a *models.QueuedAction, deviceID string) (*models.Response, error)
	// FetchPreload returns the fresh server content of a cached data set.
	FetchPreload(ctx context.Context, p *models.Preload) (json.RawMessage, error)
	// Fetch issues a plain GET. The caller closes the body.
	Fetch(ctx context.Context, rawURL string) (*http.Response, error)
}
