package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/common"
)

type HTTPClient struct {
	base *url.URL
	http *http.Client
}

// NewHTTPClient creates a client for the server at baseURL. A zero timeout
// leaves requests bounded by their context only.
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: scheme and host required", baseURL)
	}
	return &HTTPClient{base: u, http: &http.Client{Timeout: timeout}}, nil
}

func (c *HTTPClient) BaseURL() *url.URL {
	u := *c.base
	return &u
}

func (c *HTTPClient) resolve(ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", ref, err)
	}
	if r.IsAbs() {
		return r, nil
	}
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(r.Path, "/")
	u.RawQuery = r.RawQuery
	return &u, nil
}

func (c *HTTPClient) Send(ctx context.Context, a *models.QueuedAction, deviceID string) (*models.Response, error) {
	u, err := c.resolve(a.Request.URL)
	if err != nil {
		return nil, err
	}
	method := strings.ToUpper(a.Request.Method)
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(a.Request.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range a.Request.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", common.ContentTypeJSON)
	req.Header.Set(common.RequestIDHeaderName, a.ID)
	req.Header.Set(common.DeviceIDHeaderName, deviceID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, mapError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mapError(err)
	}
	return &models.Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *HTTPClient) FetchPreload(ctx context.Context, p *models.Preload) (json.RawMessage, error) {
	u, _ := c.resolve("/preloads/" + url.PathEscape(p.ObjectAlias))
	q := u.Query()
	if p.Page != "" {
		q.Set("page", p.Page)
	}
	if p.Widget != "" {
		q.Set("widget", p.Widget)
	}
	if len(p.DataColumns) > 0 {
		q.Set("columns", strings.Join(p.DataColumns, ","))
	}
	u.RawQuery = q.Encode()

	resp, err := c.Fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mapError(err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: preload %s: %d", ErrUnexpectedStatus, p.ID, resp.StatusCode)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("preload %s: response is not valid json", p.ID)
	}
	return body, nil
}

func (c *HTTPClient) Fetch(ctx context.Context, rawURL string) (*http.Response, error) {
	u, err := c.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
