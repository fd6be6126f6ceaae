// Package connectivity classifies the link to the server as online, degraded
// or offline and watches it for transitions.
package connectivity

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type Level int

const (
	Offline Level = iota
	Degraded
	Online
)

func (l Level) String() string {
	switch l {
	case Online:
		return "online"
	case Degraded:
		return "degraded"
	default:
		return "offline"
	}
}

// Prober classifies the current connectivity.
type Prober interface {
	Classify(ctx context.Context) Level
}

// HTTPProbe classifies by issuing GET <server>/ping.
//
// A transport failure is offline. A 5xx answer or one slower than
// DegradedLatency is degraded. Anything else is online.
type HTTPProbe struct {
	URL             string
	Client          *http.Client
	DegradedLatency time.Duration
}

func NewHTTPProbe(serverURL string, timeout, degradedLatency time.Duration) *HTTPProbe {
	return &HTTPProbe{
		URL:             strings.TrimRight(serverURL, "/") + "/ping",
		Client:          &http.Client{Timeout: timeout},
		DegradedLatency: degradedLatency,
	}
}

func (p *HTTPProbe) Classify(ctx context.Context) Level {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return Offline
	}

	start := time.Now()
	resp, err := p.Client.Do(req)
	if err != nil {
		return Offline
	}
	resp.Body.Close()
	elapsed := time.Since(start)

	if resp.StatusCode >= 500 {
		return Degraded
	}
	if p.DegradedLatency > 0 && elapsed > p.DegradedLatency {
		return Degraded
	}
	return Online
}
