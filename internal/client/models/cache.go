package models

import (
	"encoding/json"
	"time"
)

// Preload is a locally cached read-result for a domain object or UI scope.
// Its content is replaced wholesale on every sync.
type Preload struct {
	ID           string
	ObjectAlias  string
	Page         string
	Widget       string
	DataColumns  []string
	ImageColumns []string
	Response     json.RawMessage
	LastSyncAt   *time.Time
}

// CachedRequest is one cached response for a canonical request key.
type CachedRequest struct {
	CacheName string
	Key       string
	Response  []byte
	Timestamp time.Time
}

// Asset is a prefetched binary resource such as an image.
type Asset struct {
	URL         string
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}
