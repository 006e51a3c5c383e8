// Package cache provides an optional Redis-backed cache for archive page
// responses, so a re-run shortly after a partial harvest can skip pages the
// site already served.
package cache

import (
	"time"
)

// Entry is one cached page response.
type Entry struct {
	// StatusCode is the HTTP status of the cached response.
	StatusCode int `json:"status_code"`

	// Body is the raw response body.
	Body []byte `json:"body"`

	// FetchedAt is when the response was retrieved from the site.
	FetchedAt time.Time `json:"fetched_at"`
}

// Age returns how long ago the entry was fetched.
func (e *Entry) Age() time.Duration {
	return time.Since(e.FetchedAt)
}
