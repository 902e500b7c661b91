// ABOUTME: Feed record holding per-source polling state with HTTP caching support
// ABOUTME: Tracks period, cache validators, last attempt time, and display metadata

package models

import "time"

// Feed represents one configured feed source and its polling state.
// URL is the feed's stable identity across runs; Period and Args are
// overwritten from configuration on every cycle so edits take effect
// without touching the rest of the record.
type Feed struct {
	URL          string            `json:"url"`
	Period       time.Duration     `json:"period"`
	Args         map[string]string `json:"args,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	LastModified string            `json:"last_modified,omitempty"`
	LastUpdate   time.Time         `json:"last_update"`
	Title        string            `json:"title,omitempty"`
	Link         string            `json:"link,omitempty"`
}

// NewFeed creates a feed record for a URL that just appeared in configuration.
func NewFeed(url string, period time.Duration, args map[string]string) *Feed {
	return &Feed{
		URL:    url,
		Period: period,
		Args:   args,
	}
}

// Due reports whether the feed is due for a fetch attempt.
// LastUpdate tracks attempts, not successes, so a failing feed is not
// retried every cycle as if it were fresh.
func (f *Feed) Due(now time.Time) bool {
	return now.Sub(f.LastUpdate) >= f.Period
}

// ClearValidators drops the cached ETag and Last-Modified values so the
// next fetch cannot short-circuit on "not modified". Used for forced
// refreshes.
func (f *Feed) ClearValidators() {
	f.ETag = ""
	f.LastModified = ""
}

// SetValidators stores cache validators from a completed fetch, keeping
// the previous value when the server did not send a replacement.
func (f *Feed) SetValidators(etag, lastModified string) {
	if etag != "" {
		f.ETag = etag
	}
	if lastModified != "" {
		f.LastModified = lastModified
	}
}

// Arg returns a per-feed configuration argument, or "" if unset.
func (f *Feed) Arg(key string) string {
	return f.Args[key]
}

// BoolArg reports whether a per-feed argument is set to "true".
func (f *Feed) BoolArg(key string) bool {
	return f.Args[key] == "true"
}

// DisplayName returns the best human-readable name for the feed:
// metadata title, then metadata link, then the URL itself.
func (f *Feed) DisplayName() string {
	if f.Title != "" {
		return f.Title
	}
	if f.Link != "" {
		return f.Link
	}
	return f.URL
}
