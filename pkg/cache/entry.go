package cache

import (
	"net/http"
	"strconv"
	"time"
)

// HeaderCachedAt carries the Unix epoch milliseconds at which a cache-first
// response was stored.
const HeaderCachedAt = "sw-cached-at"

// Entry represents a stored HTTP response.
type Entry struct {
	// URL is the request URL the response answers.
	URL string `json:"url"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers, including any injected sw-cached-at
	Headers http.Header `json:"headers"`

	// Data is the response body
	Data []byte `json:"data"`

	// StoredAt is when the entry was written to its store
	StoredAt time.Time `json:"stored_at"`
}

// CachedAt returns the time recorded in the sw-cached-at header.
// The bool is false when the header is missing or not a valid integer.
func (e *Entry) CachedAt() (time.Time, bool) {
	if e == nil {
		return time.Time{}, false
	}
	raw := e.Headers.Get(HeaderCachedAt)
	if raw == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Age returns how long ago the entry was stamped, relative to now.
// The bool is false when the entry carries no sw-cached-at header.
func (e *Entry) Age(now time.Time) (time.Duration, bool) {
	cachedAt, ok := e.CachedAt()
	if !ok {
		return 0, false
	}
	return now.Sub(cachedAt), true
}

// IsFresh reports whether the entry was stamped less than maxAge ago.
// Unstamped entries are never fresh.
func (e *Entry) IsFresh(now time.Time, maxAge time.Duration) bool {
	age, ok := e.Age(now)
	if !ok {
		return false
	}
	return age < maxAge
}

// Stamp sets the sw-cached-at header to now.
func (e *Entry) Stamp(now time.Time) {
	if e.Headers == nil {
		e.Headers = make(http.Header)
	}
	e.Headers.Set(HeaderCachedAt, strconv.FormatInt(now.UnixMilli(), 10))
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	data := make([]byte, len(e.Data))
	copy(data, e.Data)
	return &Entry{
		URL:        e.URL,
		StatusCode: e.StatusCode,
		Headers:    e.Headers.Clone(),
		Data:       data,
		StoredAt:   e.StoredAt,
	}
}
