package cache

import (
	"net/http"
	"strconv"
	"testing"
	"time"
)

func stampedEntry(at time.Time) *Entry {
	e := &Entry{Headers: make(http.Header)}
	e.Stamp(at)
	return e
}

func headerEntry(value string) *Entry {
	h := make(http.Header)
	h.Set(HeaderCachedAt, value)
	return &Entry{Headers: h}
}

func TestEntry_IsFresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	maxAge := 30 * 24 * time.Hour

	tests := []struct {
		name  string
		entry *Entry
		want  bool
	}{
		{
			name:  "one day old",
			entry: stampedEntry(now.Add(-24 * time.Hour)),
			want:  true,
		},
		{
			name:  "just under max age",
			entry: stampedEntry(now.Add(-maxAge + time.Second)),
			want:  true,
		},
		{
			name:  "exactly max age",
			entry: stampedEntry(now.Add(-maxAge)),
			want:  false,
		},
		{
			name:  "31 days old",
			entry: stampedEntry(now.Add(-31 * 24 * time.Hour)),
			want:  false,
		},
		{
			name:  "no header",
			entry: &Entry{Headers: http.Header{}},
			want:  false,
		},
		{
			name:  "garbage header",
			entry: headerEntry("yesterday"),
			want:  false,
		},
		{
			name:  "raw header value",
			entry: headerEntry(strconv.FormatInt(now.Add(-time.Hour).UnixMilli(), 10)),
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.IsFresh(now, maxAge); got != tt.want {
				t.Errorf("IsFresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_Stamp(t *testing.T) {
	now := time.UnixMilli(1767225600123)
	entry := &Entry{}

	entry.Stamp(now)

	if got := entry.Headers.Get(HeaderCachedAt); got != "1767225600123" {
		t.Errorf("sw-cached-at = %q, want 1767225600123", got)
	}
	cachedAt, ok := entry.CachedAt()
	if !ok || !cachedAt.Equal(now) {
		t.Errorf("CachedAt() = %v, %v; want %v, true", cachedAt, ok, now)
	}
}

func TestEntry_Clone(t *testing.T) {
	orig := &Entry{
		URL:        "https://shop.example.com/a.png",
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"image/png"}},
		Data:       []byte("png"),
	}

	clone := orig.Clone()
	clone.Headers.Set("Content-Type", "text/plain")
	clone.Data[0] = 'X'

	if orig.Headers.Get("Content-Type") != "image/png" {
		t.Error("Clone shares headers with original")
	}
	if string(orig.Data) != "png" {
		t.Error("Clone shares body with original")
	}
	if (*Entry)(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}
