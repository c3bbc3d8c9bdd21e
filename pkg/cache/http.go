package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HeaderSynthetic marks responses generated by the edge itself.
const HeaderSynthetic = "X-Edge-Synthetic"

const offlineHTML = `<!DOCTYPE html>
<html lang="en"><head><meta charset="utf-8"><title>Offline</title></head>
<body><h1>You are offline</h1><p>Please check your connection and try again.</p>
<p dir="rtl" lang="ar">أنت غير متصل بالإنترنت. يرجى التحقق من الاتصال والمحاولة مرة أخرى.</p></body></html>
`

// ResponseToEntry converts an HTTP response to an Entry.
// It reads the response body and restores it so the caller can still
// consume the response.
func ResponseToEntry(resp *http.Response, storedAt time.Time) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		resp.Body.Close()
	}

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	entry := &Entry{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Data:       body,
		StoredAt:   storedAt,
	}
	if entry.Headers == nil {
		entry.Headers = make(http.Header)
	}
	if resp.Request != nil && resp.Request.URL != nil {
		entry.URL = RequestKey(resp.Request.URL)
	}

	return entry, nil
}

// EntryToResponse builds a fresh response from an entry. Each call returns an
// independent body reader.
func EntryToResponse(entry *Entry, req *http.Request) *http.Response {
	header := entry.Headers.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", entry.StatusCode, http.StatusText(entry.StatusCode)),
		StatusCode:    entry.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Data)),
		ContentLength: int64(len(entry.Data)),
		Request:       req,
	}
}

// Unavailable returns the synthetic 503 used when neither network nor cache
// can answer. With html set the body is a minimal bilingual offline page.
func Unavailable(req *http.Request, html bool) *http.Response {
	header := make(http.Header)
	header.Set(HeaderSynthetic, "1")
	header.Set("Cache-Control", "no-store")

	body := []byte("Service Unavailable")
	if html {
		header.Set("Content-Type", "text/html; charset=utf-8")
		body = []byte(offlineHTML)
	} else {
		header.Set("Content-Type", "text/plain; charset=utf-8")
	}
	header.Set("Content-Length", strconv.Itoa(len(body)))

	return &http.Response{
		Status:        "503 Service Unavailable",
		StatusCode:    http.StatusServiceUnavailable,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// IsCacheable reports whether a network response may be stored.
func IsCacheable(resp *http.Response) bool {
	return resp != nil && resp.StatusCode >= 200 && resp.StatusCode < 300
}

// IsPrivateRequest reports whether req carries credentials. Responses to such
// requests belong to one user and never enter a shared store.
func IsPrivateRequest(req *http.Request) bool {
	if req == nil {
		return false
	}
	return req.Header.Get("Authorization") != "" || req.Header.Get("Cookie") != ""
}

// IsShareable reports whether resp, fetched for req, may be replayed to
// other clients. Set-Cookie and Cache-Control private or no-store keep a
// response out of the cache.
func IsShareable(req *http.Request, resp *http.Response) bool {
	if resp == nil || IsPrivateRequest(req) {
		return false
	}
	if len(resp.Header.Values("Set-Cookie")) > 0 {
		return false
	}
	for _, value := range resp.Header.Values("Cache-Control") {
		for _, directive := range strings.Split(value, ",") {
			name, _, _ := strings.Cut(strings.TrimSpace(directive), "=")
			switch strings.ToLower(name) {
			case "private", "no-store":
				return false
			}
		}
	}
	return true
}
