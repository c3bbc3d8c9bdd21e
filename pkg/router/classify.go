package router

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/Sternrassler/storefront-edge/pkg/cache"
)

// Strategy names how a request is answered from cache and network.
type Strategy string

const (
	CacheFirst           Strategy = "cache_first"
	NetworkFirst         Strategy = "network_first"
	StaleWhileRevalidate Strategy = "stale_while_revalidate"
)

// Route is the outcome of classifying a request URL.
type Route struct {
	Strategy Strategy
	Kind     cache.Kind
}

// HashedAssetMarker identifies fingerprinted build output.
const HashedAssetMarker = "/static/"

var (
	imageExts = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".webp": true, ".avif": true, ".svg": true, ".ico": true,
	}
	fontExts = map[string]bool{
		".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	}
	fontHosts = map[string]bool{
		"fonts.googleapis.com": true,
		"fonts.gstatic.com":    true,
	}
)

// Classify picks the route for u. The first matching rule wins:
//
//	/api/ prefix or api. host        stale-while-revalidate  api
//	image extension                  cache-first             images
//	font extension or font CDN host  cache-first             static
//	hashed .css/.js under /static/   cache-first             static
//	.html, "/" or no extension       network-first           dynamic
//	anything else                    stale-while-revalidate  dynamic
func Classify(u *url.URL) Route {
	p := u.Path
	if p == "" {
		p = "/"
	}
	host := strings.ToLower(u.Hostname())
	ext := strings.ToLower(path.Ext(p))

	switch {
	case strings.HasPrefix(p, "/api/") || strings.Contains(host, "api."):
		return Route{StaleWhileRevalidate, cache.KindAPI}
	case imageExts[ext]:
		return Route{CacheFirst, cache.KindImages}
	case fontExts[ext] || fontHosts[host]:
		return Route{CacheFirst, cache.KindStatic}
	case (ext == ".css" || ext == ".js") && strings.Contains(p, HashedAssetMarker):
		return Route{CacheFirst, cache.KindStatic}
	case ext == ".html" || p == "/" || ext == "":
		return Route{NetworkFirst, cache.KindDynamic}
	default:
		return Route{StaleWhileRevalidate, cache.KindDynamic}
	}
}

// Max ages per store kind. Dynamic and api stores are never served
// cache-first by Classify; their values are kept for completeness.
var maxAges = map[cache.Kind]time.Duration{
	cache.KindStatic:  7 * 24 * time.Hour,
	cache.KindImages:  30 * 24 * time.Hour,
	cache.KindDynamic: 24 * time.Hour,
	cache.KindAPI:     5 * time.Minute,
}

// MaxAge returns how long a cache-first entry of kind stays fresh.
func MaxAge(kind cache.Kind) time.Duration {
	return maxAges[kind]
}
