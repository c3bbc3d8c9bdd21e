package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Kind identifies one of the four store families.
type Kind string

const (
	KindStatic  Kind = "static"
	KindDynamic Kind = "dynamic"
	KindImages  Kind = "images"
	KindAPI     Kind = "api"
)

// Kinds lists every store kind.
var Kinds = []Kind{KindStatic, KindDynamic, KindImages, KindAPI}

// StoreName builds the versioned name of a store.
// Format: <namespace>-<kind>-<version>
//
// Example:
//
//	butterfly-images-v3
func StoreName(namespace string, kind Kind, version string) string {
	return fmt.Sprintf("%s-%s-%s", namespace, kind, version)
}

// IsCurrent reports whether a store name belongs to the given version.
// Only the substring is checked, mirroring how stores are invalidated.
func IsCurrent(name, version string) bool {
	return strings.Contains(name, version)
}

// RequestKey generates a deterministic key for a request URL.
// The fragment is dropped and query parameters are sorted.
//
// Example:
//
//	https://shop.example.com/api/products?page=2&cat=lips
//	-> https://shop.example.com/api/products?cat=lips&page=2
func RequestKey(u *url.URL) string {
	if u == nil {
		return ""
	}
	k := *u
	k.Fragment = ""
	k.RawFragment = ""
	k.Scheme = strings.ToLower(k.Scheme)
	k.Host = strings.ToLower(k.Host)

	if k.RawQuery != "" {
		query := k.Query()
		keys := make([]string, 0, len(query))
		for key := range query {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			values := query[key]
			for _, v := range values {
				parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(v))
			}
		}
		k.RawQuery = strings.Join(parts, "&")
	}

	return k.String()
}
