package cache

import (
	"net/url"
	"testing"
)

func TestStoreName(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindStatic, "butterfly-static-v1"},
		{KindDynamic, "butterfly-dynamic-v1"},
		{KindImages, "butterfly-images-v1"},
		{KindAPI, "butterfly-api-v1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := StoreName("butterfly", tt.kind, "v1"); got != tt.want {
				t.Errorf("StoreName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsCurrent(t *testing.T) {
	tests := []struct {
		name    string
		store   string
		version string
		want    bool
	}{
		{"same version", "butterfly-static-v2", "v2", true},
		{"older version", "butterfly-static-v1", "v2", false},
		{"foreign store", "workbox-precache", "v2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCurrent(tt.store, tt.version); got != tt.want {
				t.Errorf("IsCurrent(%q, %q) = %v, want %v", tt.store, tt.version, got, tt.want)
			}
		})
	}
}

func TestRequestKey(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain path",
			raw:  "https://shop.example.com/products",
			want: "https://shop.example.com/products",
		},
		{
			name: "fragment dropped",
			raw:  "https://shop.example.com/products#top",
			want: "https://shop.example.com/products",
		},
		{
			name: "query sorted",
			raw:  "https://shop.example.com/api/products?page=2&cat=lips",
			want: "https://shop.example.com/api/products?cat=lips&page=2",
		},
		{
			name: "host lowercased",
			raw:  "https://Shop.Example.com/a.png",
			want: "https://shop.example.com/a.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := RequestKey(u); got != tt.want {
				t.Errorf("RequestKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestRequestKey_Determinism ensures equivalent URLs map to one key.
func TestRequestKey_Determinism(t *testing.T) {
	a, _ := url.Parse("https://shop.example.com/api/p?b=2&a=1&c=3")
	b, _ := url.Parse("https://shop.example.com/api/p?c=3&a=1&b=2")

	if RequestKey(a) != RequestKey(b) {
		t.Errorf("RequestKey not deterministic: %q vs %q", RequestKey(a), RequestKey(b))
	}
	if RequestKey(nil) != "" {
		t.Error("RequestKey(nil) should be empty")
	}
}
