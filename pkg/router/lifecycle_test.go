package router

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/Sternrassler/storefront-edge/internal/testutil"
	"github.com/Sternrassler/storefront-edge/pkg/cache"
)

func TestAssetManifest_CriticalAssets(t *testing.T) {
	manifest := AssetManifest{
		Files: map[string]string{
			"main.js":        "/static/js/main.3f2a.js",
			"main.css":       "/static/css/main.9c1d.css",
			"index.html":     "/index.html",
			"logo.svg":       "/static/media/logo.5d5d.svg",
			"main.js.map":    "/static/js/main.3f2a.js.map",
			"runtime.js":     "static/js/runtime.11aa.js",
			"blank":          "  ",
			"duplicate-main": "/static/js/main.3f2a.js",
		},
		Entrypoints: []string{"static/js/main.3f2a.js", "static/css/main.9c1d.css"},
	}

	want := []string{
		"/index.html",
		"/static/css/main.9c1d.css",
		"/static/js/main.3f2a.js",
		"/static/js/runtime.11aa.js",
	}
	if got := manifest.CriticalAssets(); !reflect.DeepEqual(got, want) {
		t.Errorf("CriticalAssets() = %v, want %v", got, want)
	}

	if got := (AssetManifest{}).CriticalAssets(); len(got) != 0 {
		t.Errorf("empty manifest CriticalAssets() = %v", got)
	}
}

func TestInstall_PrecachesShell(t *testing.T) {
	env := newTestEnv(t, nil)

	if err := env.router.Install(context.Background()); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if got := env.router.State(); got != StateInstalled {
		t.Errorf("State() = %s, want %s", got, StateInstalled)
	}

	for _, path := range []string{"/", "/offline.html"} {
		entry := env.cached(t, cache.KindStatic, path)
		if entry == nil {
			t.Errorf("shell asset %s not precached", path)
			continue
		}
		if string(entry.Data) != "origin:"+path {
			t.Errorf("%s body = %q", path, entry.Data)
		}
	}

	// A second Install is a no-op.
	env.origin.Reset()
	if err := env.router.Install(context.Background()); err != nil {
		t.Errorf("second Install() error = %v", err)
	}
	if n := env.origin.TotalRequests(); n != 0 {
		t.Errorf("second Install made %d origin requests", n)
	}
}

func TestInstall_ShellIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t, nil)
	env.origin.SetResponse("/offline.html", testutil.NewServerErrorResponse())

	err := env.router.Install(context.Background())
	if err == nil {
		t.Fatal("Install() expected error")
	}
	if got := env.router.State(); got != StateRedundant {
		t.Errorf("State() = %s, want %s", got, StateRedundant)
	}
	keys, _ := env.store(t, cache.KindStatic).Keys(context.Background())
	if len(keys) != 0 {
		t.Errorf("failed install left entries: %v", keys)
	}
	if err := env.router.Activate(context.Background()); !errors.Is(err, ErrNotInstalled) {
		t.Errorf("Activate() after failed install error = %v, want ErrNotInstalled", err)
	}

	// Install can be retried once the origin recovers.
	env.origin.SetResponse("/offline.html", testutil.NewHTMLResponse("<h1>offline</h1>"))
	if err := env.router.Install(context.Background()); err != nil {
		t.Fatalf("retried Install() error = %v", err)
	}
	if env.cached(t, cache.KindStatic, "/offline.html") == nil {
		t.Error("offline page not precached on retry")
	}
}

func TestInstall_AssetManifest(t *testing.T) {
	tests := []struct {
		name     string
		manifest *testutil.MockResponse
		want     []string
	}{
		{
			name: "manifest assets precached",
			manifest: func() *testutil.MockResponse {
				resp := testutil.NewAssetManifest(map[string]string{
					"main.js":  "/static/js/main.3f2a.js",
					"main.css": "/static/css/main.9c1d.css",
					"logo.svg": "/static/media/logo.svg",
				}, []string{"static/js/main.3f2a.js"})
				return &resp
			}(),
			want: []string{"/", "/offline.html", "/static/css/main.9c1d.css", "/static/js/main.3f2a.js"},
		},
		{
			name: "missing manifest is ignored",
			manifest: func() *testutil.MockResponse {
				resp := testutil.MockResponse{StatusCode: http.StatusNotFound}
				return &resp
			}(),
			want: []string{"/", "/offline.html"},
		},
		{
			name: "malformed manifest is ignored",
			manifest: func() *testutil.MockResponse {
				resp := testutil.NewJSONResponse(http.StatusOK, "{not json")
				return &resp
			}(),
			want: []string{"/", "/offline.html"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(cfg *Config, _ string) {
				cfg.AssetManifestPath = "/asset-manifest.json"
			})
			env.origin.SetResponse("/asset-manifest.json", *tt.manifest)

			if err := env.router.Install(context.Background()); err != nil {
				t.Fatalf("Install() error = %v", err)
			}

			keys, _ := env.store(t, cache.KindStatic).Keys(context.Background())
			want := make([]string, len(tt.want))
			for i, p := range tt.want {
				want[i] = env.key(p)
			}
			sort.Strings(keys)
			sort.Strings(want)
			if !reflect.DeepEqual(keys, want) {
				t.Errorf("static keys = %v, want %v", keys, want)
			}
		})
	}
}

func TestInstall_CriticalFontsAreOptional(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, originURL string) {
		cfg.CriticalFonts = []string{
			originURL + "/fonts/cairo.woff2",
			originURL + "/fonts/broken.woff2",
		}
	})
	env.origin.SetResponse("/fonts/broken.woff2", testutil.NewServerErrorResponse())

	if err := env.router.Install(context.Background()); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if env.cached(t, cache.KindStatic, "/fonts/cairo.woff2") == nil {
		t.Error("font not precached")
	}
	if env.cached(t, cache.KindStatic, "/fonts/broken.woff2") != nil {
		t.Error("failed font stored")
	}
}

func TestActivate_DeletesOutdatedStores(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for _, name := range []string{"butterfly-static-v1", "butterfly-images-v1", "butterfly-api-v1", "legacy-cache"} {
		if _, err := env.storage.Open(ctx, name); err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
	}

	if err := env.router.Activate(ctx); !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("Activate() before Install error = %v, want ErrNotInstalled", err)
	}

	if err := env.router.Install(ctx); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if err := env.router.Activate(ctx); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if got := env.router.State(); got != StateActive {
		t.Errorf("State() = %s, want %s", got, StateActive)
	}

	names, err := env.storage.Names(ctx)
	if err != nil {
		t.Fatalf("Names() error = %v", err)
	}
	if want := []string{"butterfly-static-v2"}; !reflect.DeepEqual(names, want) {
		t.Errorf("stores after Activate = %v, want %v", names, want)
	}
	for _, name := range names {
		if !cache.IsCurrent(name, "v2") {
			t.Errorf("outdated store %s survived activation", name)
		}
	}

	if err := env.router.Activate(ctx); err != nil {
		t.Errorf("second Activate() error = %v", err)
	}
}

func TestPeriodicSync(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ string) {
		cfg.SyncRoutes = []string{"/", "/products", "/categories"}
	})
	env.activate(t)
	env.put(t, cache.KindDynamic, "/categories", "old-categories", testStart)
	env.origin.SetResponse("/categories", testutil.NewServerErrorResponse())

	err := env.router.PeriodicSync(context.Background())
	if err == nil {
		t.Error("PeriodicSync() expected error for failing route")
	}

	for _, path := range []string{"/", "/products"} {
		entry := env.cached(t, cache.KindDynamic, path)
		if entry == nil || string(entry.Data) != "origin:"+path {
			t.Errorf("%s not synced: %+v", path, entry)
		}
	}
	if entry := env.cached(t, cache.KindDynamic, "/categories"); entry == nil || string(entry.Data) != "old-categories" {
		t.Errorf("failed route replaced its entry: %+v", entry)
	}
}

func TestRunPeriodicSync_StopsWithContext(t *testing.T) {
	env := newTestEnv(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.router.RunPeriodicSync(ctx, 5*time.Millisecond)
		close(done)
	}()
	cancel()
	<-done

	// Disabled interval returns immediately.
	env.router.RunPeriodicSync(context.Background(), 0)

	// Not active: nothing was synced.
	if n := env.origin.TotalRequests(); n != 0 {
		t.Errorf("sync ran before activation: %d origin requests", n)
	}
}
