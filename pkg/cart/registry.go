package cart

import (
	"container/list"
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/Sternrassler/storefront-edge/pkg/logging"
	"github.com/rs/zerolog"
)

var cartIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidCartID reports whether id can be used as a cart identifier.
func ValidCartID(id string) bool {
	return cartIDPattern.MatchString(id)
}

// Default registry limits.
const (
	DefaultIdleTTL    = 30 * time.Minute
	DefaultMaxEngines = 10000
)

// Registry hands out one engine per cart id. Engines re-read persisted
// state on every Get, so several registries may share one store. Idle
// engines are dropped by Sweep and the least recently used clean engine is
// dropped once MaxEngines is reached.
type Registry struct {
	opts    Options
	now     func() time.Time
	idleTTL time.Duration
	max     int
	logger  zerolog.Logger

	mu      sync.Mutex
	engines map[string]*list.Element
	lru     *list.List // front is most recently used
}

type registryEntry struct {
	id       string
	engine   *Engine
	lastUsed time.Time
}

// NewRegistry creates a registry whose engines share opts.
func NewRegistry(opts Options) *Registry {
	if opts.Store == nil {
		panic("cart store cannot be nil")
	}

	r := &Registry{
		opts:    opts,
		now:     opts.Clock,
		idleTTL: opts.IdleTTL,
		max:     opts.MaxEngines,
		logger:  logging.NewLogger(logging.ComponentCart),
		engines: make(map[string]*list.Element),
		lru:     list.New(),
	}
	if opts.Logger != nil {
		r.logger = *opts.Logger
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.idleTTL <= 0 {
		r.idleTTL = DefaultIdleTTL
	}
	if r.max <= 0 {
		r.max = DefaultMaxEngines
	}
	return r
}

// Get returns the engine for cartID, creating it on first use. Cached
// engines are refreshed from the store before they are returned.
func (r *Registry) Get(ctx context.Context, cartID string) (*Engine, error) {
	if !ValidCartID(cartID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCartID, cartID)
	}

	r.mu.Lock()
	var engine *Engine
	if el, ok := r.engines[cartID]; ok {
		entry := el.Value.(*registryEntry)
		entry.lastUsed = r.now()
		r.lru.MoveToFront(el)
		engine = entry.engine
	} else {
		engine = NewEngine(cartID, r.opts)
		r.engines[cartID] = r.lru.PushFront(&registryEntry{id: cartID, engine: engine, lastUsed: r.now()})
		r.trimLocked()
	}
	registryEngines.Set(float64(len(r.engines)))
	r.mu.Unlock()

	// A failed read is retried on the next Get.
	if err := engine.Refresh(ctx); err != nil {
		return nil, err
	}
	return engine, nil
}

// trimLocked drops least recently used engines above the cap. Engines with
// unpersisted changes are skipped.
func (r *Registry) trimLocked() {
	for el := r.lru.Back(); el != nil && len(r.engines) > r.max; {
		prev := el.Prev()
		entry := el.Value.(*registryEntry)
		if !entry.engine.Dirty() {
			r.removeLocked(el)
			registryEvictionsTotal.WithLabelValues("capacity").Inc()
		}
		el = prev
	}
}

func (r *Registry) removeLocked(el *list.Element) {
	entry := r.lru.Remove(el).(*registryEntry)
	delete(r.engines, entry.id)
}

// Sweep drops engines unused for longer than the idle TTL and returns how
// many were dropped. Engines with unpersisted changes are kept.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for el := r.lru.Back(); el != nil; {
		prev := el.Prev()
		entry := el.Value.(*registryEntry)
		if now.Sub(entry.lastUsed) < r.idleTTL {
			break
		}
		if !entry.engine.Dirty() {
			r.removeLocked(el)
			dropped++
		}
		el = prev
	}

	registryEvictionsTotal.WithLabelValues("idle").Add(float64(dropped))
	registryEngines.Set(float64(len(r.engines)))
	return dropped
}

// Run sweeps idle engines every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.idleTTL / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(r.now()); n > 0 {
				r.logger.Debug().Int("evicted", n).Int("held", r.Len()).Msg("Swept idle carts")
			}
		}
	}
}

// Evict drops a cart's engine. Its persisted state is kept.
func (r *Registry) Evict(cartID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.engines[cartID]; ok {
		r.removeLocked(el)
		registryEvictionsTotal.WithLabelValues("manual").Inc()
		registryEngines.Set(float64(len(r.engines)))
	}
}

// Len returns the number of engines held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

type engineKey struct{}

// WithEngine returns a context carrying engine.
func WithEngine(ctx context.Context, engine *Engine) context.Context {
	return context.WithValue(ctx, engineKey{}, engine)
}

// FromContext returns the engine stored by WithEngine. It panics when the
// context carries none: handlers must be mounted behind the cart middleware.
func FromContext(ctx context.Context) *Engine {
	engine, ok := ctx.Value(engineKey{}).(*Engine)
	if !ok || engine == nil {
		panic("cart: FromContext called without an engine in context")
	}
	return engine
}
