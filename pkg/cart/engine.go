package cart

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/Sternrassler/storefront-edge/pkg/kv"
	"github.com/Sternrassler/storefront-edge/pkg/logging"
	"github.com/rs/zerolog"
)

// Options configures engines created by NewEngine and Registry.
type Options struct {
	// Store persists cart state (REQUIRED).
	Store kv.Store

	// Tracker receives analytics events (default: NopTracker).
	Tracker Tracker

	// Logger overrides the component logger.
	Logger *zerolog.Logger

	// Clock overrides time.Now (tests).
	Clock func() time.Time

	// IdleTTL is how long a Registry keeps an unused engine before Sweep
	// drops it (default: 30m).
	IdleTTL time.Duration

	// MaxEngines caps the engines a Registry holds; the least recently used
	// clean engine is dropped first (default: 10000).
	MaxEngines int
}

// Engine owns the state of one cart. It is safe for concurrent use.
type Engine struct {
	id      string
	store   kv.Store
	tracker Tracker
	logger  zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	items  []LineItem
	promo  *PromoCode
	open   bool
	loaded bool
	dirty  bool
}

// NewEngine creates an empty, unloaded engine for cartID.
func NewEngine(cartID string, opts Options) *Engine {
	if opts.Store == nil {
		panic("cart store cannot be nil")
	}

	logger := logging.NewLogger(logging.ComponentCart)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = NopTracker{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		id:      cartID,
		store:   opts.Store,
		tracker: tracker,
		logger:  logger.With().Str("cart_id", cartID).Logger(),
		now:     clock,
	}
}

// ID returns the cart id.
func (e *Engine) ID() string { return e.id }

// Load hydrates the engine from storage. Only the first call reads storage.
// Corrupt state is logged and replaced by an empty cart; only backend
// failures are returned.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded {
		return nil
	}
	if err := e.readLocked(ctx); err != nil {
		return err
	}
	e.loaded = true
	e.logger.Debug().Int("items", len(e.items)).Msg("Cart hydrated")
	return nil
}

// Refresh re-reads persisted state so writes made through another engine
// for the same cart become visible. Unloaded engines are loaded instead.
// An engine holding changes it failed to persist keeps its memory state.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dirty {
		return nil
	}
	if err := e.readLocked(ctx); err != nil {
		return err
	}
	e.loaded = true
	return nil
}

// syncLocked refreshes a clean engine before a mutation. Backend failures
// leave the current memory state in place.
func (e *Engine) syncLocked(ctx context.Context) {
	if !e.loaded || e.dirty {
		return
	}
	if err := e.readLocked(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to refresh cart before mutation")
	}
}

// readLocked replaces items and promo with the persisted state.
func (e *Engine) readLocked(ctx context.Context) error {
	prefix := KeyPrefix(e.id)
	items, err := itemsSchema.Load(ctx, e.store, prefix)
	switch {
	case err == nil:
		items = e.sanitizeItems(items)
	case errors.Is(err, kv.ErrNotFound):
		items = nil
	case errors.Is(err, kv.ErrCorrupt):
		e.logger.Warn().Err(err).Msg("Corrupt persisted cart items, resetting cart")
		cartCorruptResetsTotal.Inc()
		e.items = nil
		e.promo = nil
		e.persistLocked(ctx)
		return nil
	default:
		cartPersistErrorsTotal.WithLabelValues("load").Inc()
		return fmt.Errorf("load cart items: %w", err)
	}

	promo, err := promoSchema.Load(ctx, e.store, prefix)
	switch {
	case err == nil:
		promo = e.sanitizePromo(promo)
	case errors.Is(err, kv.ErrNotFound):
		promo = nil
	case errors.Is(err, kv.ErrCorrupt):
		e.logger.Warn().Err(err).Msg("Corrupt persisted promo code, removing it")
		cartCorruptResetsTotal.Inc()
		e.items = items
		e.promo = nil
		e.persistLocked(ctx)
		return nil
	default:
		cartPersistErrorsTotal.WithLabelValues("load").Inc()
		return fmt.Errorf("load promo code: %w", err)
	}

	e.items = items
	e.promo = promo
	return nil
}

func (e *Engine) sanitizeItems(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		if !item.valid() {
			e.logger.Warn().
				Str("item_id", item.ID).
				Str("product_id", item.ProductID).
				Int("quantity", item.Quantity).
				Msg("Dropping invalid persisted line item")
			continue
		}
		out = append(out, item)
	}
	return out
}

// sanitizePromo re-resolves a persisted promo against the catalog.
func (e *Engine) sanitizePromo(promo *PromoCode) *PromoCode {
	if promo == nil {
		return nil
	}
	current, ok := LookupPromo(promo.Code)
	if !ok {
		e.logger.Warn().Str("promo_code", promo.Code).Msg("Dropping unknown persisted promo code")
		return nil
	}
	return &current
}

// persistLocked writes items and promo. Failures are logged and mark the
// engine dirty; in-memory state stays authoritative until a write succeeds.
func (e *Engine) persistLocked(ctx context.Context) {
	prefix := KeyPrefix(e.id)
	e.dirty = false
	if err := itemsSchema.Save(ctx, e.store, prefix, e.items); err != nil {
		cartPersistErrorsTotal.WithLabelValues("save").Inc()
		e.logger.Error().Err(err).Msg("Failed to persist cart items")
		e.dirty = true
	}
	if err := promoSchema.Save(ctx, e.store, prefix, e.promo); err != nil {
		cartPersistErrorsTotal.WithLabelValues("save").Inc()
		e.logger.Error().Err(err).Msg("Failed to persist promo code")
		e.dirty = true
	}
}

// mutate re-reads persisted state, runs fn under the lock, persists when it
// reports a change and emits the resulting event outside the lock.
func (e *Engine) mutate(ctx context.Context, fn func() (Event, bool)) {
	e.mu.Lock()
	e.syncLocked(ctx)
	before := Calculate(e.items, e.promo)
	ev, changed := fn()
	if !changed {
		e.mu.Unlock()
		return
	}
	after := Calculate(e.items, e.promo)
	e.persistLocked(ctx)
	e.mu.Unlock()

	ev.CartID = e.id
	ev.ValueBefore = before.Total
	ev.ValueAfter = after.Total
	ev.ItemsBefore = before.ItemCount
	ev.ItemsAfter = after.ItemCount
	ev.At = e.now()

	if err := e.tracker.Track(ctx, ev); err != nil {
		trackerErrorsTotal.Inc()
		e.logger.Warn().Err(err).Str("event", ev.Name).Msg("Failed to track cart event")
	}
}

// AddToCart adds a product or, when the same product and variant is already
// present, increases its quantity.
func (e *Engine) AddToCart(ctx context.Context, add AddItem) error {
	if err := add.validate(); err != nil {
		cartOperationsTotal.WithLabelValues("add", "rejected").Inc()
		e.logger.Warn().Err(err).Str("product_id", add.ProductID).Msg("Rejected add to cart")
		return err
	}
	quantity := max(1, add.Quantity)

	e.mutate(ctx, func() (Event, bool) {
		ev := Event{Name: EventAddToCart, ProductID: add.ProductID, Quantity: quantity}

		for i := range e.items {
			if e.items[i].ProductID == add.ProductID && e.items[i].Variant.Equal(add.Variant) {
				e.items[i].Quantity += quantity
				ev.ItemID = e.items[i].ID
				return ev, true
			}
		}

		item := LineItem{
			ID:           newItemID(add.ProductID, e.now()),
			ProductID:    add.ProductID,
			ProductTitle: add.Title,
			ProductImage: add.Image,
			Quantity:     quantity,
			Price:        add.Price,
		}
		if len(add.Variant) > 0 {
			item.Variant = maps.Clone(add.Variant)
		}
		e.items = append(e.items, item)
		ev.ItemID = item.ID
		return ev, true
	})

	cartOperationsTotal.WithLabelValues("add", "ok").Inc()
	return nil
}

// RemoveFromCart removes a line item. Unknown ids are a no-op.
func (e *Engine) RemoveFromCart(ctx context.Context, itemID string) error {
	if itemID == "" {
		cartOperationsTotal.WithLabelValues("remove", "rejected").Inc()
		e.logger.Warn().Msg("Rejected remove from cart: empty item id")
		return ErrInvalidItemID
	}

	removed := false
	e.mutate(ctx, func() (Event, bool) {
		for i, item := range e.items {
			if item.ID == itemID {
				e.items = append(e.items[:i:i], e.items[i+1:]...)
				removed = true
				return Event{
					Name:      EventRemoveFromCart,
					ProductID: item.ProductID,
					ItemID:    item.ID,
					Quantity:  item.Quantity,
				}, true
			}
		}
		return Event{}, false
	})

	if removed {
		cartOperationsTotal.WithLabelValues("remove", "ok").Inc()
	} else {
		cartOperationsTotal.WithLabelValues("remove", "noop").Inc()
	}
	return nil
}

// UpdateQuantity sets an item's quantity; zero or less removes the item.
func (e *Engine) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return e.RemoveFromCart(ctx, itemID)
	}
	if itemID == "" {
		cartOperationsTotal.WithLabelValues("update", "rejected").Inc()
		e.logger.Warn().Msg("Rejected quantity update: empty item id")
		return ErrInvalidItemID
	}

	updated := false
	e.mutate(ctx, func() (Event, bool) {
		for i := range e.items {
			if e.items[i].ID != itemID {
				continue
			}
			if e.items[i].Quantity == quantity {
				return Event{}, false
			}
			e.items[i].Quantity = max(1, quantity)
			updated = true
			return Event{
				Name:      EventUpdateQuantity,
				ProductID: e.items[i].ProductID,
				ItemID:    itemID,
				Quantity:  e.items[i].Quantity,
			}, true
		}
		return Event{}, false
	})

	if updated {
		cartOperationsTotal.WithLabelValues("update", "ok").Inc()
	} else {
		cartOperationsTotal.WithLabelValues("update", "noop").Inc()
	}
	return nil
}

// ClearCart empties the cart and removes the promo code.
func (e *Engine) ClearCart(ctx context.Context) {
	e.mutate(ctx, func() (Event, bool) {
		e.items = nil
		e.promo = nil
		return Event{Name: EventClearCart}, true
	})
	cartOperationsTotal.WithLabelValues("clear", "ok").Inc()
}

// ApplyPromoCode activates a catalog code, replacing any previous one.
// It reports false for empty input, unknown codes and carts below the
// code's minimum order amount.
func (e *Engine) ApplyPromoCode(ctx context.Context, code string) bool {
	normalized := NormalizeCode(code)
	if normalized == "" {
		promoApplicationsTotal.WithLabelValues("empty").Inc()
		return false
	}

	promo, ok := LookupPromo(normalized)
	if !ok {
		promoApplicationsTotal.WithLabelValues("unknown").Inc()
		e.logger.Debug().Str("promo_code", normalized).Msg("Unknown promo code")
		return false
	}

	applied := false
	e.mutate(ctx, func() (Event, bool) {
		subtotal := Calculate(e.items, e.promo).Subtotal
		if !promo.Eligible(subtotal) {
			e.logger.Debug().
				Str("promo_code", normalized).
				Str("subtotal", subtotal.String()).
				Str("minimum", promo.MinOrderAmount.String()).
				Msg("Promo code below minimum order amount")
			return Event{}, false
		}
		p := promo
		e.promo = &p
		applied = true
		return Event{Name: EventApplyPromoCode, PromoCode: promo.Code}, true
	})

	if !applied {
		promoApplicationsTotal.WithLabelValues("below_minimum").Inc()
		return false
	}
	promoApplicationsTotal.WithLabelValues("applied").Inc()
	return true
}

// RemovePromoCode clears the active promo code.
func (e *Engine) RemovePromoCode(ctx context.Context) {
	e.mutate(ctx, func() (Event, bool) {
		if e.promo == nil {
			return Event{}, false
		}
		code := e.promo.Code
		e.promo = nil
		return Event{Name: EventRemovePromoCode, PromoCode: code}, true
	})
}

// OpenCart shows the cart drawer.
func (e *Engine) OpenCart() { e.setOpen(func(bool) bool { return true }) }

// CloseCart hides the cart drawer.
func (e *Engine) CloseCart() { e.setOpen(func(bool) bool { return false }) }

// ToggleCart flips the cart drawer.
func (e *Engine) ToggleCart() { e.setOpen(func(open bool) bool { return !open }) }

func (e *Engine) setOpen(fn func(bool) bool) {
	e.mu.Lock()
	e.open = fn(e.open)
	e.mu.Unlock()
}

// Dirty reports whether the engine holds changes it failed to persist.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// IsOpen reports whether the cart drawer is shown.
func (e *Engine) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// Breakdown returns the full pricing computation for the current state.
func (e *Engine) Breakdown() Breakdown {
	e.mu.Lock()
	defer e.mu.Unlock()

	var promo *PromoCode
	if e.promo != nil {
		p := *e.promo
		promo = &p
	}
	return Calculate(cloneItems(e.items), promo)
}

// Cart returns the derived cart view.
func (e *Engine) Cart() Cart {
	return e.Breakdown().Cart
}
