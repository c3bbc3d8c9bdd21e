package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Event names emitted by the engine.
const (
	EventAddToCart       = "add_to_cart"
	EventRemoveFromCart  = "remove_from_cart"
	EventUpdateQuantity  = "update_cart_quantity"
	EventClearCart       = "clear_cart"
	EventApplyPromoCode  = "apply_promo_code"
	EventRemovePromoCode = "remove_promo_code"
)

// Event describes one cart mutation for analytics.
type Event struct {
	Name        string          `json:"name"`
	CartID      string          `json:"cartId"`
	ProductID   string          `json:"productId,omitempty"`
	ItemID      string          `json:"itemId,omitempty"`
	Quantity    int             `json:"quantity,omitempty"`
	PromoCode   string          `json:"promoCode,omitempty"`
	ValueBefore decimal.Decimal `json:"valueBefore"`
	ValueAfter  decimal.Decimal `json:"valueAfter"`
	ItemsBefore int             `json:"itemsBefore"`
	ItemsAfter  int             `json:"itemsAfter"`
	At          time.Time       `json:"at"`
}

// Tracker receives cart events. Failures are logged by the engine and never
// affect the mutation.
type Tracker interface {
	Track(ctx context.Context, ev Event) error
}

// NopTracker drops every event.
type NopTracker struct{}

// Track implements Tracker.
func (NopTracker) Track(context.Context, Event) error { return nil }

// LogTracker writes events to a zerolog logger at info level.
type LogTracker struct {
	Logger zerolog.Logger
}

// Track implements Tracker.
func (t LogTracker) Track(_ context.Context, ev Event) error {
	t.Logger.Info().
		Str("event", ev.Name).
		Str("cart_id", ev.CartID).
		Str("product_id", ev.ProductID).
		Str("item_id", ev.ItemID).
		Int("quantity", ev.Quantity).
		Str("promo_code", ev.PromoCode).
		Str("value_before", ev.ValueBefore.StringFixed(2)).
		Str("value_after", ev.ValueAfter.StringFixed(2)).
		Int("items_before", ev.ItemsBefore).
		Int("items_after", ev.ItemsAfter).
		Msg("Cart event")
	return nil
}

// DefaultEventStream is the Redis stream cart events are appended to.
const DefaultEventStream = "analytics:cart"

// StreamTracker appends events to a capped Redis stream.
type StreamTracker struct {
	redis  *redis.Client
	stream string
	maxLen int64
}

// NewStreamTracker creates a tracker writing to stream, trimmed to roughly
// maxLen entries (0 = untrimmed).
func NewStreamTracker(redisClient *redis.Client, stream string, maxLen int64) *StreamTracker {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if stream == "" {
		stream = DefaultEventStream
	}
	return &StreamTracker{redis: redisClient, stream: stream, maxLen: maxLen}
}

// Track implements Tracker.
func (t *StreamTracker) Track(ctx context.Context, ev Event) error {
	args := &redis.XAddArgs{
		Stream: t.stream,
		Values: map[string]any{
			"name":         ev.Name,
			"cart_id":      ev.CartID,
			"product_id":   ev.ProductID,
			"item_id":      ev.ItemID,
			"quantity":     strconv.Itoa(ev.Quantity),
			"promo_code":   ev.PromoCode,
			"value_before": ev.ValueBefore.String(),
			"value_after":  ev.ValueAfter.String(),
			"items_before": strconv.Itoa(ev.ItemsBefore),
			"items_after":  strconv.Itoa(ev.ItemsAfter),
			"at":           strconv.FormatInt(ev.At.UnixMilli(), 10),
		},
	}
	if t.maxLen > 0 {
		args.MaxLen = t.maxLen
		args.Approx = true
	}
	if err := t.redis.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", t.stream, err)
	}
	return nil
}

// MultiTracker fans an event out to several trackers.
type MultiTracker []Tracker

// Track implements Tracker. Every tracker is called; errors are joined.
func (m MultiTracker) Track(ctx context.Context, ev Event) error {
	var errs []error
	for _, t := range m {
		if err := t.Track(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
