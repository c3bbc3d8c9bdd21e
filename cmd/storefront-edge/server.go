package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Sternrassler/storefront-edge/pkg/cart"
	"github.com/Sternrassler/storefront-edge/pkg/locale"
	"github.com/Sternrassler/storefront-edge/pkg/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/text/currency"
)

// maxBodyBytes bounds cart API request bodies.
const maxBodyBytes = 64 << 10

type pinger interface {
	Ping(ctx context.Context) error
}

// server wires the cart API, the ops endpoints and the caching router.
type server struct {
	registry *cart.Registry
	edge     http.Handler
	currency currency.Unit
	checks   map[string]pinger
	logger   zerolog.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("GET /edge/cart/{cartID}", s.withCart(s.getCart))
	mux.Handle("DELETE /edge/cart/{cartID}", s.withCart(s.clearCart))
	mux.Handle("POST /edge/cart/{cartID}/items", s.withCart(s.addItem))
	mux.Handle("PATCH /edge/cart/{cartID}/items/{itemID}", s.withCart(s.updateItem))
	mux.Handle("DELETE /edge/cart/{cartID}/items/{itemID}", s.withCart(s.removeItem))
	mux.Handle("POST /edge/cart/{cartID}/promo", s.withCart(s.applyPromo))
	mux.Handle("DELETE /edge/cart/{cartID}/promo", s.withCart(s.removePromo))
	mux.Handle("POST /edge/cart/{cartID}/visibility", s.withCart(s.setVisibility))

	// Everything else belongs to the storefront.
	mux.Handle("/", s.edge)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var failed []string
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Str("check", name).Msg("Readiness check failed")
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "NOT READY: %s", strings.Join(failed, ", "))
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// withCart loads the engine named by the cartID path value into the
// request context.
func (s *server) withCart(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		engine, err := s.registry.Get(r.Context(), r.PathValue("cartID"))
		if errors.Is(err, cart.ErrInvalidCartID) {
			writeError(w, http.StatusBadRequest, "invalid cart id")
			return
		}
		if err != nil {
			s.logger.Error().Err(err).Str("cart_id", r.PathValue("cartID")).Msg("Failed to load cart")
			writeError(w, http.StatusServiceUnavailable, "cart storage unavailable")
			return
		}
		next(w, r.WithContext(cart.WithEngine(r.Context(), engine)))
	})
}

// cartResponse is the cart API payload: derived totals plus localized
// display strings.
type cartResponse struct {
	cart.Breakdown
	IsOpen  bool          `json:"isOpen"`
	Display locale.Totals `json:"display"`
}

func (s *server) writeCart(w http.ResponseWriter, r *http.Request, status int) {
	engine := cart.FromContext(r.Context())
	b := engine.Breakdown()

	tag, persist := locale.ResolveTag(r)
	if persist {
		locale.SetLanguageCookie(w, tag)
	}

	writeJSON(w, status, cartResponse{
		Breakdown: b,
		IsOpen:    engine.IsOpen(),
		Display: locale.FormatTotals(tag, s.currency, locale.Amounts{
			ItemCount: b.ItemCount,
			Subtotal:  b.Subtotal,
			Shipping:  b.EffectiveShipping,
			Tax:       b.Tax,
			Discount:  b.Discount,
			Total:     b.Total,
		}),
	})
}

func (s *server) getCart(w http.ResponseWriter, r *http.Request) {
	s.writeCart(w, r, http.StatusOK)
}

func (s *server) clearCart(w http.ResponseWriter, r *http.Request) {
	cart.FromContext(r.Context()).ClearCart(r.Context())
	s.writeCart(w, r, http.StatusOK)
}

func (s *server) addItem(w http.ResponseWriter, r *http.Request) {
	var add cart.AddItem
	if !decodeBody(w, r, &add) {
		return
	}
	if err := cart.FromContext(r.Context()).AddToCart(r.Context(), add); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeCart(w, r, http.StatusOK)
}

func (s *server) updateItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity *int `json:"quantity"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Quantity == nil {
		writeError(w, http.StatusBadRequest, "quantity is required")
		return
	}
	if err := cart.FromContext(r.Context()).UpdateQuantity(r.Context(), r.PathValue("itemID"), *body.Quantity); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeCart(w, r, http.StatusOK)
}

func (s *server) removeItem(w http.ResponseWriter, r *http.Request) {
	if err := cart.FromContext(r.Context()).RemoveFromCart(r.Context(), r.PathValue("itemID")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeCart(w, r, http.StatusOK)
}

func (s *server) applyPromo(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if !cart.FromContext(r.Context()).ApplyPromoCode(r.Context(), body.Code) {
		writeError(w, http.StatusUnprocessableEntity, "promo code rejected")
		return
	}
	s.writeCart(w, r, http.StatusOK)
}

func (s *server) removePromo(w http.ResponseWriter, r *http.Request) {
	cart.FromContext(r.Context()).RemovePromoCode(r.Context())
	s.writeCart(w, r, http.StatusOK)
}

func (s *server) setVisibility(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	engine := cart.FromContext(r.Context())
	switch body.Action {
	case "open":
		engine.OpenCart()
	case "close":
		engine.CloseCart()
	case "toggle":
		engine.ToggleCart()
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", body.Action))
		return
	}
	s.writeCart(w, r, http.StatusOK)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
