package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trikooo/storefront/internal/address"
	"github.com/trikooo/storefront/internal/domain"
	"github.com/trikooo/storefront/internal/orders"
)

type OrderHandler struct {
	repo     orders.OrderRepository
	cart     CartAPI
	selector *address.Selector
	timeout  time.Duration
}

func NewOrderHandler(repo orders.OrderRepository, cart CartAPI, selector *address.Selector, timeout time.Duration) *OrderHandler {
	return &OrderHandler{
		repo:     repo,
		cart:     cart,
		selector: selector,
		timeout:  timeout,
	}
}

type CreateOrderRequestDTO struct {
	ShippingPrice float64 `json:"shipping_price"`
	// Address overrides the selected one when provided (guest checkout form).
	Address *domain.Address `json:"address,omitempty"`
	// NoestReady marks all line items eligible for delivery submission.
	NoestReady bool `json:"noest_ready"`
}

// Create turns the current cart into an order. The active address comes from
// the request body, falling back to the restored selection. An order can be
// created without a usable address; it just won't dispatch until one exists.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	guestID := getGuestID(r.Context())
	if userID == "" && guestID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user or guest identity")
		return
	}

	var req CreateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ShippingPrice < 0 {
		respondError(w, http.StatusBadRequest, "invalid_shipping_price", "shipping price must not be negative")
		return
	}

	var current *domain.Cart
	var err error
	if userID != "" {
		current, err = h.cart.GetCart(ctx, userID)
	} else {
		current, err = h.cart.GuestCart(ctx, guestID)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if len(current.Items) == 0 {
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty, nothing to order")
		return
	}

	order := &domain.Order{
		UserID:        userID,
		ShippingPrice: req.ShippingPrice,
		Items:         toLineItems(current.Items, req.NoestReady),
	}

	addr := h.resolveAddress(ctx, req.Address, guestID)
	if addr != nil {
		if userID != "" {
			order.Address = addr
		} else {
			order.GuestAddress = addr
		}
	}

	if err := h.repo.CreateOrder(ctx, order); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	order, err := h.repo.GetOrder(ctx, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	result, err := h.repo.ListOrders(ctx, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if result == nil {
		result = []domain.Order{}
	}

	respondJSON(w, http.StatusOK, result)
}

// resolveAddress prefers the explicit request address, then the saved
// selection. Incomplete candidates are discarded, not patched up.
func (h *OrderHandler) resolveAddress(ctx context.Context, explicit *domain.Address, guestID string) *domain.Address {
	if explicit != nil && explicit.IsComplete() {
		return explicit
	}
	if guestID == "" {
		return nil
	}

	saved, err := h.selector.Current(ctx, guestID)
	if err != nil || !saved.IsComplete() {
		return nil
	}
	return &saved
}

func toLineItems(items []domain.CartItem, noestReady bool) []domain.OrderLineItem {
	result := make([]domain.OrderLineItem, len(items))
	for i, item := range items {
		result[i] = domain.OrderLineItem{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			Price:      item.Price,
			Product:    item.Product,
			NoestReady: noestReady,
		}
	}
	return result
}
