package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trikooo/storefront/internal/cart"
	"github.com/trikooo/storefront/internal/domain"
)

// CartAPI is the slice of the cart service the HTTP layer needs.
type CartAPI interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	GuestCart(ctx context.Context, guestID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, item domain.CartItem) error
	AddGuestItem(ctx context.Context, guestID string, item domain.CartItem) error
	UpdateQuantity(ctx context.Context, userID string, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID string, productID string) error
	Reconcile(ctx context.Context, userID, guestID string) (*domain.Cart, error)
}

var _ CartAPI = (*cart.Service)(nil)

type CartHandler struct {
	service CartAPI
	timeout time.Duration
}

func NewCartHandler(service CartAPI, timeout time.Duration) *CartHandler {
	return &CartHandler{
		service: service,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string                 `json:"product_id"`
	Quantity  int                    `json:"quantity"`
	Price     float64                `json:"price"`
	Product   domain.ProductSnapshot `json:"product"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if userID := getUserID(r.Context()); userID != "" {
		resp, err := h.service.GetCart(ctx, userID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, resp)
		return
	}

	guestID := getGuestID(r.Context())
	if guestID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user or guest identity")
		return
	}

	resp, err := h.service.GuestCart(ctx, guestID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}
	if req.Price < 0 {
		respondError(w, http.StatusBadRequest, "invalid_price", "price must not be negative")
		return
	}

	item := domain.CartItem{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Price:     req.Price,
		Product:   req.Product,
	}

	if userID := getUserID(r.Context()); userID != "" {
		if err := h.service.AddItem(ctx, userID, item); err != nil {
			handleServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, item)
		return
	}

	guestID := getGuestID(r.Context())
	if guestID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user or guest identity")
		return
	}

	if err := h.service.AddGuestItem(ctx, guestID, item); err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	if err := h.service.UpdateQuantity(ctx, userID, productID, req.Quantity); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"product_id": productID,
		"quantity":   req.Quantity,
	})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	if err := h.service.RemoveItem(ctx, userID, productID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reconcile merges the guest cart into the account cart. Called once by the
// client right after login.
func (h *CartHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	guestID := getGuestID(r.Context())
	if guestID == "" {
		respondError(w, http.StatusBadRequest, "missing_guest_id", "guest identity required for reconciliation")
		return
	}

	merged, err := h.service.Reconcile(ctx, userID, guestID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, merged)
}
