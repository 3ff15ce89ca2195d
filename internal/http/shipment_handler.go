package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trikooo/storefront/internal/orders"
	"github.com/trikooo/storefront/internal/shipment"
)

type ShipmentHandler struct {
	repo     orders.OrderRepository
	provider shipment.Provider
	timeout  time.Duration
}

func NewShipmentHandler(repo orders.OrderRepository, provider shipment.Provider, timeout time.Duration) *ShipmentHandler {
	return &ShipmentHandler{
		repo:     repo,
		provider: provider,
		timeout:  timeout,
	}
}

type dispatchResultDTO struct {
	Tracking   string   `json:"tracking"`
	ProductIDs []string `json:"product_ids"`
}

// Dispatch submits an order's untracked, ready line items to the delivery
// provider. Items already carrying a tracking number never go out again, so
// calling this twice cannot double-book a shipment.
func (h *ShipmentHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	order, err := h.repo.GetOrder(ctx, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	requests := shipment.Group(order)
	if len(requests) == 0 {
		respondJSON(w, http.StatusOK, []dispatchResultDTO{})
		return
	}

	results := make([]dispatchResultDTO, 0, len(requests))
	for _, req := range requests {
		if !req.Submittable() {
			respondError(w, http.StatusConflict, "no_address", "order has no usable delivery address")
			return
		}

		tracking, err := h.provider.Create(ctx, &req)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		if err := h.repo.SetItemTracking(ctx, orderID, req.ProductIDs, tracking); err != nil {
			handleServiceError(w, err)
			return
		}

		results = append(results, dispatchResultDTO{Tracking: tracking, ProductIDs: req.ProductIDs})
	}

	respondJSON(w, http.StatusCreated, results)
}

// Label proxies the provider's shipment label PDF.
func (h *ShipmentHandler) Label(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tracking := chi.URLParam(r, "tracking")
	if tracking == "" {
		respondError(w, http.StatusBadRequest, "missing_tracking", "tracking number is required")
		return
	}

	label, err := h.provider.Label(ctx, tracking)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(label)
}

// Cancel voids an undelivered shipment with the provider.
func (h *ShipmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tracking := chi.URLParam(r, "tracking")
	if tracking == "" {
		respondError(w, http.StatusBadRequest, "missing_tracking", "tracking number is required")
		return
	}

	if err := h.provider.Cancel(ctx, tracking); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
