package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/trikooo/storefront/internal/address"
	"github.com/trikooo/storefront/internal/domain"
	"github.com/trikooo/storefront/internal/gueststore"
	"github.com/trikooo/storefront/internal/repository"
)

type AddressHandler struct {
	repo     repository.AddressRepository
	guests   *gueststore.Store
	selector *address.Selector
	timeout  time.Duration
}

func NewAddressHandler(repo repository.AddressRepository, guests *gueststore.Store, selector *address.Selector, timeout time.Duration) *AddressHandler {
	return &AddressHandler{
		repo:     repo,
		guests:   guests,
		selector: selector,
		timeout:  timeout,
	}
}

// knownAddresses resolves the address list the selector validates against:
// the account book for authenticated users, the guest store otherwise.
func (h *AddressHandler) knownAddresses(ctx context.Context, r *http.Request) ([]domain.Address, error) {
	if userID := getUserID(r.Context()); userID != "" {
		return h.repo.ListAddresses(ctx, userID)
	}
	return h.guests.Addresses(ctx, getGuestID(r.Context()))
}

func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if getUserID(r.Context()) == "" && getGuestID(r.Context()) == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user or guest identity")
		return
	}

	addrs, err := h.knownAddresses(ctx, r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if addrs == nil {
		addrs = []domain.Address{}
	}

	respondJSON(w, http.StatusOK, addrs)
}

func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var addr domain.Address
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if !addr.IsComplete() {
		respondError(w, http.StatusBadRequest, "incomplete_address", "wilayaValue, commune and address are required")
		return
	}
	if addr.StopDesk && addr.StationCode == "" {
		respondError(w, http.StatusBadRequest, "missing_station", "stop-desk delivery requires a station code")
		return
	}
	if addr.BaseShippingPrice < 0 {
		respondError(w, http.StatusBadRequest, "invalid_shipping_price", "shipping price must not be negative")
		return
	}

	if userID := getUserID(r.Context()); userID != "" {
		addr.UserID = userID
		if err := h.repo.CreateAddress(ctx, &addr); err != nil {
			handleServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, addr)
		return
	}

	guestID := getGuestID(r.Context())
	if guestID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user or guest identity")
		return
	}

	addrs, err := h.guests.Addresses(ctx, guestID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	addrs = append(addrs, addr)
	if err := h.guests.SetAddresses(ctx, guestID, addrs); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, addr)
}

// Selected returns the active checkout address, re-validated against the
// known list on every read.
func (h *AddressHandler) Selected(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	guestID := getGuestID(r.Context())
	if guestID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing guest identity")
		return
	}

	known, err := h.knownAddresses(ctx, r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	selected, err := h.selector.Restore(ctx, guestID, known)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, selected)
}

func (h *AddressHandler) Select(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	guestID := getGuestID(r.Context())
	if guestID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing guest identity")
		return
	}

	var addr domain.Address
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.selector.Select(ctx, guestID, addr); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, addr)
}
