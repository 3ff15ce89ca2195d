package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/trikooo/storefront/internal/orders"
	"github.com/trikooo/storefront/internal/repository"
	"github.com/trikooo/storefront/internal/shipment"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: "",
	})
}

// handleServiceError maps domain sentinel errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrCartNotFound),
		errors.Is(err, repository.ErrItemNotFound),
		errors.Is(err, repository.ErrAddressNotFound),
		errors.Is(err, orders.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, shipment.ErrCircuitOpen):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	default:
		var apiErr *shipment.APIError
		if errors.As(err, &apiErr) {
			respondError(w, http.StatusBadGateway, "provider_error", apiErr.Message)
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
