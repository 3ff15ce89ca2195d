package shipment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCreateReturnsTracking(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/public/create/order", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":  true,
			"tracking": "TRK-123",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "token", "guid")
	req := &Request{Reference: "order-1", Client: "Amine B", WilayaID: 16, Commune: "Bab Ezzouar", Adresse: "12 rue"}

	tracking, err := client.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "TRK-123", tracking)

	assert.Equal(t, "token", received["api_token"])
	assert.Equal(t, "guid", received["user_guid"])
	assert.Equal(t, "order-1", received["reference"])
	assert.Equal(t, float64(16), received["wilaya_id"])
}

func TestClientCreateRejectedByProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "invalid commune",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "token", "guid")

	_, err := client.Create(context.Background(), &Request{Reference: "order-1"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid commune", apiErr.Message)
}

func TestClientNon2xxIsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad-token", "guid")

	_, err := client.Create(context.Background(), &Request{Reference: "order-1"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestClientLabelReturnsBody(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/public/get/order/label", r.URL.Path)
		w.Write(pdf)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token", "guid")

	body, err := client.Label(context.Background(), "TRK-123")
	require.NoError(t, err)
	assert.Equal(t, pdf, body)
}

func TestClientCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token", "guid")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := client.Create(ctx, &Request{Reference: "order-1"})
		require.Error(t, err)
		require.False(t, errors.Is(err, ErrCircuitOpen), "breaker must stay closed until the threshold")
	}

	_, err := client.Create(ctx, &Request{Reference: "order-1"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
