package shipment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// APIError is a non-2xx answer from the delivery provider. The operation is
// failed as-is; retrying is the caller's decision.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("delivery provider returned %d: %s", e.StatusCode, e.Message)
}

var ErrCircuitOpen = errors.New("delivery provider circuit open")

// Provider is the boundary the dispatcher and handlers talk to.
type Provider interface {
	Create(ctx context.Context, req *Request) (string, error)
	Update(ctx context.Context, tracking string, req *Request) error
	Cancel(ctx context.Context, tracking string) error
	Label(ctx context.Context, tracking string) ([]byte, error)
}

// Client talks to the Noest-style parcel API. All calls go through a circuit
// breaker so a dead provider doesn't tie up every dispatch goroutine.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
	userGUID   string
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(baseURL, apiToken, userGUID string) *Client {
	settings := gobreaker.Settings{
		Name:    "delivery-provider",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		apiToken:   apiToken,
		userGUID:   userGUID,
		breaker:    gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

type createResponse struct {
	Success  bool   `json:"success"`
	Tracking string `json:"tracking"`
	Message  string `json:"message"`
}

// Create submits a new shipment and returns the provider tracking number.
func (c *Client) Create(ctx context.Context, req *Request) (string, error) {
	body, err := c.post(ctx, "/api/public/create/order", c.authenticated(req))
	if err != nil {
		return "", err
	}

	var resp createResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode create response: %w", err)
	}
	if !resp.Success || resp.Tracking == "" {
		return "", &APIError{StatusCode: http.StatusOK, Message: resp.Message}
	}

	return resp.Tracking, nil
}

// Update replaces the shipment payload for an existing tracking number.
func (c *Client) Update(ctx context.Context, tracking string, req *Request) error {
	payload := c.authenticated(req)
	payload["tracking"] = tracking

	_, err := c.post(ctx, "/api/public/update/order", payload)
	return err
}

// Cancel voids a shipment that has not left the station.
func (c *Client) Cancel(ctx context.Context, tracking string) error {
	payload := c.credentials()
	payload["tracking"] = tracking

	_, err := c.post(ctx, "/api/public/delete/order", payload)
	return err
}

// Label fetches the shipment label PDF.
func (c *Client) Label(ctx context.Context, tracking string) ([]byte, error) {
	payload := c.credentials()
	payload["tracking"] = tracking

	return c.post(ctx, "/api/public/get/order/label", payload)
}

func (c *Client) authenticated(req *Request) map[string]interface{} {
	data, _ := json.Marshal(req)
	payload := c.credentials()
	var fields map[string]interface{}
	_ = json.Unmarshal(data, &fields)
	for k, v := range fields {
		payload[k] = v
	}
	return payload
}

func (c *Client) credentials() map[string]interface{} {
	return map[string]interface{}{
		"api_token": c.apiToken,
		"user_guid": c.userGUID,
	}
}

func (c *Client) post(ctx context.Context, path string, payload map[string]interface{}) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("provider request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read provider response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		}

		return respBody, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return body, err
}
