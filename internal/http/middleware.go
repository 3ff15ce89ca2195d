package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	guestIDKey   contextKey = "guest_id"
	requestIDKey contextKey = "request_id"
)

// MockAuthMiddleware simulates session authentication (replace with real JWT
// validation). The authenticated user id comes from X-User-ID; the guest
// device id from X-Guest-ID. A request may carry both during login-time
// reconciliation.
func MockAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if userID := r.Header.Get("X-User-ID"); userID != "" {
			ctx = context.WithValue(ctx, userIDKey, userID)
		}
		if guestID := r.Header.Get("X-Guest-ID"); guestID != "" {
			ctx = context.WithValue(ctx, guestIDKey, guestID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey).(string); ok {
		return userID
	}
	return ""
}

func getGuestID(ctx context.Context) string {
	if guestID, ok := ctx.Value(guestIDKey).(string); ok {
		return guestID
	}
	return ""
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}
