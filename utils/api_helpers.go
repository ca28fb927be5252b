package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// AddToLogMessage appends a line to a per-request log buffer; the handler
// flushes the buffer in a single log.Print via defer so concurrent requests
// don't interleave.
func AddToLogMessage(builder *strings.Builder, format string, args ...interface{}) {
	builder.WriteString(fmt.Sprintf(format, args...))
	builder.WriteString("\n")
}

// FlushLog prints the accumulated request log in one write
func FlushLog(builder *strings.Builder) {
	if builder.Len() > 0 {
		log.Print(builder.String())
	}
}

// RespondJSON writes a JSON response with the given status code
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("Failed to encode response: %v", err)
		}
	}
}

// RespondError writes a JSON error response
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// RespondOutcome writes a business outcome that is not a server error: the
// request was handled, but the result is a condition the client must surface
// (no matching items, insufficient credits).
func RespondOutcome(w http.ResponseWriter, status int, reason string, extra map[string]interface{}) {
	payload := map[string]interface{}{
		"success": false,
		"reason":  reason,
	}
	for k, v := range extra {
		payload[k] = v
	}
	RespondJSON(w, status, payload)
}

// PresignImageURLs resolves S3 object keys to presigned URLs, skipping keys
// that fail to sign so one bad key doesn't break a whole listing.
func PresignImageURLs(ctx context.Context, keys []string) []string {
	urls := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		url, err := GetPresignedURL(ctx, key)
		if err != nil {
			log.Printf("Failed to presign %s: %v", key, err)
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

// LatencyMiddleware logs method, path and duration for each request
func LatencyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s took %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// CORSMiddleware sets permissive CORS headers and short-circuits preflight
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
