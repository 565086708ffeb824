// Package testutil provides testing utilities for the directory watcher.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// MockDirectoryResponse defines the behavior for a mock directory endpoint response.
type MockDirectoryResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockDirectory is a configurable mock application directory server for testing.
type MockDirectory struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	LastRequestQuery  url.Values
}

// NewMockDirectory creates a new mock directory server.
func NewMockDirectory() *MockDirectory {
	mock := &MockDirectory{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastRequestQuery = r.URL.Query()
		mock.mu.Unlock()

		// Check for custom handler
		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		// Default handler
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockDirectory) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockDirectory) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockDirectory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.LastRequestQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockDirectory) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockDirectory) SetResponse(path string, resp MockDirectoryResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		// Add delay if specified
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		// Set headers
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		// Write status and body
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetAppResponse configures the response for a specific application ID.
func (m *MockDirectory) SetAppResponse(appID string, resp MockDirectoryResponse) {
	m.SetResponse("/"+appID, resp)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockDirectory) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockDirectory) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// GetLastRequestQuery returns the query parameters of the most recent request.
func (m *MockDirectory) GetLastRequestQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestQuery
}

// defaultHandler serves 404 for unconfigured applications, matching how the
// directory answers for unknown IDs.
func (m *MockDirectory) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"message": "404: Not Found", "code": 0}`))
}

// NewGuildCountResponse creates a 200 OK response carrying a directory entry
// guild count.
func NewGuildCountResponse(count int64) MockDirectoryResponse {
	return MockDirectoryResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"directory_entry": {"guild_count": %d}}`, count),
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewMemberCountResponse creates a 200 OK response carrying only the guild
// approximate member count fallback.
func NewMemberCountResponse(count int64) MockDirectoryResponse {
	return MockDirectoryResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"guild": {"approximate_member_count": %d}}`, count),
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewBothCountsResponse creates a 200 OK response carrying both count shapes.
func NewBothCountsResponse(guildCount, memberCount int64) MockDirectoryResponse {
	return MockDirectoryResponse{
		StatusCode: http.StatusOK,
		Body: fmt.Sprintf(`{"directory_entry": {"guild_count": %d}, "guild": {"approximate_member_count": %d}}`,
			guildCount, memberCount),
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewNoStatsResponse creates a 200 OK response without any usable count.
func NewNoStatsResponse() MockDirectoryResponse {
	return MockDirectoryResponse{
		StatusCode: http.StatusOK,
		Body:       `{"directory_entry": {"name": "Some Bot"}}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response with a
// Retry-After hint in seconds.
func NewRateLimitResponse(retryAfterSeconds int) MockDirectoryResponse {
	return MockDirectoryResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "You are being rate limited.", "retry_after": 5}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
			"Retry-After":  fmt.Sprintf("%d", retryAfterSeconds),
		},
	}
}

// NewRateLimitResponseNoHint creates a 429 response without a Retry-After header.
func NewRateLimitResponseNoHint() MockDirectoryResponse {
	return MockDirectoryResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "You are being rate limited."}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockDirectoryResponse {
	return MockDirectoryResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal Server Error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not valid JSON.
func NewMalformedResponse() MockDirectoryResponse {
	return MockDirectoryResponse{
		StatusCode: http.StatusOK,
		Body:       `<html><body>upstream proxy error</body></html>`,
		Headers: map[string]string{
			"Content-Type": "text/html",
		},
	}
}
