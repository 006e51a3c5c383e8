// Package testutil provides a configurable mock archive server for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// MockArchive is a mock browse-by-letter archive server. Handlers are
// registered per segment; requests carry the offset in the iDisplayStart
// query parameter, matching the production endpoint shape.
type MockArchive struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount      int
	SegmentRequests   map[string]int
	LastRequestHeader http.Header
}

// NewMockArchive creates a mock archive server.
func NewMockArchive() *MockArchive {
	mock := &MockArchive{
		handlers:        make(map[string]http.HandlerFunc),
		SegmentRequests: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		segment := segmentFromPath(r.URL.Path)

		mock.mu.Lock()
		mock.RequestCount++
		mock.SegmentRequests[segment]++
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[segment]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		// Default: an empty segment.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(PageBody(nil, 0)))
	}))

	return mock
}

// segmentFromPath extracts the segment key from
// /browse/ajax-letter/l/{segment}/json.
func segmentFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if part == "l" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// Offset parses the page offset from a request.
func Offset(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("iDisplayStart"))
	return n
}

// URL returns the mock server URL.
func (m *MockArchive) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockArchive) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a segment.
func (m *MockArchive) SetHandler(segment string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[segment] = handler
}

// SetRecords serves a segment's rows as proper pages: each request returns
// the page-size window at the requested offset with the true total.
func (m *MockArchive) SetRecords(segment string, pageSize int, rows [][]string) {
	m.SetHandler(segment, RecordsHandler(pageSize, rows))
}

// GetRequestCount returns the total number of requests served.
func (m *MockArchive) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetSegmentRequests returns the number of requests for one segment.
func (m *MockArchive) GetSegmentRequests(segment string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.SegmentRequests[segment]
}

// PageBody builds a well-formed page payload.
func PageBody(records [][]string, total int) string {
	if records == nil {
		records = [][]string{}
	}
	payload := map[string]interface{}{
		"aaData":        records,
		"iTotalRecords": total,
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

// BusyHandler responds with the transient-busy status busyCount times, then
// delegates to next.
func BusyHandler(busyCount int, next http.HandlerFunc) http.HandlerFunc {
	var mu sync.Mutex
	served := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		busy := served < busyCount
		served++
		mu.Unlock()

		if busy {
			w.WriteHeader(520)
			return
		}
		next(w, r)
	}
}

// GarbageHandler responds 200 with a body that is not valid page JSON.
func GarbageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>\n\t<body>not json</body>\n</html>"))
	}
}

// RecordsHandler serves rows as pages, like SetRecords but composable with
// BusyHandler.
func RecordsHandler(pageSize int, rows [][]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset := Offset(r)

		var page [][]string
		if offset < len(rows) {
			end := offset + pageSize
			if end > len(rows) {
				end = len(rows)
			}
			page = rows[offset:end]
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(PageBody(page, len(rows))))
	}
}
