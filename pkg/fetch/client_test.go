package fetch

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/z3c0/metalharvest/internal/testutil"
	"github.com/z3c0/metalharvest/pkg/cache"
)

func testKey(segment string, offset int) cache.Key {
	return cache.Key{Segment: segment, Offset: offset, PageSize: 500}
}

func TestNewRequiresUserAgent(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() should reject an empty user-agent")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("metalharvest-test/1.0")

	if cfg.BusyStatus != 520 {
		t.Errorf("BusyStatus = %d, want 520", cfg.BusyStatus)
	}
	if len(cfg.Accepted) != 2 {
		t.Errorf("Accepted = %v, want 200 and 403", cfg.Accepted)
	}
}

func TestFetchSendsHeaders(t *testing.T) {
	mock := testutil.NewMockArchive()
	defer mock.Close()

	cfg := DefaultConfig("metalharvest-test/1.0")
	cfg.Headers = map[string]string{"X-Forwarded-For": "203.0.113.7"}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	status, body, err := client.Fetch(context.Background(), testKey("A", 0),
		mock.URL()+"/browse/ajax-letter/l/A/json?sEcho=1&iDisplayStart=0&iDisplayLength=500")
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("Status = %d, want 200", status)
	}
	if !strings.Contains(string(body), "iTotalRecords") {
		t.Errorf("Body = %q, want a page payload", body)
	}

	header := mock.LastRequestHeader
	if got := header.Get("User-Agent"); got != "metalharvest-test/1.0" {
		t.Errorf("User-Agent = %q", got)
	}
	if got := header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}
	if got := header.Get("X-Forwarded-For"); got != "203.0.113.7" {
		t.Errorf("X-Forwarded-For = %q", got)
	}
}

func TestFetchReturnsBodyForAnyStatus(t *testing.T) {
	mock := testutil.NewMockArchive()
	defer mock.Close()
	mock.SetHandler("A", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>error page</html>"))
	})

	client, err := New(DefaultConfig("metalharvest-test/1.0"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	status, body, err := client.Fetch(context.Background(), testKey("A", 0),
		mock.URL()+"/browse/ajax-letter/l/A/json?sEcho=1&iDisplayStart=0&iDisplayLength=500")
	if err != nil {
		t.Fatalf("Fetch() should not error on a bad status: %v", err)
	}
	if status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", status)
	}
	if len(body) == 0 {
		t.Error("Body should be returned even for anomalous statuses")
	}
}

func TestFetchNetworkError(t *testing.T) {
	mock := testutil.NewMockArchive()
	mock.Close()

	client, err := New(DefaultConfig("metalharvest-test/1.0"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if _, _, err := client.Fetch(context.Background(), testKey("A", 0), mock.URL()+"/browse/ajax-letter/l/A/json"); err == nil {
		t.Error("Fetch() should fail when the server is unreachable")
	}
}

func TestStatusClassification(t *testing.T) {
	client, err := New(DefaultConfig("metalharvest-test/1.0"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	tests := []struct {
		status   int
		busy     bool
		accepted bool
	}{
		{200, false, true},
		{403, false, true},
		{520, true, false},
		{500, false, false},
		{404, false, false},
	}

	for _, tt := range tests {
		if got := client.IsBusy(tt.status); got != tt.busy {
			t.Errorf("IsBusy(%d) = %v, want %v", tt.status, got, tt.busy)
		}
		if got := client.IsAccepted(tt.status); got != tt.accepted {
			t.Errorf("IsAccepted(%d) = %v, want %v", tt.status, got, tt.accepted)
		}
	}
}

func TestFetchCustomStatusSets(t *testing.T) {
	cfg := DefaultConfig("metalharvest-test/1.0")
	cfg.BusyStatus = 503
	cfg.Accepted = []int{200}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if !client.IsBusy(503) || client.IsBusy(520) {
		t.Error("BusyStatus override not honored")
	}
	if client.IsAccepted(403) {
		t.Error("Accepted override not honored")
	}
}
