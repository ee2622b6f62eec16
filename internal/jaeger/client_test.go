package jaeger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{URL: server.URL, RequestsPerSec: 1000}, zap.NewNop())
	return server, client
}

func TestServices_FiltersBackendAndSorts(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/services" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []string{"frontend", "jaeger-all-in-one", "backend"},
		})
	})

	services, err := client.Services(context.Background())
	if err != nil {
		t.Fatalf("Services failed: %v", err)
	}

	if len(services) != 2 {
		t.Fatalf("expected 2 services, got %v", services)
	}
	if services[0] != "backend" || services[1] != "frontend" {
		t.Errorf("expected sorted [backend frontend], got %v", services)
	}
}

func TestTraces_SendsWindowParameters(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("service") != "frontend" {
			t.Errorf("expected service=frontend, got %q", q.Get("service"))
		}
		if q.Get("start") != "1000" || q.Get("end") != "2000" {
			t.Errorf("unexpected window: start=%q end=%q", q.Get("start"), q.Get("end"))
		}
		if q.Get("limit") != "100" {
			t.Errorf("expected default limit 100, got %q", q.Get("limit"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"traceID": "t1"}},
		})
	})

	traces, err := client.Traces(context.Background(), "frontend", 1000, 2000)
	if err != nil {
		t.Fatalf("Traces failed: %v", err)
	}
	if len(traces) != 1 || traces[0].TraceID != "t1" {
		t.Fatalf("expected one trace t1, got %+v", traces)
	}
}

func TestTraces_ErrorStatus(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if _, err := client.Traces(context.Background(), "frontend", 1000, 2000); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestTracesInWindow_DeduplicatesAndTolerantOfFailures(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/services":
			json.NewEncoder(w).Encode(map[string]any{
				"data": []string{"frontend", "backend", "broken"},
			})
		case "/api/traces":
			service := r.URL.Query().Get("service")
			if service == "broken" {
				http.Error(w, "boom", http.StatusBadGateway)
				return
			}
			// Both healthy services report the same trace.
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"traceID": "shared"}},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	traces, err := client.TracesInWindow(context.Background(), 1000, 2000)
	if err != nil {
		t.Fatalf("TracesInWindow failed: %v", err)
	}
	if len(traces) != 1 {
		t.Fatalf("expected shared trace deduplicated to 1, got %d", len(traces))
	}
	if traces[0].TraceID != "shared" {
		t.Errorf("unexpected trace %+v", traces[0])
	}
}
