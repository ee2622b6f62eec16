package storage

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/couplinglab/coupling-monitor/internal/coupling"
	"github.com/couplinglab/coupling-monitor/internal/graph"
	"go.uber.org/zap"
)

func testSnapshot() graph.Snapshot {
	return graph.Snapshot{
		Version:     2000,
		WindowStart: 1000,
		WindowEnd:   2000,
		Nodes: []graph.Node{
			{ID: "backend", AbsoluteImportance: 2, AbsoluteDependence: 1},
			{ID: "frontend", AbsoluteImportance: 0, AbsoluteDependence: 2},
		},
		Edges: []graph.Edge{
			{Source: "frontend", Target: "backend", Weight: 0.75, Latency: 12.5, Frequency: 4, CoExecution: 0.75},
		},
	}
}

func TestSnapshotDocument_RoundTrip(t *testing.T) {
	snap := testSnapshot()

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded graph.Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(snap, decoded) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", decoded, snap)
	}
}

func TestSnapshotDocument_SchemaKeys(t *testing.T) {
	data, err := json.Marshal(testSnapshot())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"version", "window_start", "window_end", "nodes", "edges"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("expected document key %q, got keys %v", key, docKeys(doc))
		}
	}
}

func docKeys(doc map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	return keys
}

func TestSaveGraph_RequiresWindow(t *testing.T) {
	c := &ClickHouseClient{logger: zap.NewNop()}

	if _, err := c.SaveGraph(context.Background(), graph.Graph{}, 0, 2000); !errors.Is(err, coupling.ErrStorage) {
		t.Errorf("expected ErrStorage for zero window start, got %v", err)
	}
	if _, err := c.SaveGraph(context.Background(), graph.Graph{}, 1000, 0); !errors.Is(err, coupling.ErrStorage) {
		t.Errorf("expected ErrStorage for zero window end, got %v", err)
	}
}

func TestSaveSnapshot_RequiresWindow(t *testing.T) {
	p := &PostgresClient{logger: zap.NewNop()}

	snap := testSnapshot()
	snap.WindowStart = 0
	if err := p.SaveSnapshot(context.Background(), snap); !errors.Is(err, coupling.ErrStorage) {
		t.Errorf("expected ErrStorage for zero window start, got %v", err)
	}

	snap = testSnapshot()
	snap.WindowEnd = 0
	if err := p.SaveSnapshot(context.Background(), snap); !errors.Is(err, coupling.ErrStorage) {
		t.Errorf("expected ErrStorage for zero window end, got %v", err)
	}
}
