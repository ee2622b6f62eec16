package graph

import (
	"fmt"
	"testing"

	"github.com/couplinglab/coupling-monitor/internal/trace"
)

func TestBuilder_SingleEdgeWeights(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < 5; i++ {
		b.Add(trace.Call{
			Parent:    "frontend",
			Child:     "backend",
			LatencyMs: 10.0,
			TraceID:   fmt.Sprintf("trace-%d", i),
		})
	}

	g := b.Build(WeightCoExecution)

	if len(g.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(g.Edges))
	}
	edge := g.Edges[0]
	if edge.Source != "frontend" || edge.Target != "backend" {
		t.Errorf("expected frontend -> backend, got %s -> %s", edge.Source, edge.Target)
	}
	if edge.Frequency != 5 {
		t.Errorf("expected frequency 5, got %d", edge.Frequency)
	}
	if edge.Latency != 10.0 {
		t.Errorf("expected mean latency 10.0, got %v", edge.Latency)
	}
	// Both services appear in exactly the same traces.
	if edge.CoExecution != 1.0 {
		t.Errorf("expected co_execution 1.0, got %v", edge.CoExecution)
	}
	if edge.Weight != edge.CoExecution {
		t.Errorf("expected weight to mirror co_execution, got %v", edge.Weight)
	}
}

func TestBuilder_WeightSchemeSelection(t *testing.T) {
	calls := []trace.Call{
		{Parent: "a", Child: "b", LatencyMs: 4.0, TraceID: "t1"},
		{Parent: "a", Child: "b", LatencyMs: 6.0, TraceID: "t2"},
	}

	cases := []struct {
		scheme WeightScheme
		want   float64
	}{
		{WeightFrequency, 2.0},
		{WeightLatency, 5.0},
		{WeightCoExecution, 1.0},
	}

	for _, tc := range cases {
		b := NewBuilder()
		b.AddAll(calls)
		g := b.Build(tc.scheme)
		if len(g.Edges) != 1 {
			t.Fatalf("scheme %s: expected 1 edge, got %d", tc.scheme, len(g.Edges))
		}
		if g.Edges[0].Weight != tc.want {
			t.Errorf("scheme %s: expected weight %v, got %v", tc.scheme, tc.want, g.Edges[0].Weight)
		}
	}
}

func TestBuilder_PartialCoExecution(t *testing.T) {
	b := NewBuilder()
	// a and b share t1; b executes alone in t2 via a call to c.
	b.Add(trace.Call{Parent: "a", Child: "b", LatencyMs: 1.0, TraceID: "t1"})
	b.Add(trace.Call{Parent: "b", Child: "c", LatencyMs: 1.0, TraceID: "t2"})

	g := b.Build(WeightCoExecution)
	for _, e := range g.Edges {
		if e.Source == "a" && e.Target == "b" {
			// |{t1}| / |{t1, t2}|
			if e.CoExecution != 0.5 {
				t.Errorf("expected co_execution 0.5 for a->b, got %v", e.CoExecution)
			}
		}
	}
}

func TestBuilder_NodeDegrees(t *testing.T) {
	b := NewBuilder()
	b.AddAll([]trace.Call{
		{Parent: "a", Child: "c", LatencyMs: 1.0, TraceID: "t1"},
		{Parent: "b", Child: "c", LatencyMs: 1.0, TraceID: "t2"},
		{Parent: "c", Child: "d", LatencyMs: 1.0, TraceID: "t3"},
	})

	g := b.Build(WeightCoExecution)
	metrics := make(map[string]Node)
	for _, n := range g.Nodes {
		metrics[n.ID] = n
	}

	c := metrics["c"]
	if c.AbsoluteImportance != 2 {
		t.Errorf("expected c absolute_importance 2, got %d", c.AbsoluteImportance)
	}
	if c.AbsoluteDependence != 1 {
		t.Errorf("expected c absolute_dependence 1, got %d", c.AbsoluteDependence)
	}
	a := metrics["a"]
	if a.AbsoluteImportance != 0 || a.AbsoluteDependence != 1 {
		t.Errorf("expected a degrees (0, 1), got (%d, %d)", a.AbsoluteImportance, a.AbsoluteDependence)
	}
}

func TestBuilder_DropsSelfLoopsAndEmptyServices(t *testing.T) {
	b := NewBuilder()
	b.Add(trace.Call{Parent: "a", Child: "a", LatencyMs: 1.0, TraceID: "t1"})
	b.Add(trace.Call{Parent: "", Child: "b", LatencyMs: 1.0, TraceID: "t2"})
	b.Add(trace.Call{Parent: "a", Child: "", LatencyMs: 1.0, TraceID: "t3"})

	g := b.Build(WeightCoExecution)
	if len(g.Edges) != 0 || len(g.Nodes) != 0 {
		t.Fatalf("expected empty graph, got %d nodes, %d edges", len(g.Nodes), len(g.Edges))
	}
}

func TestBuilder_DeterministicOrdering(t *testing.T) {
	calls := []trace.Call{
		{Parent: "z", Child: "a", LatencyMs: 1.0, TraceID: "t1"},
		{Parent: "m", Child: "a", LatencyMs: 1.0, TraceID: "t2"},
		{Parent: "a", Child: "z", LatencyMs: 1.0, TraceID: "t3"},
	}

	b1 := NewBuilder()
	b1.AddAll(calls)
	g1 := b1.Build(WeightFrequency)

	b2 := NewBuilder()
	b2.AddAll(calls)
	g2 := b2.Build(WeightFrequency)

	for i := range g1.Nodes {
		if g1.Nodes[i] != g2.Nodes[i] {
			t.Fatalf("node order differs at %d: %+v vs %+v", i, g1.Nodes[i], g2.Nodes[i])
		}
	}
	for i := range g1.Edges {
		if g1.Edges[i] != g2.Edges[i] {
			t.Fatalf("edge order differs at %d: %+v vs %+v", i, g1.Edges[i], g2.Edges[i])
		}
	}
	for i := 1; i < len(g1.Nodes); i++ {
		if g1.Nodes[i-1].ID >= g1.Nodes[i].ID {
			t.Errorf("nodes not sorted: %s before %s", g1.Nodes[i-1].ID, g1.Nodes[i].ID)
		}
	}
}

func TestCouplingFactor(t *testing.T) {
	b := NewBuilder()
	b.AddAll([]trace.Call{
		{Parent: "a", Child: "b", LatencyMs: 1.0, TraceID: "t1"},
		{Parent: "b", Child: "c", LatencyMs: 1.0, TraceID: "t1"},
	})
	g := b.Build(WeightCoExecution)

	// 2 edges out of 3*2 possible.
	if got := g.CouplingFactor(); got != 0.3333 {
		t.Errorf("expected coupling factor 0.3333, got %v", got)
	}

	var empty Graph
	if empty.CouplingFactor() != 0 {
		t.Error("expected coupling factor 0 for empty graph")
	}
}

func TestJaccard(t *testing.T) {
	set := func(ids ...string) map[string]struct{} {
		m := make(map[string]struct{})
		for _, id := range ids {
			m[id] = struct{}{}
		}
		return m
	}

	a := set("t1", "t2", "t3")
	b := set("t2", "t3", "t4")

	// Symmetric, and within [0, 1].
	if got, want := jaccard(a, b), 0.5; got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
	if jaccard(a, b) != jaccard(b, a) {
		t.Error("expected jaccard to be symmetric")
	}
	if got := jaccard(a, a); got != 1.0 {
		t.Errorf("expected identity to be 1.0, got %v", got)
	}
	if got := jaccard(a, set("t9")); got != 0.0 {
		t.Errorf("expected disjoint sets to be 0.0, got %v", got)
	}
	if got := jaccard(nil, nil); got != 0.0 {
		t.Errorf("expected empty union to be 0.0, got %v", got)
	}
}

func TestParseWeightScheme(t *testing.T) {
	if s, err := ParseWeightScheme(""); err != nil || s != WeightCoExecution {
		t.Errorf("expected empty name to default to co_execution, got %q, %v", s, err)
	}
	if _, err := ParseWeightScheme("pagerank"); err == nil {
		t.Error("expected error for unknown scheme")
	}
	for _, name := range []string{"frequency", "latency", "co_execution"} {
		if _, err := ParseWeightScheme(name); err != nil {
			t.Errorf("expected %q to parse, got %v", name, err)
		}
	}
}
