package graph

import (
	"math"

	"github.com/couplinglab/coupling-monitor/internal/trace"
)

type edgeKey struct {
	source string
	target string
}

type callStats struct {
	count     int
	latencies []float64
}

// Builder folds call observations into an aggregated graph. Each
// invocation owns its own builder; it is not safe for concurrent use.
type Builder struct {
	edges      map[edgeKey]*callStats
	executions map[string]map[string]struct{}
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		edges:      make(map[edgeKey]*callStats),
		executions: make(map[string]map[string]struct{}),
	}
}

// Add folds one call observation: increments the (parent, child) call
// count, appends the latency sample, and records the trace in both
// services' execution sets. Self-loops are dropped.
func (b *Builder) Add(c trace.Call) {
	if c.Parent == "" || c.Child == "" || c.Parent == c.Child {
		return
	}

	key := edgeKey{source: c.Parent, target: c.Child}
	stats, ok := b.edges[key]
	if !ok {
		stats = &callStats{}
		b.edges[key] = stats
	}
	stats.count++
	stats.latencies = append(stats.latencies, c.LatencyMs)

	b.recordExecution(c.Parent, c.TraceID)
	b.recordExecution(c.Child, c.TraceID)
}

// AddAll folds a batch of call observations.
func (b *Builder) AddAll(calls []trace.Call) {
	for _, c := range calls {
		b.Add(c)
	}
}

func (b *Builder) recordExecution(service, traceID string) {
	if traceID == "" {
		return
	}
	set, ok := b.executions[service]
	if !ok {
		set = make(map[string]struct{})
		b.executions[service] = set
	}
	set[traceID] = struct{}{}
}

// Build computes all three edge weight values, selects the canonical
// weight per the scheme, and derives the structural node metrics.
func (b *Builder) Build(scheme WeightScheme) Graph {
	var g Graph

	predecessors := make(map[string]map[string]struct{})
	successors := make(map[string]map[string]struct{})

	for key, stats := range b.edges {
		edge := Edge{
			Source:      key.source,
			Target:      key.target,
			Latency:     meanLatency(stats.latencies),
			Frequency:   stats.count,
			CoExecution: jaccard(b.executions[key.source], b.executions[key.target]),
		}
		switch scheme {
		case WeightFrequency:
			edge.Weight = float64(edge.Frequency)
		case WeightLatency:
			edge.Weight = edge.Latency
		default:
			edge.Weight = edge.CoExecution
		}
		g.Edges = append(g.Edges, edge)

		addMember(predecessors, key.target, key.source)
		addMember(successors, key.source, key.target)
	}

	seen := make(map[string]struct{})
	for key := range b.edges {
		for _, id := range []string{key.source, key.target} {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			g.Nodes = append(g.Nodes, Node{
				ID:                 id,
				AbsoluteImportance: len(predecessors[id]),
				AbsoluteDependence: len(successors[id]),
			})
		}
	}

	sortGraph(&g)
	return g
}

func addMember(sets map[string]map[string]struct{}, key, member string) {
	set, ok := sets[key]
	if !ok {
		set = make(map[string]struct{})
		sets[key] = set
	}
	set[member] = struct{}{}
}

func meanLatency(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return round4(sum / float64(len(samples)))
}

// jaccard computes |a ∩ b| / |a ∪ b|, rounded to 4 decimal places.
// Zero when the union is empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for id := range a {
		if _, ok := b[id]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return round4(float64(intersection) / float64(union))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
