// Package trace defines the Jaeger-style trace model and the normalizer
// that turns raw trace batches into directed call observations.
package trace

// Reference types carried on spans. Only CHILD_OF links are used when
// reconstructing the call graph.
const RefChildOf = "CHILD_OF"

// Trace is one end-to-end execution: a set of spans plus the process
// table that maps process IDs to service names. Process IDs are unique
// within a trace only.
type Trace struct {
	TraceID   string             `json:"traceID"`
	Spans     []Span             `json:"spans"`
	Processes map[string]Process `json:"processes"`
}

// Span is one recorded unit of work. StartTime is epoch microseconds,
// Duration is microseconds.
type Span struct {
	TraceID       string      `json:"traceID"`
	SpanID        string      `json:"spanID"`
	OperationName string      `json:"operationName"`
	ProcessID     string      `json:"processID"`
	StartTime     int64       `json:"startTime"`
	Duration      int64       `json:"duration"`
	References    []Reference `json:"references"`
}

// Reference links a span to another span, typically its parent.
type Reference struct {
	RefType string `json:"refType"`
	TraceID string `json:"traceID"`
	SpanID  string `json:"spanID"`
}

// Process identifies the service that executed a span.
type Process struct {
	ServiceName string `json:"serviceName"`
}

// Call is one directed call observation: parent service invoked child
// service once, with the child's duration as the latency sample.
type Call struct {
	Parent    string
	Child     string
	LatencyMs float64
	TraceID   string
}
