package trace

// Normalize converts a batch of traces into directed call observations.
// For every span with a CHILD_OF reference it resolves the parent span
// within the same trace and emits (parent service -> child service) with
// the child's duration converted to milliseconds. Spans whose parent
// cannot be resolved, whose process mapping is missing, or that would
// form a self-loop are skipped; bad data never fails the batch.
func Normalize(traces []Trace) []Call {
	var calls []Call
	for _, tr := range traces {
		calls = append(calls, normalizeTrace(tr)...)
	}
	return calls
}

func normalizeTrace(tr Trace) []Call {
	if len(tr.Spans) == 0 || len(tr.Processes) == 0 {
		return nil
	}

	// Index spans by ID so parent lookup is O(1) instead of a linear
	// scan per span.
	byID := make(map[string]*Span, len(tr.Spans))
	for i := range tr.Spans {
		if tr.Spans[i].SpanID == "" {
			continue
		}
		byID[tr.Spans[i].SpanID] = &tr.Spans[i]
	}

	var calls []Call
	for i := range tr.Spans {
		span := &tr.Spans[i]

		parentID := ""
		for _, ref := range span.References {
			if ref.RefType == RefChildOf {
				parentID = ref.SpanID
				break
			}
		}
		if parentID == "" {
			continue
		}

		childProc, ok := tr.Processes[span.ProcessID]
		if !ok || childProc.ServiceName == "" {
			continue
		}

		parent, ok := byID[parentID]
		if !ok {
			continue
		}
		parentProc, ok := tr.Processes[parent.ProcessID]
		if !ok || parentProc.ServiceName == "" {
			continue
		}

		if parentProc.ServiceName == childProc.ServiceName {
			continue
		}

		calls = append(calls, Call{
			Parent:    parentProc.ServiceName,
			Child:     childProc.ServiceName,
			LatencyMs: float64(span.Duration) / 1000.0,
			TraceID:   tr.TraceID,
		})
	}
	return calls
}
