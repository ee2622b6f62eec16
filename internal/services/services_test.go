package services

import (
	"errors"
	"testing"
	"time"

	"github.com/couplinglab/coupling-monitor/internal/config"
	"github.com/couplinglab/coupling-monitor/internal/coupling"
	"github.com/couplinglab/coupling-monitor/internal/graph"
	"go.uber.org/zap"
)

func TestValidateWindow(t *testing.T) {
	maxWindow := 7 * 24 * time.Hour

	cases := []struct {
		name    string
		start   int64
		end     int64
		wantErr bool
	}{
		{"valid", 1000, 2000, false},
		{"zero start", 0, 2000, true},
		{"negative start", -1, 2000, true},
		{"zero end", 1000, 0, true},
		{"start equals end", 1000, 1000, true},
		{"start after end", 2000, 1000, true},
		{"exceeds max span", 1000, 1000 + maxWindow.Microseconds() + 1, true},
		{"exactly max span", 1000, 1000 + maxWindow.Microseconds(), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateWindow(tc.start, tc.end, maxWindow)
			if tc.wantErr {
				if !errors.Is(err, coupling.ErrInvalidTimeRange) {
					t.Errorf("expected ErrInvalidTimeRange, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("expected valid window, got %v", err)
			}
		})
	}
}

func TestGraphService_DefaultScheme(t *testing.T) {
	cfg := config.DefaultConfig()
	svc := NewGraphService(cfg, zap.NewNop(), nil, nil, nil, nil)

	cfg.Analysis.WeightScheme = "frequency"
	if got := svc.DefaultScheme(); got != graph.WeightFrequency {
		t.Errorf("expected configured scheme frequency, got %q", got)
	}

	cfg.Analysis.WeightScheme = "latency"
	if got := svc.DefaultScheme(); got != graph.WeightLatency {
		t.Errorf("expected configured scheme latency, got %q", got)
	}

	// An unknown configured name must not break request handling.
	cfg.Analysis.WeightScheme = "pagerank"
	if got := svc.DefaultScheme(); got != graph.WeightCoExecution {
		t.Errorf("expected fallback to co_execution, got %q", got)
	}
}

func TestValidateWindow_NoMaxSpan(t *testing.T) {
	// A zero maximum disables the span check entirely.
	start := int64(1000)
	end := start + (365 * 24 * time.Hour).Microseconds()
	if err := validateWindow(start, end, 0); err != nil {
		t.Errorf("expected no span limit when max window is zero, got %v", err)
	}
}
