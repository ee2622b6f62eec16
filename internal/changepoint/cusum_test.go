package changepoint

import "testing"

func TestCusum_FlagsDrift(t *testing.T) {
	signal := make([]float64, 20)
	for i := 10; i < 20; i++ {
		signal[i] = 10
	}

	flagged := Cusum(signal, 1)
	if len(flagged) == 0 {
		t.Fatal("expected drift indices for a level shift")
	}

	// The cumulative deviation peaks right before the shift.
	found := false
	for _, idx := range flagged {
		if idx == 9 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected index 9 among flagged indices, got %v", flagged)
	}
}

func TestCusum_ConstantSignal(t *testing.T) {
	signal := []float64{3, 3, 3, 3, 3}
	if flagged := Cusum(signal, 1); flagged != nil {
		t.Errorf("expected no flags for constant signal, got %v", flagged)
	}
}

func TestCusum_ShortSignal(t *testing.T) {
	if flagged := Cusum([]float64{1}, 1); flagged != nil {
		t.Errorf("expected nil for single-point signal, got %v", flagged)
	}
	if flagged := Cusum(nil, 1); flagged != nil {
		t.Errorf("expected nil for empty signal, got %v", flagged)
	}
}

func TestCusum_ThresholdFiltersFlags(t *testing.T) {
	signal := make([]float64, 20)
	for i := 10; i < 20; i++ {
		signal[i] = 10
	}

	loose := Cusum(signal, 0.5)
	strict := Cusum(signal, 3)
	if len(strict) > len(loose) {
		t.Errorf("expected a stricter threshold to flag fewer indices: %d vs %d", len(strict), len(loose))
	}
}
