package util

import "testing"

func TestMedian(t *testing.T) {
	tests := []struct {
		in   []float64
		want float64
	}{
		{[]float64{2}, 2},
		{[]float64{1, 2, 3, 4}, 2.5},
		{[]float64{1, 3, 100}, 3},
		{[]float64{-0.1, 0.2}, 0.05},
	}
	for _, tt := range tests {
		if got := Median(tt.in); got-tt.want > 1e-12 || tt.want-got > 1e-12 {
			t.Fatalf("Median(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
