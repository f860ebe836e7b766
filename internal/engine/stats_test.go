package engine

import (
	"math"
	"testing"
)

func TestGini(t *testing.T) {
	tests := []struct {
		name   string
		wealth []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"equal", []float64{100, 100, 100, 100, 100}, 0},
		{"one holds all of two", []float64{0, 1}, 0.5},
		{"one holds all of four", []float64{0, 0, 0, 8}, 0.75},
		{"all zero", []float64{0, 0, 0}, 0},
		{"unsorted input", []float64{3, 1, 2}, 2.0 / 9.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Gini(tt.wealth); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Gini(%v) = %g, want %g", tt.wealth, got, tt.want)
			}
		})
	}
}

func TestGiniScaleInvariant(t *testing.T) {
	w := []float64{3, 17, 42, 5, 90, 1}
	base := Gini(w)
	for _, k := range []float64{0.01, 2, 1000} {
		scaled := make([]float64, len(w))
		for i, v := range w {
			scaled[i] = v * k
		}
		if got := Gini(scaled); math.Abs(got-base) > 1e-12 {
			t.Errorf("scale %g: Gini = %g, want %g", k, got, base)
		}
	}
}

func TestGiniDoesNotReorderInput(t *testing.T) {
	w := []float64{5, 1, 3}
	Gini(w)
	if w[0] != 5 || w[1] != 1 || w[2] != 3 {
		t.Errorf("input reordered: %v", w)
	}
}

func TestSummarize(t *testing.T) {
	w := make([]float64, 100)
	for i := range w {
		w[i] = float64(100 - i)
	}

	d := Summarize(w)
	if d.Total != 5050 {
		t.Errorf("total = %g, want 5050", d.Total)
	}
	if d.Mean != 50.5 {
		t.Errorf("mean = %g, want 50.5", d.Mean)
	}
	// Population variance of 1..100 is (100²−1)/12.
	if want := math.Sqrt(9999.0 / 12); math.Abs(d.StdDev-want) > 1e-9 {
		t.Errorf("std dev = %g, want %g", d.StdDev, want)
	}
	want := [7]float64{1, 5, 25, 50, 75, 95, 99}
	if d.Percentiles != want {
		t.Errorf("percentiles = %v, want %v", d.Percentiles, want)
	}

	if empty := Summarize(nil); empty != (Distribution{}) {
		t.Errorf("Summarize(nil) = %+v", empty)
	}
}
