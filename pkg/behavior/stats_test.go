package behavior

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestMeanAndVariance(t *testing.T) {
	vals := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if m := mean(vals); m != 5 {
		t.Errorf("mean = %v, want 5", m)
	}
	if v := variance(vals); v != 4 {
		t.Errorf("variance = %v, want 4", v)
	}
	if s := stdDev(vals); s != 2 {
		t.Errorf("stdDev = %v, want 2", s)
	}
	if m := mean(nil); m != 0 {
		t.Errorf("mean(nil) = %v, want 0", m)
	}
}

func TestShannonEntropyExtremes(t *testing.T) {
	uniform := make([]float64, 160)
	for i := range uniform {
		uniform[i] = float64(i % 16)
	}
	constant := make([]float64, 160)

	hu := shannonEntropy(uniform, 16)
	hc := shannonEntropy(constant, 16)
	if hc != 0 {
		t.Errorf("entropy of constant series = %v, want 0", hc)
	}
	if hu <= hc {
		t.Errorf("uniform entropy %v not greater than constant entropy %v", hu, hc)
	}
	if hu > math.Log2(16)+1e-9 {
		t.Errorf("entropy %v exceeds log2(bins)", hu)
	}
}

func TestPearson(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{2, 4, 6, 8, 10}
	if r := pearson(xs, ys); !almostEqual(r, 1, 1e-9) {
		t.Errorf("pearson of linear series = %v, want 1", r)
	}
	inv := []float64{10, 8, 6, 4, 2}
	if r := pearson(xs, inv); !almostEqual(r, -1, 1e-9) {
		t.Errorf("pearson of inverse series = %v, want -1", r)
	}
	flat := []float64{3, 3, 3, 3, 3}
	if r := pearson(xs, flat); r != 0 {
		t.Errorf("pearson against constant series = %v, want 0", r)
	}
}

func TestCircularVariance(t *testing.T) {
	same := []float64{0.5, 0.5, 0.5, 0.5}
	if cv := circularVariance(same); !almostEqual(cv, 0, 1e-9) {
		t.Errorf("circular variance of identical angles = %v, want 0", cv)
	}
	opposed := []float64{0, math.Pi, 0, math.Pi}
	if cv := circularVariance(opposed); !almostEqual(cv, 1, 1e-9) {
		t.Errorf("circular variance of opposed angles = %v, want 1", cv)
	}
}
