package behavior

import "math"

// Basic descriptive statistics shared by the pattern analyzers. Variance is
// population variance, matching how the per-modality baselines are compared.

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

func stdDev(values []float64) float64 {
	return math.Sqrt(variance(values))
}

// shannonEntropy bins values into the given number of equal-width buckets and
// returns the entropy of the resulting distribution in bits. Zero-range input
// (all values identical) has zero entropy.
func shannonEntropy(values []float64, bins int) float64 {
	if len(values) == 0 || bins <= 0 {
		return 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		return 0
	}
	counts := make([]int, bins)
	width := (hi - lo) / float64(bins)
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	entropy := 0.0
	n := float64(len(values))
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// pearson computes the correlation coefficient between two equal-length
// series. Mismatched or degenerate series yield 0.
func pearson(xs, ys []float64) float64 {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return 0
	}
	mx, my := mean(xs), mean(ys)
	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		dy := ys[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}

// circularVariance measures spread of direction angles (radians) on the unit
// circle: 0 for perfectly consistent heading, 1 for uniformly scattered.
func circularVariance(angles []float64) float64 {
	if len(angles) == 0 {
		return 0
	}
	var sumSin, sumCos float64
	for _, a := range angles {
		sumSin += math.Sin(a)
		sumCos += math.Cos(a)
	}
	n := float64(len(angles))
	r := math.Sqrt(sumSin*sumSin+sumCos*sumCos) / n
	return 1 - r
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
