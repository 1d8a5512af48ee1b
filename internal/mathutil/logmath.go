package mathutil

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// NegInf represents log(0).
var NegInf = math.Inf(-1)

// LogSumExp returns log(sum(exp(xs))). An empty slice is log(0).
func LogSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return NegInf
	}
	return floats.LogSumExp(xs)
}

// LogAdd returns log(exp(a) + exp(b)) in a numerically stable way.
// The smaller operand is skipped when it cannot change a float64 result
// (exp(-36) ≈ 2.3e-16).
func LogAdd(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(b, -1) {
		return a
	}
	d := b - a
	if d < -36.0 {
		return a
	}
	return a + math.Log1p(math.Exp(d))
}

// Log1mExp returns log(1 - exp(x)) for x <= 0. Any x >= 0 yields log(0).
func Log1mExp(x float64) float64 {
	if x >= 0 {
		return NegInf
	}
	if x > -math.Ln2 {
		return math.Log(-math.Expm1(x))
	}
	return math.Log1p(-math.Exp(x))
}

// Sigmoid is the logistic function.
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Dot returns the inner product of a and b over their common length.
func Dot(a, b []float64) float64 {
	n := min(len(a), len(b))
	var s float64
	for i := range n {
		s += a[i] * b[i]
	}
	return s
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return max(lo, min(hi, x))
}
