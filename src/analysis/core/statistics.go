package core

import "math"

// -----------------------------------------------------------------------------

// CalculateMeanStd returns the mean and population standard deviation.
func CalculateMeanStd(data []float64) (float64, float64) {
	n := float64(len(data))
	if n == 0 {
		return 0, 0
	}

	var sum, sumSq float64
	for _, v := range data {
		sum += v
	}
	mean := sum / n
	for _, v := range data {
		sumSq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sumSq / n)
}

// -----------------------------------------------------------------------------

// CalculateCorrelation returns the Pearson coefficient of x and y, or 0 when
// undefined.
func CalculateCorrelation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}

	mx, sx := CalculateMeanStd(x)
	my, sy := CalculateMeanStd(y)
	if sx == 0 || sy == 0 {
		return 0
	}

	var cov float64
	for i := range x {
		cov += (x[i] - mx) * (y[i] - my)
	}
	r := cov / float64(len(x)) / (sx * sy)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// -----------------------------------------------------------------------------

// CalculateZScore standardizes value.
func CalculateZScore(value, mean, std float64) float64 {
	if std == 0 {
		return 0.0
	}
	return (value - mean) / std
}
