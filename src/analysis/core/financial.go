package core

import "math"

// OHLCV is one aggregated bar.
type OHLCV struct {
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Quantity int64
	Volume   int64
}

// -----------------------------------------------------------------------------

// ComputeOHLCV folds consecutive bars (oldest first) into one: first open,
// highest high, lowest low, last close, summed quantity and volume.
func ComputeOHLCV(opens, highs, lows, closes []float64, quantities, volumes []int64) OHLCV {
	n := len(closes)
	if n == 0 || len(opens) != n || len(highs) != n || len(lows) != n {
		return OHLCV{}
	}

	out := OHLCV{
		Open:  opens[0],
		Close: closes[n-1],
		High:  math.Inf(-1),
		Low:   math.Inf(1),
	}
	for i := 0; i < n; i++ {
		out.High = math.Max(out.High, highs[i])
		out.Low = math.Min(out.Low, lows[i])
		if i < len(quantities) {
			out.Quantity += quantities[i]
		}
		if i < len(volumes) {
			out.Volume += volumes[i]
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// CalculateChangePercent calculates fractional change.
func CalculateChangePercent(current, previous float64) float64 {
	if previous == 0 {
		return 0.0
	}
	return (current - previous) / previous
}
