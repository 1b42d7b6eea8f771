package analysis

import (
	"sort"
)

// Window is one group of sample indices sharing an aligned time window.
type Window struct {
	Indices   []int
	StartTime int64
	EndTime   int64
}

// TimeSeriesResampler groups timestamped samples into aligned windows.
type TimeSeriesResampler struct {
	// Offset shifts timestamps before alignment, e.g. a zone offset so that
	// daily windows start at local midnight.
	Offset int64
}

// -----------------------------------------------------------------------------

// ResampleIndices groups the indices of sorted timestamps (unix seconds) into
// windows of windowSeconds aligned to multiples of the window. Empty windows
// are omitted.
func (r *TimeSeriesResampler) ResampleIndices(timestamps []int64, windowSeconds int64) []Window {
	if len(timestamps) == 0 || windowSeconds <= 0 {
		return []Window{}
	}

	var results []Window
	i := 0
	for i < len(timestamps) {
		start, end := CalculateWindowBoundaries(timestamps[i]+r.Offset, windowSeconds)
		start, end = start-r.Offset, end-r.Offset

		// First index at or past the window end
		j := i + sort.Search(len(timestamps)-i, func(k int) bool {
			return timestamps[i+k] >= end
		})

		indices := make([]int, j-i)
		for k := range indices {
			indices[k] = i + k
		}
		results = append(results, Window{Indices: indices, StartTime: start, EndTime: end})
		i = j
	}

	return results
}

// -----------------------------------------------------------------------------

// ResampleData returns the data of each window.
func ResampleData[T any](r *TimeSeriesResampler, timestamps []int64, data []T, windowSeconds int64) [][]T {
	var groups [][]T
	for _, w := range r.ResampleIndices(timestamps, windowSeconds) {
		group := make([]T, 0, len(w.Indices))
		for _, idx := range w.Indices {
			if idx < len(data) {
				group = append(group, data[idx])
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// -----------------------------------------------------------------------------

// CalculateWindowBoundaries returns the aligned window containing ts.
func CalculateWindowBoundaries(ts int64, window int64) (int64, int64) {
	start := ts - (ts % window)
	if ts < 0 && ts%window != 0 {
		start -= window
	}
	return start, start + window
}
