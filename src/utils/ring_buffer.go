package utils

import (
	"ta-fetcher/src/models"
)

// -----------------------------------------------------------------------------
// barRing holds the newest bars of one symbol. When full, the oldest bar is
// overwritten. Not safe for concurrent use; MemoryManager guards it.
// -----------------------------------------------------------------------------

type barRing struct {
	slots []models.MOHLCRow
	head  int // oldest bar
	count int
}

func newBarRing(capacity int) *barRing {
	if capacity <= 0 {
		capacity = DefaultCacheBars
	}
	return &barRing{slots: make([]models.MOHLCRow, capacity)}
}

// -----------------------------------------------------------------------------

func (r *barRing) at(i int) int {
	return (r.head + i) % len(r.slots)
}

// put stores bar. A bar with the datetime of the newest one replaces it, so
// repeated updates of a still-forming minute keep a single slot.
func (r *barRing) put(bar models.MOHLCRow) {
	if r.count > 0 {
		newest := r.at(r.count - 1)
		if r.slots[newest].Datetime.Equal(bar.Datetime) {
			r.slots[newest] = bar
			return
		}
	}

	if r.count == len(r.slots) {
		r.slots[r.head] = bar
		r.head = r.at(1)
		return
	}
	r.slots[r.at(r.count)] = bar
	r.count++
}

// -----------------------------------------------------------------------------

// latest returns up to n of the newest bars, oldest first. n <= 0 means all.
func (r *barRing) latest(n int) []models.MOHLCRow {
	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]models.MOHLCRow, n)
	for i := range out {
		out[i] = r.slots[r.at(r.count-n+i)]
	}
	return out
}

func (r *barRing) len() int   { return r.count }
func (r *barRing) cap() int   { return len(r.slots) }
func (r *barRing) full() bool { return r.count == len(r.slots) }

// -----------------------------------------------------------------------------

// shrink lowers the capacity to n, dropping the oldest bars that no longer fit.
func (r *barRing) shrink(n int) {
	if n <= 0 || n >= len(r.slots) {
		return
	}
	kept := r.latest(n)
	r.slots = make([]models.MOHLCRow, n)
	copy(r.slots, kept)
	r.head = 0
	r.count = len(kept)
}
