package utils

import (
	"runtime"
	"runtime/debug"
	"sort"
	"sync"

	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"
)

const (
	// Heap is checked once every heapCheckEvery cached bars
	heapCheckEvery = 1000
	minRingBars    = 50
)

// -----------------------------------------------------------------------------
// MemoryManager is the in-process bar cache: the newest bars of every symbol
// the bridge has stored since startup.
// -----------------------------------------------------------------------------

type MemoryManager struct {
	LimitMB    int
	BarsPerSym int
	Logger     *logger.Logger

	mu      sync.RWMutex
	rings   map[string]*barRing
	pending int
}

func NewMemoryManager(limitMB, barsPerSymbol int, log *logger.Logger) *MemoryManager {
	if log == nil {
		log = logger.NewLogger(nil, "MemoryManager")
	}
	return &MemoryManager{
		LimitMB:    limitMB,
		BarsPerSym: barsPerSymbol,
		Logger:     log,
		rings:      make(map[string]*barRing),
	}
}

// -----------------------------------------------------------------------------
// Writes
// -----------------------------------------------------------------------------

// AddBars caches bars under symbol.
func (mm *MemoryManager) AddBars(symbol string, bars ...models.MOHLCRow) {
	if len(bars) == 0 {
		return
	}

	mm.mu.Lock()
	ring, ok := mm.rings[symbol]
	if !ok {
		ring = newBarRing(mm.BarsPerSym)
		mm.rings[symbol] = ring
	}
	for _, bar := range bars {
		ring.put(bar)
	}
	mm.pending += len(bars)
	check := mm.pending >= heapCheckEvery
	if check {
		mm.pending = 0
	}
	mm.mu.Unlock()

	if check {
		mm.enforceLimit()
	}
}

// -----------------------------------------------------------------------------

// enforceLimit halves every ring above minRingBars when the heap is over
// LimitMB.
func (mm *MemoryManager) enforceLimit() {
	if mm.LimitMB <= 0 {
		return
	}
	heap := HeapMB()
	if heap <= float64(mm.LimitMB) {
		return
	}

	mm.Logger.Warning("Heap at %.1fMB is over the %dMB cache limit, shrinking %d symbols", heap, mm.LimitMB, mm.SymbolCount())

	mm.mu.Lock()
	for _, ring := range mm.rings {
		if n := ring.cap() / 2; n >= minRingBars {
			ring.shrink(n)
		}
	}
	mm.mu.Unlock()

	runtime.GC()
	debug.FreeOSMemory()
}

// HeapMB reports the allocated heap in MB.
func HeapMB() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / (1 << 20)
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// GetLatest returns up to n of the newest bars of symbol, oldest first.
// n <= 0 returns everything cached.
func (mm *MemoryManager) GetLatest(symbol string, n int) []models.MOHLCRow {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	ring, ok := mm.rings[symbol]
	if !ok {
		return []models.MOHLCRow{}
	}
	return ring.latest(n)
}

// Snapshot returns the newest bar of every cached symbol.
func (mm *MemoryManager) Snapshot() map[string]models.MOHLCRow {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	out := make(map[string]models.MOHLCRow, len(mm.rings))
	for symbol, ring := range mm.rings {
		if newest := ring.latest(1); len(newest) == 1 {
			out[symbol] = newest[0]
		}
	}
	return out
}

// Symbols lists the cached symbols in ascending order.
func (mm *MemoryManager) Symbols() []string {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	out := make([]string, 0, len(mm.rings))
	for symbol := range mm.rings {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

func (mm *MemoryManager) HasSymbol(symbol string) bool {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	_, ok := mm.rings[symbol]
	return ok
}

func (mm *MemoryManager) SymbolCount() int {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return len(mm.rings)
}

// -----------------------------------------------------------------------------

// Reset drops every cached bar.
func (mm *MemoryManager) Reset() {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.rings = make(map[string]*barRing)
}
