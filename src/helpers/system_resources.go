package helpers

// Cache budget bounds in MB.
const (
	minCacheMemoryMB     = 64
	maxCacheMemoryMB     = 512
	defaultCacheMemoryMB = 256
)

// CacheMemoryLimitMB returns the heap budget of the bar cache: a quarter of the
// physical memory, clamped to [64, 512] MB. Unknown memory gives 256 MB.
func CacheMemoryLimitMB() int {
	totalMB := TotalSystemMemoryMB()
	if totalMB <= 0 {
		return defaultCacheMemoryMB
	}

	limit := totalMB / 4
	switch {
	case limit < minCacheMemoryMB:
		return minCacheMemoryMB
	case limit > maxCacheMemoryMB:
		return maxCacheMemoryMB
	}
	return limit
}
