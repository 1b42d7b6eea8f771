package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheMemoryLimitWithinBounds(t *testing.T) {
	limit := CacheMemoryLimitMB()
	assert.GreaterOrEqual(t, limit, minCacheMemoryMB)
	assert.LessOrEqual(t, limit, maxCacheMemoryMB)
}
