//go:build !linux && !darwin

package helpers

// TotalSystemMemoryMB is unknown on this platform.
func TotalSystemMemoryMB() int { return 0 }
