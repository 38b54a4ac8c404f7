// Package obfuscation applies privacy filters to query result counts.
package obfuscation

import "math"

// Suppress replaces counts strictly below threshold with zero. A threshold
// of zero or less disables suppression.
func Suppress(count int64, threshold int) int64 {
	if threshold <= 0 {
		return count
	}
	if count < int64(threshold) {
		return 0
	}
	return count
}

// Round rounds a count to the nearest multiple of nearest, halves to even.
// A nearest of zero or less returns the count unchanged.
func Round(count int64, nearest int) int64 {
	if nearest <= 0 {
		return count
	}
	n := float64(nearest)
	return int64(math.RoundToEven(float64(count)/n) * n)
}

// Pipeline holds the configured privacy filters. The zero value applies
// nothing.
type Pipeline struct {
	Threshold int // low number suppression threshold
	Nearest   int // rounding target
}

// Apply runs suppression then rounding, in that order. Once a count is
// suppressed to zero no further filter changes it.
func (p Pipeline) Apply(count int64) int64 {
	result := Suppress(count, p.Threshold)
	if result == 0 {
		return 0
	}
	return Round(result, p.Nearest)
}
