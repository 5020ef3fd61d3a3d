// Package fallback substitutes bundled seed tables for unavailable live data.
package fallback

import "github.com/healthdash/healthfeeds/internal/models"

// Resolve returns the live value, or seed itself when the outcome is unavailable. It never merges.
func Resolve[T any](o models.Outcome[T], seed T) T {
	if v, ok := o.Value(); ok {
		return v
	}
	return seed
}

// ResolveWithSource is Resolve plus the live/seed label for API consumers.
func ResolveWithSource[T any](o models.Outcome[T], seed T) (T, string) {
	return Resolve(o, seed), o.Source()
}
