package models

// Outcome is the terminal state of one aggregator call: live data or unavailable.
type Outcome[T any] struct {
	value T
	live  bool
}

// Live wraps freshly aggregated data.
func Live[T any](value T) Outcome[T] {
	return Outcome[T]{value: value, live: true}
}

// Unavailable reports that the live source could not produce data.
func Unavailable[T any]() Outcome[T] {
	return Outcome[T]{}
}

// Value returns the live data and whether it is present.
func (o Outcome[T]) Value() (T, bool) {
	return o.value, o.live
}

// IsLive reports whether the outcome carries live data.
func (o Outcome[T]) IsLive() bool {
	return o.live
}

// Source labels the outcome for API consumers.
func (o Outcome[T]) Source() string {
	if o.live {
		return SourceLive
	}
	return SourceSeed
}

const (
	// SourceLive marks data that came from the upstream feed on this request.
	SourceLive = "live"
	// SourceSeed marks data served from the bundled seed tables.
	SourceSeed = "seed"
)
