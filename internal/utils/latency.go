package utils

import (
	"math"
	"sort"
	"sync"
	"time"
)

// PageLatencies keeps a bounded window of recent durations per key, typically a dashboard page.
type PageLatencies struct {
	mu      sync.Mutex
	window  int
	windows map[string]*latencyWindow
}

// latencyWindow is a ring buffer; total counts every observation, not just the retained ones.
type latencyWindow struct {
	samples []time.Duration
	next    int
	total   int
}

// NewPageLatencies keeps up to window samples for each key.
func NewPageLatencies(window int) *PageLatencies {
	if window <= 0 {
		window = 256
	}
	return &PageLatencies{window: window, windows: make(map[string]*latencyWindow)}
}

// Observe records d under key and returns how many samples key has seen in total.
func (p *PageLatencies) Observe(key string, d time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	w := p.windows[key]
	if w == nil {
		w = &latencyWindow{samples: make([]time.Duration, 0, p.window)}
		p.windows[key] = w
	}
	if len(w.samples) < p.window {
		w.samples = append(w.samples, d)
	} else {
		w.samples[w.next] = d
		w.next = (w.next + 1) % p.window
	}
	w.total++
	return w.total
}

// Percentile returns the nearest-rank q-th percentile (0-100) for key, zero when unseen.
func (p *PageLatencies) Percentile(key string, q float64) time.Duration {
	p.mu.Lock()
	w := p.windows[key]
	var sorted []time.Duration
	if w != nil {
		sorted = append(sorted, w.samples...)
	}
	p.mu.Unlock()

	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rank := int(math.Ceil(q / 100 * float64(len(sorted))))
	switch {
	case rank < 1:
		rank = 1
	case rank > len(sorted):
		rank = len(sorted)
	}
	return sorted[rank-1]
}

// P95 is Percentile(key, 95).
func (p *PageLatencies) P95(key string) time.Duration {
	return p.Percentile(key, 95)
}

// Retained returns how many samples are currently held for key.
func (p *PageLatencies) Retained(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w := p.windows[key]; w != nil {
		return len(w.samples)
	}
	return 0
}

// Keys lists every observed key in sorted order.
func (p *PageLatencies) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.windows))
	for k := range p.windows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
