// Package window maintains a time- and capacity-bounded rolling buffer of
// acidity samples and exposes a running average.
package window

import (
	"math"
	"sync"
	"time"
)

const (
	// DefaultDuration bounds how old an entry may be relative to the most
	// recently inserted one.
	DefaultDuration = 10 * time.Second

	// DefaultCapacity is the hard limit on resident entries.
	DefaultCapacity = 100

	// NeutralPH is returned as the average of an empty window; 7.0 is the
	// domain's neutral acidity point.
	NeutralPH = 7.0
)

type (
	// Window is a bounded rolling buffer of (value, timestamp) pairs.
	// Eviction is always oldest-first: after every insert, entries older
	// than the newest timestamp minus the window duration are dropped, then
	// the front is trimmed until the capacity holds.
	Window struct {
		mu       sync.Mutex
		duration time.Duration
		capacity int
		entries  []entry
	}

	// Stats is a read-only snapshot for diagnostics.
	Stats struct {
		Average  float64
		Size     int
		TimeSpan time.Duration
	}

	entry struct {
		value float64
		at    time.Time
	}
)

// New constructs a window. Non-positive duration or capacity fall back to the
// defaults.
func New(duration time.Duration, capacity int) *Window {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{duration: duration, capacity: capacity}
}

// Push appends a sample and evicts stale and over-capacity entries from the
// front.
func (w *Window) Push(value float64, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries = append(w.entries, entry{value: value, at: at})

	cutoff := at.Add(-w.duration)
	drop := 0
	for drop < len(w.entries) && w.entries[drop].at.Before(cutoff) {
		drop++
	}
	if over := len(w.entries) - drop - w.capacity; over > 0 {
		drop += over
	}
	if drop > 0 {
		w.entries = append(w.entries[:0], w.entries[drop:]...)
	}
}

// Average returns the arithmetic mean of the current contents rounded to two
// decimal places, or NeutralPH when the window is empty.
func (w *Window) Average() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.average()
}

// Stats returns a snapshot of the current window contents.
func (w *Window) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Stats{Average: w.average(), Size: len(w.entries)}
	if len(w.entries) > 1 {
		s.TimeSpan = w.entries[len(w.entries)-1].at.Sub(w.entries[0].at)
	}
	return s
}

func (w *Window) average() float64 {
	if len(w.entries) == 0 {
		return NeutralPH
	}
	sum := 0.0
	for _, e := range w.entries {
		sum += e.value
	}
	return math.Round(sum/float64(len(w.entries))*100) / 100
}
