package session

import "github.com/go-scripts/harvest/internal/types"

// Accumulator is an ordered set of listings keyed by identity. It is owned
// by the caller of Controller.Run and survives failed runs.
type Accumulator struct {
	target  int
	seen    map[types.Key]struct{}
	records []types.Listing
}

// NewAccumulator creates an accumulator that stops accepting listings once
// it holds target of them. A target of zero or less means no limit.
func NewAccumulator(target int) *Accumulator {
	return &Accumulator{
		target: target,
		seen:   make(map[types.Key]struct{}),
	}
}

// Add appends the listings not seen before, in order, and returns how many
// were added.
func (a *Accumulator) Add(listings ...types.Listing) int {
	added := 0
	for _, l := range listings {
		if a.Full() {
			break
		}
		key := l.Key()
		if _, dup := a.seen[key]; dup {
			continue
		}
		a.seen[key] = struct{}{}
		a.records = append(a.records, l)
		added++
	}
	return added
}

// Len returns the number of unique listings collected
func (a *Accumulator) Len() int {
	return len(a.records)
}

// Target returns the configured target, zero or less for no limit
func (a *Accumulator) Target() int {
	return a.target
}

// Full reports whether the target has been reached
func (a *Accumulator) Full() bool {
	return a.target > 0 && len(a.records) >= a.target
}

// Records returns a copy of the collected listings in first-seen order
func (a *Accumulator) Records() []types.Listing {
	return append([]types.Listing(nil), a.records...)
}
