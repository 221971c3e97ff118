package scroll

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/go-scripts/harvest/internal/browser"
	"github.com/go-scripts/harvest/internal/types"
)

// Pacing bounds the randomized scroll gesture
type Pacing struct {
	MinDistance int
	MaxDistance int
	MinDelay    time.Duration
	MaxDelay    time.Duration
	// BackScrollChance is the probability of a short upward correction
	BackScrollChance float64
	MinBack          int
	MaxBack          int
	// Settle is waited after every gesture for lazy content to render
	Settle time.Duration
	// StepTimeout bounds each scroll and wait, zero means unbounded
	StepTimeout time.Duration
}

// Driver reveals more content of an infinite-scroll page. It keeps no
// session state; deciding when to stop is left to the caller.
type Driver struct {
	pacing Pacing

	mu  sync.Mutex
	rnd *rand.Rand
}

// New creates a driver. A nil rnd uses a time-seeded source.
func New(pacing Pacing, rnd *rand.Rand) *Driver {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Driver{pacing: pacing, rnd: rnd}
}

// RevealMore performs one human-paced scroll gesture on page, then jumps to
// the end of the document so the next load fires even on pages taller than
// a gesture, and waits for lazy content. Failures are reported as ErrRender
// and never retried here.
func (d *Driver) RevealMore(ctx context.Context, page browser.Page) error {
	distance, delay, back := d.plan()

	if err := d.step(ctx, func(ctx context.Context) error {
		return page.Scroll(ctx, distance)
	}); err != nil {
		return types.RenderError("scroll", err)
	}

	if err := d.step(ctx, func(ctx context.Context) error {
		return page.Wait(ctx, delay)
	}); err != nil {
		return types.RenderError("scroll wait", err)
	}

	if back > 0 {
		if err := d.step(ctx, func(ctx context.Context) error {
			return page.Scroll(ctx, -back)
		}); err != nil {
			return types.RenderError("back scroll", err)
		}
	}

	if err := d.step(ctx, page.ScrollToEnd); err != nil {
		return types.RenderError("scroll to end", err)
	}

	if err := d.step(ctx, func(ctx context.Context) error {
		return page.Wait(ctx, d.pacing.Settle)
	}); err != nil {
		return types.RenderError("settle", err)
	}
	return nil
}

// HasNewContent reports whether the listing count grew between two checks
func (d *Driver) HasNewContent(before, after int) bool {
	return after > before
}

// step runs fn under the configured step timeout
func (d *Driver) step(ctx context.Context, fn func(context.Context) error) error {
	if d.pacing.StepTimeout <= 0 {
		return fn(ctx)
	}
	stepCtx, cancel := context.WithTimeout(ctx, d.pacing.StepTimeout)
	defer cancel()
	return fn(stepCtx)
}

// plan draws the distance, delay and optional back scroll of one gesture
func (d *Driver) plan() (distance int, delay time.Duration, back int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	distance = d.intBetween(d.pacing.MinDistance, d.pacing.MaxDistance)
	delay = time.Duration(d.int64Between(int64(d.pacing.MinDelay), int64(d.pacing.MaxDelay)))
	if d.pacing.BackScrollChance > 0 && d.rnd.Float64() < d.pacing.BackScrollChance {
		back = d.intBetween(d.pacing.MinBack, d.pacing.MaxBack)
	}
	return distance, delay, back
}

func (d *Driver) intBetween(lo, hi int) int {
	return int(d.int64Between(int64(lo), int64(hi)))
}

// int64Between returns a value in [lo, hi], swapping inverted bounds
func (d *Driver) int64Between(lo, hi int64) int64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		return lo
	}
	return lo + d.rnd.Int63n(hi-lo+1)
}
