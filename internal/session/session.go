package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/go-scripts/harvest/internal/browser"
	"github.com/go-scripts/harvest/internal/types"
)

var tracer = otel.Tracer("harvest.internal.session")

// State is a step of the harvesting state machine
type State int

const (
	Starting State = iota
	Extracting
	Scrolling
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Extracting:
		return "extracting"
	case Scrolling:
		return "scrolling"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StopReason says why a run reached Done
type StopReason string

const (
	StopTarget    StopReason = "target reached"
	StopExhausted StopReason = "page exhausted"
	StopScrollCap StopReason = "scroll limit reached"
)

// Extractor reads the listings currently rendered on a page
type Extractor interface {
	Extract(ctx context.Context, page browser.Page) ([]types.Listing, error)
}

// Scroller reveals more content of a page
type Scroller interface {
	RevealMore(ctx context.Context, page browser.Page) error
	HasNewContent(before, after int) bool
}

// Reporter observes a run. Implementations must be fast, they are called
// inline from the loop.
type Reporter interface {
	Collected(collected, target int)
	Scrolling(scroll int)
	Finished(state State)
}

// Options bound a run
type Options struct {
	// NoGrowthLimit is how many consecutive scrolls without a new listing
	// mark the page as exhausted. It also bounds how many consecutive frames
	// of unrecognized blocks are skipped after a scroll before the run fails.
	NoGrowthLimit int
	// MaxScrolls caps the scrolls of a single run, zero or less disables it
	MaxScrolls int
	// RenderRetries is how often a failed scroll is retried before the
	// run fails.
	RenderRetries int
	RetryInterval time.Duration
	Reporter      Reporter
}

// Result describes how a run ended. Records holds everything collected,
// also when the run failed.
type Result struct {
	Records []types.Listing
	Scrolls int
	State   State
	Reason  StopReason
}

// Controller drives one page through the extract and scroll loop
type Controller struct {
	launcher  browser.Launcher
	extractor Extractor
	scroller  Scroller
	opts      Options
	logger    *log.Logger
}

// New creates a controller
func New(launcher browser.Launcher, extractor Extractor, scroller Scroller, opts Options, logger *log.Logger) *Controller {
	if opts.NoGrowthLimit <= 0 {
		opts.NoGrowthLimit = 1
	}
	if opts.RenderRetries < 0 {
		opts.RenderRetries = 0
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		launcher:  launcher,
		extractor: extractor,
		scroller:  scroller,
		opts:      opts,
		logger:    logger,
	}
}

// Run opens url and collects listings into acc until its target is reached
// or the page stops producing new listings. The page is always closed
// before Run returns.
func (c *Controller) Run(ctx context.Context, url string, acc *Accumulator) (Result, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(attribute.String("url", url), attribute.Int("target", acc.Target()))

	var (
		page     browser.Page
		err      error
		state    = Starting
		scrolled bool
		idle     int
		// consecutive frames whose blocks were all unrecognized
		unrecognized int
		result   Result
	)

	defer func() {
		if page == nil {
			return
		}
		if cerr := page.Close(); cerr != nil {
			c.logger.Warn("failed to close page", "err", cerr)
		}
	}()

	finish := func() (Result, error) {
		result.Records = acc.Records()
		result.State = state
		span.SetAttributes(
			attribute.Int("collected", acc.Len()),
			attribute.Int("scrolls", result.Scrolls),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "harvest run failed")
		}
		if c.opts.Reporter != nil {
			c.opts.Reporter.Finished(state)
		}
		return result, err
	}

	for {
		c.logger.Debug("session state", "state", state, "collected", acc.Len(), "scrolls", result.Scrolls)

		switch state {
		case Starting:
			page, err = c.launcher.Launch(ctx)
			if err != nil {
				page = nil
				err = types.RenderError("launch", err)
				state = Failed
				continue
			}
			if err = page.Navigate(ctx, url); err != nil {
				err = types.RenderError("navigate", err)
				state = Failed
				continue
			}
			state = Extracting

		case Extracting:
			listings, xerr := c.extractor.Extract(ctx, page)
			switch {
			case xerr == nil:
				unrecognized = 0
			case scrolled && errors.Is(xerr, types.ErrExtraction) && unrecognized+1 < c.opts.NoGrowthLimit:
				// placeholders of a load still in flight
				unrecognized++
				c.logger.Warn("no recognizable listings in frame", "scrolls", result.Scrolls, "err", xerr)
				listings = nil
			default:
				err = xerr
				state = Failed
				continue
			}

			before := acc.Len()
			added := acc.Add(listings...)
			if scrolled {
				if c.scroller.HasNewContent(before, acc.Len()) {
					idle = 0
				} else {
					idle++
				}
			}
			c.logger.Debug("extracted listings", "visible", len(listings), "new", added, "collected", acc.Len(), "idle", idle)
			if c.opts.Reporter != nil {
				c.opts.Reporter.Collected(acc.Len(), acc.Target())
			}

			switch {
			case acc.Full():
				result.Reason = StopTarget
				state = Done
			case idle >= c.opts.NoGrowthLimit:
				result.Reason = StopExhausted
				state = Done
			case c.opts.MaxScrolls > 0 && result.Scrolls >= c.opts.MaxScrolls:
				result.Reason = StopScrollCap
				state = Done
			default:
				state = Scrolling
			}

		case Scrolling:
			if cerr := ctx.Err(); cerr != nil {
				err = fmt.Errorf("scroll: %w", cerr)
				state = Failed
				continue
			}
			if c.opts.Reporter != nil {
				c.opts.Reporter.Scrolling(result.Scrolls + 1)
			}
			if err = c.reveal(ctx, page); err != nil {
				state = Failed
				continue
			}
			result.Scrolls++
			scrolled = true
			state = Extracting

		case Done:
			c.logger.Info("harvest finished", "reason", result.Reason, "collected", acc.Len(), "scrolls", result.Scrolls)
			return finish()

		case Failed:
			c.logger.Error("harvest failed", "phase", types.Phase(err), "collected", acc.Len(), "err", err)
			return finish()
		}
	}
}

// reveal scrolls once, retrying render failures a bounded number of times
func (c *Controller) reveal(ctx context.Context, page browser.Page) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.opts.RetryInterval), uint64(c.opts.RenderRetries)),
		ctx,
	)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := c.scroller.RevealMore(ctx, page)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !errors.Is(err, types.ErrRender) {
			return backoff.Permanent(err)
		}
		c.logger.Warn("scroll failed", "attempt", attempt, "err", err)
		return err
	}, policy)
}
