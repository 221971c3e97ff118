package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/harvest/internal/browser"
	"github.com/go-scripts/harvest/internal/config"
	"github.com/go-scripts/harvest/internal/dataset"
	"github.com/go-scripts/harvest/internal/extract"
	"github.com/go-scripts/harvest/internal/namer"
	"github.com/go-scripts/harvest/internal/progress"
	"github.com/go-scripts/harvest/internal/scroll"
	"github.com/go-scripts/harvest/internal/session"
	"github.com/go-scripts/harvest/internal/types"
)

// Harvester runs one or more browser sessions against a URL and merges what
// they collect into a single dataset.
type Harvester struct {
	flags    CLIFlags
	cfg      config.Config
	launcher browser.Launcher
	store    *dataset.Store
	tracker  *progress.Tracker
	logger   *log.Logger
}

func run(ctx context.Context, flags CLIFlags) error {
	id, err := datasetName(flags.URL, flags.Output)
	if err != nil {
		return err
	}

	cfg, err := config.Load(flags.Config)
	if err != nil {
		return err
	}

	logger := log.Default()
	store, err := dataset.New(flags.Dir, logger)
	if err != nil {
		return err
	}

	opts := cfg.BrowserOptions(!flags.NoHeadless, os.Getenv("CHROME_PATH"))
	h := &Harvester{
		flags:    flags,
		cfg:      cfg,
		launcher: browser.NewChrome(opts, logger),
		store:    store,
		tracker:  progress.New(os.Stderr),
		logger:   logger,
	}

	summary, err := h.Harvest(ctx, id)
	if summary.Path != "" {
		fmt.Println(summary.Render())
	}
	return err
}

// datasetName returns the cleaned override, or derives the name from url
func datasetName(url, override string) (string, error) {
	if override != "" {
		return namer.Clean(override)
	}
	return namer.FromURL(url)
}

// Harvest collects listings in the configured number of batches and merges
// them into dataset id. A failed batch ends the harvest; its records are
// still saved unless partial saving is disabled. The returned summary has
// an empty Path when nothing was written.
func (h *Harvester) Harvest(ctx context.Context, id string) (summary progress.Summary, err error) {
	started := time.Now()
	summary = progress.Summary{Dataset: id}
	defer func() { summary.Elapsed = time.Since(started) }()

	batches := max(h.flags.Batches, 1)
	extractor := extract.New(h.cfg.Selectors)

	var (
		collected []types.Listing
		runErr    error
	)
	for batch := 1; batch <= batches; batch++ {
		if batch > 1 {
			h.logger.Info("pausing between batches", "pause", h.flags.Pause)
			if serr := sleep(ctx, h.flags.Pause); serr != nil {
				runErr = fmt.Errorf("pause before batch %d: %w", batch, serr)
				break
			}
		}

		h.tracker.StartRun(fmt.Sprintf("batch %d/%d", batch, batches))
		ctrl := session.New(h.launcher, extractor, scroll.New(h.cfg.Pacing(), nil), h.cfg.SessionOptions(h.tracker), h.logger)
		res, rerr := ctrl.Run(ctx, h.flags.URL, session.NewAccumulator(h.flags.Count))
		summary.Scrolls += res.Scrolls

		if rerr != nil {
			runErr = fmt.Errorf("batch %d: %w", batch, rerr)
			if h.flags.NoPartial {
				h.logger.Warn("discarding records of failed batch", "batch", batch, "records", len(res.Records))
			} else {
				collected = append(collected, res.Records...)
				summary.Partial = len(res.Records) > 0
			}
			break
		}
		h.logger.Info("batch complete", "batch", batch, "records", len(res.Records), "reason", res.Reason)
		collected = append(collected, res.Records...)
	}
	summary.Collected = len(collected)

	if runErr != nil && len(collected) == 0 {
		return summary, runErr
	}

	// an interrupted run still saves what it collected
	persistCtx := context.WithoutCancel(ctx)

	merged, merr := h.store.Merge(persistCtx, id, collected)
	if merr != nil {
		return summary, errors.Join(runErr, merr)
	}
	summary.Path = merged.Path
	summary.Existing = merged.Existing
	summary.Added = merged.Added
	summary.Total = len(merged.Records)

	if h.flags.JSON {
		path, xerr := h.store.ExportJSON(persistCtx, id, merged.Records)
		if xerr != nil {
			return summary, errors.Join(runErr, xerr)
		}
		h.logger.Info("json snapshot written", "path", path)
	}

	return summary, runErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
