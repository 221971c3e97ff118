package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/chromedp"
)

// hideWebdriver masks the automation flag scripts commonly check
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// Chrome launches headless or visible Chrome tabs through chromedp
type Chrome struct {
	opts   Options
	logger *log.Logger
}

// NewChrome creates a launcher for opts
func NewChrome(opts Options, logger *log.Logger) *Chrome {
	if logger == nil {
		logger = log.Default()
	}
	return &Chrome{opts: opts, logger: logger}
}

// logf routes chromedp's protocol chatter to the debug level
func (c *Chrome) logf(format string, args ...interface{}) {
	c.logger.Debugf(format, args...)
}

// errorf routes chromedp's internal errors to the error level
func (c *Chrome) errorf(format string, args ...interface{}) {
	c.logger.Errorf(format, args...)
}

// allocatorOptions builds the exec allocator flags for opts
func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	return allocOpts
}

// Launch starts a Chrome process with a single tab. The returned page owns
// the process; closing it tears both down.
func (c *Chrome) Launch(ctx context.Context) (Page, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(c.opts)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(c.logf),
		chromedp.WithErrorf(c.errorf),
	)

	// The first Run starts the browser
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &tab{
		ctx:    tabCtx,
		cancel: func() { tabCancel(); allocCancel() },
		opts:   c.opts,
	}, nil
}

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
}

// run executes actions on the tab bounded by both ctx and the step timeout
func (t *tab) run(ctx context.Context, actions ...chromedp.Action) error {
	stepCtx, cancel := t.stepContext(ctx)
	defer cancel()
	return chromedp.Run(stepCtx, actions...)
}

// stepContext derives a context from the tab that is also cancelled with ctx
func (t *tab) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		stepCtx context.Context
		cancel  context.CancelFunc
	)
	if t.opts.StepTimeout > 0 {
		stepCtx, cancel = context.WithTimeout(t.ctx, t.opts.StepTimeout)
	} else {
		stepCtx, cancel = context.WithCancel(t.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return stepCtx, func() {
		stop()
		cancel()
	}
}

func (t *tab) Navigate(ctx context.Context, url string) error {
	tasks := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(hideWebdriver, nil),
	}
	if t.opts.LoadSettle > 0 {
		tasks = append(tasks, chromedp.Sleep(t.opts.LoadSettle))
	}
	if err := t.run(ctx, tasks...); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	if len(t.opts.DismissSelectors) > 0 {
		// Overlays are optional, a failure here never fails navigation
		var dismissed bool
		_ = t.run(ctx, chromedp.Evaluate(dismissScript(t.opts.DismissSelectors), &dismissed))
	}
	return nil
}

func (t *tab) Scroll(ctx context.Context, distance int) error {
	script := fmt.Sprintf(`window.scrollBy({top: %d, behavior: 'smooth'})`, distance)
	if err := t.run(ctx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("scroll by %d: %w", distance, err)
	}
	return nil
}

func (t *tab) ScrollToEnd(ctx context.Context) error {
	if err := t.run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil)); err != nil {
		return fmt.Errorf("scroll to end: %w", err)
	}
	return nil
}

func (t *tab) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ctx.Done():
		return errors.New("page closed")
	}
}

func (t *tab) Blocks(ctx context.Context, selectors []string) ([]string, error) {
	var raw string
	if err := t.run(ctx, chromedp.Evaluate(blocksScript(selectors), &raw)); err != nil {
		return nil, fmt.Errorf("read listing blocks: %w", err)
	}

	var blocks []string
	if err := json.Unmarshal([]byte(raw), &blocks); err != nil {
		return nil, fmt.Errorf("decode listing blocks: %w", err)
	}
	return blocks, nil
}

func (t *tab) Close() error {
	t.cancel()
	return nil
}

// blocksScript returns JavaScript that serializes the outer HTML of the
// elements matched by the first selector with any match.
func blocksScript(selectors []string) string {
	selectorsJSON, _ := json.Marshal(selectors)
	return fmt.Sprintf(`
	(() => {
		const selectors = %s;
		for (const selector of selectors) {
			const elements = document.querySelectorAll(selector);
			if (elements.length > 0) {
				return JSON.stringify(Array.from(elements).map(el => el.outerHTML));
			}
		}
		return JSON.stringify([]);
	})()`, selectorsJSON)
}

// dismissScript clicks the first visible element matching selectors
func dismissScript(selectors []string) string {
	return fmt.Sprintf(`
	(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.click();
		return true;
	})()`, strings.Join(selectors, ", "))
}
