package browser

import (
	"context"
	"time"
)

// Page is a live, rendered browser page. It is the only surface the
// harvesting loop uses to talk to the browser.
type Page interface {
	// Navigate loads url and waits for the document body
	Navigate(ctx context.Context, url string) error
	// Scroll moves the viewport vertically by distance pixels
	Scroll(ctx context.Context, distance int) error
	// ScrollToEnd jumps to the bottom of the document, where infinite-scroll
	// pages trigger their next load
	ScrollToEnd(ctx context.Context) error
	// Wait pauses for d while the page keeps rendering
	Wait(ctx context.Context, d time.Duration) error
	// Blocks returns the outer HTML of every rendered element matched by the
	// first selector in selectors that matches anything.
	Blocks(ctx context.Context, selectors []string) ([]string, error)
	// Close releases the page and its browser process
	Close() error
}

// Launcher opens pages
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}

// Options configures the Chrome process backing a page
type Options struct {
	Headless bool
	// ExecPath overrides the Chrome binary, empty means auto-detect
	ExecPath     string
	UserAgent    string
	WindowWidth  int
	WindowHeight int
	// StepTimeout bounds every single browser round trip
	StepTimeout time.Duration
	// LoadSettle is how long to let the page render after navigation
	LoadSettle time.Duration
	// DismissSelectors are clicked once after navigation to close overlays
	DismissSelectors []string
}
