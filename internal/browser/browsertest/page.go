// Package browsertest provides a scripted in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/go-scripts/harvest/internal/browser"
)

// Page serves pre-rendered frames of listing blocks laid out as rows of a
// document. Like a real infinite-scroll page it loads the next frame only
// after the viewport has reached the end of the document; the new rows show
// up on the next Blocks read. Once the last frame is reached the page stops
// growing.
type Page struct {
	Frames [][]string
	// RowHeight is the rendered height of one block, 200 when zero
	RowHeight int
	// ViewportHeight is the visible height, 800 when zero
	ViewportHeight int

	NavigateErr error
	// ScrollErrs are returned by successive Scroll calls, nil entries succeed
	ScrollErrs []error
	// EndErr is returned by every ScrollToEnd call
	EndErr    error
	BlocksErr error

	mu        sync.Mutex
	frame     int
	pos       int
	pending   bool
	scrollN   int
	ends      int
	navigated []string
	distances []int
	waits     []time.Duration
	closed    int
}

var _ browser.Page = (*Page)(nil)

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	return p.NavigateErr
}

func (p *Page) Scroll(ctx context.Context, distance int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	call := p.scrollN
	p.scrollN++
	if call < len(p.ScrollErrs) && p.ScrollErrs[call] != nil {
		return p.ScrollErrs[call]
	}

	p.distances = append(p.distances, distance)
	p.moveTo(p.pos + distance)
	return nil
}

func (p *Page) ScrollToEnd(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.EndErr != nil {
		return p.EndErr
	}
	p.ends++
	p.moveTo(p.maxPos())
	return nil
}

// moveTo clamps pos into the document and requests a load at the end
func (p *Page) moveTo(pos int) {
	p.pos = min(max(pos, 0), p.maxPos())
	if p.pos >= p.maxPos() {
		p.pending = true
	}
}

func (p *Page) docHeight() int {
	if len(p.Frames) == 0 {
		return 0
	}
	row := p.RowHeight
	if row <= 0 {
		row = 200
	}
	return len(p.Frames[p.frame]) * row
}

func (p *Page) maxPos() int {
	viewport := p.ViewportHeight
	if viewport <= 0 {
		viewport = 800
	}
	return max(p.docHeight()-viewport, 0)
}

func (p *Page) Wait(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.waits = append(p.waits, d)
	p.mu.Unlock()
	return ctx.Err()
}

func (p *Page) Blocks(ctx context.Context, selectors []string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed > 0 {
		return nil, errors.New("page closed")
	}
	if p.BlocksErr != nil {
		return nil, p.BlocksErr
	}
	if len(p.Frames) == 0 {
		return nil, nil
	}
	if p.pending && p.frame < len(p.Frames)-1 {
		p.frame++
	}
	p.pending = false
	frame := p.Frames[p.frame]
	out := make([]string, len(frame))
	copy(out, frame)
	return out, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

// ForwardScrolls is the number of successful downward scrolls
func (p *Page) ForwardScrolls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, d := range p.distances {
		if d > 0 {
			n++
		}
	}
	return n
}

// EndScrolls is the number of ScrollToEnd calls
func (p *Page) EndScrolls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ends
}

// Position returns the scroll offset and the document height
func (p *Page) Position() (pos, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos, p.docHeight()
}

// Distances returns every successful scroll distance in call order
func (p *Page) Distances() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.distances...)
}

// Waits returns every requested wait in call order
func (p *Page) Waits() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.waits...)
}

// Navigated returns the URLs passed to Navigate
func (p *Page) Navigated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

// Closed reports how many times Close was called
func (p *Page) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Launcher hands out Pages in order, then keeps returning Page
type Launcher struct {
	Page  *Page
	Pages []*Page
	Err   error

	mu       sync.Mutex
	launched int
}

func (l *Launcher) Launch(ctx context.Context) (browser.Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	l.launched++
	if l.launched <= len(l.Pages) {
		return l.Pages[l.launched-1], nil
	}
	return l.Page, nil
}

// Launched reports how many pages were handed out
func (l *Launcher) Launched() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launched
}

// Block renders a listing block in the markup of the default extraction
// selectors. Empty fields are left out of the markup entirely.
func Block(name, address, city string) string {
	var b strings.Builder
	b.WriteString(`<div class="store-details">`)
	if name != "" {
		fmt.Fprintf(&b, `<h2 class="store-name"><span class="lng_cont_name">%s</span></h2>`, html.EscapeString(name))
	}
	if address != "" {
		fmt.Fprintf(&b, `<span class="cont_sw_addr">%s</span>`, html.EscapeString(address))
	}
	if city != "" {
		fmt.Fprintf(&b, `<span class="cont_city">%s</span>`, html.EscapeString(city))
	}
	b.WriteString(`</div>`)
	return b.String()
}
