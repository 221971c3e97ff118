package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/bubbles/progress"

	"github.com/go-scripts/harvest/internal/session"
)

// Tracker renders the progress of harvest runs on a terminal. It shows a
// spinner while the page scrolls and a bar of collected versus target
// listings after every extraction.
type Tracker struct {
	out  io.Writer
	bar  progress.Model
	spin *spinner.Spinner

	mu        sync.Mutex
	label     string
	collected int
	target    int
	scrolls   int
	runs      int
	started   time.Time
}

var _ session.Reporter = (*Tracker)(nil)

// New creates a Tracker writing to out
func New(out io.Writer) *Tracker {
	writer := spinner.WithWriter(out)
	if f, ok := out.(*os.File); ok {
		writer = spinner.WithWriterFile(f)
	}
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, writer)
	return &Tracker{
		out:     out,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spin:    s,
		started: time.Now(),
	}
}

// StartRun labels the next run, e.g. with its batch number
func (t *Tracker) StartRun(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.label = label
	t.collected = 0
	t.scrolls = 0
	t.runs++
	fmt.Fprintf(t.out, "\n%s\n", label)
}

func (t *Tracker) Collected(collected, target int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spin.Stop()
	t.collected = collected
	t.target = target

	if target > 0 {
		fmt.Fprintf(t.out, "\rCollected: %s %d/%d", t.bar.ViewAs(Fraction(collected, target)), collected, target)
		return
	}
	fmt.Fprintf(t.out, "\rCollected: %d", collected)
}

func (t *Tracker) Scrolling(scroll int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scrolls = scroll
	t.spin.Lock()
	t.spin.Suffix = fmt.Sprintf(" scroll %d, %d collected", scroll, t.collected)
	t.spin.Unlock()
	t.spin.Start()
}

func (t *Tracker) Finished(state session.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spin.Stop()
	fmt.Fprintf(t.out, "\n%s %s after %d scrolls\n", t.label, state, t.scrolls)
}

// Stats is a snapshot of the tracker counters
type Stats struct {
	Runs      int
	Collected int
	Target    int
	Scrolls   int
	Elapsed   time.Duration
}

// Stats returns the counters of the current run
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		Runs:      t.runs,
		Collected: t.collected,
		Target:    t.target,
		Scrolls:   t.scrolls,
		Elapsed:   time.Since(t.started),
	}
}

// Fraction returns done/total clamped to [0, 1]
func Fraction(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(done) / float64(total)
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}
