package progress

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/go-scripts/harvest/internal/session"
)

func TestFraction(t *testing.T) {
	tests := []struct {
		done, total int
		want        float64
	}{
		{0, 10, 0},
		{5, 10, 0.5},
		{12, 10, 1},
		{3, 0, 0},
		{-1, 4, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fraction(tt.done, tt.total), "%d/%d", tt.done, tt.total)
	}
}

func TestTrackerCollected(t *testing.T) {
	var out bytes.Buffer
	tracker := New(&out)

	tracker.StartRun("batch 1/2")
	tracker.Collected(3, 10)
	tracker.Finished(session.Done)

	text := out.String()
	assert.Contains(t, text, "batch 1/2")
	assert.Contains(t, text, "3/10")
	assert.Contains(t, text, "batch 1/2 done after 0 scrolls")

	stats := tracker.Stats()
	assert.Equal(t, 1, stats.Runs)
	assert.Equal(t, 3, stats.Collected)
	assert.Equal(t, 10, stats.Target)
}

func TestTrackerUnboundedTarget(t *testing.T) {
	var out bytes.Buffer
	tracker := New(&out)

	tracker.Collected(7, 0)
	assert.Contains(t, out.String(), "Collected: 7")
}

func TestTrackerCountsScrollsPerRun(t *testing.T) {
	tracker := New(io.Discard)

	tracker.StartRun("first")
	tracker.Scrolling(1)
	tracker.Scrolling(2)
	tracker.Collected(4, 4)
	tracker.Finished(session.Done)
	assert.Equal(t, 2, tracker.Stats().Scrolls)

	tracker.StartRun("second")
	stats := tracker.Stats()
	assert.Equal(t, 2, stats.Runs)
	assert.Equal(t, 0, stats.Scrolls)
	assert.Equal(t, 0, stats.Collected)
}

func TestSummaryRender(t *testing.T) {
	s := Summary{
		Dataset:   "mumbai-gyms",
		Path:      "data/mumbai-gyms.csv.gz",
		Collected: 50,
		Existing:  120,
		Added:     31,
		Total:     151,
		Scrolls:   14,
		Elapsed:   83 * time.Second,
	}

	text := s.Render()
	for _, want := range []string{"mumbai-gyms", "data/mumbai-gyms.csv.gz", "151", "31", "1m23s"} {
		assert.Contains(t, text, want)
	}
	assert.NotContains(t, text, "partial")

	s.Partial = true
	assert.Contains(t, s.Render(), "partial records were saved")
}
