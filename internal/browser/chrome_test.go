package browser

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
)

func TestAllocatorOptions(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions)

	bare := allocatorOptions(Options{Headless: true})
	full := allocatorOptions(Options{
		Headless:     false,
		ExecPath:     "/opt/chrome/chrome",
		UserAgent:    "Mozilla/5.0 test",
		WindowWidth:  1920,
		WindowHeight: 1080,
	})

	assert.Greater(t, len(bare), base)
	assert.Equal(t, len(bare)+3, len(full))
}

func TestBlocksScriptEmbedsSelectorsInOrder(t *testing.T) {
	selectors := []string{".store-details", `.resultbox[data-kind="x"]`}
	script := blocksScript(selectors)

	encoded, err := json.Marshal(selectors)
	assert.NoError(t, err)
	assert.Contains(t, script, string(encoded))
	assert.Contains(t, script, "outerHTML")
	assert.True(t, strings.Index(script, "store-details") < strings.Index(script, "resultbox"))
}

func TestDismissScriptJoinsSelectors(t *testing.T) {
	script := dismissScript([]string{".close", `[data-dismiss="modal"]`})
	assert.Contains(t, script, `".close, [data-dismiss=\"modal\"]"`)
}

func TestChromeLogsRouteThroughLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.InfoLevel)
	c := NewChrome(Options{}, logger)

	c.logf("protocol event %d", 1)
	assert.Empty(t, buf.String())

	c.errorf("could not unmarshal event: %s", "bad json")
	assert.Contains(t, buf.String(), "ERRO")
	assert.Contains(t, buf.String(), "could not unmarshal event: bad json")
}
