package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/charmbracelet/log"
	"github.com/titanous/json5"

	"github.com/go-scripts/harvest/internal/browser"
	"github.com/go-scripts/harvest/internal/extract"
	"github.com/go-scripts/harvest/internal/scroll"
	"github.com/go-scripts/harvest/internal/session"
)

// Duration is a time.Duration written as a Go duration string ("2.5s")
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Browser struct {
	UserAgent        string   `json:"userAgent"`
	WindowWidth      int      `json:"windowWidth"`
	WindowHeight     int      `json:"windowHeight"`
	StepTimeout      Duration `json:"stepTimeout"`
	LoadSettle       Duration `json:"loadSettle"`
	DismissSelectors []string `json:"dismissSelectors"`
}

type Scroll struct {
	MinDistance      int      `json:"minDistance"`
	MaxDistance      int      `json:"maxDistance"`
	MinDelay         Duration `json:"minDelay"`
	MaxDelay         Duration `json:"maxDelay"`
	BackScrollChance float64  `json:"backScrollChance"`
	MinBack          int      `json:"minBack"`
	MaxBack          int      `json:"maxBack"`
	Settle           Duration `json:"settle"`
}

type Session struct {
	NoGrowthLimit int      `json:"noGrowthLimit"`
	MaxScrolls    int      `json:"maxScrolls"`
	RenderRetries int      `json:"renderRetries"`
	RetryInterval Duration `json:"retryInterval"`
}

// Config holds every tunable of a harvest run that is not a CLI flag
type Config struct {
	Browser   Browser           `json:"browser"`
	Scroll    Scroll            `json:"scroll"`
	Session   Session           `json:"session"`
	Selectors extract.Selectors `json:"selectors"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Browser: Browser{
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			WindowWidth:  1920,
			WindowHeight: 1080,
			StepTimeout:  Duration(30 * time.Second),
			LoadSettle:   Duration(3 * time.Second),
			DismissSelectors: []string{
				`[aria-label="Close"]`,
				".modal_close",
				".jdicon-close",
			},
		},
		Scroll: Scroll{
			MinDistance:      1500,
			MaxDistance:      3000,
			MinDelay:         Duration(2 * time.Second),
			MaxDelay:         Duration(4 * time.Second),
			BackScrollChance: 0.3,
			MinBack:          100,
			MaxBack:          300,
			Settle:           Duration(2500 * time.Millisecond),
		},
		Session: Session{
			NoGrowthLimit: 3,
			MaxScrolls:    200,
			RenderRetries: 2,
			RetryInterval: Duration(2 * time.Second),
		},
		Selectors: extract.DefaultSelectors(),
	}
}

// Load decodes the config file at path over Default. A missing file is not
// an error. Keys present in the file override the default even when zero;
// an empty selector list falls back to the default selectors.
func Load(path string) (Config, error) {
	cfg, err := Read(path, Default())
	if errors.Is(err, os.ErrNotExist) {
		log.Debug("no config file, using defaults", "path", path)
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("read config %s: %w", path, err)
	}

	if err := mergo.Merge(&cfg.Selectors, extract.DefaultSelectors()); err != nil {
		return cfg, fmt.Errorf("merge selectors %s: %w", path, err)
	}
	return cfg, nil
}

// Read decodes the json5 file name over base, then <name>.local.<ext> over
// the result when present. os.ErrNotExist is returned only when neither
// file exists.
func Read[T any](name string, base T) (T, error) {
	out := base
	found := false

	dir := filepath.Dir(name)
	file := filepath.Base(name)
	ext := filepath.Ext(file)
	prefix := strings.TrimSuffix(file, ext)

	data, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(data) > 0 {
		if err := json5.Unmarshal(data, &out); err != nil {
			return out, err
		}
		found = true
	}

	localPath := filepath.Join(dir, prefix+".local"+ext)
	local, err := os.ReadFile(localPath)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(local) > 0 {
		if err := json5.Unmarshal(local, &out); err != nil {
			return out, err
		}
		log.Info("merging config with local overrides", "local", localPath)
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

// Pacing returns the scroll gesture bounds
func (c Config) Pacing() scroll.Pacing {
	return scroll.Pacing{
		MinDistance:      c.Scroll.MinDistance,
		MaxDistance:      c.Scroll.MaxDistance,
		MinDelay:         c.Scroll.MinDelay.Std(),
		MaxDelay:         c.Scroll.MaxDelay.Std(),
		BackScrollChance: c.Scroll.BackScrollChance,
		MinBack:          c.Scroll.MinBack,
		MaxBack:          c.Scroll.MaxBack,
		Settle:           c.Scroll.Settle.Std(),
		StepTimeout:      c.Browser.StepTimeout.Std(),
	}
}

// BrowserOptions returns the launch options, execPath may be empty
func (c Config) BrowserOptions(headless bool, execPath string) browser.Options {
	return browser.Options{
		Headless:         headless,
		ExecPath:         execPath,
		UserAgent:        c.Browser.UserAgent,
		WindowWidth:      c.Browser.WindowWidth,
		WindowHeight:     c.Browser.WindowHeight,
		StepTimeout:      c.Browser.StepTimeout.Std(),
		LoadSettle:       c.Browser.LoadSettle.Std(),
		DismissSelectors: c.Browser.DismissSelectors,
	}
}

// SessionOptions returns the loop bounds, reporter may be nil
func (c Config) SessionOptions(reporter session.Reporter) session.Options {
	return session.Options{
		NoGrowthLimit: c.Session.NoGrowthLimit,
		MaxScrolls:    c.Session.MaxScrolls,
		RenderRetries: c.Session.RenderRetries,
		RetryInterval: c.Session.RetryInterval.Std(),
		Reporter:      reporter,
	}
}
