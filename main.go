package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// CLI flags structure
type CLIFlags struct {
	URL        string        `arg:"" name:"url" help:"Infinite-scroll listing page to harvest"`
	Count      int           `help:"Number of unique listings to collect per batch" default:"50" short:"n"`
	NoHeadless bool          `help:"Show the browser window"`
	Output     string        `help:"Dataset name, derived from the URL path when empty" short:"o"`
	Dir        string        `help:"Directory holding the datasets" default:"." type:"path"`
	Config     string        `help:"Path to configuration file" default:"harvest.json5"`
	Batches    int           `help:"Number of independent browser sessions to run" default:"1"`
	Pause      time.Duration `help:"Pause between batches" default:"5s"`
	JSON       bool          `help:"Also write a JSON snapshot of the merged dataset" name:"json"`
	NoPartial  bool          `help:"Do not save the records of a failed session"`
	Debug      bool          `help:"Enable debug logging" default:"false"`
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("failed to load .env", "err", err)
	}

	var flags CLIFlags
	kong.Parse(&flags,
		kong.Name("harvest"),
		kong.Description("Harvest business listings from an infinite-scroll page into a local dataset."),
	)

	if flags.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.SetReportTimestamp(true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, flags)
	stop()
	if err != nil {
		log.Error("harvest failed", "err", err)
		os.Exit(1)
	}
}
