package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/go-scripts/harvest/internal/browser"
	"github.com/go-scripts/harvest/internal/types"
)

var tracer = otel.Tracer("harvest.internal.extract")

// ErrUnrecognizedMarkup is reported when blocks render but none of them can
// be read, which means the selectors no longer fit the site.
var ErrUnrecognizedMarkup = errors.New("no listing block matched the name selectors")

// Selectors locate listing blocks and their fields. Every list is tried in
// order and the first selector yielding non-empty text wins.
type Selectors struct {
	Blocks  []string `json:"blocks"`
	Name    []string `json:"name"`
	Address []string `json:"address"`
	City    []string `json:"city"`
}

// DefaultSelectors fit the markup of JustDial style listing pages and fall
// back to generic class name patterns.
func DefaultSelectors() Selectors {
	return Selectors{
		Blocks: []string{
			".store-details",
			".resultbox, .listing-card, .business-card",
		},
		Name: []string{
			".lng_cont_name",
			".fn.gray_btext a",
			`h2, h3, .heading, [class*="name"], [class*="title"]`,
		},
		Address: []string{
			".cont_sw_addr",
			".mrehover.gray_text",
			`[class*="address"], [class*="location"], .adr, address`,
		},
		City: []string{
			".cont_city",
			`[itemprop="addressLocality"], [class*="city"], .locality`,
		},
	}
}

// Extractor turns the rendered listing blocks of a page into listings
type Extractor struct {
	selectors Selectors
}

// New creates an extractor for selectors
func New(selectors Selectors) *Extractor {
	return &Extractor{selectors: selectors}
}

// Extract reads every listing block currently rendered on page. Blocks
// without a name are skipped. The result depends only on what is rendered
// right now, so calling it twice on an unchanged page returns the same
// listings in the same order.
func (e *Extractor) Extract(ctx context.Context, page browser.Page) ([]types.Listing, error) {
	ctx, span := tracer.Start(ctx, "Extract")
	defer span.End()

	blocks, err := page.Blocks(ctx, e.selectors.Blocks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read listing blocks")
		return nil, types.RenderError("read blocks", err)
	}

	listings, err := e.Parse(blocks)
	span.SetAttributes(
		attribute.Int("blocks", len(blocks)),
		attribute.Int("listings", len(listings)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse listing blocks")
		return nil, err
	}
	return listings, nil
}

// Parse converts the outer HTML of listing blocks into listings
func (e *Extractor) Parse(blocks []string) ([]types.Listing, error) {
	listings := make([]types.Listing, 0, len(blocks))
	for i, block := range blocks {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(block))
		if err != nil {
			return nil, types.ExtractionError("parse block", fmt.Errorf("block %d: %w", i, err))
		}

		listing := types.Listing{
			Name:    firstText(doc.Selection, e.selectors.Name),
			Address: firstText(doc.Selection, e.selectors.Address),
			City:    firstText(doc.Selection, e.selectors.City),
		}
		if listing.Address == types.Placeholder {
			listing.Address = ""
		}
		if !listing.Valid() {
			continue
		}
		listings = append(listings, listing)
	}

	if len(blocks) > 0 && len(listings) == 0 {
		return nil, types.ExtractionError("parse block", fmt.Errorf("%d blocks: %w", len(blocks), ErrUnrecognizedMarkup))
	}
	return listings, nil
}

// firstText returns the normalized text of the first element matched by the
// earliest selector in selectors that yields any text.
func firstText(sel *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		text := ""
		sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text = types.NormalizeText(s.Text())
			return text == ""
		})
		if text != "" {
			return text
		}
	}
	return ""
}
