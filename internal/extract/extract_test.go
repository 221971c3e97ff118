package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/harvest/internal/browser/browsertest"
	"github.com/go-scripts/harvest/internal/types"
)

func TestExtractSkipsNamelessBlock(t *testing.T) {
	var frame []string
	for i := 1; i <= 7; i++ {
		name := fmt.Sprintf("Listing %d", i)
		if i == 4 {
			name = ""
		}
		frame = append(frame, browsertest.Block(name, fmt.Sprintf("%d MG Road", i), "Bangalore"))
	}
	page := &browsertest.Page{Frames: [][]string{frame}}

	listings, err := New(DefaultSelectors()).Extract(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, listings, 6)
	for _, l := range listings {
		assert.NotEqual(t, "Listing 4", l.Name)
		assert.Empty(t, l.Datestamp)
	}
	assert.Equal(t, "Listing 5", listings[3].Name)
}

func TestExtractNormalizesText(t *testing.T) {
	block := `<div class="store-details">
		<span class="lng_cont_name">
			Sri   Sai
			PG  for Men
		</span>
		<span class="cont_sw_addr">  12th Cross,
			HSR   Layout </span>
	</div>`
	page := &browsertest.Page{Frames: [][]string{{block}}}

	listings, err := New(DefaultSelectors()).Extract(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, types.Listing{Name: "Sri Sai PG for Men", Address: "12th Cross, HSR Layout"}, listings[0])
}

func TestExtractFallbackSelectors(t *testing.T) {
	tests := []struct {
		name  string
		block string
		want  types.Listing
	}{
		{
			name:  "secondary name selector",
			block: `<div class="resultbox"><p class="fn gray_btext"><a href="/x">Green Leaf Cafe</a></p><p class="mrehover gray_text">Indiranagar</p></div>`,
			want:  types.Listing{Name: "Green Leaf Cafe", Address: "Indiranagar"},
		},
		{
			name:  "generic selectors",
			block: `<div class="listing-card"><h3>Blue Bay Hotel</h3><address>Beach Road</address><span itemprop="addressLocality">Chennai</span></div>`,
			want:  types.Listing{Name: "Blue Bay Hotel", Address: "Beach Road", City: "Chennai"},
		},
		{
			name:  "empty primary falls through",
			block: `<div class="store-details"><span class="lng_cont_name">  </span><div class="business-title">Zen Spa</div></div>`,
			want:  types.Listing{Name: "Zen Spa"},
		},
		{
			name:  "placeholder address dropped",
			block: `<div class="store-details"><span class="lng_cont_name">Om Gym</span><span class="cont_sw_addr">N/A</span></div>`,
			want:  types.Listing{Name: "Om Gym"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listings, err := New(DefaultSelectors()).Parse([]string{tt.block})
			require.NoError(t, err)
			require.Len(t, listings, 1)
			assert.Equal(t, tt.want, listings[0])
		})
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	frame := []string{
		browsertest.Block("A", "1 Road", "Pune"),
		browsertest.Block("B", "2 Road", "Pune"),
		browsertest.Block("A", "1 Road", "Pune"),
	}
	page := &browsertest.Page{Frames: [][]string{frame}}
	extractor := New(DefaultSelectors())

	first, err := extractor.Extract(context.Background(), page)
	require.NoError(t, err)
	second, err := extractor.Extract(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}

func TestExtractReflectsCurrentRender(t *testing.T) {
	page := &browsertest.Page{Frames: [][]string{
		{browsertest.Block("A", "", "")},
		{browsertest.Block("A", "", ""), browsertest.Block("B", "", "")},
	}}
	extractor := New(DefaultSelectors())

	before, err := extractor.Extract(context.Background(), page)
	require.NoError(t, err)
	assert.Len(t, before, 1)

	require.NoError(t, page.Scroll(context.Background(), 500))
	after, err := extractor.Extract(context.Background(), page)
	require.NoError(t, err)
	assert.Len(t, after, 2)
}

func TestExtractEmptyPage(t *testing.T) {
	listings, err := New(DefaultSelectors()).Extract(context.Background(), &browsertest.Page{})
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestExtractUnrecognizedMarkup(t *testing.T) {
	page := &browsertest.Page{Frames: [][]string{{
		`<div class="store-details"><span class="cont_sw_addr">Somewhere</span></div>`,
		`<div class="store-details"><img src="x.png"></div>`,
	}}}

	_, err := New(DefaultSelectors()).Extract(context.Background(), page)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrExtraction)
	assert.ErrorIs(t, err, ErrUnrecognizedMarkup)
}

func TestExtractPageFailureIsRenderError(t *testing.T) {
	gone := errors.New("target closed")
	page := &browsertest.Page{BlocksErr: gone}

	_, err := New(DefaultSelectors()).Extract(context.Background(), page)
	assert.ErrorIs(t, err, types.ErrRender)
	assert.ErrorIs(t, err, gone)
	assert.NotErrorIs(t, err, types.ErrExtraction)
}
