package types

import (
	"regexp"
	"strings"
	"unicode"
)

// DateLayout is the layout of Listing.Datestamp
const DateLayout = "2006-01-02"

// Listing represents one business entry scraped from a listing page
type Listing struct {
	Datestamp string `json:"datestamp"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	City      string `json:"city"`
}

// Key is the identity of a listing used for deduplication
type Key struct {
	Name    string
	Address string
	City    string
}

// Key returns the identity key of the listing
func (l Listing) Key() Key {
	return Key{
		Name:    strings.TrimSpace(l.Name),
		Address: strings.TrimSpace(l.Address),
		City:    strings.TrimSpace(l.City),
	}
}

// Valid reports whether the listing carries a usable name
func (l Listing) Valid() bool {
	name := strings.TrimSpace(l.Name)
	return name != "" && name != Placeholder
}

// Placeholder is the value some pages render in place of a missing field
const Placeholder = "N/A"

var innerWhitespace = regexp.MustCompile(`\s+`)

// NormalizeText trims s, collapses whitespace runs into single spaces and
// drops non-printable characters.
func NormalizeText(s string) string {
	var b strings.Builder
	for _, c := range s {
		if unicode.IsSpace(c) || unicode.IsPrint(c) {
			b.WriteRune(c)
		}
	}
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(b.String(), " "))
}
