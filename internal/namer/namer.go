package namer

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-scripts/harvest/internal/types"
)

// maxSegments is how many path segments make up an identifier
// (typically locality and category).
const maxSegments = 2

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9-]`)
	repeated    = regexp.MustCompile(`-+`)
)

// FromURL derives a filesystem-safe dataset identifier from the path of raw.
// Query string and fragment are ignored, so tracking parameters never change
// the result.
func FromURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not absolute", types.ErrInvalidURL, raw)
	}

	var parts []string
	for _, segment := range strings.Split(u.Path, "/") {
		if segment == "" || isListingID(segment) {
			continue
		}
		parts = append(parts, segment)
		if len(parts) == maxSegments {
			break
		}
	}

	name := sanitize(strings.Join(parts, "-"))
	if name == "" {
		return "", fmt.Errorf("%w: %q has no usable path segments", types.ErrInvalidURL, raw)
	}
	return name, nil
}

// isListingID reports whether segment is an opaque page identifier such as
// "nct-10934649" rather than a locality or category.
func isListingID(segment string) bool {
	return strings.HasPrefix(strings.ToLower(segment), "nct-")
}

func sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(s, "-")
	s = repeated.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Clean makes a user supplied identifier filesystem-safe with the same
// rules FromURL applies.
func Clean(name string) (string, error) {
	cleaned := sanitize(name)
	if cleaned == "" {
		return "", fmt.Errorf("dataset name %q has no usable characters", name)
	}
	return cleaned, nil
}
