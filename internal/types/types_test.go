package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "trim", in: "  Cafe Uno \n", want: "Cafe Uno"},
		{name: "collapse runs", in: "12,\n\t  MG Road", want: "12, MG Road"},
		{name: "non printable", in: "Foo\u200bBar\x00", want: "FooBar"},
		{name: "empty", in: " \t\n", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestListingKeyTrims(t *testing.T) {
	a := Listing{Name: " Star PG ", Address: "HSR Layout", City: "Bangalore "}
	b := Listing{Name: "Star PG", Address: " HSR Layout", City: "Bangalore", Datestamp: "2024-01-01"}
	assert.Equal(t, a.Key(), b.Key())

	c := Listing{Name: "star pg", Address: "HSR Layout", City: "Bangalore"}
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestListingValid(t *testing.T) {
	assert.True(t, Listing{Name: "A"}.Valid())
	assert.False(t, Listing{Name: "  "}.Valid())
	assert.False(t, Listing{Name: "N/A"}.Valid())
}

func TestPhaseErrorMatching(t *testing.T) {
	cause := errors.New("stale node")
	err := fmt.Errorf("run: %w", RenderError("scroll", cause))

	assert.ErrorIs(t, err, ErrRender)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrExtraction)
	assert.Equal(t, "scroll", Phase(err))
	assert.Equal(t, "", Phase(cause))
	assert.Contains(t, err.Error(), "scroll: render error: stale node")
}
