package normalizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceRatio(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "", 0},
		{"abc", "abc", 1},
		{"hello", "hallo", 0.8},
		{"abcd", "bcde", 0.75},
		{"привет", "приветствие", 12.0 / 17.0},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, SequenceRatio(c.a, c.b), 1e-9, "%q vs %q", c.a, c.b)
	}
}

func TestSequenceRatio_PopularElementsPruned(t *testing.T) {
	// Given a long second string where every rune is frequent
	a := strings.Repeat("ab", 150)
	b := strings.Repeat("ba", 120) + strings.Repeat("c", 10)

	// Then no block is found, matching the reference matcher
	assert.Equal(t, 0.0, SequenceRatio(a, b))
}

func TestSequenceRatio_Symmetric(t *testing.T) {
	// Symmetry holds for these inputs; the measure is not symmetric in general
	assert.InDelta(t, SequenceRatio("завершение", "завершения"), SequenceRatio("завершения", "завершение"), 1e-9)
}

func TestLevenshteinRatio(t *testing.T) {
	assert.InDelta(t, 1-3.0/7.0, LevenshteinRatio("kitten", "sitting"), 1e-9)
	assert.Equal(t, 1.0, LevenshteinRatio("", ""))
	assert.InDelta(t, 0.9, LevenshteinRatio("завершение", "завершения"), 1e-9)
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseWhitespace("  a \t b\n\nc "))
	assert.Equal(t, "", CollapseWhitespace(" \n "))
}
