package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeightedRatio(t *testing.T) {
	tests := []struct {
		query, choice string
		exp           int
	}{
		{query: "Penguin", choice: "penguin", exp: 100},
		{query: "Simon & Schuster,", choice: "Simon & Schuster", exp: 100},
		{query: "Books Penguin", choice: "Penguin Books", exp: 95},
		{query: "Knopf,", choice: "Alfred A. Knopf", exp: 90},
		{query: "Scholastic", choice: "Scholastic Corporation", exp: 90},
		{query: "Harper", choice: "Harpers", exp: 92},
		{query: "Scribner", choice: "Scribners", exp: 94},
		{query: "Tor Books", choice: "Tor Book", exp: 94},
		{query: "", choice: "Penguin", exp: 0},
		{query: "!!!", choice: "Penguin", exp: 0},
	}
	for _, test := range tests {
		assert.Equal(t, test.exp, WeightedRatio(test.query, test.choice), "%q vs %q", test.query, test.choice)
	}

	assert.Less(t, WeightedRatio("Random House", "Penguin Books"), DefaultThreshold)
	assert.Less(t, WeightedRatio("Sasquatch Books", "Chronicle Books"), DefaultThreshold)
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 92.0, ratio("harper", "harpers"))
	assert.Equal(t, 54.0, ratio("books penguin", "penguin books"))
	assert.Equal(t, 100.0, ratio("", ""))
	assert.Equal(t, 0.0, ratio("abc", "xyz"))
	assert.Equal(t, 3, lcs([]rune("lagerlöf"), []rune("löfgren")))
}

func TestProcess(t *testing.T) {
	assert.Equal(t, "o reilly media inc", process("  O'Reilly Media, Inc. "))
	assert.Equal(t, "lagerlöf", process("Lagerlöf"))
	assert.Equal(t, "", process("--"))
}

func TestPartialRatio(t *testing.T) {
	assert.Equal(t, 100.0, partialRatio("knopf", "alfred a knopf"))
	assert.Equal(t, 100.0, partialRatio("alfred a knopf", "knopf"))
	assert.Equal(t, 0.0, partialRatio("", "knopf"))
}
