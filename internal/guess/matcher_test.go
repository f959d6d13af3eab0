package guess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"The Matrix", "the matrix"},
		{"  The   Matrix ", "the matrix"},
		{"\tThe\nMatrix\t", "the matrix"},
		{"ALIEN", "alien"},
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Normalize(c.in), "Normalize(%q)", c.in)
	}
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("  The   Matrix ", "The Matrix"))
	assert.True(t, Matches("the matrix", "The Matrix"))
	assert.True(t, Matches("BLADE RUNNER", "Blade Runner"))

	assert.False(t, Matches("Matrix", "The Matrix"))
	assert.False(t, Matches("The Matrix Reloaded", "The Matrix"))
	assert.False(t, Matches("", "The Matrix"))
}
