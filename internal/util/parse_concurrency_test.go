package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConcurrency(t *testing.T) {
	realNumCPU := numCPU
	numCPU = func() int { return 10 }
	t.Cleanup(func() { numCPU = realNumCPU })

	cases := []struct {
		input string
		want  int
	}{
		{"12", 12},
		{"1", 1},
		{"200%", 20},
		{"100%", 10},
		{"50%", 5},
		{"25%", 2},
		{"1%", 1},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseConcurrency(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, bad := range []string{"asdf", "0", "-1", "-1%", "0%", "x%", ""} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, err := ParseConcurrency(bad)
			assert.Error(t, err)
		})
	}
}
