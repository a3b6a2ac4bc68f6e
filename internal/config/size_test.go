package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"0", 0},
		{"1024", 1024},
		{"500B", 500},
		{"1KB", 1000},
		{"1KiB", 1024},
		{"1.5MB", 1_500_000},
		{"1MiB", 1_048_576},
		{"2GB", 2_000_000_000},
		{"1GiB", 1_073_741_824},
		{"1TB", 1_000_000_000_000},
		{"1TiB", 1_099_511_627_776},
		{"10 MB", 10_000_000},
		{"1mb", 1_000_000},
		{"1kib", 1024},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseSize(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseSize_Invalid(t *testing.T) {
	for _, in := range []string{"abc", "1XB", "MB", "1.2.3KB", "-1", "-5MB"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseSize(in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid size")
		})
	}
}
