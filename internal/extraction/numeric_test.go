package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanNumberLocaleString(t *testing.T) {
	got := CleanNumber("1.500,00")
	require.NotNil(t, got)
	assert.Equal(t, 1500.0, *got)
}

func TestCleanNumber(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want *float64
	}{
		{"float passthrough", 118.5, f(118.5)},
		{"int", 42, f(42)},
		{"simple decimal string", "42,50", f(42.5)},
		{"currency suffix", "1.250,75 TL", f(1250.75)},
		{"negative", "-12,5", f(-12.5)},
		{"nil", nil, nil},
		{"garbage", "N/A", nil},
		{"empty string", "", nil},
		{"bool", true, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CleanNumber(tc.in)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tc.want, *got, 1e-9)
		})
	}
}

func f(v float64) *float64 { return &v }
