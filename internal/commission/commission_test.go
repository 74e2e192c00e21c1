package commission

import (
	"math"
	"testing"

	"promoledger/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		bps    int
		want   int64
	}{
		{"five percent", 1000, 500, 50},
		{"floors", 999, 500, 49},
		{"negative amount", -10, 500, 0},
		{"zero amount", 0, 500, 0},
		{"zero rate", 1000, 0, 0},
		{"full rate", 1234, 10000, 1234},
		{"one bps", 9999, 1, 0},
		{"large amount", math.MaxInt64, 10000, math.MaxInt64},
		{"large amount half", math.MaxInt64, 5000, math.MaxInt64 / 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compute(tc.amount, tc.bps)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestComputeRejectsRate(t *testing.T) {
	for _, bps := range []int{-1, 10001} {
		_, err := Compute(1000, bps)
		require.ErrorIs(t, err, domain.ErrInvalidConfig)
	}
}

func TestRates(t *testing.T) {
	require := require.New(t)
	def := 500
	r := NewRates(&def, map[string]int{"p-vip": 1500})

	bps, err := r.For("p-vip")
	require.NoError(err)
	require.Equal(1500, bps)

	bps, err = r.For("p-other")
	require.NoError(err)
	require.Equal(500, bps)

	_, err = NewRates(nil, nil).For("p-other")
	require.ErrorIs(err, domain.ErrInvalidConfig)
}
