package coins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeChangeSumsToAmount(t *testing.T) {
	for amount := 0; amount <= 10000; amount += Smallest {
		change := MakeChange(Accepted, amount)
		require.Equal(t, amount, Sum(change), "amount %d", amount)
		for _, c := range change {
			require.True(t, IsAccepted(c), "coin %d not accepted (amount %d)", c, amount)
		}
	}
}

func TestMakeChangeIsNonIncreasing(t *testing.T) {
	for amount := 0; amount <= 10000; amount += Smallest {
		change := MakeChange(Accepted, amount)
		for i := 1; i < len(change); i++ {
			require.GreaterOrEqual(t, change[i-1], change[i], "amount %d: %v", amount, change)
		}
	}
}

func TestMakeChangeDeterministic(t *testing.T) {
	assert.Equal(t, MakeChange(Accepted, 385), MakeChange(Accepted, 385))
}

func TestMakeChangeKnownValues(t *testing.T) {
	cases := []struct {
		amount int
		want   []int
	}{
		{0, []int{}},
		{5, []int{5}},
		{175, []int{100, 50, 20, 5}},
		{195, []int{100, 50, 20, 20, 5}},
		{300, []int{100, 100, 100}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MakeChange(Accepted, tc.amount), "amount %d", tc.amount)
	}
}

func TestMakeChangeNegativeAmountIsEmpty(t *testing.T) {
	change := MakeChange(Accepted, -10)
	require.NotNil(t, change)
	assert.Empty(t, change)
}

func TestIsAccepted(t *testing.T) {
	for _, c := range []int{5, 10, 20, 50, 100} {
		assert.True(t, IsAccepted(c), "coin %d", c)
	}
	for _, c := range []int{0, -5, 1, 7, 25, 200} {
		assert.False(t, IsAccepted(c), "coin %d", c)
	}
}
