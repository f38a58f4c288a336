package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", string(hash))

	require.NoError(t, ComparePassword(hash, "s3cret!"))
	assert.ErrorIs(t, ComparePassword(hash, "wrong"), ErrMismatch)
}

func TestHashUsesConfiguredCost(t *testing.T) {
	prev := Cost
	Cost = bcrypt.MinCost
	t.Cleanup(func() { Cost = prev })

	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	cost, err := bcrypt.Cost(hash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestHashRejectsOverlongPassword(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", 73))
	assert.Error(t, err)
}

func TestCompareRejectsMalformedHash(t *testing.T) {
	err := ComparePassword([]byte("not-a-hash"), "s3cret!")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMismatch)
}
