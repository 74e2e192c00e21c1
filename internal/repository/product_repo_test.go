package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLikePatternEscapesWildcards(t *testing.T) {
	require := require.New(t)
	require.Equal("%desk lamp%", likePattern("Desk Lamp"))
	require.Equal("%100!% cotton%", likePattern("100% cotton"))
	require.Equal("%snake!_case%", likePattern("snake_case"))
	require.Equal("%wow!!!%%", likePattern("wow!%"))
}
