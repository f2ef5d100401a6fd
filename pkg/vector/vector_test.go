package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEuclidean(t *testing.T) {
	d, err := Euclidean(Vector{0, 0}, Vector{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-9)
}

func TestManhattanAndChebyshev(t *testing.T) {
	a, b := Vector{1, 2, 3}, Vector{4, 0, 3}
	m, err := Manhattan(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, m, 1e-9)

	c, err := Chebyshev(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, c, 1e-9)
}

func TestCosineIdenticalZeroVectors(t *testing.T) {
	d, err := Cosine(Vector{0, 0}, Vector{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)
}

func TestCosineZeroMagnitudeMismatchErrors(t *testing.T) {
	_, err := Cosine(Vector{0, 0}, Vector{1, 0})
	assert.ErrorIs(t, err, ErrInvalidVectorDistance)
}

func TestCosineOrthogonalIsOne(t *testing.T) {
	d, err := Cosine(Vector{1, 0}, Vector{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 1e-9)
}

func TestHammingCountsDifferences(t *testing.T) {
	d, err := Hamming(Vector{1, 2, 3}, Vector{1, 0, 3})
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)
}

func TestJaccardBothZeroIsZero(t *testing.T) {
	d, err := Jaccard(Vector{0, 0}, Vector{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)
}

func TestMinkowskiMatchesEuclideanAtP2(t *testing.T) {
	a, b := Vector{0, 0}, Vector{3, 4}
	mk, err := Minkowski(a, b, 2)
	require.NoError(t, err)
	eu, err := Euclidean(a, b)
	require.NoError(t, err)
	assert.InDelta(t, eu, mk, 1e-9)
}

func TestPearsonPerfectCorrelation(t *testing.T) {
	a := Vector{1, 2, 3, 4}
	b := Vector{2, 4, 6, 8}
	d, err := Pearson(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, d, 1e-9)
}

func TestDimensionMismatchErrors(t *testing.T) {
	_, err := Euclidean(Vector{1, 2}, Vector{1})
	assert.ErrorIs(t, err, ErrInvalidVectorDistance)
}

func TestNoFunctionReturnsNaN(t *testing.T) {
	fns := []DistanceFunc{Euclidean, Manhattan, Chebyshev, Hamming, Jaccard, Pearson}
	a, b := Vector{1, 2, 3}, Vector{4, 5, 6}
	for _, fn := range fns {
		d, err := fn(a, b)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(d))
	}
}
