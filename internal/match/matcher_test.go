package match

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facewatch/internal/models"
)

func cand(id uuid.UUID, name string, emb ...float32) models.Candidate {
	return models.Candidate{
		IdentityID: id,
		Name:       name,
		Category:   models.CategoryOther,
		Embedding:  emb,
	}
}

func TestBestPrefersMinimumDistance(t *testing.T) {
	near := cand(uuid.New(), "near", 0.1, 0)
	far := cand(uuid.New(), "far", 0.4, 0)

	// Order in the candidate slice must not matter.
	for _, cands := range [][]models.Candidate{
		{far, near},
		{near, far},
	} {
		res, ok := Best([]float32{0, 0}, cands, DefaultTolerance)
		require.True(t, ok)
		assert.Equal(t, "near", res.Candidate.Name)
		assert.InDelta(t, 0.1, res.Distance, 1e-6)
	}
}

func TestBestRejectsAboveTolerance(t *testing.T) {
	c := cand(uuid.New(), "distant", 5, 5)
	_, ok := Best([]float32{0, 0}, []models.Candidate{c}, DefaultTolerance)
	assert.False(t, ok)
}

func TestBestHitExactlyAtTolerance(t *testing.T) {
	c := cand(uuid.New(), "edge", 0.6, 0)
	res, ok := Best([]float32{0, 0}, []models.Candidate{c}, 0.6)
	require.True(t, ok)
	assert.Equal(t, "edge", res.Candidate.Name)
}

func TestBestBreaksTiesByLowestIdentityID(t *testing.T) {
	lo := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	hi := uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")

	a := cand(hi, "hi", 0.2, 0)
	b := cand(lo, "lo", 0.2, 0)

	res, ok := Best([]float32{0, 0}, []models.Candidate{a, b}, DefaultTolerance)
	require.True(t, ok)
	assert.Equal(t, lo, res.Candidate.IdentityID)

	res, ok = Best([]float32{0, 0}, []models.Candidate{b, a}, DefaultTolerance)
	require.True(t, ok)
	assert.Equal(t, lo, res.Candidate.IdentityID)
}

func TestBestSkipsDimensionMismatch(t *testing.T) {
	bad := cand(uuid.New(), "bad", 0)          // wrong length
	good := cand(uuid.New(), "good", 0.1, 0.1) // matches query length

	res, ok := Best([]float32{0, 0}, []models.Candidate{bad, good}, DefaultTolerance)
	require.True(t, ok)
	assert.Equal(t, "good", res.Candidate.Name)
}

func TestBestEmptyCandidates(t *testing.T) {
	_, ok := Best([]float32{0, 0}, nil, DefaultTolerance)
	assert.False(t, ok)
}
