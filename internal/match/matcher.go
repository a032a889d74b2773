// Package match compares query face embeddings against enrolled reference
// embeddings and selects the best candidate below a distance tolerance.
package match

import (
	"bytes"
	"math"

	"github.com/your-org/facewatch/internal/models"
)

// DefaultTolerance is the Euclidean distance below which two embeddings
// are considered the same face.
const DefaultTolerance = 0.6

// Result is a confirmed match for one query embedding.
type Result struct {
	Candidate models.Candidate
	Distance  float64
}

// Best returns the candidate with the globally minimum distance to the query
// among all candidates within tolerance, or ok=false when none qualifies.
// Ties on distance are broken by the lowest identity id so the outcome does
// not depend on candidate ordering. Pure function; no side effects.
func Best(query []float32, candidates []models.Candidate, tolerance float64) (Result, bool) {
	var best Result
	found := false

	for _, c := range candidates {
		if len(c.Embedding) != len(query) {
			continue
		}
		d := euclidean(query, c.Embedding)
		if d > tolerance {
			continue
		}
		if !found || d < best.Distance || (d == best.Distance && lowerID(c, best.Candidate)) {
			best = Result{Candidate: c, Distance: d}
			found = true
		}
	}

	return best, found
}

func lowerID(a, b models.Candidate) bool {
	return bytes.Compare(a.IdentityID[:], b.IdentityID[:]) < 0
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
