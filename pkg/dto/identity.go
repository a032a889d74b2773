package dto

import "github.com/google/uuid"

type IdentityResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	City      string    `json:"city"`
	Category  string    `json:"category"`
	Details   string    `json:"details,omitempty"`
	CreatedAt string    `json:"created_at"`
}

// IdentityDetailResponse adds per-identity stats to the single-identity view.
type IdentityDetailResponse struct {
	IdentityResponse
	Embeddings int `json:"embeddings"`
}

type IdentityListResponse struct {
	Identities []IdentityResponse `json:"identities"`
	Total      int                `json:"total"`
}

// EnrollResponse reports how many reference embeddings were stored across
// all submitted images. Zero is legal but the identity cannot be matched.
type EnrollResponse struct {
	Identity      IdentityResponse `json:"identity"`
	FacesEnrolled int              `json:"faces_enrolled"`
	Warning       string           `json:"warning,omitempty"`
}
