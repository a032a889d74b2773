package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category classifies why an identity is being watched for.
type Category string

const (
	CategoryMissing Category = "missing"
	CategoryWanted  Category = "wanted"
	CategoryVIP     Category = "vip"
	CategoryOther   Category = "other"
)

// ParseCategory validates a category string from user input.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryMissing, CategoryWanted, CategoryVIP, CategoryOther:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

type Identity struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Age       int       `json:"age" db:"age"`
	City      string    `json:"city" db:"city"`
	Category  Category  `json:"category" db:"category"`
	Details   string    `json:"details" db:"details"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ReferenceEmbedding is one enrolled face vector owned by an identity.
// An identity may own any number of them; zero makes it unmatchable.
type ReferenceEmbedding struct {
	ID         uuid.UUID `json:"id" db:"id"`
	IdentityID uuid.UUID `json:"identity_id" db:"identity_id"`
	Embedding  []float32 `json:"-" db:"embedding"`
	SourceKey  string    `json:"source_key" db:"source_key"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Candidate pairs an identity with one of its reference embeddings,
// as returned by the registry for matching.
type Candidate struct {
	IdentityID uuid.UUID
	Name       string
	Category   Category
	Embedding  []float32
}
