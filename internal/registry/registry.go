// Package registry manages enrolled identities and their reference
// embeddings: the read path for matching and the write path for enrollment.
package registry

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // enrollment image formats
	_ "image/png"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/vision"
)

// Store is the persistence surface the registry needs.
type Store interface {
	CreateIdentity(ctx context.Context, ident *models.Identity) error
	AddReferenceEmbedding(ctx context.Context, identityID uuid.UUID, embedding []float32, sourceKey string) (*models.ReferenceEmbedding, error)
	AllCandidates(ctx context.Context) ([]models.Candidate, error)
	ListIdentities(ctx context.Context) ([]models.Identity, error)
}

// ObjectStore keeps the original enrollment images for audit.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// Profile is the enrollment form data for a new identity.
type Profile struct {
	Name     string
	Age      int
	City     string
	Category models.Category
	Details  string
}

type Registry struct {
	store     Store
	objects   ObjectStore
	extractor vision.Extractor
}

func New(store Store, objects ObjectStore, extractor vision.Extractor) *Registry {
	return &Registry{store: store, objects: objects, extractor: extractor}
}

// Enroll creates the identity, then stores one reference embedding per face
// found in each supplied image. An image that fails to decode or yields no
// faces is skipped without failing the enrollment. The returned count is the
// number of embeddings stored; zero is permitted (the identity exists but is
// unmatchable) and the caller decides how to surface that.
func (r *Registry) Enroll(ctx context.Context, profile Profile, images [][]byte) (*models.Identity, int, error) {
	ident := &models.Identity{
		Name:     profile.Name,
		Age:      profile.Age,
		City:     profile.City,
		Category: profile.Category,
		Details:  profile.Details,
	}
	if err := r.store.CreateIdentity(ctx, ident); err != nil {
		return nil, 0, fmt.Errorf("enroll identity: %w", err)
	}

	enrolled := 0
	for i, data := range images {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			slog.Warn("enroll: skip undecodable image", "identity", ident.ID, "image", i, "error", err)
			continue
		}

		faces, err := r.extractor.Extract(img)
		if err != nil {
			slog.Warn("enroll: extraction failed", "identity", ident.ID, "image", i, "error", err)
			continue
		}
		if len(faces) == 0 {
			continue
		}

		sourceKey := fmt.Sprintf("enrollments/%s/%s.jpg", ident.ID, uuid.New())
		if r.objects != nil {
			if err := r.objects.PutObject(ctx, sourceKey, data, "image/jpeg"); err != nil {
				slog.Warn("enroll: store source image", "identity", ident.ID, "error", err)
				sourceKey = ""
			}
		} else {
			sourceKey = ""
		}

		for _, face := range faces {
			if _, err := r.store.AddReferenceEmbedding(ctx, ident.ID, face.Embedding, sourceKey); err != nil {
				slog.Warn("enroll: store embedding", "identity", ident.ID, "error", err)
				continue
			}
			enrolled++
		}
	}

	if enrolled == 0 {
		slog.Warn("enroll: identity has no reference embeddings", "identity", ident.ID, "name", ident.Name)
	}

	return ident, enrolled, nil
}

// Candidates returns every (identity, reference embedding) pair. Each call
// reads a fresh snapshot; enrollments committed mid-flight may or may not be
// visible to a concurrent match.
func (r *Registry) Candidates(ctx context.Context) ([]models.Candidate, error) {
	return r.store.AllCandidates(ctx)
}

// List returns all identities for reporting.
func (r *Registry) List(ctx context.Context) ([]models.Identity, error) {
	return r.store.ListIdentities(ctx)
}
