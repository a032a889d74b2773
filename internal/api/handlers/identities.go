package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/registry"
	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/pkg/dto"
)

type IdentityHandler struct {
	registry *registry.Registry
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
}

func NewIdentityHandler(reg *registry.Registry, db *storage.PostgresStore, minio *storage.MinIOStore) *IdentityHandler {
	return &IdentityHandler{registry: reg, db: db, minio: minio}
}

// Enroll creates an identity from a multipart form (name, age, city,
// category, details, images[]) and stores one reference embedding per face
// found in the submitted images.
func (h *IdentityHandler) Enroll(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}

	category, err := models.ParseCategory(c.PostForm("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	age, _ := strconv.Atoi(c.PostForm("age"))

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}

	var images [][]byte
	for _, fh := range form.File["images"] {
		file, err := fh.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			continue
		}
		images = append(images, data)
	}

	profile := registry.Profile{
		Name:     name,
		Age:      age,
		City:     c.PostForm("city"),
		Category: category,
		Details:  c.PostForm("details"),
	}

	ident, enrolled, err := h.registry.Enroll(c.Request.Context(), profile, images)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.EnrollResponse{
		Identity:      identityToResponse(ident),
		FacesEnrolled: enrolled,
	}
	if enrolled == 0 {
		resp.Warning = "no faces found in the provided images; identity cannot be matched"
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *IdentityHandler) List(c *gin.Context) {
	identities, err := h.registry.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.IdentityResponse, 0, len(identities))
	for i := range identities {
		resp = append(resp, identityToResponse(&identities[i]))
	}

	c.JSON(http.StatusOK, dto.IdentityListResponse{Identities: resp, Total: len(resp)})
}

func (h *IdentityHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	ident, err := h.db.GetIdentity(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ident == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
		return
	}

	count, err := h.db.CountEmbeddings(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.IdentityDetailResponse{
		IdentityResponse: identityToResponse(ident),
		Embeddings:       count,
	})
}

// Delete removes an identity, its reference embeddings (DB cascade), and the
// stored enrollment images. Object cleanup is best effort; an orphaned image
// never blocks the delete.
func (h *IdentityHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	keys, err := h.db.EmbeddingSourceKeys(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.DeleteIdentity(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	for _, key := range keys {
		if err := h.minio.DeleteObject(c.Request.Context(), key); err != nil {
			slog.Warn("delete enrollment image", "key", key, "error", err)
		}
	}

	c.Status(http.StatusNoContent)
}

func identityToResponse(ident *models.Identity) dto.IdentityResponse {
	return dto.IdentityResponse{
		ID:        ident.ID,
		Name:      ident.Name,
		Age:       ident.Age,
		City:      ident.City,
		Category:  string(ident.Category),
		Details:   ident.Details,
		CreatedAt: ident.CreatedAt.Format(time.RFC3339),
	}
}
