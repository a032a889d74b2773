package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool

	detMu   sync.Mutex
	lastDet time.Time
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the tables if absent. There are no migrations beyond
// this idempotent bootstrap.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS identities (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			age INT NOT NULL DEFAULT 0,
			city TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL CHECK (category IN ('missing','wanted','vip','other')),
			details TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS reference_embeddings (
			id UUID PRIMARY KEY,
			identity_id UUID NOT NULL REFERENCES identities(id) ON DELETE CASCADE,
			embedding vector(512) NOT NULL,
			source_key TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reference_embeddings_identity ON reference_embeddings(identity_id)`,
		`CREATE TABLE IF NOT EXISTS detection_events (
			id UUID PRIMARY KEY,
			identity_id UUID NOT NULL,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			source_id TEXT NOT NULL,
			distance DOUBLE PRECISION NOT NULL,
			evidence_key TEXT NOT NULL DEFAULT '',
			detected_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_detection_events_source ON detection_events(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_detection_events_detected_at ON detection_events(detected_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// --- Identities ---

func (s *PostgresStore) CreateIdentity(ctx context.Context, ident *models.Identity) error {
	ident.ID = uuid.New()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO identities (id, name, age, city, category, details)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		ident.ID, ident.Name, ident.Age, ident.City, ident.Category, ident.Details,
	).Scan(&ident.CreatedAt)
	if err != nil {
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	ident := &models.Identity{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, age, city, category, details, created_at FROM identities WHERE id = $1`, id,
	).Scan(&ident.ID, &ident.Name, &ident.Age, &ident.City, &ident.Category, &ident.Details, &ident.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return ident, nil
}

func (s *PostgresStore) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, age, city, category, details, created_at FROM identities ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var identities []models.Identity
	for rows.Next() {
		var ident models.Identity
		if err := rows.Scan(&ident.ID, &ident.Name, &ident.Age, &ident.City,
			&ident.Category, &ident.Details, &ident.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, ident)
	}
	return identities, nil
}

// ErrNotFound is returned when a targeted row does not exist.
var ErrNotFound = errors.New("not found")

// DeleteIdentity removes an identity; its reference embeddings cascade.
func (s *PostgresStore) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// EmbeddingSourceKeys returns the object keys of the enrollment images
// backing an identity's embeddings, for cleanup before deletion.
func (s *PostgresStore) EmbeddingSourceKeys(ctx context.Context, identityID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT source_key FROM reference_embeddings
		 WHERE identity_id = $1 AND source_key <> ''`, identityID)
	if err != nil {
		return nil, fmt.Errorf("list source keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// --- Reference embeddings ---

// AddReferenceEmbedding stores one face vector for an identity. Re-enrolling
// the same image produces another row; there is no dedup.
func (s *PostgresStore) AddReferenceEmbedding(ctx context.Context, identityID uuid.UUID, embedding []float32, sourceKey string) (*models.ReferenceEmbedding, error) {
	re := &models.ReferenceEmbedding{
		ID:         uuid.New(),
		IdentityID: identityID,
		Embedding:  embedding,
		SourceKey:  sourceKey,
	}
	vec := pgvector.NewVector(embedding)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO reference_embeddings (id, identity_id, embedding, source_key)
		 VALUES ($1, $2, $3, $4) RETURNING created_at`,
		re.ID, re.IdentityID, vec, re.SourceKey,
	).Scan(&re.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("add reference embedding: %w", err)
	}
	return re, nil
}

func (s *PostgresStore) CountEmbeddings(ctx context.Context, identityID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM reference_embeddings WHERE identity_id = $1`, identityID,
	).Scan(&count)
	return count, err
}

// AllCandidates returns every (identity, embedding) pair for matching.
// No pagination; the registry is expected to stay small (hundreds).
func (s *PostgresStore) AllCandidates(ctx context.Context) ([]models.Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT i.id, i.name, i.category, re.embedding
		 FROM reference_embeddings re
		 JOIN identities i ON i.id = re.identity_id
		 ORDER BY i.id, re.created_at`)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		var c models.Candidate
		var vec pgvector.Vector
		if err := rows.Scan(&c.IdentityID, &c.Name, &c.Category, &vec); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.Embedding = vec.Slice()
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// --- Detection events ---

// CreateDetection appends one confirmed detection. DetectedAt is assigned
// here and is monotonically non-decreasing across calls on this store.
func (s *PostgresStore) CreateDetection(ctx context.Context, ev *models.DetectionEvent) error {
	ev.ID = uuid.New()
	ev.DetectedAt = s.nextDetectionTime()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO detection_events (id, identity_id, name, category, source_id, distance, evidence_key, detected_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.IdentityID, ev.Name, ev.Category, ev.SourceID, ev.Distance, ev.EvidenceKey, ev.DetectedAt)
	if err != nil {
		return fmt.Errorf("create detection: %w", err)
	}
	return nil
}

// nextDetectionTime assigns log-time timestamps that never move backwards,
// even if the wall clock does.
func (s *PostgresStore) nextDetectionTime() time.Time {
	s.detMu.Lock()
	defer s.detMu.Unlock()

	now := time.Now().UTC()
	if now.Before(s.lastDet) {
		now = s.lastDet
	}
	s.lastDet = now
	return now
}

// QueryDetections returns a page of detection events, newest first.
func (s *PostgresStore) QueryDetections(ctx context.Context, sourceID string, category string, from, to *time.Time, limit, offset int) ([]models.DetectionEvent, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	baseWhere := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if sourceID != "" {
		baseWhere += fmt.Sprintf(" AND source_id = $%d", argIdx)
		args = append(args, sourceID)
		argIdx++
	}
	if category != "" {
		baseWhere += fmt.Sprintf(" AND category = $%d", argIdx)
		args = append(args, category)
		argIdx++
	}
	if from != nil {
		baseWhere += fmt.Sprintf(" AND detected_at >= $%d", argIdx)
		args = append(args, *from)
		argIdx++
	}
	if to != nil {
		baseWhere += fmt.Sprintf(" AND detected_at <= $%d", argIdx)
		args = append(args, *to)
		argIdx++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM detection_events " + baseWhere
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count detections: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, identity_id, name, category, source_id, distance, evidence_key, detected_at
		 FROM detection_events %s ORDER BY detected_at DESC LIMIT $%d OFFSET $%d`,
		baseWhere, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var events []models.DetectionEvent
	for rows.Next() {
		var ev models.DetectionEvent
		if err := rows.Scan(&ev.ID, &ev.IdentityID, &ev.Name, &ev.Category,
			&ev.SourceID, &ev.Distance, &ev.EvidenceKey, &ev.DetectedAt); err != nil {
			return nil, 0, fmt.Errorf("scan detection: %w", err)
		}
		events = append(events, ev)
	}
	return events, total, nil
}

// GetDetection returns a single detection event by ID.
func (s *PostgresStore) GetDetection(ctx context.Context, id uuid.UUID) (*models.DetectionEvent, error) {
	var ev models.DetectionEvent
	err := s.pool.QueryRow(ctx,
		`SELECT id, identity_id, name, category, source_id, distance, evidence_key, detected_at
		 FROM detection_events WHERE id = $1`, id).
		Scan(&ev.ID, &ev.IdentityID, &ev.Name, &ev.Category,
			&ev.SourceID, &ev.Distance, &ev.EvidenceKey, &ev.DetectedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get detection: %w", err)
	}
	return &ev, nil
}
