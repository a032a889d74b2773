package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facewatch/internal/alert"
	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/vision"
)

type stubExtractor struct {
	faces []vision.Face
	err   error
}

func (s *stubExtractor) Extract(image.Image) ([]vision.Face, error) {
	return s.faces, s.err
}

type stubCandidates struct {
	cands []models.Candidate
	err   error
}

func (s *stubCandidates) Candidates(context.Context) ([]models.Candidate, error) {
	return s.cands, s.err
}

type recordingLog struct {
	mu     sync.Mutex
	events []*models.DetectionEvent
	err    error
}

func (r *recordingLog) CreateDetection(_ context.Context, ev *models.DetectionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

type recordingEvidence struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (r *recordingEvidence) PutObject(_ context.Context, key string, data []byte, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.objects == nil {
		r.objects = make(map[string][]byte)
	}
	r.objects[key] = data
	return nil
}

type fakeFrames struct {
	mu     sync.Mutex
	frames map[string][]byte
}

func (f *fakeFrames) Put(sourceID string, frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frames == nil {
		f.frames = make(map[string][]byte)
	}
	f.frames[sourceID] = frame
}

func (f *fakeFrames) get(sourceID string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	frame, ok := f.frames[sourceID]
	return frame, ok
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []string
	texts []string
	err   error
}

func (r *recordingNotifier) Send(_ context.Context, destination, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, destination)
	r.texts = append(r.texts, text)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.DetectionEvent
}

func (r *recordingPublisher) PublishDetection(_ context.Context, _ string, ev *models.DetectionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func makeJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

type fixture struct {
	coord     *Coordinator
	log       *recordingLog
	evidence  *recordingEvidence
	frames    *fakeFrames
	notifier  *recordingNotifier
	publisher *recordingPublisher
	gate      *alert.Gate
	clock     *fakeClock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newFixture(t *testing.T, extractor vision.Extractor, cands []models.Candidate) *fixture {
	t.Helper()

	pool := NewPool(extractor, 2)
	t.Cleanup(pool.Close)

	f := &fixture{
		log:       &recordingLog{},
		evidence:  &recordingEvidence{},
		frames:    &fakeFrames{},
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		gate:      alert.NewGate(5 * time.Minute),
		clock:     &fakeClock{t: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)},
	}
	f.coord = NewCoordinator(
		pool,
		&stubCandidates{cands: cands},
		f.log,
		f.evidence,
		f.frames,
		f.publisher,
		f.gate,
		f.notifier,
		Config{
			MatchTolerance: 0.6,
			Recipients: map[string]string{
				"missing": "+15550001111",
				"wanted":  "+15550002222",
			},
		},
	)
	f.coord.now = f.clock.now
	return f
}

func embedding(seed float32) []float32 {
	v := make([]float32, 512)
	v[0] = seed
	return v
}

func TestProcessMatchLogsAndNotifies(t *testing.T) {
	id := uuid.New()
	cands := []models.Candidate{
		{IdentityID: id, Name: "Alice Martin", Category: models.CategoryMissing, Embedding: embedding(1)},
	}
	extractor := &stubExtractor{faces: []vision.Face{{Embedding: embedding(1), Confidence: 0.99}}}
	f := newFixture(t, extractor, cands)

	matches, err := f.coord.Process(context.Background(), "lobby-cam", makeJPEG(t))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Alice Martin", matches[0].Name)
	assert.Equal(t, models.CategoryMissing, matches[0].Category)

	require.Len(t, f.log.events, 1)
	ev := f.log.events[0]
	assert.Equal(t, id, ev.IdentityID)
	assert.Equal(t, "lobby-cam", ev.SourceID)
	assert.InDelta(t, 0, ev.Distance, 1e-6)
	assert.NotEmpty(t, ev.EvidenceKey)
	assert.Contains(t, f.evidence.objects, ev.EvidenceKey)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "+15550001111", f.notifier.sent[0])
	assert.Contains(t, f.notifier.texts[0], "ALERT: missing person detected - Alice Martin at lobby-cam")

	require.Len(t, f.publisher.events, 1)

	_, ok := f.frames.get("lobby-cam")
	assert.True(t, ok, "processed frame should be cached for the preview")
}

func TestProcessNoFaces(t *testing.T) {
	f := newFixture(t, &stubExtractor{}, nil)

	matches, err := f.coord.Process(context.Background(), "lobby-cam", makeJPEG(t))
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.NotNil(t, matches, "no faces still yields an empty, non-nil slice")

	assert.Empty(t, f.log.events)
	assert.Empty(t, f.notifier.sent)
	assert.Empty(t, f.evidence.objects)

	_, ok := f.frames.get("lobby-cam")
	assert.True(t, ok, "frame is cached even when nothing is detected")
}

func TestProcessNoMatchAboveTolerance(t *testing.T) {
	cands := []models.Candidate{
		{IdentityID: uuid.New(), Name: "Bob", Category: models.CategoryWanted, Embedding: embedding(1)},
	}
	extractor := &stubExtractor{faces: []vision.Face{{Embedding: embedding(5)}}}
	f := newFixture(t, extractor, cands)

	matches, err := f.coord.Process(context.Background(), "gate-2", makeJPEG(t))
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Empty(t, f.log.events)
	assert.Empty(t, f.notifier.sent)
}

func TestProcessDecodeFailure(t *testing.T) {
	f := newFixture(t, &stubExtractor{}, nil)

	_, err := f.coord.Process(context.Background(), "lobby-cam", []byte("not an image"))
	require.ErrorIs(t, err, ErrDecode)

	_, ok := f.frames.get("lobby-cam")
	assert.False(t, ok, "rejected frames never reach the frame store")
	assert.Empty(t, f.log.events)
}

func TestProcessCooldownSuppressesSecondAlert(t *testing.T) {
	cands := []models.Candidate{
		{IdentityID: uuid.New(), Name: "Alice", Category: models.CategoryMissing, Embedding: embedding(1)},
	}
	extractor := &stubExtractor{faces: []vision.Face{{Embedding: embedding(1)}}}
	f := newFixture(t, extractor, cands)

	frame := makeJPEG(t)
	ctx := context.Background()

	_, err := f.coord.Process(ctx, "lobby-cam", frame)
	require.NoError(t, err)

	f.clock.advance(time.Second)
	_, err = f.coord.Process(ctx, "lobby-cam", frame)
	require.NoError(t, err)

	assert.Len(t, f.log.events, 2, "both detections are logged")
	assert.Len(t, f.notifier.sent, 1, "second alert falls inside the cooldown")

	f.clock.advance(5 * time.Minute)
	_, err = f.coord.Process(ctx, "lobby-cam", frame)
	require.NoError(t, err)
	assert.Len(t, f.notifier.sent, 2, "cooldown expiry re-enables alerts")
}

func TestProcessCooldownIsPerCategoryAndSource(t *testing.T) {
	missing := models.Candidate{IdentityID: uuid.New(), Name: "Alice", Category: models.CategoryMissing, Embedding: embedding(1)}
	wanted := models.Candidate{IdentityID: uuid.New(), Name: "Bob", Category: models.CategoryWanted, Embedding: embedding(3)}

	extractor := &stubExtractor{faces: []vision.Face{
		{Embedding: embedding(1)},
		{Embedding: embedding(3)},
	}}
	f := newFixture(t, extractor, []models.Candidate{missing, wanted})

	frame := makeJPEG(t)
	ctx := context.Background()

	matches, err := f.coord.Process(ctx, "lobby-cam", frame)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	assert.Len(t, f.notifier.sent, 2, "different categories alert independently")

	// Same identities on another source alert again immediately.
	_, err = f.coord.Process(ctx, "gate-2", frame)
	require.NoError(t, err)
	assert.Len(t, f.notifier.sent, 4)
}

func TestProcessLogFailureStillNotifies(t *testing.T) {
	cands := []models.Candidate{
		{IdentityID: uuid.New(), Name: "Alice", Category: models.CategoryMissing, Embedding: embedding(1)},
	}
	extractor := &stubExtractor{faces: []vision.Face{{Embedding: embedding(1)}}}
	f := newFixture(t, extractor, cands)
	f.log.err = errors.New("database down")

	matches, err := f.coord.Process(context.Background(), "lobby-cam", makeJPEG(t))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Len(t, f.notifier.sent, 1, "a log write failure does not suppress the alert")
}

func TestProcessFailedSendReleasesGate(t *testing.T) {
	cands := []models.Candidate{
		{IdentityID: uuid.New(), Name: "Alice", Category: models.CategoryMissing, Embedding: embedding(1)},
	}
	extractor := &stubExtractor{faces: []vision.Face{{Embedding: embedding(1)}}}
	f := newFixture(t, extractor, cands)

	frame := makeJPEG(t)
	ctx := context.Background()

	f.notifier.err = errors.New("carrier rejected")
	_, err := f.coord.Process(ctx, "lobby-cam", frame)
	require.NoError(t, err)
	assert.Empty(t, f.notifier.sent)

	// The failed send released the gate, so the very next detection
	// alerts without waiting out the cooldown.
	f.notifier.err = nil
	_, err = f.coord.Process(ctx, "lobby-cam", frame)
	require.NoError(t, err)
	assert.Len(t, f.notifier.sent, 1)
}

func TestProcessCategoryWithoutRecipient(t *testing.T) {
	cands := []models.Candidate{
		{IdentityID: uuid.New(), Name: "Carol", Category: models.CategoryVIP, Embedding: embedding(1)},
	}
	extractor := &stubExtractor{faces: []vision.Face{{Embedding: embedding(1)}}}
	f := newFixture(t, extractor, cands)

	matches, err := f.coord.Process(context.Background(), "lobby-cam", makeJPEG(t))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Len(t, f.log.events, 1, "detection is logged even when no recipient is configured")
	assert.Empty(t, f.notifier.sent)
}

func TestProcessEvidenceStoredOncePerFrame(t *testing.T) {
	a := models.Candidate{IdentityID: uuid.New(), Name: "Alice", Category: models.CategoryMissing, Embedding: embedding(1)}
	b := models.Candidate{IdentityID: uuid.New(), Name: "Bob", Category: models.CategoryWanted, Embedding: embedding(3)}

	extractor := &stubExtractor{faces: []vision.Face{
		{Embedding: embedding(1)},
		{Embedding: embedding(3)},
	}}
	f := newFixture(t, extractor, []models.Candidate{a, b})

	_, err := f.coord.Process(context.Background(), "lobby-cam", makeJPEG(t))
	require.NoError(t, err)

	require.Len(t, f.log.events, 2)
	assert.Equal(t, f.log.events[0].EvidenceKey, f.log.events[1].EvidenceKey)
	assert.Len(t, f.evidence.objects, 1, "one frame stores one evidence object")
}

func TestProcessExtractorError(t *testing.T) {
	extractor := &stubExtractor{err: errors.New("session crashed")}
	f := newFixture(t, extractor, nil)

	_, err := f.coord.Process(context.Background(), "lobby-cam", makeJPEG(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDecode)
}
