// Package vision is the embedding provider: given a decoded image it
// produces zero or more face bounding boxes with fixed-length embeddings.
package vision

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/observability"
)

// Face is one extracted face: where it was and its identity vector.
type Face struct {
	BBox       [4]float32
	Confidence float32
	Embedding  []float32
}

// Extractor produces faces from a decoded frame. The ONNX implementation is
// CPU-bound and non-cancelable per frame; callers bound concurrency instead.
type Extractor interface {
	Extract(img image.Image) ([]Face, error)
}

// ONNXExtractor chains the RetinaFace detector and ArcFace embedder.
type ONNXExtractor struct {
	detector *Detector
	embedder *Embedder
}

// NewONNXExtractor loads both models from cfg.ModelsDir.
func NewONNXExtractor(cfg config.VisionConfig) (*ONNXExtractor, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	return &ONNXExtractor{detector: det, embedder: emb}, nil
}

// Extract detects faces in the image and computes an embedding per face.
// A face whose embedding fails is skipped; the rest are still returned.
func (x *ONNXExtractor) Extract(img image.Image) ([]Face, error) {
	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	start := time.Now()
	detInput := preprocess(img, x.detector.inputW, x.detector.inputH,
		[3]float32{127.5, 127.5, 127.5}, [3]float32{128.0, 128.0, 128.0})
	observability.InferenceDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())

	start = time.Now()
	detections, err := x.detector.Detect(detInput, origW, origH)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	faces := make([]Face, 0, len(detections))
	for _, det := range detections {
		crop := cropFace(img, det.BBox)
		if crop == nil {
			continue
		}

		start = time.Now()
		embInput := preprocess(crop, x.embedder.inputW, x.embedder.inputH,
			[3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
		embedding, err := x.embedder.Extract(embInput)
		if err != nil {
			slog.Warn("embed face", "error", err)
			continue
		}
		observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

		faces = append(faces, Face{
			BBox:       det.BBox,
			Confidence: det.Confidence,
			Embedding:  embedding,
		})
	}

	return faces, nil
}

func (x *ONNXExtractor) Close() {
	if x.detector != nil {
		x.detector.Close()
	}
	if x.embedder != nil {
		x.embedder.Close()
	}
}

// preprocess converts an image to normalized CHW float32 input:
// pixel = (pixel - mean) / std.
func preprocess(img image.Image, targetW, targetH int, mean, std [3]float32) []float32 {
	resized := resizeImage(img, targetW, targetH)
	bounds := resized.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	data := make([]float32, 3*h*w)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := resized.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			rf := float32(r >> 8)
			gf := float32(g >> 8)
			bf := float32(b >> 8)

			idx := y*w + x
			data[0*h*w+idx] = (rf - mean[0]) / std[0]
			data[1*h*w+idx] = (gf - mean[1]) / std[1]
			data[2*h*w+idx] = (bf - mean[2]) / std[2]
		}
	}

	return data
}

// resizeImage performs nearest-neighbour resize (fast, good enough for ML input).
func resizeImage(img image.Image, targetW, targetH int) image.Image {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			srcX := bounds.Min.X + x*srcW/targetW
			srcY := bounds.Min.Y + y*srcH/targetH
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}
	return dst
}

// cropFace extracts a padded face region from the image.
func cropFace(img image.Image, bbox [4]float32) image.Image {
	bounds := img.Bounds()

	x1 := clampI(int(bbox[0]), bounds.Min.X, bounds.Max.X)
	y1 := clampI(int(bbox[1]), bounds.Min.Y, bounds.Max.Y)
	x2 := clampI(int(bbox[2]), bounds.Min.X, bounds.Max.X)
	y2 := clampI(int(bbox[3]), bounds.Min.Y, bounds.Max.Y)

	w := x2 - x1
	h := y2 - y1
	if w <= 0 || h <= 0 {
		return nil
	}

	// pad 10% each side
	x1 = clampI(x1-w/10, bounds.Min.X, bounds.Max.X)
	y1 = clampI(y1-h/10, bounds.Min.Y, bounds.Max.Y)
	x2 = clampI(x2+w/10, bounds.Min.X, bounds.Max.X)
	y2 = clampI(y2+h/10, bounds.Min.Y, bounds.Max.Y)

	crop := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	for cy := y1; cy < y2; cy++ {
		for cx := x1; cx < x2; cx++ {
			crop.Set(cx-x1, cy-y1, img.At(cx, cy))
		}
	}
	return crop
}

func clampI(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
