package pipeline

import (
	"context"
	"image"

	"github.com/your-org/facewatch/internal/observability"
	"github.com/your-org/facewatch/internal/vision"
)

type extractJob struct {
	img   image.Image
	reply chan extractResult
}

type extractResult struct {
	faces []vision.Face
	err   error
}

// Pool bounds extraction concurrency so a burst of uploads cannot run more
// than workerCount inference calls at once. Upload handlers block on the
// reply channel, keeping the HTTP response synchronous.
type Pool struct {
	jobs chan extractJob
	done chan struct{}
}

func NewPool(extractor vision.Extractor, workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	p := &Pool{
		jobs: make(chan extractJob, workerCount*2),
		done: make(chan struct{}),
	}

	for i := 0; i < workerCount; i++ {
		go func() {
			for {
				select {
				case <-p.done:
					return
				case job := <-p.jobs:
					observability.ExtractionQueueDepth.Dec()
					faces, err := extractor.Extract(job.img)
					job.reply <- extractResult{faces: faces, err: err}
				}
			}
		}()
	}

	return p
}

// Extract submits the image to a worker and waits for the result. If ctx is
// canceled while queued or in flight, the work is left to complete and be
// discarded; extraction itself is not cancelable.
func (p *Pool) Extract(ctx context.Context, img image.Image) ([]vision.Face, error) {
	reply := make(chan extractResult, 1)

	observability.ExtractionQueueDepth.Inc()
	select {
	case p.jobs <- extractJob{img: img, reply: reply}:
	case <-ctx.Done():
		observability.ExtractionQueueDepth.Dec()
		return nil, ctx.Err()
	}

	select {
	case res := <-reply:
		return res.faces, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) Close() {
	close(p.done)
}
