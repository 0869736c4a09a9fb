// Package detector adapts pretrained person detection models behind one
// interface. The model is opaque to the rest of the pipeline: frames go in,
// labeled boxes with confidences come out. Two backends exist, a local
// inference worker subprocess and a remote detection server.
package detector

import (
	"context"
	"fmt"
	"image"

	"github.com/vizmon/headcount/pkg/types"
)

const moduleName = "Detector"

// DefaultIOU is the NMS overlap threshold forwarded with every request.
const DefaultIOU = 0.45

// DefaultInputSize bounds the longest image edge sent to the model.
const DefaultInputSize = 640

// Options are forwarded verbatim to the model's non-maximum suppression on
// every request. They do not filter results on the Go side.
type Options struct {
	Confidence float64 // NMS score gate
	IOU        float64 // NMS overlap gate
}

// Detector runs one inference per call. Implementations are safe for
// concurrent use but serialize requests internally, so callers see
// one-in-one-out behavior.
type Detector interface {
	Detect(ctx context.Context, img image.Image, opts Options) ([]types.Detection, error)
	Close() error
}

// Detector backend modes.
const (
	ModeWorker = "worker"
	ModeRemote = "remote"
)

// Config selects and shapes a detector backend.
type Config struct {
	Mode      string // ModeWorker (default) or ModeRemote
	WorkerCmd string // Command line that starts the inference worker
	Model     string // Model weights path handed to the worker
	URL       string // Detection server address for remote mode
	InputSize int    // Longest image edge sent to the model, 0 = default
}

// New creates the configured detector backend. The worker backend defers
// spawning until the first Detect call.
func New(cfg Config) (Detector, error) {
	switch cfg.Mode {
	case ModeWorker, "":
		return NewWorker(cfg), nil
	case ModeRemote:
		return NewRemote(cfg)
	default:
		return nil, fmt.Errorf("unknown detector mode: %q", cfg.Mode)
	}
}
