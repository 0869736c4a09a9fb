// Package source provides video frame sources for the counting pipeline.
// A source is either a local camera device (selected by index) or a video
// file; both are decoded by an ffmpeg subprocess into raw RGBA frames.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/vizmon/headcount/pkg/types"
)

// ErrSourceUnavailable is returned by Open when the camera or file cannot
// deliver frames at all. The caller reports it and stays idle.
var ErrSourceUnavailable = errors.New("video source unavailable")

// ErrEndOfStream is returned by Read once the source has no more frames.
var ErrEndOfStream = errors.New("end of stream")

// Source delivers decoded frames one at a time. Read blocks until the next
// frame is available and returns ErrEndOfStream when the stream is
// exhausted. Close releases the underlying device or file.
type Source interface {
	Read(ctx context.Context) (*types.Frame, error)
	Close() error
}

// Default capture parameters applied when the config leaves them zero.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
	DefaultFPS    = 15
)

// Config selects and shapes a video source.
type Config struct {
	Input    string // Camera index ("0", "1", ...) or video file path
	FPS      int    // Target frame rate, 0 keeps the source rate
	Width    int    // Output width, 0 keeps the native width (files only)
	Height   int    // Output height, 0 keeps the native height (files only)
	Realtime bool   // Pace file playback at its native rate
}

// Open creates a Source for the configured input. A purely numeric input is
// treated as a camera index, anything else as a video file path. Failures
// to open wrap ErrSourceUnavailable.
func Open(cfg Config) (Source, error) {
	if isCameraIndex(cfg.Input) {
		return OpenCamera(cfg)
	}
	return OpenFile(cfg)
}

// OpenFile opens a video file source. The file is probed for its native
// dimensions unless the config overrides them.
func OpenFile(cfg Config) (Source, error) {
	if _, err := os.Stat(cfg.Input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	width, height := cfg.Width, cfg.Height
	if width <= 0 || height <= 0 {
		w, h, err := probeVideoDimensions(cfg.Input)
		if err != nil {
			return nil, fmt.Errorf("%w: probing %s: %v", ErrSourceUnavailable, cfg.Input, err)
		}
		width, height = w, h
	}

	return newFFmpegSource(fileArgs(cfg), width, height)
}

// OpenCamera opens a local camera device source.
func OpenCamera(cfg Config) (Source, error) {
	width, height := cfg.Width, cfg.Height
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}

	return newFFmpegSource(cameraArgs(cfg, width, height), width, height)
}

func isCameraIndex(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 0
}
