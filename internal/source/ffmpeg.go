package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vizmon/headcount/internal/logger"
	"github.com/vizmon/headcount/pkg/types"
)

const moduleName = "Source"

const bytesPerPixel = 4 // RGBA

// ffmpegSource decodes frames from an ffmpeg subprocess writing raw RGBA
// to its stdout. The first frame is read synchronously at open time so a
// dead camera or unreadable file fails fast instead of on the first Read.
type ffmpegSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer

	width  int
	height int

	mu      sync.Mutex
	pending []byte // first frame captured during the open preflight
	number  uint64
	closed  bool
}

func newFFmpegSource(args []string, width, height int) (*ffmpegSource, error) {
	cmd := exec.Command("ffmpeg", args...)

	tail := newTailBuffer(2048)
	cmd.Stderr = io.MultiWriter(tail, logger.Writer(logger.DEBUG, moduleName))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting ffmpeg: %v", ErrSourceUnavailable, err)
	}

	s := &ffmpegSource{
		cmd:    cmd,
		stdout: stdout,
		stderr: tail,
		width:  width,
		height: height,
	}

	// Preflight: a source that cannot produce one frame is unavailable.
	first := make([]byte, s.frameSize())
	if _, err := io.ReadFull(stdout, first); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: no frames from ffmpeg: %v (%s)", ErrSourceUnavailable, err, tail.String())
	}
	s.pending = first

	logger.Info(moduleName, "opened ffmpeg source %dx%d", width, height)
	return s, nil
}

func (s *ffmpegSource) frameSize() int {
	return s.width * s.height * bytesPerPixel
}

// Read returns the next decoded frame. It blocks on the ffmpeg pipe; Close
// from another goroutine unblocks it with ErrEndOfStream.
func (s *ffmpegSource) Read(ctx context.Context) (*types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrEndOfStream
	}
	pix := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pix == nil {
		pix = make([]byte, s.frameSize())
		if _, err := io.ReadFull(s.stdout, pix); err != nil {
			if s.isClosed() || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrEndOfStream
			}
			return nil, fmt.Errorf("failed to read frame: %w", err)
		}
	}

	s.mu.Lock()
	number := s.number
	s.number++
	s.mu.Unlock()

	return &types.Frame{
		Image: &image.RGBA{
			Pix:    pix,
			Stride: s.width * bytesPerPixel,
			Rect:   image.Rect(0, 0, s.width, s.height),
		},
		Number:    number,
		Timestamp: time.Now(),
	}, nil
}

// Close kills the ffmpeg subprocess and reaps it. Safe to call more than
// once and concurrently with Read.
func (s *ffmpegSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.stdout.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.cmd.Wait()
	logger.Debug(moduleName, "ffmpeg source closed")
	return nil
}

func (s *ffmpegSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fileArgs builds the ffmpeg arguments for decoding a video file.
func fileArgs(cfg Config) []string {
	var args []string
	if cfg.Realtime {
		args = append(args, "-re")
	}
	args = append(args, "-i", cfg.Input)

	var filters []string
	if cfg.FPS > 0 {
		filters = append(filters, fmt.Sprintf("fps=%d", cfg.FPS))
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", cfg.Width, cfg.Height))
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}

	return append(args, rawOutputArgs()...)
}

// cameraArgs builds the ffmpeg arguments for capturing a camera device.
// Linux cameras are v4l2 devices addressed as /dev/video<index>; Windows
// uses DirectShow.
func cameraArgs(cfg Config, width, height int) []string {
	fps := cfg.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}

	var args []string
	if runtime.GOOS == "windows" {
		args = []string{"-f", "dshow", "-i", "video=" + cfg.Input}
	} else {
		args = []string{"-f", "v4l2", "-i", "/dev/video" + cfg.Input}
	}

	args = append(args, "-vf", fmt.Sprintf("fps=%d,scale=%d:%d", fps, width, height))
	return append(args, rawOutputArgs()...)
}

func rawOutputArgs() []string {
	return []string{
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	}
}

type probeData struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
}

// probeVideoDimensions asks ffprobe for the native size of the first video
// stream in the file.
func probeVideoDimensions(path string) (int, int, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, 0, err
	}
	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (int, int, error) {
	var data probeData
	if err := json.Unmarshal(output, &data); err != nil {
		return 0, 0, err
	}
	if len(data.Streams) == 0 {
		return 0, 0, errors.New("no video streams found")
	}
	s := data.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return 0, 0, fmt.Errorf("invalid stream dimensions %dx%d", s.Width, s.Height)
	}
	return s.Width, s.Height, nil
}

type frameCountData struct {
	Streams []struct {
		NbFrames      string `json:"nb_frames"`
		NbReadPackets string `json:"nb_read_packets"`
	} `json:"streams"`
}

// ProbeFrameCount asks ffprobe how many frames the first video stream of
// the file holds, for progress reporting. Container metadata answers
// instantly when present; counting packets is the fallback and reads the
// whole file. Returns 0 when no count can be determined.
func ProbeFrameCount(path string) int {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=nb_frames",
		"-of", "json",
		path,
	).Output()
	if err == nil {
		if n := parseFrameCount(out); n > 0 {
			return n
		}
	}

	logger.Debug(moduleName, "no frame count in metadata, counting packets")
	out, err = exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "json",
		path,
	).Output()
	if err != nil {
		return 0
	}
	return parseFrameCount(out)
}

func parseFrameCount(output []byte) int {
	var data frameCountData
	if err := json.Unmarshal(output, &data); err != nil || len(data.Streams) == 0 {
		return 0
	}
	s := data.Streams[0]
	for _, v := range []string{s.NbFrames, s.NbReadPackets} {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// tailBuffer keeps the last capacity bytes written to it, used to attach
// the end of ffmpeg's stderr to open errors.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
