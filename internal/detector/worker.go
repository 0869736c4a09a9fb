package detector

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/vizmon/headcount/internal/logger"
	"github.com/vizmon/headcount/pkg/types"
)

// ErrClosed is returned by Detect after the detector has been closed.
var ErrClosed = errors.New("detector closed")

const maxResponseBytes = 4 << 20

// Worker runs inference in a long-lived subprocess speaking newline
// delimited JSON over its pipes. The subprocess is spawned on the first
// Detect call and keeps the loaded model for the life of the process; a
// failed spawn is sticky and every later Detect reports it.
type Worker struct {
	cfg Config

	mu       sync.Mutex // serializes requests over the pipe pair
	spawned  bool
	spawnErr error
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	out      *bufio.Scanner
	nextID   uint64
	closed   bool
}

// NewWorker creates a Worker. The subprocess is not started yet.
func NewWorker(cfg Config) *Worker {
	return &Worker{cfg: cfg}
}

func (w *Worker) spawn() error {
	parts := strings.Fields(w.cfg.WorkerCmd)
	if len(parts) == 0 {
		return errors.New("no worker command configured")
	}
	args := parts[1:]
	if w.cfg.Model != "" {
		args = append(args, "--model", w.cfg.Model)
	}

	cmd := exec.Command(parts[0], args...)
	cmd.Stderr = logger.Writer(logger.DEBUG, moduleName)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	out := bufio.NewScanner(stdout)
	out.Buffer(make([]byte, 64*1024), maxResponseBytes)

	w.cmd = cmd
	w.stdin = stdin
	w.out = out

	logger.Info(moduleName, "inference worker started (pid %d, model %s)", cmd.Process.Pid, w.cfg.Model)
	return nil
}

// Detect sends one frame to the worker and waits for its detections. The
// confidence and IOU options ride along with every request so slider
// changes apply to the very next frame.
func (w *Worker) Detect(ctx context.Context, img image.Image, opts Options) ([]types.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, sw, sh, scale, err := prepareImage(img, w.cfg.InputSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	if !w.spawned {
		w.spawned = true
		w.spawnErr = w.spawn()
	}
	if w.spawnErr != nil {
		return nil, fmt.Errorf("inference worker unavailable: %w", w.spawnErr)
	}

	w.nextID++
	req := wireRequest{
		ID:     w.nextID,
		Image:  data,
		Width:  sw,
		Height: sh,
		Conf:   opts.Confidence,
		IOU:    opts.IOU,
	}

	enc := json.NewEncoder(w.stdin)
	if err := enc.Encode(&req); err != nil {
		return nil, fmt.Errorf("failed to send frame to worker: %w", err)
	}

	if !w.out.Scan() {
		if err := w.out.Err(); err != nil {
			return nil, fmt.Errorf("failed to read worker response: %w", err)
		}
		return nil, errors.New("worker exited mid-request")
	}

	var resp wireResponse
	if err := json.Unmarshal(w.out.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("malformed worker response: %w", err)
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("worker answered request %d, want %d", resp.ID, req.ID)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("inference failed: %s", resp.Error)
	}

	return toDetections(resp.Detections, scale, img.Bounds()), nil
}

// Close terminates the worker subprocess if it was ever started.
func (w *Worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	cmd := w.cmd
	stdin := w.stdin
	w.mu.Unlock()

	if stdin != nil {
		stdin.Close()
	}
	if cmd != nil {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		cmd.Wait()
		logger.Debug(moduleName, "inference worker stopped")
	}
	return nil
}
