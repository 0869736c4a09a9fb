// Package session drives one counting session at a time: a sequential loop
// that reads frames, runs the detector, applies the counting policy, draws
// the overlay, publishes to the dashboard and appends attendance rows.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/vizmon/headcount/internal/annotate"
	"github.com/vizmon/headcount/internal/attendance"
	"github.com/vizmon/headcount/internal/counting"
	"github.com/vizmon/headcount/internal/detector"
	"github.com/vizmon/headcount/internal/logger"
	"github.com/vizmon/headcount/internal/metrics"
	"github.com/vizmon/headcount/internal/source"
)

const moduleName = "Session"

// Consecutive attendance write failures before warnings escalate to an
// error and a sticky dashboard message.
const defaultLogFailureEscalation = 5

var (
	// ErrAlreadyRunning is returned by Start while a session is running.
	ErrAlreadyRunning = errors.New("session already running")
	// ErrNotRunning is returned by Stop when no session is running.
	ErrNotRunning = errors.New("no active session")
)

// AttendanceLog is the slice of the attendance log the loop writes to.
type AttendanceLog interface {
	Append(attendance.Row) error
}

// Sink receives what a running session produces: annotated JPEG frames for
// the live stream and snapshots for the status feed. Implementations must
// not block.
type Sink interface {
	PublishFrame(jpegData []byte)
	PublishSnapshot(Snapshot)
}

type nopSink struct{}

func (nopSink) PublishFrame([]byte)      {}
func (nopSink) PublishSnapshot(Snapshot) {}

// Config wires a Controller. OpenSource, Detector, Log and Settings are
// required; the rest defaults sensibly.
type Config struct {
	OpenSource func() (source.Source, error)
	Detector   detector.Detector
	Log        AttendanceLog
	Settings   *Settings
	Metrics    *metrics.Metrics
	Sink       Sink
	Clock      clock.Clock
	IOU        float64
	// LogFailureEscalation overrides the consecutive write failure count
	// that triggers escalation. 0 keeps the default.
	LogFailureEscalation int
}

// Controller owns the session state machine. It is idle until Start, runs
// exactly one loop goroutine while running, and lands in stopped when the
// loop exits for any reason. A stopped controller can be started again.
type Controller struct {
	openSource func() (source.Source, error)
	det        detector.Detector
	log        AttendanceLog
	settings   *Settings
	metrics    *metrics.Metrics
	sink       Sink
	clk        clock.Clock
	iou        float64
	escalation int

	mu        sync.Mutex
	state     State
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}

	message         string
	framesProcessed uint64
	framesSkipped   uint64
	headcount       int
	detections      []DetectionInfo
	logFailures     uint64 // consecutive
	logFailureTotal uint64
	startedAt       time.Time
	stoppedAt       time.Time
}

// NewController validates the wiring and returns an idle Controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.OpenSource == nil {
		return nil, errors.New("session: no source opener configured")
	}
	if cfg.Detector == nil {
		return nil, errors.New("session: no detector configured")
	}
	if cfg.Log == nil {
		return nil, errors.New("session: no attendance log configured")
	}
	if cfg.Settings == nil {
		return nil, errors.New("session: no settings configured")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Sink == nil {
		cfg.Sink = nopSink{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.IOU <= 0 {
		cfg.IOU = detector.DefaultIOU
	}
	if cfg.LogFailureEscalation <= 0 {
		cfg.LogFailureEscalation = defaultLogFailureEscalation
	}

	return &Controller{
		openSource: cfg.OpenSource,
		det:        cfg.Detector,
		log:        cfg.Log,
		settings:   cfg.Settings,
		metrics:    cfg.Metrics,
		sink:       cfg.Sink,
		clk:        cfg.Clock,
		iou:        cfg.IOU,
		escalation: cfg.LogFailureEscalation,
		state:      Idle,
	}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens the video source and launches the session loop. If the source
// cannot be opened the controller stays out of the running state, keeps a
// user-visible message and returns the wrapped source error.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.state == Running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.mu.Unlock()

	src, err := c.openSource()
	if err != nil {
		c.mu.Lock()
		c.message = fmt.Sprintf("could not start session: %v", err)
		c.mu.Unlock()
		logger.Error(moduleName, "source open failed: %v", err)
		c.publishSnapshot()
		return err
	}

	c.mu.Lock()
	if c.state == Running {
		c.mu.Unlock()
		src.Close()
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.state = Running
	c.sessionID = uuid.NewString()
	c.cancel = cancel
	c.done = done
	c.message = "session started"
	c.framesProcessed = 0
	c.framesSkipped = 0
	c.headcount = 0
	c.detections = nil
	c.logFailures = 0
	c.logFailureTotal = 0
	c.startedAt = c.clk.Now()
	c.stoppedAt = time.Time{}
	id := c.sessionID
	c.mu.Unlock()

	c.metrics.SessionActive.Store(1)
	c.metrics.SessionsTotal.Add(1)
	logger.Info(moduleName, "session %s started", id)
	c.publishSnapshot()

	go c.run(ctx, src, done)
	return nil
}

// Stop signals the running loop and waits for the frame in flight to finish.
// The loop observes the signal once per iteration, before the next read.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state != Running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (c *Controller) run(ctx context.Context, src source.Source, done chan struct{}) {
	defer close(done)
	defer src.Close()

	// A stop request closes the source so a Read blocked on a stalled
	// camera cannot outlive the session.
	loopDone := make(chan struct{})
	defer close(loopDone)
	go func() {
		select {
		case <-ctx.Done():
			src.Close()
		case <-loopDone:
		}
	}()

	for {
		// Stop wins over the next frame, but never interrupts the one in
		// flight below this line.
		if ctx.Err() != nil {
			c.finish("session stopped", logger.INFO)
			return
		}

		iterStart := time.Now()

		frame, err := src.Read(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				c.finish("session stopped", logger.INFO)
			case errors.Is(err, source.ErrEndOfStream):
				c.finish("stream ended, session stopped", logger.WARN)
			default:
				c.metrics.ReadErrors.Add(1)
				c.finish(fmt.Sprintf("frame read failed: %v", err), logger.WARN)
			}
			return
		}
		c.metrics.FramesRead.Add(1)

		// Thresholds are re-read every frame so slider moves land here.
		th := c.settings.Thresholds()

		detStart := time.Now()
		dets, err := c.det.Detect(ctx, frame.Image, detector.Options{Confidence: th.Confidence, IOU: c.iou})
		if err != nil {
			c.skipFrame(frame.Number, err)
			continue
		}
		c.metrics.UpdateDetectLatency(time.Since(detStart))

		counted, headcount := counting.Count(dets, th)
		annotate.Draw(frame.Image, counted)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, frame.Image, nil); err != nil {
			logger.Warn(moduleName, "failed to encode frame %d: %v", frame.Number, err)
		} else {
			c.sink.PublishFrame(buf.Bytes())
		}

		c.appendRow(headcount)

		infos := make([]DetectionInfo, 0, len(dets))
		for _, d := range dets {
			infos = append(infos, newDetectionInfo(d, th))
		}

		c.mu.Lock()
		c.framesProcessed++
		c.headcount = headcount
		c.detections = infos
		c.mu.Unlock()

		c.metrics.FramesCounted.Add(1)
		c.metrics.Headcount.Store(uint64(headcount))
		c.metrics.DetectionCount.Store(uint64(len(dets)))
		c.metrics.UpdateIterationLatency(time.Since(iterStart))

		c.publishSnapshot()
	}
}

// skipFrame handles an inference failure: warn, count it, move on. The
// frame produces no attendance row and the previous overlay stays on the
// stream.
func (c *Controller) skipFrame(frameNum uint64, err error) {
	c.metrics.InferenceErrors.Add(1)
	c.metrics.FramesSkipped.Add(1)
	logger.Warn(moduleName, "inference failed on frame %d, skipping: %v", frameNum, err)

	c.mu.Lock()
	c.framesSkipped++
	c.message = fmt.Sprintf("inference failed, frame %d skipped", frameNum)
	c.mu.Unlock()

	c.publishSnapshot()
}

// appendRow writes one attendance row. Failures never stop the session:
// they warn, and after enough consecutive failures escalate to an error
// with a sticky dashboard message.
func (c *Controller) appendRow(headcount int) {
	err := c.log.Append(attendance.Row{Timestamp: c.clk.Now(), Headcount: headcount})
	if err == nil {
		c.metrics.RowsWritten.Add(1)
		c.mu.Lock()
		if c.logFailures > 0 {
			c.logFailures = 0
			c.message = "attendance log recovered"
			c.mu.Unlock()
			logger.Info(moduleName, "attendance log recovered")
			return
		}
		c.mu.Unlock()
		return
	}

	c.metrics.LogWriteErrors.Add(1)
	c.mu.Lock()
	c.logFailures++
	c.logFailureTotal++
	consecutive := c.logFailures
	if consecutive >= uint64(c.escalation) {
		c.message = fmt.Sprintf("attendance log failing repeatedly (%d in a row): %v", consecutive, err)
	}
	c.mu.Unlock()

	if consecutive == uint64(c.escalation) {
		logger.Error(moduleName, "attendance log failing repeatedly (%d in a row): %v", consecutive, err)
	} else {
		logger.Warn(moduleName, "attendance log write failed: %v", err)
	}
}

// finish moves the controller to stopped and publishes the final snapshot.
func (c *Controller) finish(msg string, level logger.Level) {
	c.mu.Lock()
	c.state = Stopped
	c.message = msg
	c.stoppedAt = c.clk.Now()
	id := c.sessionID
	c.mu.Unlock()

	c.metrics.SessionActive.Store(0)
	switch level {
	case logger.WARN:
		logger.Warn(moduleName, "session %s: %s", id, msg)
	default:
		logger.Info(moduleName, "session %s: %s", id, msg)
	}
	c.publishSnapshot()
}

// Snapshot returns the current observable session state.
func (c *Controller) Snapshot() Snapshot {
	th := c.settings.Thresholds()

	c.mu.Lock()
	defer c.mu.Unlock()

	dets := make([]DetectionInfo, len(c.detections))
	copy(dets, c.detections)

	return Snapshot{
		State:           c.state.String(),
		SessionID:       c.sessionID,
		Message:         c.message,
		FramesProcessed: c.framesProcessed,
		FramesSkipped:   c.framesSkipped,
		Headcount:       c.headcount,
		Detections:      dets,
		Thresholds:      ThresholdInfo{Confidence: th.Confidence, MinArea: th.MinArea},
		LogFailures:     c.logFailureTotal,
		StartedAt:       formatTime(c.startedAt),
		StoppedAt:       formatTime(c.stoppedAt),
		Timestamp:       c.clk.Now().Format(time.RFC3339),
	}
}

func (c *Controller) publishSnapshot() {
	c.sink.PublishSnapshot(c.Snapshot())
}
