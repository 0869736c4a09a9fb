package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/vizmon/headcount/internal/attendance"
	"github.com/vizmon/headcount/internal/logger"
	"github.com/vizmon/headcount/internal/metrics"
	"github.com/vizmon/headcount/internal/session"
)

const moduleName = "Dashboard"

// Server serves the dashboard page and its JSON and stream APIs. It also
// implements session.Sink, relaying the loop's annotated frames and
// snapshots to connected clients.
type Server struct {
	cfg             Config
	controller      *session.Controller
	settings        *session.Settings
	log             *attendance.Log
	metrics         *metrics.Metrics
	frames          *FrameBroadcaster
	statusEvents    *EventBroadcaster
	detectionEvents *EventBroadcaster
	blank           []byte
}

// NewServer builds the dashboard and the session controller it fronts. The
// server installs itself as the session sink, so sc.Sink is ignored. Shared
// pieces missing from sc (settings, metrics, log) are filled in.
func NewServer(cfg Config, log *attendance.Log, sc session.Config) (*Server, error) {
	if log == nil {
		return nil, errors.New("dashboard: no attendance log configured")
	}

	def := DefaultConfig()
	if cfg.FrameWidth <= 0 || cfg.FrameHeight <= 0 {
		cfg.FrameWidth, cfg.FrameHeight = def.FrameWidth, def.FrameHeight
	}
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = def.FrameTimeout
	}
	if cfg.SSEKeepAlive <= 0 {
		cfg.SSEKeepAlive = def.SSEKeepAlive
	}
	if cfg.HistoryRows <= 0 {
		cfg.HistoryRows = def.HistoryRows
	}
	if sc.Settings == nil {
		sc.Settings = session.NewSettings()
	}
	if sc.Metrics == nil {
		sc.Metrics = metrics.New()
	}
	if sc.Log == nil {
		sc.Log = log
	}
	m := sc.Metrics

	blank, err := blankJPEG(cfg.FrameWidth, cfg.FrameHeight)
	if err != nil {
		logger.Error(moduleName, "render placeholder frame: %v", err)
	}

	s := &Server{
		cfg:             cfg,
		settings:        sc.Settings,
		log:             log,
		metrics:         m,
		frames:          NewFrameBroadcaster(cfg.ClientBacklog, m),
		statusEvents:    NewEventBroadcaster("StatusStream", cfg.ClientBacklog, m),
		detectionEvents: NewEventBroadcaster("DetectionStream", cfg.ClientBacklog, m),
		blank:           blank,
	}

	sc.Sink = s
	controller, err := session.NewController(sc)
	if err != nil {
		return nil, err
	}
	s.controller = controller
	return s, nil
}

// Controller exposes the session controller, mainly so a caller can stop a
// running session on shutdown.
func (s *Server) Controller() *session.Controller {
	return s.controller
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/status/stream", s.handleStatusStream)
	mux.HandleFunc("/api/detections/stream", s.handleDetectionsStream)
	mux.HandleFunc("/api/session/start", s.handleSessionStart)
	mux.HandleFunc("/api/session/stop", s.handleSessionStop)
	mux.HandleFunc("/api/thresholds", s.handleThresholds)
	mux.HandleFunc("/api/attendance", s.handleAttendance)

	return mux
}

// PublishFrame relays one annotated JPEG frame to the MJPEG clients.
func (s *Server) PublishFrame(jpegData []byte) {
	s.frames.Publish(jpegData)
}

// PublishSnapshot relays one session snapshot to the SSE clients. Detection
// events only flow while a session is running, so an idle dashboard keeps
// an empty debug table.
func (s *Server) PublishSnapshot(snap session.Snapshot) {
	s.statusEvents.Publish(s.statusPayload(snap))
	if snap.State == session.Running.String() {
		s.detectionEvents.Publish(detectionsPayload(snap))
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, frameCh := s.frames.Subscribe()
	defer s.frames.Unsubscribe(id)
	streamMJPEG(w, frameCh, s.blank, s.cfg.FrameTimeout)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.statusPayload(s.controller.Snapshot()))
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	first, err := serializeEvent(s.statusPayload(s.controller.Snapshot()))
	if err != nil {
		http.Error(w, "Failed to serialize status", http.StatusInternalServerError)
		return
	}

	id, eventCh := s.statusEvents.Subscribe()
	defer s.statusEvents.Unsubscribe(id)
	streamEvents(w, first, eventCh, wantsProtobuf(r), s.cfg.SSEKeepAlive)
}

func (s *Server) handleDetectionsStream(w http.ResponseWriter, r *http.Request) {
	first, err := serializeEvent(detectionsPayload(s.controller.Snapshot()))
	if err != nil {
		http.Error(w, "Failed to serialize detections", http.StatusInternalServerError)
		return
	}

	id, eventCh := s.detectionEvents.Subscribe()
	defer s.detectionEvents.Unsubscribe(id)
	streamEvents(w, first, eventCh, wantsProtobuf(r), s.cfg.SSEKeepAlive)
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.controller.Start(); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusConflict)
		return
	}

	snap := s.controller.Snapshot()
	writeJSON(w, map[string]any{
		"status":     snap.State,
		"session_id": snap.SessionID,
		"started_at": snap.StartedAt,
	})
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.controller.Stop(); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusConflict)
		return
	}

	snap := s.controller.Snapshot()
	writeJSON(w, map[string]any{
		"status": snap.State,
		"stats": map[string]any{
			"frames_processed": snap.FramesProcessed,
			"frames_skipped":   snap.FramesSkipped,
			"headcount":        snap.Headcount,
		},
		"stopped_at": snap.StoppedAt,
	})
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		th := s.settings.Thresholds()
		writeJSON(w, map[string]any{
			"confidence": th.Confidence,
			"min_area":   th.MinArea,
		})

	case http.MethodPost:
		var req thresholdsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONWithStatus(w, map[string]any{"error": "invalid thresholds payload"}, http.StatusBadRequest)
			return
		}

		th := s.settings.Thresholds()
		if req.Confidence != nil {
			th.Confidence = *req.Confidence
		}
		if req.MinArea != nil {
			th.MinArea = *req.MinArea
		}
		if err := s.settings.SetThresholds(th); err != nil {
			writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusBadRequest)
			return
		}

		logger.Info(moduleName, "thresholds updated: confidence=%.2f min_area=%d", th.Confidence, th.MinArea)
		writeJSON(w, map[string]any{
			"confidence": th.Confidence,
			"min_area":   th.MinArea,
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAttendance(w http.ResponseWriter, r *http.Request) {
	// Without a tail parameter the response is the history table window;
	// tail=0 asks for the full log.
	tail := s.cfg.HistoryRows
	if v := r.URL.Query().Get("tail"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONWithStatus(w, map[string]any{"error": "invalid tail parameter"}, http.StatusBadRequest)
			return
		}
		tail = n
	}

	rows, err := s.log.Tail(tail)
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusInternalServerError)
		return
	}

	out := make([]attendanceRow, len(rows))
	for i, row := range rows {
		out[i] = attendanceRow{
			Timestamp: row.Timestamp.Format(attendance.TimeLayout),
			Headcount: row.Headcount,
		}
	}
	writeJSON(w, map[string]any{
		"rows":  out,
		"count": len(out),
	})
}

// statusPayload combines a session snapshot with the live thresholds and
// the attendance log state into the /api/status shape.
func (s *Server) statusPayload(snap session.Snapshot) map[string]any {
	th := s.settings.Thresholds()
	return map[string]any{
		"session": snap,
		"thresholds": map[string]any{
			"confidence": th.Confidence,
			"min_area":   th.MinArea,
		},
		"log": map[string]any{
			"path":           s.log.Path(),
			"rows_written":   s.metrics.RowsWritten.Load(),
			"write_failures": s.metrics.LogWriteErrors.Load(),
		},
		"timestamp": float64(time.Now().Unix()),
	}
}

// detectionsPayload is the per-frame event for the debug table: every raw
// detection of the frame, counted or not.
func detectionsPayload(snap session.Snapshot) map[string]any {
	detections := snap.Detections
	if detections == nil {
		detections = []session.DetectionInfo{}
	}
	return map[string]any{
		"frame_number": snap.FramesProcessed,
		"timestamp":    snap.Timestamp,
		"headcount":    snap.Headcount,
		"detections":   detections,
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
