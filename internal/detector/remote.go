package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vizmon/headcount/internal/logger"
	"github.com/vizmon/headcount/pkg/types"
)

// Remote runs inference on a detection server over a WebSocket. Each Detect
// is one request/response round trip on a single connection; a broken
// connection is dropped and redialed on the next call, never retried within
// the call itself.
type Remote struct {
	cfg Config
	url string

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
	closed bool
}

// NewRemote creates a Remote for the configured server address. The address
// may be a bare host:port or a full ws:// URL; dialing happens lazily on
// the first Detect.
func NewRemote(cfg Config) (*Remote, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("no detection server address configured")
	}

	raw := cfg.URL
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		u = &url.URL{Scheme: "ws", Host: raw, Path: "/detect"}
	}
	return &Remote{cfg: cfg, url: u.String()}, nil
}

func (r *Remote) ensureConn() (*websocket.Conn, error) {
	if r.conn != nil {
		return r.conn, nil
	}
	logger.Info(moduleName, "connecting to detection server %s", r.url)
	conn, _, err := websocket.DefaultDialer.Dial(r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial detection server: %w", err)
	}
	r.conn = conn
	return conn, nil
}

func (r *Remote) dropConn() {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

// Detect sends one frame to the detection server and waits for its answer.
func (r *Remote) Detect(ctx context.Context, img image.Image, opts Options) ([]types.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, sw, sh, scale, err := prepareImage(img, r.cfg.InputSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	conn, err := r.ensureConn()
	if err != nil {
		return nil, err
	}

	r.nextID++
	req := wireRequest{
		ID:     r.nextID,
		Image:  data,
		Width:  sw,
		Height: sh,
		Conf:   opts.Confidence,
		IOU:    opts.IOU,
	}

	if err := conn.WriteJSON(&req); err != nil {
		r.dropConn()
		return nil, fmt.Errorf("failed to send frame to detection server: %w", err)
	}

	_, message, err := conn.ReadMessage()
	if err != nil {
		r.dropConn()
		return nil, fmt.Errorf("failed to read detection response: %w", err)
	}

	var resp wireResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		return nil, fmt.Errorf("malformed detection response: %w", err)
	}
	if resp.ID != req.ID {
		r.dropConn()
		return nil, fmt.Errorf("detection server answered request %d, want %d", resp.ID, req.ID)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("inference failed: %s", resp.Error)
	}

	return toDetections(resp.Detections, scale, img.Bounds()), nil
}

// Close drops the server connection.
func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.dropConn()
	return nil
}
