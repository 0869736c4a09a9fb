package detector

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/vizmon/headcount/pkg/types"
)

func TestNewRejectsUnknownMode(t *testing.T) {
	if _, err := New(Config{Mode: "telepathy"}); err == nil {
		t.Fatal("expected an error for an unknown mode")
	}
}

func TestNewDefaultsToWorker(t *testing.T) {
	d, err := New(Config{WorkerCmd: "true"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := d.(*Worker); !ok {
		t.Fatalf("default backend is %T, want *Worker", d)
	}
}

func TestNewRemoteRequiresURL(t *testing.T) {
	if _, err := NewRemote(Config{Mode: ModeRemote}); err == nil {
		t.Fatal("expected an error without a server address")
	}
}

func TestNewRemoteAddressForms(t *testing.T) {
	r, err := NewRemote(Config{URL: "127.0.0.1:9901"})
	if err != nil {
		t.Fatalf("NewRemote failed: %v", err)
	}
	if r.url != "ws://127.0.0.1:9901/detect" {
		t.Fatalf("bare host URL = %q", r.url)
	}

	r, err = NewRemote(Config{URL: "ws://detect.local/infer"})
	if err != nil {
		t.Fatalf("NewRemote failed: %v", err)
	}
	if r.url != "ws://detect.local/infer" {
		t.Fatalf("explicit URL = %q", r.url)
	}
}

func TestPrepareImage(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 320, 240))
	data, w, h, scale, err := prepareImage(small, 0)
	if err != nil {
		t.Fatalf("prepareImage failed: %v", err)
	}
	if w != 320 || h != 240 || scale != 1.0 {
		t.Fatalf("small image was rescaled: %dx%d scale %v", w, h, scale)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	if cfg.Width != 320 || cfg.Height != 240 {
		t.Fatalf("JPEG is %dx%d, want 320x240", cfg.Width, cfg.Height)
	}

	big := image.NewRGBA(image.Rect(0, 0, 1280, 720))
	data, w, h, scale, err = prepareImage(big, 640)
	if err != nil {
		t.Fatalf("prepareImage failed: %v", err)
	}
	if w != 640 || h != 360 {
		t.Fatalf("downscaled to %dx%d, want 640x360", w, h)
	}
	if scale != 2.0 {
		t.Fatalf("scale = %v, want 2.0", scale)
	}
	if cfg, err = jpeg.DecodeConfig(bytes.NewReader(data)); err != nil || cfg.Width != 640 {
		t.Fatalf("downscaled JPEG is %dx%d (err %v)", cfg.Width, cfg.Height, err)
	}
}

func TestToDetectionsScalesAndClamps(t *testing.T) {
	wire := []wireDetection{
		{ClassID: 0, Label: "person", Confidence: 0.9, Box: [4]float64{10, 10, 50, 80}},
		{ClassID: 2, Label: "car", Confidence: 0.7, Box: [4]float64{-5, 0, 30, 40}},
	}
	frame := image.Rect(0, 0, 120, 130)

	dets := toDetections(wire, 2.0, frame)
	if len(dets) != 2 {
		t.Fatalf("got %d detections, want 2", len(dets))
	}
	if want := image.Rect(20, 20, 100, 130); dets[0].Box != want {
		t.Errorf("box[0] = %v, want %v (scaled then clamped)", dets[0].Box, want)
	}
	if want := image.Rect(0, 0, 60, 80); dets[1].Box != want {
		t.Errorf("box[1] = %v, want %v", dets[1].Box, want)
	}
	if dets[0].Label != "person" || dets[0].Confidence != 0.9 {
		t.Errorf("detection fields lost: %+v", dets[0])
	}
}

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func writeWorkerScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("writing worker script: %v", err)
	}
	return path
}

func TestWorkerProtocolRoundTrip(t *testing.T) {
	requireSh(t)
	script := writeWorkerScript(t, `read line
echo '{"id":1,"detections":[{"class_id":0,"label":"person","confidence":0.91,"box":[8,6,40,44]}]}'
read line
echo '{"id":2,"error":"model exploded"}'
`)

	w := NewWorker(Config{WorkerCmd: script})
	defer w.Close()
	ctx := context.Background()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	dets, err := w.Detect(ctx, img, Options{Confidence: 0.45, IOU: DefaultIOU})
	if err != nil {
		t.Fatalf("first Detect failed: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1", len(dets))
	}
	if want := image.Rect(8, 6, 40, 44); dets[0].Box != want {
		t.Errorf("box = %v, want %v", dets[0].Box, want)
	}
	if dets[0].ClassID != types.PersonClassID || dets[0].Confidence != 0.91 {
		t.Errorf("detection fields lost: %+v", dets[0])
	}

	// A response that carries an error surfaces as a Detect error.
	if _, err := w.Detect(ctx, img, Options{}); err == nil || !strings.Contains(err.Error(), "model exploded") {
		t.Fatalf("second Detect err = %v, want the worker's error", err)
	}

	// The script has exited by now, so the next request must fail too.
	if _, err := w.Detect(ctx, img, Options{}); err == nil {
		t.Fatal("Detect after worker exit should fail")
	}
}

func TestWorkerEchoServerYieldsNoDetections(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	// cat echoes each request line back; the echoed JSON parses as a
	// response with a matching id and no detections.
	w := NewWorker(Config{WorkerCmd: "cat"})
	defer w.Close()

	dets, err := w.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)), Options{})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) != 0 {
		t.Fatalf("echoed request produced %d detections", len(dets))
	}
}

func TestWorkerSpawnFailureIsSticky(t *testing.T) {
	w := NewWorker(Config{WorkerCmd: "definitely-not-a-real-binary-8f2a"})
	defer w.Close()
	ctx := context.Background()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))

	_, err1 := w.Detect(ctx, img, Options{})
	if err1 == nil || !strings.Contains(err1.Error(), "inference worker unavailable") {
		t.Fatalf("first Detect err = %v", err1)
	}
	_, err2 := w.Detect(ctx, img, Options{})
	if err2 == nil || err2.Error() != err1.Error() {
		t.Fatalf("spawn failure not sticky: %v then %v", err1, err2)
	}
}

func TestWorkerDetectAfterClose(t *testing.T) {
	requireSh(t)
	script := writeWorkerScript(t, "while read line; do echo '{\"id\":0}'; done\n")

	w := NewWorker(Config{WorkerCmd: script})
	w.Close()

	// Close before first Detect: spawn is skipped entirely.
	if _, err := w.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)), Options{}); err == nil {
		t.Fatal("Detect after Close should fail")
	}
}

func startDetectionServer(t *testing.T, dropAfter int) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(rw, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		served := 0
		for {
			var wreq wireRequest
			if err := conn.ReadJSON(&wreq); err != nil {
				return
			}
			resp := wireResponse{
				ID: wreq.ID,
				Detections: []wireDetection{{
					ClassID:    types.PersonClassID,
					Label:      "person",
					Confidence: wreq.Conf,
					Box:        [4]float64{1, 2, 30, 40},
				}},
			}
			if err := conn.WriteJSON(&resp); err != nil {
				return
			}
			served++
			if dropAfter > 0 && served >= dropAfter {
				return
			}
		}
	}))
}

func TestRemoteDetect(t *testing.T) {
	srv := startDetectionServer(t, 0)
	defer srv.Close()

	r, err := NewRemote(Config{URL: strings.TrimPrefix(srv.URL, "http://")})
	if err != nil {
		t.Fatalf("NewRemote failed: %v", err)
	}
	defer r.Close()

	dets, err := r.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 64, 64)), Options{Confidence: 0.45, IOU: DefaultIOU})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1", len(dets))
	}
	// The server echoes our confidence option back as the score, which
	// proves the options crossed the wire.
	if dets[0].Confidence != 0.45 {
		t.Errorf("confidence option did not reach the server: %+v", dets[0])
	}
	if want := image.Rect(1, 2, 30, 40); dets[0].Box != want {
		t.Errorf("box = %v, want %v", dets[0].Box, want)
	}
}

func TestRemoteRedialsAfterBrokenConnection(t *testing.T) {
	srv := startDetectionServer(t, 1)
	defer srv.Close()

	r, err := NewRemote(Config{URL: strings.TrimPrefix(srv.URL, "http://")})
	if err != nil {
		t.Fatalf("NewRemote failed: %v", err)
	}
	defer r.Close()

	ctx := context.Background()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))

	if _, err := r.Detect(ctx, img, Options{}); err != nil {
		t.Fatalf("first Detect failed: %v", err)
	}

	// The server hangs up after one response. The next call fails, the one
	// after that dials a fresh connection and succeeds.
	if _, err := r.Detect(ctx, img, Options{}); err == nil {
		t.Fatal("Detect on a dropped connection should fail")
	}
	if _, err := r.Detect(ctx, img, Options{}); err != nil {
		t.Fatalf("Detect after redial failed: %v", err)
	}
}
