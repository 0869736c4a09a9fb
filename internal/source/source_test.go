package source

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/vizmon/headcount/pkg/types"
)

func TestOpenFileMissingPathIsUnavailable(t *testing.T) {
	_, err := OpenFile(Config{Input: filepath.Join(t.TempDir(), "nope.mov")})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestIsCameraIndex(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"0", true},
		{"3", true},
		{"-1", false},
		{"video.mov", false},
		{"/dev/video0", false},
		{"./0", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isCameraIndex(tt.input); got != tt.want {
			t.Errorf("isCameraIndex(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseProbeOutput(t *testing.T) {
	w, h, err := parseProbeOutput([]byte(`{"streams":[{"width":1280,"height":720}]}`))
	if err != nil {
		t.Fatalf("parseProbeOutput failed: %v", err)
	}
	if w != 1280 || h != 720 {
		t.Fatalf("got %dx%d, want 1280x720", w, h)
	}

	if _, _, err := parseProbeOutput([]byte(`{"streams":[]}`)); err == nil {
		t.Error("no streams should be an error")
	}
	if _, _, err := parseProbeOutput([]byte(`{"streams":[{"width":0,"height":720}]}`)); err == nil {
		t.Error("zero width should be an error")
	}
	if _, _, err := parseProbeOutput([]byte(`not json`)); err == nil {
		t.Error("malformed JSON should be an error")
	}
}

func TestParseFrameCount(t *testing.T) {
	if n := parseFrameCount([]byte(`{"streams":[{"nb_frames":"450"}]}`)); n != 450 {
		t.Errorf("nb_frames: got %d, want 450", n)
	}
	if n := parseFrameCount([]byte(`{"streams":[{"nb_read_packets":"901"}]}`)); n != 901 {
		t.Errorf("nb_read_packets: got %d, want 901", n)
	}
	// Containers without metadata report N/A, which is not a count.
	if n := parseFrameCount([]byte(`{"streams":[{"nb_frames":"N/A"}]}`)); n != 0 {
		t.Errorf("N/A frame count: got %d, want 0", n)
	}
	if n := parseFrameCount([]byte(`{"streams":[]}`)); n != 0 {
		t.Errorf("empty streams: got %d, want 0", n)
	}
	if n := parseFrameCount([]byte(`not json`)); n != 0 {
		t.Errorf("malformed JSON: got %d, want 0", n)
	}
}

func TestFileArgs(t *testing.T) {
	args := fileArgs(Config{Input: "clip.mov", FPS: 10, Width: 640, Height: 360, Realtime: true})
	joined := strings.Join(args, " ")

	if !strings.HasPrefix(joined, "-re -i clip.mov") {
		t.Errorf("realtime file args = %q", joined)
	}
	if !strings.Contains(joined, "-vf fps=10,scale=640:360") {
		t.Errorf("missing filters in %q", joined)
	}
	if !strings.HasSuffix(joined, "-f image2pipe -pix_fmt rgba -vcodec rawvideo -") {
		t.Errorf("missing raw output args in %q", joined)
	}

	// Without overrides the native rate and size pass through unfiltered.
	args = fileArgs(Config{Input: "clip.mov"})
	joined = strings.Join(args, " ")
	if strings.Contains(joined, "-vf") || strings.Contains(joined, "-re") {
		t.Errorf("default file args should have no filters: %q", joined)
	}
}

func TestCameraArgs(t *testing.T) {
	args := cameraArgs(Config{Input: "2"}, 640, 480)
	joined := strings.Join(args, " ")

	device := "/dev/video2"
	if runtime.GOOS == "windows" {
		device = "video=2"
	}
	if !strings.Contains(joined, device) {
		t.Errorf("camera device not addressed by index: %q", joined)
	}
	if !strings.Contains(joined, "fps=15,scale=640:480") {
		t.Errorf("camera args missing default fps or scale: %q", joined)
	}
}

func testFrame(n uint64) *types.Frame {
	return &types.Frame{
		Image:     image.NewRGBA(image.Rect(0, 0, 4, 4)),
		Number:    n,
		Timestamp: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestSliceSourceServesFramesThenEndOfStream(t *testing.T) {
	src := NewSliceSource(testFrame(0), testFrame(1), testFrame(2))
	ctx := context.Background()

	for i := uint64(0); i < 3; i++ {
		f, err := src.Read(ctx)
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if f.Number != i {
			t.Fatalf("frame %d out of order: got %d", i, f.Number)
		}
	}

	if _, err := src.Read(ctx); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("err = %v, want ErrEndOfStream", err)
	}
}

func TestSliceSourceInjectedErrorConsumesIndex(t *testing.T) {
	src := NewSliceSource(testFrame(0), testFrame(1), testFrame(2))
	boom := errors.New("decoder hiccup")
	src.InjectError(1, boom)
	ctx := context.Background()

	if _, err := src.Read(ctx); err != nil {
		t.Fatalf("first Read failed: %v", err)
	}
	if _, err := src.Read(ctx); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want injected error", err)
	}
	f, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read after injected error failed: %v", err)
	}
	if f.Number != 2 {
		t.Fatalf("injected error did not consume its index, got frame %d", f.Number)
	}
}

func TestSliceSourceClose(t *testing.T) {
	src := NewSliceSource(testFrame(0))
	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := src.Read(context.Background()); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("Read after Close = %v, want ErrEndOfStream", err)
	}
}

func TestSliceSourceHonorsContext(t *testing.T) {
	src := NewSliceSource(testFrame(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.Read(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Read with canceled context = %v", err)
	}
}

func TestTailBufferKeepsTail(t *testing.T) {
	tb := newTailBuffer(8)
	tb.Write([]byte("0123456789abcdef"))
	if got := tb.String(); got != "89abcdef" {
		t.Fatalf("tail = %q, want last 8 bytes", got)
	}
}
