// Command headcount-scan runs the counting pipeline over a video file
// without the dashboard: it reads every frame, runs detection on every Nth
// one and appends a headcount row per processed frame to the attendance
// log. Progress is reported on stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"github.com/vizmon/headcount/internal/attendance"
	"github.com/vizmon/headcount/internal/counting"
	"github.com/vizmon/headcount/internal/detector"
	"github.com/vizmon/headcount/internal/logger"
	"github.com/vizmon/headcount/internal/source"
	"github.com/vizmon/headcount/pkg/types"
)

var (
	// Command-line flags
	input       = flag.String("input", "", "Video file path to scan")
	every       = flag.Int("every", 1, "Run detection on every Nth frame")
	conf        = flag.Float64("conf", types.DefaultConfidence, "Confidence threshold for counting")
	minArea     = flag.Int("min-area", types.DefaultMinArea, "Minimum box area in pixels for counting")
	iou         = flag.Float64("iou", detector.DefaultIOU, "NMS IoU threshold")
	detMode     = flag.String("detector", detector.ModeWorker, "Detector backend (worker, remote)")
	workerCmd   = flag.String("worker-cmd", "python3 detector_worker.py", "Command that starts the inference worker")
	model       = flag.String("model", "yolov8n.pt", "Model weights path handed to the worker")
	detectorURL = flag.String("detector-url", "", "Detection server address for the remote backend")
	fps         = flag.Int("fps", 0, "Frame rate to sample the file at (0 keeps the file rate)")
	width       = flag.Int("width", 0, "Frame width (0 keeps the native width)")
	height      = flag.Int("height", 0, "Frame height (0 keeps the native height)")
	dataDir     = flag.String("data-dir", "./data", "Directory for the attendance log")
	logLevel    = flag.String("log-level", "warn", "Log level (debug, info, warn, error, silent)")
	logColor    = flag.Bool("log-color", true, "Enable colored log output")
)

func main() {
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, *logColor)

	if *input == "" {
		log.Fatal("Missing -input video file")
	}
	if *every < 1 {
		log.Fatal("-every must be at least 1")
	}

	th := types.Thresholds{Confidence: *conf, MinArea: *minArea}
	if err := th.Validate(); err != nil {
		log.Fatalf("Invalid thresholds: %v", err)
	}

	det, err := detector.New(detector.Config{
		Mode:      *detMode,
		WorkerCmd: *workerCmd,
		Model:     *model,
		URL:       *detectorURL,
	})
	if err != nil {
		log.Fatalf("Failed to create detector: %v", err)
	}
	defer det.Close()

	attLog := attendance.NewLog(filepath.Join(*dataDir, attendance.DefaultFileName))
	if err := attLog.EnsureInitialized(); err != nil {
		log.Fatalf("Failed to initialize attendance log: %v", err)
	}

	src, err := source.OpenFile(source.Config{
		Input:  *input,
		FPS:    *fps,
		Width:  *width,
		Height: *height,
	})
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *input, err)
	}
	defer src.Close()

	total := source.ProbeFrameCount(*input)
	if total <= 0 {
		total = -1 // Unknown total switches the bar to spinner mode
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Scanning "+filepath.Base(*input)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	opts := detector.Options{Confidence: th.Confidence, IOU: *iou}
	ctx := context.Background()

	var framesRead, processed, failures, rows, peak int
	for {
		frame, err := src.Read(ctx)
		if err != nil {
			if errors.Is(err, source.ErrEndOfStream) {
				break
			}
			log.Fatalf("Failed to read frame: %v", err)
		}
		framesRead++
		bar.Add(1)

		if framesRead%*every != 0 {
			continue
		}
		processed++

		dets, err := det.Detect(ctx, frame.Image, opts)
		if err != nil {
			failures++
			logger.Warn("Scan", "Inference failed on frame %d: %v", frame.Number, err)
			continue
		}
		_, count := counting.Count(dets, th)
		if count > peak {
			peak = count
		}

		if err := attLog.Append(attendance.Row{Timestamp: frame.Timestamp, Headcount: count}); err != nil {
			log.Fatalf("Failed to append attendance row: %v", err)
		}
		rows++
	}

	bar.Finish()
	fmt.Fprintf(os.Stderr, "\nScan complete. Processed %d of %d frames (%d inference failures).\n",
		processed, framesRead, failures)
	fmt.Fprintf(os.Stderr, "Wrote %d rows to %s, peak headcount %d.\n", rows, attLog.Path(), peak)
}
