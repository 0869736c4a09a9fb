package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vizmon/headcount/internal/attendance"
	"github.com/vizmon/headcount/internal/dashboard"
	"github.com/vizmon/headcount/internal/detector"
	"github.com/vizmon/headcount/internal/logger"
	"github.com/vizmon/headcount/internal/metrics"
	"github.com/vizmon/headcount/internal/session"
	"github.com/vizmon/headcount/internal/source"
)

var (
	// Command-line flags
	httpAddr    = flag.String("http", ":8080", "Dashboard HTTP address")
	metricsAddr = flag.String("metrics", ":9090", "Metrics server address")
	input       = flag.String("input", "0", "Camera index or video file path")
	fps         = flag.Int("fps", 0, "Frame rate to sample the source at (0 keeps the source rate)")
	width       = flag.Int("width", 0, "Frame width (0 probes or uses the camera default)")
	height      = flag.Int("height", 0, "Frame height (0 probes or uses the camera default)")
	detMode     = flag.String("detector", detector.ModeWorker, "Detector backend (worker, remote)")
	workerCmd   = flag.String("worker-cmd", "python3 detector_worker.py", "Command that starts the inference worker")
	model       = flag.String("model", "yolov8n.pt", "Model weights path handed to the worker")
	detectorURL = flag.String("detector-url", "", "Detection server address for the remote backend")
	iou         = flag.Float64("iou", detector.DefaultIOU, "NMS IoU threshold")
	dataDir     = flag.String("data-dir", "./data", "Directory for the attendance log")
	logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
	logColor    = flag.Bool("log-color", true, "Enable colored log output")
)

func main() {
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, *logColor)

	logger.Info("Main", "Headcount monitor starting...")
	logger.Info("Main", "Log level: %s", level)

	det, err := detector.New(detector.Config{
		Mode:      *detMode,
		WorkerCmd: *workerCmd,
		Model:     *model,
		URL:       *detectorURL,
	})
	if err != nil {
		log.Fatalf("Failed to create detector: %v", err)
	}

	attLog := attendance.NewLog(filepath.Join(*dataDir, attendance.DefaultFileName))
	if err := attLog.EnsureInitialized(); err != nil {
		log.Fatalf("Failed to initialize attendance log: %v", err)
	}

	m := metrics.New()
	srcCfg := source.Config{
		Input:    *input,
		FPS:      *fps,
		Width:    *width,
		Height:   *height,
		Realtime: true,
	}

	dashCfg := dashboard.DefaultConfig()
	dashCfg.Addr = *httpAddr
	if *width > 0 && *height > 0 {
		dashCfg.FrameWidth, dashCfg.FrameHeight = *width, *height
	}

	srv, err := dashboard.NewServer(dashCfg, attLog, session.Config{
		OpenSource: func() (source.Source, error) { return source.Open(srcCfg) },
		Detector:   det,
		Metrics:    m,
		IOU:        *iou,
	})
	if err != nil {
		log.Fatalf("Failed to create dashboard: %v", err)
	}

	go func() {
		logger.Info("Main", "Metrics server listening on %s", *metricsAddr)
		if err := m.StartServer(*metricsAddr); err != nil {
			logger.Error("Main", "Metrics server error: %v", err)
		}
	}()

	httpServer := &http.Server{
		Addr:    dashCfg.Addr,
		Handler: srv.Handler(),
	}
	go func() {
		logger.Info("Main", "Dashboard listening on %s", dashCfg.Addr)
		logger.Info("Main", "Input: %s, detector: %s, attendance log: %s", *input, *detMode, attLog.Path())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Main", "Shutting down...")

	if srv.Controller().State() == session.Running {
		if err := srv.Controller().Stop(); err != nil {
			logger.Warn("Main", "Stop session: %v", err)
		}
	}
	if err := det.Close(); err != nil {
		logger.Warn("Main", "Close detector: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("Main", "HTTP shutdown: %v", err)
	}

	logger.Info("Main", "Server stopped")
}
