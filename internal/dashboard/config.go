package dashboard

import "time"

// Config defines the runtime configuration for the dashboard server.
type Config struct {
	Addr          string
	FrameWidth    int
	FrameHeight   int
	FrameTimeout  time.Duration
	SSEKeepAlive  time.Duration
	HistoryRows   int
	ClientBacklog int
}

// DefaultConfig returns the settings the dashboard ships with: the idle
// placeholder matches the default capture size, MJPEG clients get a blank
// frame after FrameTimeout without a real one, and SSE clients get a
// keepalive comment every SSEKeepAlive.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		FrameWidth:    640,
		FrameHeight:   480,
		FrameTimeout:  5 * time.Second,
		SSEKeepAlive:  30 * time.Second,
		HistoryRows:   10,
		ClientBacklog: 2,
	}
}
