package dashboard

import (
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/vizmon/headcount/internal/logger"
	"github.com/vizmon/headcount/internal/metrics"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// FrameBroadcaster fans annotated JPEG frames out to the connected MJPEG
// clients. The session loop pushes frames in, HTTP handlers subscribe.
type FrameBroadcaster struct {
	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
	backlog int
	metrics *metrics.Metrics
}

// NewFrameBroadcaster creates an empty frame fanout.
func NewFrameBroadcaster(backlog int, m *metrics.Metrics) *FrameBroadcaster {
	if backlog <= 0 {
		backlog = DefaultConfig().ClientBacklog
	}
	if m == nil {
		m = metrics.New()
	}
	return &FrameBroadcaster{
		clients: make(map[int]chan []byte),
		backlog: backlog,
		metrics: m,
	}
}

// Subscribe adds a new client and returns a channel for receiving frames.
func (fb *FrameBroadcaster) Subscribe() (int, <-chan []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	id := fb.nextID
	fb.nextID++
	ch := make(chan []byte, fb.backlog)
	fb.clients[id] = ch

	fb.metrics.StreamClients.Add(1)
	logger.Debug("FrameBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(fb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (fb *FrameBroadcaster) Unsubscribe(id int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if ch, ok := fb.clients[id]; ok {
		close(ch)
		delete(fb.clients, id)
		fb.metrics.StreamClients.Add(^uint64(0))
		logger.Debug("FrameBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(fb.clients))
	}
}

// Publish sends a frame to every client. Slow clients miss frames instead
// of stalling the session loop.
func (fb *FrameBroadcaster) Publish(jpegData []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for _, ch := range fb.clients {
		select {
		case ch <- jpegData:
		default:
			// Client too slow, skip this frame for this client
		}
	}
}

// ClientCount reports how many MJPEG clients are connected.
func (fb *FrameBroadcaster) ClientCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.clients)
}

// SerializedEvent holds one SSE event pre-serialized in both formats, so a
// fanout to many clients marshals once.
type SerializedEvent struct {
	JSONData     []byte // Pre-serialized JSON
	ProtobufData []byte // Pre-serialized protobuf Struct (base64 encoded for SSE)
}

// serializeEvent renders a payload in both wire formats. The protobuf form
// is a structpb.Struct built from the JSON shape, so both carry identical
// fields.
func serializeEvent(payload any) (*SerializedEvent, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal(jsonData, &fields); err != nil {
		return nil, err
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	pbData, err := proto.Marshal(st)
	if err != nil {
		return nil, err
	}

	return &SerializedEvent{
		JSONData:     jsonData,
		ProtobufData: []byte(base64.StdEncoding.EncodeToString(pbData)),
	}, nil
}

// EventBroadcaster fans pre-serialized SSE events out to subscribed clients.
// One instance carries status events, another per-frame detection events.
type EventBroadcaster struct {
	name    string
	mu      sync.Mutex
	clients map[int]chan *SerializedEvent
	nextID  int
	backlog int
	metrics *metrics.Metrics
}

// NewEventBroadcaster creates an empty event fanout. The name shows up in
// log lines only.
func NewEventBroadcaster(name string, backlog int, m *metrics.Metrics) *EventBroadcaster {
	if backlog <= 0 {
		backlog = DefaultConfig().ClientBacklog
	}
	if m == nil {
		m = metrics.New()
	}
	return &EventBroadcaster{
		name:    name,
		clients: make(map[int]chan *SerializedEvent),
		backlog: backlog,
		metrics: m,
	}
}

// Subscribe adds a new client and returns a channel for receiving events.
func (eb *EventBroadcaster) Subscribe() (int, <-chan *SerializedEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	id := eb.nextID
	eb.nextID++
	ch := make(chan *SerializedEvent, eb.backlog)
	eb.clients[id] = ch

	eb.metrics.StreamClients.Add(1)
	logger.Debug(eb.name, "Client #%d subscribed (total clients: %d)", id, len(eb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (eb *EventBroadcaster) Unsubscribe(id int) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if ch, ok := eb.clients[id]; ok {
		close(ch)
		delete(eb.clients, id)
		eb.metrics.StreamClients.Add(^uint64(0))
		logger.Debug(eb.name, "Client #%d unsubscribed (remaining clients: %d)", id, len(eb.clients))
	}
}

// Publish serializes the payload once and sends it to every client. Slow
// clients miss events instead of stalling the publisher.
func (eb *EventBroadcaster) Publish(payload any) {
	// Check the client count before serializing, the session loop calls
	// this on every frame.
	eb.mu.Lock()
	count := len(eb.clients)
	eb.mu.Unlock()
	if count == 0 {
		return
	}

	event, err := serializeEvent(payload)
	if err != nil {
		logger.Error(eb.name, "serialize event: %v", err)
		return
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, ch := range eb.clients {
		select {
		case ch <- event:
		default:
			// Client too slow, skip this event for this client
		}
	}
}
