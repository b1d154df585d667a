package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pawlink/pawlink-core/internal/cloud"
)

// Status represents the current state of the shared push connection.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusRegistering Status = "registering"
	StatusConnected   Status = "connected"
)

// maxChunkBytes bounds a single stream line. Vendor chunks are small but
// the default Scanner limit of 64KB is raised in case a burst of geofence
// data rides along on a status message.
const maxChunkBytes = 1 << 20

// Message discriminator values on the push stream.
const (
	messageKeepAlive     = "keep-alive"
	messageTrackerStatus = "tracker_status"
)

// Handler receives raw tracker_status payloads for one tracker.
// Handlers run on the stream's read goroutine and must not block.
type Handler func(raw map[string]any)

// ChannelOpener opens the vendor's long-lived push channel.
// Implemented by the cloud client.
type ChannelOpener interface {
	OpenChannel(ctx context.Context) (io.ReadCloser, error)
}

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Supervisor owns the single shared push connection and its keep-alive
// timestamp. All trackers of one account share one connection; interested
// parties subscribe by tracker ID and receive raw tracker_status payloads.
//
// Registration is single-flight: the registering status itself is the
// guard, so concurrent Register calls observe the in-progress state and
// return immediately instead of opening duplicate connections.
//
// The supervisor never retries on its own. A failed or dropped connection
// moves it back to idle and the next poll or monitor tick re-registers.
//
// Thread Safety: all methods are safe for concurrent use.
type Supervisor struct {
	opener ChannelOpener
	logger Logger
	now    func() time.Time

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}

	heartbeatMu   sync.RWMutex
	lastHeartbeat time.Time

	subMu    sync.RWMutex
	handlers map[string]Handler

	statsMu   sync.Mutex
	malformed uint64
	delivered uint64
}

// NewSupervisor creates a supervisor for the given channel opener.
func NewSupervisor(opener ChannelOpener, logger Logger) *Supervisor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Supervisor{
		opener:   opener,
		logger:   logger,
		now:      time.Now,
		status:   StatusIdle,
		handlers: map[string]Handler{},
	}
}

// Register opens the push connection if no connection exists or is being
// established. It is a no-op when the supervisor is not idle.
//
// On success the status becomes connected and a background goroutine
// consumes the stream until cancellation or a transport error. Errors from
// the open attempt move the supervisor back to idle; an unauthorized
// response has already invalidated the cached token, so the next attempt
// starts with a fresh one. Register never retries by itself.
func (s *Supervisor) Register(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusIdle {
		s.mu.Unlock()
		return nil
	}
	s.status = StatusRegistering
	streamCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Debug("registering push channel")

	body, err := s.opener.OpenChannel(streamCtx)
	if err != nil {
		cancel()
		s.mu.Lock()
		s.status = StatusIdle
		s.cancel = nil
		s.mu.Unlock()
		return fmt.Errorf("opening push channel: %w", err)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.status = StatusConnected
	s.done = done
	s.mu.Unlock()
	s.touchHeartbeat()

	s.logger.Info("push channel connected")

	go s.readLoop(streamCtx, body, done)

	return nil
}

// Unregister cancels any in-flight registration or live connection and
// waits for the read loop to exit. It is idempotent.
func (s *Supervisor) Unregister() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	if s.status == StatusConnected {
		s.status = StatusIdle
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Subscribe registers a handler for one tracker's stream payloads.
// A second Subscribe for the same tracker replaces the first handler.
func (s *Supervisor) Subscribe(trackerID string, h Handler) {
	s.subMu.Lock()
	s.handlers[trackerID] = h
	s.subMu.Unlock()
}

// Unsubscribe removes the handler for a tracker. Safe to call for a
// tracker that was never subscribed.
func (s *Supervisor) Unsubscribe(trackerID string) {
	s.subMu.Lock()
	delete(s.handlers, trackerID)
	s.subMu.Unlock()
}

// Status returns the current connection status.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastHeartbeat returns the time of the most recent keep-alive or data
// message. The zero time means no message has ever arrived.
func (s *Supervisor) LastHeartbeat() time.Time {
	s.heartbeatMu.RLock()
	defer s.heartbeatMu.RUnlock()
	return s.lastHeartbeat
}

// Stats holds diagnostic counters for the push connection.
type Stats struct {
	Status        Status    `json:"status"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Delivered     uint64    `json:"delivered"`
	Malformed     uint64    `json:"malformed"`
	Subscribers   int       `json:"subscribers"`
}

// Stats returns a snapshot of the supervisor's counters.
func (s *Supervisor) Stats() Stats {
	s.statsMu.Lock()
	delivered, malformed := s.delivered, s.malformed
	s.statsMu.Unlock()

	s.subMu.RLock()
	subs := len(s.handlers)
	s.subMu.RUnlock()

	return Stats{
		Status:        s.Status(),
		LastHeartbeat: s.LastHeartbeat(),
		Delivered:     delivered,
		Malformed:     malformed,
		Subscribers:   subs,
	}
}

func (s *Supervisor) touchHeartbeat() {
	s.heartbeatMu.Lock()
	s.lastHeartbeat = s.now()
	s.heartbeatMu.Unlock()
}

// readLoop consumes newline-delimited JSON from the channel body until the
// context is cancelled or the transport fails, then returns the supervisor
// to idle. It never re-registers; reconnection is the callers' business.
func (s *Supervisor) readLoop(ctx context.Context, body io.ReadCloser, done chan struct{}) {
	defer close(done)
	defer body.Close()

	// Closing the body when the context ends unblocks a Scan stuck on a
	// quiet connection.
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxChunkBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.handleChunk(line)
	}

	err := scanner.Err()
	switch {
	case ctx.Err() != nil:
		s.logger.Info("push channel closed")
	case err != nil:
		s.logger.Warn("push channel transport error", "error", fmt.Errorf("%w: %w", cloud.ErrTransport, err))
	default:
		s.logger.Warn("push channel closed by remote")
	}

	// Only reset state if this loop still owns the connection. Unregister
	// may have already detached it and a new registration may be underway.
	s.mu.Lock()
	if s.done == done {
		s.status = StatusIdle
		s.done = nil
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
	}
	s.mu.Unlock()
}

// handleChunk parses one stream line and routes it. Malformed chunks are
// counted and dropped; they never take the connection down.
func (s *Supervisor) handleChunk(line string) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		s.statsMu.Lock()
		s.malformed++
		s.statsMu.Unlock()
		s.logger.Warn("dropping stream chunk", "error", ErrMalformedChunk, "detail", err)
		return
	}

	msgType, _ := raw["message"].(string)
	switch msgType {
	case messageKeepAlive:
		s.touchHeartbeat()

	case messageTrackerStatus:
		s.touchHeartbeat()
		trackerID, _ := raw["tracker_id"].(string)
		if trackerID == "" {
			s.statsMu.Lock()
			s.malformed++
			s.statsMu.Unlock()
			s.logger.Warn("dropping stream chunk", "error", ErrMalformedChunk,
				"detail", "tracker_status without tracker_id")
			return
		}
		s.dispatch(trackerID, raw)

	default:
		// Unknown discriminators are expected as the vendor evolves.
		s.logger.Debug("ignoring stream message", "message", msgType)
	}
}

func (s *Supervisor) dispatch(trackerID string, raw map[string]any) {
	s.subMu.RLock()
	h := s.handlers[trackerID]
	s.subMu.RUnlock()

	if h == nil {
		s.logger.Debug("no subscriber for stream update", "tracker_id", trackerID)
		return
	}

	s.statsMu.Lock()
	s.delivered++
	s.statsMu.Unlock()

	h(raw)
}
