package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeOpener hands out script-controlled pipe readers.
type fakeOpener struct {
	mu      sync.Mutex
	calls   int
	err     error
	writers []*io.PipeWriter
}

func (f *fakeOpener) OpenChannel(_ context.Context) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r, w := io.Pipe()
	f.writers = append(f.writers, w)
	return r, nil
}

func (f *fakeOpener) send(t *testing.T, line string) {
	t.Helper()
	f.mu.Lock()
	w := f.writers[len(f.writers)-1]
	f.mu.Unlock()
	if _, err := w.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("writing stream line: %v", err)
	}
}

func (f *fakeOpener) closeRemote() {
	f.mu.Lock()
	w := f.writers[len(f.writers)-1]
	f.mu.Unlock()
	w.Close()
}

func (f *fakeOpener) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestRegisterAndDispatch(t *testing.T) {
	opener := &fakeOpener{}
	s := NewSupervisor(opener, nil)
	defer s.Unregister()

	var got atomic.Value
	s.Subscribe("t-1", func(raw map[string]any) {
		got.Store(raw)
	})

	if err := s.Register(context.Background()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if s.Status() != StatusConnected {
		t.Fatalf("Status() = %q, want connected", s.Status())
	}

	opener.send(t, `{"message":"tracker_status","tracker_id":"t-1","battery_level":77}`)

	waitFor(t, func() bool { return got.Load() != nil }, "tracker_status was not dispatched")

	raw := got.Load().(map[string]any)
	if raw["battery_level"] != float64(77) {
		t.Errorf("battery_level = %v, want 77", raw["battery_level"])
	}
}

func TestRegisterSingleFlight(t *testing.T) {
	opener := &fakeOpener{}
	s := NewSupervisor(opener, nil)
	defer s.Unregister()

	if err := s.Register(context.Background()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	// A second call while connected must be a no-op.
	if err := s.Register(context.Background()); err != nil {
		t.Fatalf("second Register() error = %v", err)
	}

	if got := opener.callCount(); got != 1 {
		t.Errorf("OpenChannel called %d times, want 1", got)
	}
}

func TestRegisterOpenError(t *testing.T) {
	boom := errors.New("dial refused")
	opener := &fakeOpener{err: boom}
	s := NewSupervisor(opener, nil)

	err := s.Register(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Register() error = %v, want wrapped dial error", err)
	}
	if s.Status() != StatusIdle {
		t.Errorf("Status() = %q, want idle after failed open", s.Status())
	}

	// A failed attempt must not block the next one.
	opener.mu.Lock()
	opener.err = nil
	opener.mu.Unlock()
	if err := s.Register(context.Background()); err != nil {
		t.Fatalf("Register() after failure = %v", err)
	}
	s.Unregister()
}

func TestKeepAliveUpdatesHeartbeatWithoutDispatch(t *testing.T) {
	opener := &fakeOpener{}
	s := NewSupervisor(opener, nil)
	defer s.Unregister()

	dispatched := atomic.Int32{}
	s.Subscribe("t-1", func(map[string]any) { dispatched.Add(1) })

	if err := s.Register(context.Background()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	before := s.LastHeartbeat()

	time.Sleep(10 * time.Millisecond)
	opener.send(t, `{"message":"keep-alive","keepAlive":1667913902}`)

	waitFor(t, func() bool { return s.LastHeartbeat().After(before) },
		"keep-alive did not refresh the heartbeat")

	if dispatched.Load() != 0 {
		t.Errorf("keep-alive was dispatched to a subscriber")
	}
}

func TestMalformedChunksAreDropped(t *testing.T) {
	opener := &fakeOpener{}
	s := NewSupervisor(opener, nil)
	defer s.Unregister()

	var got atomic.Value
	s.Subscribe("t-1", func(raw map[string]any) { got.Store(raw) })

	if err := s.Register(context.Background()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	opener.send(t, `{not json at all`)
	opener.send(t, `{"message":"tracker_status"}`)
	opener.send(t, `{"message":"tracker_status","tracker_id":"t-1","speed":1.5}`)

	waitFor(t, func() bool { return got.Load() != nil },
		"valid chunk after malformed ones was not delivered")

	stats := s.Stats()
	if stats.Malformed != 2 {
		t.Errorf("Malformed = %d, want 2", stats.Malformed)
	}
	if stats.Delivered != 1 {
		t.Errorf("Delivered = %d, want 1", stats.Delivered)
	}
	if s.Status() != StatusConnected {
		t.Errorf("malformed chunks must not close the connection")
	}
}

func TestRemoteCloseReturnsToIdle(t *testing.T) {
	opener := &fakeOpener{}
	s := NewSupervisor(opener, nil)

	if err := s.Register(context.Background()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	opener.closeRemote()

	waitFor(t, func() bool { return s.Status() == StatusIdle },
		"remote close did not return supervisor to idle")

	// No self-reconnect: still a single open call.
	if got := opener.callCount(); got != 1 {
		t.Errorf("OpenChannel called %d times after remote close, want 1", got)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	opener := &fakeOpener{}
	s := NewSupervisor(opener, nil)

	if err := s.Register(context.Background()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	s.Unregister()
	s.Unregister()

	if s.Status() != StatusIdle {
		t.Errorf("Status() = %q, want idle after Unregister", s.Status())
	}

	// The supervisor can be registered again after teardown.
	if err := s.Register(context.Background()); err != nil {
		t.Fatalf("Register() after Unregister = %v", err)
	}
	s.Unregister()
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	opener := &fakeOpener{}
	s := NewSupervisor(opener, nil)
	defer s.Unregister()

	delivered := atomic.Int32{}
	s.Subscribe("t-1", func(map[string]any) { delivered.Add(1) })

	if err := s.Register(context.Background()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	opener.send(t, `{"message":"tracker_status","tracker_id":"t-1"}`)
	waitFor(t, func() bool { return delivered.Load() == 1 }, "first update not delivered")

	s.Unsubscribe("t-1")
	before := s.LastHeartbeat()
	time.Sleep(5 * time.Millisecond)
	opener.send(t, `{"message":"tracker_status","tracker_id":"t-1"}`)
	opener.send(t, `{"message":"keep-alive","keepAlive":1}`)

	// The trailing keep-alive proves both lines were consumed.
	waitFor(t, func() bool { return s.LastHeartbeat().After(before) },
		"stream stalled after Unsubscribe")
	if delivered.Load() != 1 {
		t.Errorf("delivered = %d after Unsubscribe, want 1", delivered.Load())
	}
}
