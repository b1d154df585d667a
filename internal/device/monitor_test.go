package device

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pawlink/pawlink-core/internal/stream"
)

// fakeStream is a controllable StreamControl.
type fakeStream struct {
	mu            sync.Mutex
	status        stream.Status
	lastHeartbeat time.Time
	registers     int
	unregisters   int
	registerErr   error
}

func (f *fakeStream) Register(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	if f.registerErr != nil {
		return f.registerErr
	}
	f.status = stream.StatusConnected
	return nil
}

func (f *fakeStream) Unregister() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregisters++
	f.status = stream.StatusIdle
}

func (f *fakeStream) Status() stream.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeStream) LastHeartbeat() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastHeartbeat
}

func newMonitorFixture(age time.Duration) (*Monitor, *fakeStream, *mockPlatform, *Device) {
	now := time.Now()
	fs := &fakeStream{
		status:        stream.StatusConnected,
		lastHeartbeat: now.Add(-age),
	}
	platform := newMockPlatform()
	d := newTestDevice(platform, &stubEnricher{}, nil)

	m := NewMonitor(fs, []*Device{d}, time.Second, nil, nil)
	m.now = func() time.Time { return now }
	return m, fs, platform, d
}

func TestMonitorHealthyHeartbeat(t *testing.T) {
	m, fs, _, d := newMonitorFixture(9 * time.Second)

	m.Tick(context.Background())

	if !d.Available() {
		t.Error("device not available at 9s heartbeat age")
	}
	if fs.unregisters != 0 {
		t.Errorf("unregisters = %d at 9s, want 0", fs.unregisters)
	}
}

func TestMonitorToleratesQuietStream(t *testing.T) {
	m, fs, platform, _ := newMonitorFixture(30 * time.Second)

	m.Tick(context.Background())

	if fs.unregisters != 0 {
		t.Errorf("unregisters = %d at 30s, want 0", fs.unregisters)
	}
	if len(platform.availability) != 0 {
		t.Errorf("availability publishes = %v at 30s, want none", platform.availability)
	}
}

func TestMonitorForcesReconnectWhenSuspect(t *testing.T) {
	m, fs, _, d := newMonitorFixture(65 * time.Second)

	// Device was available before the stream went quiet.
	d.setAvailability(true, "")

	m.Tick(context.Background())

	if fs.unregisters != 1 {
		t.Errorf("unregisters = %d at 65s, want 1", fs.unregisters)
	}
	if !d.Available() {
		t.Error("device must stay available while suspect")
	}
}

func TestMonitorMarksUnavailableWhenDead(t *testing.T) {
	m, _, platform, d := newMonitorFixture(90 * time.Second)
	d.setAvailability(true, "")

	m.Tick(context.Background())

	if d.Available() {
		t.Error("device still available at 90s heartbeat age")
	}
	last := platform.reasons[len(platform.reasons)-1]
	if last != ReasonRestartRequired {
		t.Errorf("unavailability reason = %q, want %q", last, ReasonRestartRequired)
	}
}

func TestMonitorRecoveryClearsRestartWarning(t *testing.T) {
	m, fs, platform, d := newMonitorFixture(90 * time.Second)
	d.setAvailability(true, "")

	m.Tick(context.Background())
	if d.Available() {
		t.Fatal("expected unavailable after dead heartbeat")
	}

	// Fresh heartbeat arrives.
	fs.mu.Lock()
	fs.lastHeartbeat = m.now()
	fs.mu.Unlock()

	m.Tick(context.Background())

	if !d.Available() {
		t.Error("device not restored after fresh heartbeat")
	}
	last := platform.warnings[len(platform.warnings)-1]
	if last != "" {
		t.Errorf("warning = %q after recovery, want cleared", last)
	}
}

func TestMonitorReRegistersIdleStream(t *testing.T) {
	m, fs, _, _ := newMonitorFixture(5 * time.Second)
	fs.mu.Lock()
	fs.status = stream.StatusIdle
	fs.mu.Unlock()

	m.Tick(context.Background())

	if fs.registers != 1 {
		t.Errorf("registers = %d for idle stream, want 1", fs.registers)
	}
}
