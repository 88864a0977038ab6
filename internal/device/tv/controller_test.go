package tv

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/jarvis-core/internal/device"
)

// fakeRunner records adb invocations and serves scripted results.
type fakeRunner struct {
	mu           sync.Mutex
	calls        [][]string
	connectFails int
	output       string
	err          error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, append([]string{name}, args...))

	if len(args) > 0 && args[0] == "connect" && f.connectFails > 0 {
		f.connectFails--
		return []byte("failed to connect to 192.168.1.100:5555"), nil
	}
	return []byte(f.output), f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) lastCall() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestController(r *fakeRunner, bootGrace time.Duration) *Controller {
	c := New(Config{
		Host:      "192.168.1.100",
		Port:      5555,
		BootGrace: bootGrace,
		Retry:     device.RetryPolicy{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Timeout: time.Second},
	}, nil)
	c.SetRunner(r)
	return c
}

func mainTV() *device.Device {
	return &device.Device{ID: "tv-main", Kind: device.KindTV}
}

func TestExecute_PowerOn(t *testing.T) {
	r := &fakeRunner{}
	c := newTestController(r, time.Second)

	report, err := c.Execute(context.Background(), device.ExecRequest{Device: mainTV(), Action: device.ActionOn})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if on, _ := report.Bool("on"); !on {
		t.Error("report on = false, want true")
	}
	last := strings.Join(r.lastCall(), " ")
	if last != "adb shell input keyevent KEYCODE_POWER" {
		t.Errorf("last adb call = %q, want power keyevent", last)
	}
}

func TestExecute_PowerOnIdempotent(t *testing.T) {
	r := &fakeRunner{}
	c := newTestController(r, time.Second)

	last := device.NewStatusReport("tv-main", true, map[string]any{"on": true})
	report, err := c.Execute(context.Background(), device.ExecRequest{Device: mainTV(), Action: device.ActionOn, Last: last})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if report != last {
		t.Error("idempotent power-on should return the cached report")
	}
	if r.callCount() != 0 {
		t.Errorf("adb invoked %d times, want 0", r.callCount())
	}
}

func TestExecute_PowerOnBootGrace(t *testing.T) {
	r := &fakeRunner{connectFails: 1}
	c := newTestController(r, 10*time.Second)

	start := time.Now()
	_, err := c.Execute(context.Background(), device.ExecRequest{Device: mainTV(), Action: device.ActionOn})
	if err != nil {
		t.Fatalf("Execute() error = %v, boot grace should have absorbed the first refusal", err)
	}
	if elapsed := time.Since(start); elapsed < bootProbeInterval {
		t.Errorf("succeeded after %v, expected at least one probe interval", elapsed)
	}
}

func TestExecute_PowerOnGraceExhausted(t *testing.T) {
	r := &fakeRunner{connectFails: 100}
	c := newTestController(r, 0)

	_, err := c.Execute(context.Background(), device.ExecRequest{Device: mainTV(), Action: device.ActionOn})
	de, ok := device.AsError(err)
	if !ok || de.Kind != device.ErrKindConnection {
		t.Fatalf("Execute() error = %v, want connection device error", err)
	}
	if c.ConnState() != device.ConnDegraded {
		t.Errorf("conn state = %s, want degraded", c.ConnState())
	}
}

func TestExecute_LaunchApp(t *testing.T) {
	r := &fakeRunner{}
	c := newTestController(r, time.Second)

	report, err := c.Execute(context.Background(), device.ExecRequest{
		Device: mainTV(),
		Action: device.ActionLaunchApp,
		Params: device.Params{"app": "netflix"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if app, _ := report.String("app"); app != "netflix" {
		t.Errorf("report app = %q, want netflix", app)
	}
	last := strings.Join(r.lastCall(), " ")
	if !strings.Contains(last, "am start -n com.netflix.mediaclient") {
		t.Errorf("last adb call = %q, want netflix activity start", last)
	}
}

func TestExecute_VolumeDirection(t *testing.T) {
	r := &fakeRunner{}
	c := newTestController(r, time.Second)

	_, err := c.Execute(context.Background(), device.ExecRequest{
		Device: mainTV(),
		Action: device.ActionSetVolume,
		Params: device.Params{"direction": "down"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	last := strings.Join(r.lastCall(), " ")
	if !strings.Contains(last, "KEYCODE_VOLUME_DOWN") {
		t.Errorf("last adb call = %q, want volume down keyevent", last)
	}
}

func TestExecute_VolumeAbsolute(t *testing.T) {
	r := &fakeRunner{}
	c := newTestController(r, time.Second)

	report, err := c.Execute(context.Background(), device.ExecRequest{
		Device: mainTV(),
		Action: device.ActionSetVolume,
		Params: device.Params{"volume": 40},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if v, _ := report.Int("volume"); v != 40 {
		t.Errorf("report volume = %d, want 40", v)
	}
	last := strings.Join(r.lastCall(), " ")
	if !strings.Contains(last, "media volume --stream 3 --set 40") {
		t.Errorf("last adb call = %q, want media volume set", last)
	}
}

func TestExecute_SendInput(t *testing.T) {
	r := &fakeRunner{}
	c := newTestController(r, time.Second)

	_, err := c.Execute(context.Background(), device.ExecRequest{
		Device: mainTV(),
		Action: device.ActionSendInput,
		Params: device.Params{"key": "home"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	last := strings.Join(r.lastCall(), " ")
	if !strings.Contains(last, "KEYCODE_HOME") {
		t.Errorf("last adb call = %q, want home keyevent", last)
	}
}

func TestStatus(t *testing.T) {
	r := &fakeRunner{output: "Power Manager State:\n  Display Power: state=ON\n"}
	c := newTestController(r, time.Second)

	report, err := c.Status(context.Background(), mainTV())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if on, _ := report.Bool("on"); !on {
		t.Error("status on = false, want true")
	}
}

func TestExecute_UnknownApp(t *testing.T) {
	r := &fakeRunner{}
	c := newTestController(r, time.Second)

	_, err := c.Execute(context.Background(), device.ExecRequest{
		Device: mainTV(),
		Action: device.ActionLaunchApp,
		Params: device.Params{"app": "hulu"},
	})
	de, ok := device.AsError(err)
	if !ok || de.Kind != device.ErrKindUnsupported {
		t.Errorf("Execute() error = %v, want unsupported device error", err)
	}
	if r.callCount() != 0 {
		t.Errorf("adb invoked %d times for unknown app, want 0", r.callCount())
	}
}
