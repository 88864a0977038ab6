package light

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/jarvis-core/internal/device"
)

// fakeGateway records commands and serves canned state.
type fakeGateway struct {
	mu       sync.Mutex
	commands []gatewayCommand
	failures int
	srv      *httptest.Server
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()

		if g.failures > 0 {
			g.failures--
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		switch {
		case r.URL.Path == "/api":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost:
			var cmd gatewayCommand
			if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			g.commands = append(g.commands, cmd)
			w.WriteHeader(http.StatusOK)
		default:
			json.NewEncoder(w).Encode(gatewayState{Status: "on", Brightness: 80})
		}
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) commandCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.commands)
}

func (g *fakeGateway) lastCommand() gatewayCommand {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.commands[len(g.commands)-1]
}

func newTestController(t *testing.T, g *fakeGateway) *Controller {
	t.Helper()
	u, err := url.Parse(g.srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(u.Port())
	return New(Config{
		Host:  u.Hostname(),
		Port:  port,
		Token: "gateway-token",
		Retry: device.RetryPolicy{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Timeout: time.Second},
	}, nil)
}

func kitchenLight() *device.Device {
	return &device.Device{
		ID:      "light-kitchen",
		Kind:    device.KindLight,
		Room:    "kitchen",
		Address: map[string]any{"light_id": "light_002", "default_brightness": 100},
	}
}

func TestExecute_On(t *testing.T) {
	g := newFakeGateway(t)
	c := newTestController(t, g)

	report, err := c.Execute(context.Background(), device.ExecRequest{
		Device: kitchenLight(),
		Action: device.ActionOn,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if on, _ := report.Bool("on"); !on {
		t.Error("report on = false, want true")
	}
	if cmd := g.lastCommand(); cmd.Command != "power" || cmd.Params["status"] != "on" {
		t.Errorf("gateway saw %+v, want power on", cmd)
	}
	if c.ConnState() != device.ConnConnected {
		t.Errorf("conn state = %s, want connected", c.ConnState())
	}
}

func TestExecute_OnAlreadyOnSkipsWire(t *testing.T) {
	g := newFakeGateway(t)
	c := newTestController(t, g)

	last := device.NewStatusReport("light-kitchen", true, map[string]any{"on": true, "brightness": 80})
	report, err := c.Execute(context.Background(), device.ExecRequest{
		Device: kitchenLight(),
		Action: device.ActionOn,
		Last:   last,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if report != last {
		t.Error("idempotent on should return the cached report")
	}
	if g.commandCount() != 0 {
		t.Errorf("gateway saw %d commands, want 0", g.commandCount())
	}
}

func TestExecute_BrightnessWithinTolerance(t *testing.T) {
	g := newFakeGateway(t)
	c := newTestController(t, g)

	last := device.NewStatusReport("light-kitchen", true, map[string]any{"on": true, "brightness": 72})
	_, err := c.Execute(context.Background(), device.ExecRequest{
		Device: kitchenLight(),
		Action: device.ActionSetBrightness,
		Params: device.Params{"brightness": 70},
		Last:   last,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if g.commandCount() != 0 {
		t.Errorf("gateway saw %d commands for an in-tolerance brightness, want 0", g.commandCount())
	}

	// Outside tolerance the wire call happens.
	_, err = c.Execute(context.Background(), device.ExecRequest{
		Device: kitchenLight(),
		Action: device.ActionSetBrightness,
		Params: device.Params{"brightness": 30},
		Last:   last,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if g.commandCount() != 1 {
		t.Fatalf("gateway saw %d commands, want 1", g.commandCount())
	}
	if cmd := g.lastCommand(); cmd.Command != "brightness" || cmd.Params["value"] != float64(30) {
		t.Errorf("gateway saw %+v, want brightness 30", cmd)
	}
}

func TestExecute_RetriesTransientFailure(t *testing.T) {
	g := newFakeGateway(t)
	g.failures = 2
	c := newTestController(t, g)

	_, err := c.Execute(context.Background(), device.ExecRequest{
		Device: kitchenLight(),
		Action: device.ActionOff,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v after retries", err)
	}
	if g.commandCount() != 1 {
		t.Errorf("gateway recorded %d successful commands, want 1", g.commandCount())
	}
}

func TestExecute_ExhaustedRetriesDegrade(t *testing.T) {
	g := newFakeGateway(t)
	g.failures = 10
	c := newTestController(t, g)

	_, err := c.Execute(context.Background(), device.ExecRequest{
		Device: kitchenLight(),
		Action: device.ActionOn,
	})
	de, ok := device.AsError(err)
	if !ok || de.Kind != device.ErrKindConnection {
		t.Fatalf("Execute() error = %v, want connection device error", err)
	}
	if c.ConnState() != device.ConnDegraded {
		t.Errorf("conn state = %s, want degraded", c.ConnState())
	}
}

func TestStatus(t *testing.T) {
	g := newFakeGateway(t)
	c := newTestController(t, g)

	report, err := c.Status(context.Background(), kitchenLight())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if on, _ := report.Bool("on"); !on {
		t.Error("status on = false, want true")
	}
	if b, _ := report.Int("brightness"); b != 80 {
		t.Errorf("status brightness = %d, want 80", b)
	}
}

func TestExecute_MissingAddress(t *testing.T) {
	g := newFakeGateway(t)
	c := newTestController(t, g)

	_, err := c.Execute(context.Background(), device.ExecRequest{
		Device: &device.Device{ID: "light-x", Kind: device.KindLight},
		Action: device.ActionOn,
	})
	de, ok := device.AsError(err)
	if !ok || de.Kind != device.ErrKindUnsupported {
		t.Errorf("Execute() error = %v, want unsupported device error", err)
	}
}
