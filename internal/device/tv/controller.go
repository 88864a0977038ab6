// Package tv drives an Android-TV-class display over ADB.
//
// Commands shell out to the adb binary: key events for power, volume and
// navigation, activity starts for app launches. Power-on tolerates the set
// being unreachable while it boots, suppressing connection errors into
// retries for a configurable grace period.
package tv

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/jarvis-core/internal/device"
)

// bootProbeInterval is the delay between reachability probes during the
// power-on grace period.
const bootProbeInterval = 2 * time.Second

// keyMap maps input keys to Android key event codes.
var keyMap = map[string]string{
	"home":  "KEYCODE_HOME",
	"back":  "KEYCODE_BACK",
	"menu":  "KEYCODE_MENU",
	"enter": "KEYCODE_ENTER",
	"up":    "KEYCODE_DPAD_UP",
	"down":  "KEYCODE_DPAD_DOWN",
	"left":  "KEYCODE_DPAD_LEFT",
	"right": "KEYCODE_DPAD_RIGHT",
}

// appPackages maps app names to Android activity identifiers.
var appPackages = map[string]string{
	"netflix": "com.netflix.mediaclient",
	"youtube": "com.google.android.youtube",
}

// Config holds the display's ADB endpoint.
type Config struct {
	Host      string
	Port      int
	ADBBinary string

	// BootGrace is how long power-on keeps probing an unreachable set
	// before giving up.
	BootGrace time.Duration

	Retry device.RetryPolicy
}

// Runner executes one external command and returns its combined output.
// The test double replaces the real adb invocation.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner shells out via exec.CommandContext.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Controller drives one display. The registry serialises Execute calls, so
// adb invocations never interleave for the device.
type Controller struct {
	tracker *device.ConnTracker
	cfg     Config
	runner  Runner
	retry   device.RetryPolicy
	logger  device.Logger
}

// New creates an ADB controller.
func New(cfg Config, logger device.Logger) *Controller {
	if cfg.ADBBinary == "" {
		cfg.ADBBinary = "adb"
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialBackoff == 0 {
		retry = device.DefaultRetryPolicy()
	}
	return &Controller{
		tracker: device.NewConnTracker(),
		cfg:     cfg,
		runner:  execRunner{},
		retry:   retry,
		logger:  logger,
	}
}

// SetRunner replaces the command runner. Test seam.
func (c *Controller) SetRunner(r Runner) {
	c.runner = r
}

// Connect issues adb connect against the display endpoint.
func (c *Controller) Connect(ctx context.Context) error {
	c.tracker.SetConnecting()
	if err := c.adbConnect(ctx); err != nil {
		c.tracker.SetDisconnected()
		return err
	}
	c.tracker.SetConnected()
	return nil
}

// Execute performs one TV action.
func (c *Controller) Execute(ctx context.Context, req device.ExecRequest) (*device.StatusReport, error) {
	var (
		attrs map[string]any
		err   error
	)

	switch req.Action {
	case device.ActionOn:
		if req.Last != nil && req.Last.Online {
			if on, ok := req.Last.Bool("on"); ok && on {
				return req.Last, nil
			}
		}
		attrs, err = c.powerOn(ctx)

	case device.ActionOff:
		if req.Last != nil && req.Last.Online {
			if on, ok := req.Last.Bool("on"); ok && !on {
				return req.Last, nil
			}
		}
		attrs, err = c.keyEvent(ctx, "KEYCODE_POWER", map[string]any{"on": false})

	case device.ActionLaunchApp:
		app, _ := req.Params.String("app")
		pkg, known := appPackages[app]
		if !known {
			return nil, device.NewError(device.ErrKindUnsupported, fmt.Sprintf("unknown app %q", app))
		}
		attrs, err = c.shell(ctx, map[string]any{"on": true, "app": app}, "am", "start", "-n", pkg)

	case device.ActionSetVolume:
		attrs, err = c.setVolume(ctx, req.Params)

	case device.ActionSendInput:
		key, _ := req.Params.String("key")
		code, known := keyMap[key]
		if !known {
			return nil, device.NewError(device.ErrKindUnsupported, fmt.Sprintf("unknown input key %q", key))
		}
		attrs, err = c.keyEvent(ctx, code, map[string]any{"on": true, "last_input": key})

	default:
		return nil, device.NewError(device.ErrKindUnsupported, fmt.Sprintf("tv does not support %s", req.Action))
	}

	if err != nil {
		c.tracker.SetDegraded()
		return nil, err
	}
	c.tracker.SetConnected()
	return device.NewStatusReport(req.Device.ID, true, attrs), nil
}

// Status reads the display power state via dumpsys.
func (c *Controller) Status(ctx context.Context, dev *device.Device) (*device.StatusReport, error) {
	out, err := c.runner.Run(ctx, c.cfg.ADBBinary, "shell", "dumpsys", "power")
	if err != nil {
		c.tracker.SetDegraded()
		return nil, classifyRunError(err)
	}

	c.tracker.SetConnected()
	on := strings.Contains(string(out), "Display Power: state=ON")
	return device.NewStatusReport(dev.ID, true, map[string]any{"on": on}), nil
}

// ConnState reports the tracked connection state.
func (c *Controller) ConnState() device.ConnState {
	return c.tracker.ConnState()
}

// Capabilities advertises power, app launch, volume and input.
func (c *Controller) Capabilities() []device.Capability {
	return []device.Capability{device.CapPower, device.CapApp, device.CapVolume, device.CapInput}
}

// Close drops the adb connection.
func (c *Controller) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.runner.Run(ctx, c.cfg.ADBBinary, "disconnect", c.endpoint())
	c.tracker.SetDisconnected()
	return nil
}

// powerOn connects and sends the power key, probing through the boot grace
// window while the set is unreachable.
func (c *Controller) powerOn(ctx context.Context) (map[string]any, error) {
	deadline := time.Now().Add(c.cfg.BootGrace)

	for {
		err := c.adbConnect(ctx)
		if err == nil {
			break
		}
		if !device.IsTransient(err) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, device.WrapError(device.ErrKindConnection,
				fmt.Sprintf("display unreachable after %s boot grace", c.cfg.BootGrace), err)
		}

		select {
		case <-ctx.Done():
			return nil, device.WrapError(device.ErrKindTimeout, "cancelled waiting for display to boot", ctx.Err())
		case <-time.After(bootProbeInterval):
		}
	}

	return c.keyEvent(ctx, "KEYCODE_POWER", map[string]any{"on": true})
}

// setVolume sends a relative key event or sets the media stream level.
func (c *Controller) setVolume(ctx context.Context, params device.Params) (map[string]any, error) {
	if dir, ok := params.String("direction"); ok {
		code := "KEYCODE_VOLUME_UP"
		if dir == "down" {
			code = "KEYCODE_VOLUME_DOWN"
		}
		return c.keyEvent(ctx, code, map[string]any{"on": true, "volume_direction": dir})
	}

	level, _ := params.Int("volume")
	return c.shell(ctx, map[string]any{"on": true, "volume": level},
		"media", "volume", "--stream", "3", "--set", strconv.Itoa(level))
}

// keyEvent sends one Android key event.
func (c *Controller) keyEvent(ctx context.Context, code string, attrs map[string]any) (map[string]any, error) {
	return c.shell(ctx, attrs, "input", "keyevent", code)
}

// shell runs an adb shell command with bounded retry.
func (c *Controller) shell(ctx context.Context, attrs map[string]any, args ...string) (map[string]any, error) {
	full := append([]string{"shell"}, args...)
	err := device.Retry(ctx, c.retry, func(ctx context.Context) error {
		_, err := c.runner.Run(ctx, c.cfg.ADBBinary, full...)
		if err != nil {
			return classifyRunError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

// adbConnect establishes the TCP ADB session.
func (c *Controller) adbConnect(ctx context.Context) error {
	out, err := c.runner.Run(ctx, c.cfg.ADBBinary, "connect", c.endpoint())
	if err != nil {
		return classifyRunError(err)
	}
	// adb connect reports failure in its output with exit code 0.
	if strings.Contains(string(out), "failed to connect") || strings.Contains(string(out), "cannot connect") {
		return device.NewError(device.ErrKindConnection, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c *Controller) endpoint() string {
	return fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
}

// classifyRunError maps adb invocation failures onto the error taxonomy.
func classifyRunError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return device.WrapError(device.ErrKindTimeout, "adb command timed out", err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return device.WrapError(device.ErrKindConnection, "adb command failed", err)
	}
	return device.WrapError(device.ErrKindConnection, "adb unavailable", err)
}
