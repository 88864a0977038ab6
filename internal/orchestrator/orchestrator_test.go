package orchestrator

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/jarvis-core/internal/auth"
	"github.com/nerrad567/jarvis-core/internal/device"
	"github.com/nerrad567/jarvis-core/internal/intent"
	"github.com/nerrad567/jarvis-core/internal/ratelimit"
)

// fakeController implements device.Controller with scriptable failures.
type fakeController struct {
	*device.ConnTracker
	caps  []device.Capability
	calls atomic.Int64
	fail  error
}

func newFakeController(caps ...device.Capability) *fakeController {
	return &fakeController{ConnTracker: device.NewConnTracker(), caps: caps}
}

func (f *fakeController) Connect(context.Context) error { return nil }

func (f *fakeController) Execute(_ context.Context, req device.ExecRequest) (*device.StatusReport, error) {
	f.calls.Add(1)
	if f.fail != nil {
		return nil, f.fail
	}
	attrs := map[string]any{"on": req.Action == device.ActionOn}
	return device.NewStatusReport(req.Device.ID, true, attrs), nil
}

func (f *fakeController) Status(_ context.Context, dev *device.Device) (*device.StatusReport, error) {
	return device.NewStatusReport(dev.ID, true, map[string]any{"on": false}), nil
}

func (f *fakeController) Capabilities() []device.Capability { return f.caps }
func (f *fakeController) Close() error                      { return nil }

// captureHooks records every hook invocation for assertion.
type captureHooks struct {
	mu       sync.Mutex
	recorded []*Outcome
	metrics  []Status
	notified []*Outcome
}

func (h *captureHooks) RecordOutcome(_ context.Context, o *Outcome) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recorded = append(h.recorded, o)
	return nil
}

func (h *captureHooks) WriteCommandMetric(_ string, _ device.Kind, _ device.Action, status Status, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics = append(h.metrics, status)
}

func (h *captureHooks) NotifyOutcome(o *Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notified = append(h.notified, o)
}

type fixture struct {
	orch    *Orchestrator
	gate    *auth.Gate
	kitchen *fakeController
	hallway *fakeController
	hooks   *captureHooks
}

func newFixture(t *testing.T, limit int) *fixture {
	t.Helper()

	reg := device.NewRegistry(30 * time.Second)
	kitchen := newFakeController(device.CapPower, device.CapBrightness)
	hallway := newFakeController(device.CapPower, device.CapBrightness)

	if err := reg.Register(device.Device{ID: "light-kitchen", Kind: device.KindLight, Room: "kitchen"}, kitchen); err != nil {
		t.Fatalf("register kitchen: %v", err)
	}
	if err := reg.Register(device.Device{ID: "light-hallway", Kind: device.KindLight, Room: "hallway"}, hallway); err != nil {
		t.Fatalf("register hallway: %v", err)
	}

	gate := auth.NewGate([]auth.User{
		{ID: "alice", DisplayName: "Alice", Roles: []auth.Role{auth.RoleUser}},
		{ID: "bob", DisplayName: "Bob", Roles: []auth.Role{auth.RoleAdmin}},
	}, time.Hour)

	parser := intent.NewParser(intent.Options{Rooms: reg})
	limiter := ratelimit.New(limit, time.Minute)

	orch := New(parser, gate, limiter, reg)
	hooks := &captureHooks{}
	orch.SetRecorder(hooks)
	orch.SetTelemetry(hooks)
	orch.SetNotifier(hooks)

	return &fixture{orch: orch, gate: gate, kitchen: kitchen, hallway: hallway, hooks: hooks}
}

func TestHandleTextSuccess(t *testing.T) {
	f := newFixture(t, 10)

	out := f.orch.HandleText(context.Background(), Request{UserID: "alice", Input: "включи свет в кухне"})

	if out.Status != StatusSuccess {
		t.Fatalf("status = %s (%s: %s), want success", out.Status, out.Reason, out.Detail)
	}
	if out.State != StateCompleted {
		t.Errorf("state = %s, want completed", out.State)
	}
	if f.kitchen.calls.Load() != 1 {
		t.Errorf("kitchen controller calls = %d, want 1", f.kitchen.calls.Load())
	}
	if f.hallway.calls.Load() != 0 {
		t.Errorf("hallway controller calls = %d, want 0", f.hallway.calls.Load())
	}
	if out.SessionToken == "" {
		t.Error("expected a session token on the outcome")
	}
	if len(out.Reports) != 1 || out.Reports[0].DeviceID != "light-kitchen" {
		t.Errorf("reports = %+v, want one for light-kitchen", out.Reports)
	}
	if out.Intent == nil || out.Intent.Action != device.ActionOn {
		t.Errorf("intent = %+v, want on action", out.Intent)
	}
}

func TestHandleTextReusesSession(t *testing.T) {
	f := newFixture(t, 10)

	first := f.orch.HandleText(context.Background(), Request{UserID: "alice", Input: "включи свет в кухне"})
	second := f.orch.HandleText(context.Background(), Request{
		UserID: "alice",
		Token:  first.SessionToken,
		Input:  "выключи свет в кухне",
	})

	if second.Status != StatusSuccess {
		t.Fatalf("second status = %s (%s)", second.Status, second.Reason)
	}
	if second.SessionToken != first.SessionToken {
		t.Error("presenting a valid token should extend the session, not mint a new one")
	}
	if got := f.gate.GetStats().SessionsIssued; got != 1 {
		t.Errorf("sessions issued = %d, want 1", got)
	}
}

func TestHandleTextNotWhitelisted(t *testing.T) {
	f := newFixture(t, 10)

	out := f.orch.HandleText(context.Background(), Request{UserID: "mallory", Input: "включи свет в кухне"})

	if out.Status != StatusRejected {
		t.Fatalf("status = %s, want rejected", out.Status)
	}
	if out.Reason != ReasonNotWhitelisted {
		t.Errorf("reason = %s, want %s", out.Reason, ReasonNotWhitelisted)
	}
	if total := f.kitchen.calls.Load() + f.hallway.calls.Load(); total != 0 {
		t.Errorf("controller calls = %d, want 0 for unauthorized user", total)
	}
}

func TestHandleTextExpiredSession(t *testing.T) {
	f := newFixture(t, 10)

	first := f.orch.HandleText(context.Background(), Request{UserID: "alice", Input: "включи свет в кухне"})

	f.gate.Revoke("alice")

	out := f.orch.HandleText(context.Background(), Request{
		UserID: "alice",
		Token:  first.SessionToken,
		Input:  "выключи свет в кухне",
	})
	if out.Status != StatusRejected || out.Reason != ReasonSessionExpired {
		t.Fatalf("outcome = %s/%s, want rejected/%s", out.Status, out.Reason, ReasonSessionExpired)
	}
	if f.kitchen.calls.Load() != 1 {
		t.Errorf("kitchen calls = %d, want 1 (only the first command)", f.kitchen.calls.Load())
	}
}

func TestHandleTextRateLimited(t *testing.T) {
	f := newFixture(t, 1)

	first := f.orch.HandleText(context.Background(), Request{UserID: "alice", Input: "включи свет в кухне"})
	if first.Status != StatusSuccess {
		t.Fatalf("first status = %s (%s)", first.Status, first.Reason)
	}

	second := f.orch.HandleText(context.Background(), Request{
		UserID: "alice",
		Token:  first.SessionToken,
		Input:  "выключи свет в кухне",
	})
	if second.Status != StatusRejected || second.Reason != ReasonRateLimited {
		t.Fatalf("outcome = %s/%s, want rejected/%s", second.Status, second.Reason, ReasonRateLimited)
	}
	if f.kitchen.calls.Load() != 1 {
		t.Errorf("kitchen calls = %d, want 1", f.kitchen.calls.Load())
	}
}

func TestHandleTextParseRejection(t *testing.T) {
	f := newFixture(t, 10)

	out := f.orch.HandleText(context.Background(), Request{UserID: "alice", Input: "сделай что-нибудь"})

	if out.Status != StatusRejected {
		t.Fatalf("status = %s, want rejected", out.Status)
	}
	if out.Reason != string(intent.ErrKindUnknown) {
		t.Errorf("reason = %s, want %s", out.Reason, intent.ErrKindUnknown)
	}
	if out.Intent != nil {
		t.Error("rejected parse should leave Intent nil")
	}
	if got := f.gate.GetStats().SessionsIssued; got != 0 {
		t.Errorf("sessions issued = %d, parse failures stop before authorization", got)
	}
}

func TestHandleTextLowTranscriptionConfidence(t *testing.T) {
	f := newFixture(t, 10)

	out := f.orch.HandleText(context.Background(), Request{
		UserID:     "alice",
		Input:      "включи свет в кухне",
		Confidence: 0.3,
	})

	if out.Status != StatusRejected {
		t.Fatalf("status = %s, want rejected", out.Status)
	}
	if out.Reason != string(intent.ErrKindLowConfidence) {
		t.Errorf("reason = %s, want %s", out.Reason, intent.ErrKindLowConfidence)
	}
	if got := f.kitchen.calls.Load(); got != 0 {
		t.Errorf("controller calls = %d, doubted transcriptions never execute", got)
	}

	// Confident transcription of the same text goes through.
	out = f.orch.HandleText(context.Background(), Request{
		UserID:     "alice",
		Input:      "включи свет в кухне",
		Confidence: 0.95,
	})
	if out.Status != StatusSuccess {
		t.Fatalf("status = %s, want success", out.Status)
	}
}

func TestHandleTextInvalidParams(t *testing.T) {
	f := newFixture(t, 10)

	out := f.orch.HandleText(context.Background(), Request{UserID: "alice", Input: "свет 150% в кухне"})

	if out.Status != StatusRejected || out.Reason != ReasonInvalidParams {
		t.Fatalf("outcome = %s/%s, want rejected/%s", out.Status, out.Reason, ReasonInvalidParams)
	}
}

func TestHandleStructuredUnknownRoom(t *testing.T) {
	f := newFixture(t, 10)

	out := f.orch.HandleStructured(context.Background(), Request{UserID: "alice", Input: "light_on garage"})

	if out.Status != StatusRejected || out.Reason != ReasonUnknownRoom {
		t.Fatalf("outcome = %s/%s, want rejected/%s", out.Status, out.Reason, ReasonUnknownRoom)
	}
}

func TestFanOutPartialFailure(t *testing.T) {
	f := newFixture(t, 10)
	f.hallway.fail = device.NewError(device.ErrKindConnection, "gateway refused")

	out := f.orch.HandleStructured(context.Background(), Request{UserID: "alice", Input: "light_on all"})

	if out.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", out.Status)
	}
	if out.Reason != string(device.ErrKindPartial) {
		t.Errorf("reason = %s, want %s", out.Reason, device.ErrKindPartial)
	}
	if len(out.FailedRooms) != 1 || out.FailedRooms[0] != "hallway" {
		t.Errorf("failed rooms = %v, want [hallway]", out.FailedRooms)
	}
	if len(out.Reports) != 1 || out.Reports[0].DeviceID != "light-kitchen" {
		t.Errorf("reports = %+v, want the kitchen success", out.Reports)
	}
	if !strings.Contains(out.Detail, "hallway") {
		t.Errorf("detail %q should name the failed room", out.Detail)
	}
}

func TestFanOutTotalFailure(t *testing.T) {
	f := newFixture(t, 10)
	f.kitchen.fail = device.NewError(device.ErrKindTimeout, "no response")
	f.hallway.fail = device.NewError(device.ErrKindTimeout, "no response")

	out := f.orch.HandleStructured(context.Background(), Request{UserID: "alice", Input: "light_on all"})

	if out.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", out.Status)
	}
	if out.Reason != string(device.ErrKindTimeout) {
		t.Errorf("reason = %s, want %s", out.Reason, device.ErrKindTimeout)
	}
	if len(out.FailedRooms) != 2 {
		t.Errorf("failed rooms = %v, want both", out.FailedRooms)
	}
}

func TestStatusQuery(t *testing.T) {
	f := newFixture(t, 10)

	out := f.orch.HandleText(context.Background(), Request{UserID: "alice", Input: "статус"})

	if out.Status != StatusSuccess {
		t.Fatalf("status = %s (%s)", out.Status, out.Reason)
	}
	if out.Intent == nil || out.Intent.Target != intent.TargetStatus {
		t.Fatalf("intent = %+v, want status target", out.Intent)
	}
	if len(out.Reports) != 2 {
		t.Errorf("reports = %d, want one per registered device", len(out.Reports))
	}
}

func TestHealthQuery(t *testing.T) {
	f := newFixture(t, 10)

	out := f.orch.HandleStructured(context.Background(), Request{UserID: "alice", Input: "health"})

	if out.Status != StatusSuccess {
		t.Fatalf("status = %s (%s)", out.Status, out.Reason)
	}
	if len(out.Health) != 2 {
		t.Errorf("health entries = %d, want 2", len(out.Health))
	}
}

func TestHooksFireOnTerminalOutcome(t *testing.T) {
	f := newFixture(t, 10)

	f.orch.HandleText(context.Background(), Request{UserID: "alice", Input: "включи свет в кухне"})
	f.orch.HandleText(context.Background(), Request{UserID: "mallory", Input: "включи свет в кухне"})

	f.hooks.mu.Lock()
	defer f.hooks.mu.Unlock()
	if len(f.hooks.recorded) != 2 {
		t.Fatalf("recorded outcomes = %d, want 2", len(f.hooks.recorded))
	}
	if len(f.hooks.notified) != 2 {
		t.Errorf("notified outcomes = %d, want 2", len(f.hooks.notified))
	}
	if len(f.hooks.metrics) != 2 || f.hooks.metrics[0] != StatusSuccess || f.hooks.metrics[1] != StatusRejected {
		t.Errorf("metric statuses = %v, want [success rejected]", f.hooks.metrics)
	}
	for _, o := range f.hooks.recorded {
		if o.LatencyMS < 0 {
			t.Errorf("latency = %d, want >= 0", o.LatencyMS)
		}
		if o.ID == "" {
			t.Error("recorded outcome missing ID")
		}
	}
}

func TestHandleIntentNil(t *testing.T) {
	f := newFixture(t, 10)

	out := f.orch.HandleIntent(context.Background(), Request{UserID: "alice"}, nil)

	if out.Status != StatusRejected {
		t.Fatalf("status = %s, want rejected", out.Status)
	}
	if out.Reason != string(intent.ErrKindUnknown) {
		t.Errorf("reason = %s, want %s", out.Reason, intent.ErrKindUnknown)
	}
	if out.Source != SourceDirect {
		t.Errorf("source = %s, want %s", out.Source, SourceDirect)
	}
}

func TestHandleIntentDirect(t *testing.T) {
	f := newFixture(t, 10)

	in := intent.New(device.KindLight, device.ActionSetBrightness, "kitchen",
		device.Params{"brightness": 40}, "", 1)
	out := f.orch.HandleIntent(context.Background(), Request{UserID: "bob"}, in)

	if out.Status != StatusSuccess {
		t.Fatalf("status = %s (%s: %s)", out.Status, out.Reason, out.Detail)
	}
	if out.Source != SourceDirect {
		t.Errorf("source = %s, want direct", out.Source)
	}
	if f.kitchen.calls.Load() != 1 {
		t.Errorf("kitchen calls = %d, want 1", f.kitchen.calls.Load())
	}
}
