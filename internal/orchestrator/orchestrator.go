package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/jarvis-core/internal/auth"
	"github.com/nerrad567/jarvis-core/internal/device"
	"github.com/nerrad567/jarvis-core/internal/intent"
	"github.com/nerrad567/jarvis-core/internal/ratelimit"
)

// recordTimeout bounds how long a terminal outcome waits on the audit
// recorder before the orchestrator gives up on persisting it.
const recordTimeout = 3 * time.Second

// Orchestrator wires the parser, gate, limiter and registry into a
// single command pipeline.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Orchestrator struct {
	parser   *intent.Parser
	gate     *auth.Gate
	limiter  *ratelimit.Limiter
	registry *device.Registry

	recorder  Recorder
	telemetry Telemetry
	notifier  Notifier
	logger    Logger

	now func() time.Time
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// New creates an orchestrator over the given pipeline stages.
func New(parser *intent.Parser, gate *auth.Gate, limiter *ratelimit.Limiter, registry *device.Registry) *Orchestrator {
	return &Orchestrator{
		parser:   parser,
		gate:     gate,
		limiter:  limiter,
		registry: registry,
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetRecorder installs the audit hook. Pass nil to disable.
func (o *Orchestrator) SetRecorder(r Recorder) { o.recorder = r }

// SetTelemetry installs the metrics hook. Pass nil to disable.
func (o *Orchestrator) SetTelemetry(t Telemetry) { o.telemetry = t }

// SetNotifier installs the broadcast hook. Pass nil to disable.
func (o *Orchestrator) SetNotifier(n Notifier) { o.notifier = n }

// SetLogger sets the logger for pipeline events.
func (o *Orchestrator) SetLogger(l Logger) {
	if l != nil {
		o.logger = l
	}
}

// HandleText runs a free-text command through the pipeline.
func (o *Orchestrator) HandleText(ctx context.Context, req Request) *Outcome {
	if req.Source == "" {
		req.Source = SourceText
	}
	if req.Confidence > 0 && req.Confidence < o.parser.MinConfidence() {
		out := o.begin(req)
		return o.finish(ctx, o.reject(out, string(intent.ErrKindLowConfidence),
			fmt.Sprintf("transcription confidence %.2f below threshold", req.Confidence)))
	}
	return o.handle(ctx, req, o.parser.Parse)
}

// HandleStructured runs a structured command line through the pipeline.
func (o *Orchestrator) HandleStructured(ctx context.Context, req Request) *Outcome {
	if req.Source == "" {
		req.Source = SourceStructured
	}
	return o.handle(ctx, req, intent.ParseStructured)
}

// HandleIntent runs a pre-built intent through the pipeline, skipping
// the parse stage. Used by callers that address devices directly.
func (o *Orchestrator) HandleIntent(ctx context.Context, req Request, in *intent.Intent) *Outcome {
	if req.Source == "" {
		req.Source = SourceDirect
	}
	out := o.begin(req)
	if in == nil {
		return o.finish(ctx, o.reject(out, string(intent.ErrKindUnknown), "no intent"))
	}
	out.Intent = in
	out.State = StateParsed
	return o.run(ctx, out, req.Token)
}

// handle is the shared parse-then-run path for both input forms.
func (o *Orchestrator) handle(ctx context.Context, req Request, parse func(string) (*intent.Intent, error)) *Outcome {
	out := o.begin(req)

	in, err := parse(req.Input)
	if err != nil {
		return o.finish(ctx, o.rejectParse(out, err))
	}
	out.Intent = in
	out.State = StateParsed

	return o.run(ctx, out, req.Token)
}

// run advances a parsed command through authorization, rate limiting,
// resolution and execution.
func (o *Orchestrator) run(ctx context.Context, out *Outcome, token string) *Outcome {
	session, err := o.gate.Authorize(out.UserID, token)
	if err != nil {
		return o.finish(ctx, o.rejectAuth(out, err))
	}
	out.SessionToken = session.Token
	out.State = StateAuthorized

	if err := o.limiter.Admit(out.UserID); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
			return o.finish(ctx, o.reject(out, ReasonRateLimited, "per-user command limit exceeded"))
		}
		return o.finish(ctx, o.reject(out, ReasonRateLimited, err.Error()))
	}
	out.State = StateRateChecked

	switch out.Intent.Target {
	case intent.TargetStatus:
		return o.finish(ctx, o.statusQuery(out))
	case intent.TargetHealth:
		return o.finish(ctx, o.healthQuery(out))
	}

	entries, err := o.registry.Resolve(out.Intent.Kind, out.Intent.Room)
	if err != nil {
		return o.finish(ctx, o.rejectResolve(out, err))
	}
	for _, e := range entries {
		out.Rooms = append(out.Rooms, e.Device().Room)
	}
	sort.Strings(out.Rooms)
	out.State = StateResolved

	out.State = StateExecuting
	o.execute(ctx, out, entries)
	return o.finish(ctx, out)
}

// execute fans the action out to every resolved device and aggregates
// the per-device results into the terminal outcome.
func (o *Orchestrator) execute(ctx context.Context, out *Outcome, entries []*device.Entry) {
	type result struct {
		room   string
		report *device.StatusReport
		err    error
	}

	results := make([]result, len(entries))
	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e *device.Entry) {
			defer wg.Done()
			report, err := o.registry.Execute(ctx, e, out.Intent.Action, out.Intent.Params)
			results[i] = result{room: e.Device().Room, report: report, err: err}
		}(i, e)
	}
	wg.Wait()

	var firstErr error
	for _, r := range results {
		if r.err != nil {
			out.FailedRooms = append(out.FailedRooms, r.room)
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		if r.report != nil {
			out.Reports = append(out.Reports, r.report)
		}
	}
	sort.Strings(out.FailedRooms)

	if firstErr == nil {
		out.State = StateCompleted
		out.Status = StatusSuccess
		return
	}

	out.State = StateFailed
	out.Status = StatusFailed
	if len(out.FailedRooms) < len(entries) {
		out.Reason = string(device.ErrKindPartial)
		out.Detail = fmt.Sprintf("failed in %v: %v", out.FailedRooms, firstErr)
		return
	}
	if devErr, ok := device.AsError(firstErr); ok {
		out.Reason = string(devErr.Kind)
		out.Detail = devErr.Detail
		return
	}
	out.Reason = string(device.ErrKindConnection)
	out.Detail = firstErr.Error()
}

// statusQuery answers a status intent from the registry cache.
func (o *Orchestrator) statusQuery(out *Outcome) *Outcome {
	out.Reports = o.registry.Snapshot()
	out.State = StateCompleted
	out.Status = StatusSuccess
	return out
}

// healthQuery answers a health intent from the registry.
func (o *Orchestrator) healthQuery(out *Outcome) *Outcome {
	out.Health = o.registry.HealthSnapshot()
	out.State = StateCompleted
	out.Status = StatusSuccess
	return out
}

// begin constructs the initial outcome for a request.
func (o *Orchestrator) begin(req Request) *Outcome {
	return &Outcome{
		ID:        uuid.NewString(),
		State:     StateReceived,
		UserID:    req.UserID,
		Source:    req.Source,
		Input:     req.Input,
		StartedAt: o.now(),
	}
}

// reject terminates an outcome before execution.
func (o *Orchestrator) reject(out *Outcome, reason, detail string) *Outcome {
	out.State = StateRejected
	out.Status = StatusRejected
	out.Reason = reason
	out.Detail = detail
	return out
}

func (o *Orchestrator) rejectParse(out *Outcome, err error) *Outcome {
	if pe, ok := intent.AsParseError(err); ok {
		return o.reject(out, string(pe.Kind), pe.Detail)
	}
	if errors.Is(err, device.ErrInvalidParams) {
		return o.reject(out, ReasonInvalidParams, err.Error())
	}
	return o.reject(out, string(intent.ErrKindUnknown), err.Error())
}

func (o *Orchestrator) rejectAuth(out *Outcome, err error) *Outcome {
	switch {
	case errors.Is(err, auth.ErrNotWhitelisted):
		return o.reject(out, ReasonNotWhitelisted, "user is not on the whitelist")
	case errors.Is(err, auth.ErrSessionExpired):
		return o.reject(out, ReasonSessionExpired, "session expired, re-authenticate")
	case errors.Is(err, auth.ErrTokenInvalid):
		return o.reject(out, ReasonTokenInvalid, "session token does not match")
	default:
		return o.reject(out, ReasonTokenInvalid, err.Error())
	}
}

func (o *Orchestrator) rejectResolve(out *Outcome, err error) *Outcome {
	switch {
	case errors.Is(err, device.ErrUnknownRoom):
		return o.reject(out, ReasonUnknownRoom, err.Error())
	case errors.Is(err, device.ErrUnknownKind):
		return o.reject(out, ReasonUnknownKind, err.Error())
	default:
		return o.reject(out, ReasonUnknownKind, err.Error())
	}
}

// finish stamps latency and fires the hooks. The outcome is terminal
// and immutable from this point on.
func (o *Orchestrator) finish(ctx context.Context, out *Outcome) *Outcome {
	out.LatencyMS = o.now().Sub(out.StartedAt).Milliseconds()

	o.logOutcome(out)

	if o.recorder != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		if err := o.recorder.RecordOutcome(rctx, out); err != nil {
			o.logger.Error("recording command outcome", "command_id", out.ID, "error", err)
		}
		cancel()
	}
	if o.telemetry != nil {
		var kind device.Kind
		var action device.Action
		if out.Intent != nil {
			kind = out.Intent.Kind
			action = out.Intent.Action
		}
		o.telemetry.WriteCommandMetric(out.UserID, kind, action, out.Status, time.Duration(out.LatencyMS)*time.Millisecond)
	}
	if o.notifier != nil {
		o.notifier.NotifyOutcome(out)
	}
	return out
}

func (o *Orchestrator) logOutcome(out *Outcome) {
	args := []any{
		"command_id", out.ID,
		"user_id", out.UserID,
		"source", out.Source,
		"status", out.Status,
		"latency_ms", out.LatencyMS,
	}
	if out.Intent != nil {
		args = append(args, "kind", out.Intent.Kind, "action", out.Intent.Action, "room", out.Intent.Room)
	}
	if out.Reason != "" {
		args = append(args, "reason", out.Reason, "detail", out.Detail)
	}

	switch out.Status {
	case StatusSuccess:
		o.logger.Info("command completed", args...)
	case StatusRejected:
		o.logger.Warn("command rejected", args...)
	case StatusFailed:
		o.logger.Error("command failed", args...)
	}
}
