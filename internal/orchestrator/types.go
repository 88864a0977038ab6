package orchestrator

import (
	"context"
	"time"

	"github.com/nerrad567/jarvis-core/internal/device"
	"github.com/nerrad567/jarvis-core/internal/intent"
)

// State identifies where a command is in the pipeline.
type State string

// Pipeline states. Completed, Rejected and Failed are terminal.
const (
	StateReceived    State = "received"
	StateParsed      State = "parsed"
	StateAuthorized  State = "authorized"
	StateRateChecked State = "rate_checked"
	StateResolved    State = "resolved"
	StateExecuting   State = "executing"
	StateCompleted   State = "completed"
	StateRejected    State = "rejected"
	StateFailed      State = "failed"
)

// Status is the terminal classification of an outcome.
type Status string

// Terminal statuses.
const (
	// StatusSuccess means every resolved device executed the action.
	StatusSuccess Status = "success"

	// StatusRejected means the command was refused before any device
	// was touched (parse, auth, rate limit or resolution failure).
	StatusRejected Status = "rejected"

	// StatusFailed means execution was attempted and at least one
	// device did not complete the action.
	StatusFailed Status = "failed"
)

// Source identifies which input form produced a command.
type Source string

// Command sources.
const (
	SourceText       Source = "text"
	SourceStructured Source = "structured"
	SourceDirect     Source = "direct"
)

// Rejection reasons not covered by device.ErrorKind.
const (
	ReasonNotWhitelisted = "not_whitelisted"
	ReasonSessionExpired = "session_expired"
	ReasonTokenInvalid   = "token_invalid"
	ReasonRateLimited    = "rate_limited"
	ReasonUnknownRoom    = "unknown_room"
	ReasonUnknownKind    = "unknown_kind"
	ReasonInvalidParams  = "invalid_params"
)

// Request carries one command through the pipeline.
type Request struct {
	// UserID is the caller's identity, matched against the whitelist.
	UserID string

	// Token is the caller's opaque session token. Empty requests a new
	// session for whitelisted users.
	Token string

	// Input is the raw command text or structured command line.
	Input string

	// Confidence is the transcription confidence for voice-derived text,
	// in (0, 1]. Zero means typed text, which is never doubted.
	Confidence float64

	// Source records which entry point received the command.
	Source Source
}

// Outcome is the immutable result of one command. Once returned from
// the orchestrator it is never modified.
type Outcome struct {
	// ID uniquely identifies this command for audit correlation.
	ID string `json:"id"`

	State  State  `json:"state"`
	Status Status `json:"status"`

	UserID string `json:"user_id"`
	Source Source `json:"source"`
	Input  string `json:"input,omitempty"`

	// Intent is the parsed command, nil when parsing failed.
	Intent *intent.Intent `json:"intent,omitempty"`

	// Reason classifies rejections and failures. Values are either a
	// Reason* constant, an intent.ErrorKind or a device.ErrorKind.
	Reason string `json:"reason,omitempty"`

	// Detail is a human-readable elaboration of Reason.
	Detail string `json:"detail,omitempty"`

	// SessionToken is set when authorization issued or extended a
	// session. Callers must present it on subsequent requests.
	SessionToken string `json:"-"`

	// Rooms lists every room the command resolved to.
	Rooms []string `json:"rooms,omitempty"`

	// FailedRooms lists rooms whose execution failed. Non-empty only
	// for failed outcomes; a strict subset means partial success.
	FailedRooms []string `json:"failed_rooms,omitempty"`

	// Reports carries device status for completed device commands and
	// status queries.
	Reports []*device.StatusReport `json:"reports,omitempty"`

	// Health carries reachability data for health queries.
	Health []device.Health `json:"health,omitempty"`

	LatencyMS int64     `json:"latency_ms"`
	StartedAt time.Time `json:"started_at"`
}

// Recorder persists terminal outcomes for audit.
type Recorder interface {
	RecordOutcome(ctx context.Context, o *Outcome) error
}

// Telemetry receives command measurements after each terminal outcome.
type Telemetry interface {
	WriteCommandMetric(userID string, kind device.Kind, action device.Action, status Status, latency time.Duration)
}

// Notifier receives terminal outcomes for event broadcast.
type Notifier interface {
	NotifyOutcome(o *Outcome)
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
