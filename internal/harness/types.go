package harness

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/supercollider/internal/handler"
	"github.com/roach88/supercollider/internal/object"
)

// DomainTrace prefixes the trace digest.
// Version suffix enables future format migration.
const DomainTrace = "supercollider/trace/v1"

// TraceEvent is one line of a run's trace: either an executed pair or an
// object removed at the end of a frame.
type TraceEvent struct {
	Type     string `json:"type"` // "collision", "destroyed" or "expired"
	Frame    int64  `json:"frame"`
	Position int    `json:"position,omitempty"`
	Pair     string `json:"pair,omitempty"`
	A        string `json:"a,omitempty"`
	B        string `json:"b,omitempty"`
	Path     string `json:"path,omitempty"`
	Result   string `json:"result,omitempty"`
	Applied  bool   `json:"applied,omitempty"`
	Object   string `json:"object,omitempty"`

	// Handles and effect are kept for the trace store; they are not part
	// of the line format.
	AHandle object.Handle  `json:"-"`
	BHandle object.Handle  `json:"-"`
	Effect  handler.Effect `json:"-"`
}

// Trace event types.
const (
	EventCollision = "collision"
	EventDestroyed = "destroyed"
	EventExpired   = "expired"
)

// Line renders the event in the canonical trace format.
func (e TraceEvent) Line() string {
	switch e.Type {
	case EventCollision:
		return fmt.Sprintf("frame=%d pos=%d pair=%s a=%s b=%s path=%s result=%s applied=%t",
			e.Frame, e.Position, e.Pair, e.A, e.B, e.Path, e.Result, e.Applied)
	default:
		return fmt.Sprintf("frame=%d %s=%s", e.Frame, e.Type, e.Object)
	}
}

// FinalState is an object's state after the last frame.
type FinalState struct {
	Name  string  `json:"name"`
	Kind  string  `json:"kind"`
	Alive bool    `json:"alive"`
	Hull  float64 `json:"hull"`
}

// TeamScore is a team's accumulated score.
type TeamScore struct {
	Team  int     `json:"team"`
	Score float64 `json:"score"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass indicates every assertion held.
	Pass bool `json:"pass"`

	RunID   string `json:"run_id"`
	Workers int    `json:"workers"`

	// Trace contains executed pairs and removals in order.
	Trace []TraceEvent `json:"trace"`

	// Final lists every scenario object in declaration order. Objects
	// scheduled after the last frame are omitted.
	Final []FinalState `json:"final"`

	// Scores lists every team that appears in the scenario, ascending.
	Scores []TeamScore `json:"scores"`

	// Digest is the SHA-256 of the trace lines with domain separation.
	Digest string `json:"digest"`

	// WorkersRecord is the most workers busy at once during the run.
	WorkersRecord int `json:"workers_record"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Final:  []FinalState{},
		Scores: []TeamScore{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Lines renders the whole trace.
func (r *Result) Lines() []string {
	out := make([]string, len(r.Trace))
	for i, e := range r.Trace {
		out[i] = e.Line()
	}
	return out
}

// Digest hashes trace lines.
// Format: SHA256(domain + 0x00 + line + "\n" + line + "\n" ...)
func Digest(lines []string) string {
	h := sha256.New()
	h.Write([]byte(DomainTrace))
	h.Write([]byte{0x00})
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
