package logger

import "fmt"

// Event types, stored in LogEntry.Type.
const (
	TypeSessionStart = "session_start"
	TypePipeline     = "pipeline"
	TypeSpawn        = "spawn"
	TypeExit         = "exit"
	TypeError        = "error"
	TypeSessionEnd   = "session_end"
)

// LogEntry is one line of the event log. Exactly one event field is set.
type LogEntry struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	SessionID       string `json:"session_id,omitempty"`
	Type            string `json:"type"`

	SessionStart *SessionStart `json:"session_start,omitempty"`
	Pipeline     *Pipeline     `json:"pipeline,omitempty"`
	Spawn        *Spawn        `json:"spawn,omitempty"`
	Exit         *Exit         `json:"exit,omitempty"`
	Error        *Error        `json:"error,omitempty"`
	SessionEnd   *SessionEnd   `json:"session_end,omitempty"`
}

// Event is implemented by every event type.
type Event interface {
	eventType() string
	attach(le *LogEntry)
}

// GetEvent returns the event stored in the entry, or nil.
func (le *LogEntry) GetEvent() Event {
	switch {
	case le.SessionStart != nil:
		return le.SessionStart
	case le.Pipeline != nil:
		return le.Pipeline
	case le.Spawn != nil:
		return le.Spawn
	case le.Exit != nil:
		return le.Exit
	case le.Error != nil:
		return le.Error
	case le.SessionEnd != nil:
		return le.SessionEnd
	default:
		return nil
	}
}

// SessionStart is logged when the interpreter starts reading lines.
type SessionStart struct {
	Interactive bool   `json:"interactive"`
	ConfigDir   string `json:"config_dir,omitempty"`
}

func (*SessionStart) eventType() string {
	return TypeSessionStart
}

func (e *SessionStart) attach(le *LogEntry) {
	le.SessionStart = e
}

// Pipeline is logged for every line that compiled.
type Pipeline struct {
	Line   string     `json:"line"`
	Stages [][]string `json:"stages"`
	Mode   string     `json:"mode"`
	Input  string     `json:"input,omitempty"`
	Output string     `json:"output,omitempty"`
}

func (*Pipeline) eventType() string {
	return TypePipeline
}

func (e *Pipeline) attach(le *LogEntry) {
	le.Pipeline = e
}

// Spawn is logged for every stage that became a process.
type Spawn struct {
	Stage int      `json:"stage"`
	Argv  []string `json:"argv"`
	Pid   int      `json:"pid"`
}

func (*Spawn) eventType() string {
	return TypeSpawn
}

func (e *Spawn) attach(le *LogEntry) {
	le.Spawn = e
}

// Exit is logged when a foreground stage's status is collected.
type Exit struct {
	Stage  int      `json:"stage"`
	Argv   []string `json:"argv"`
	Code   int      `json:"code"`
	Signal string   `json:"signal,omitempty"`
}

func (*Exit) eventType() string {
	return TypeExit
}

func (e *Exit) attach(le *LogEntry) {
	le.Exit = e
}

// Error is logged for every diagnostic shown to the user.
type Error struct {
	// Kind is a short machine readable class such as "syntax" or "spawn".
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Line    string `json:"line,omitempty"`
}

func (*Error) eventType() string {
	return TypeError
}

func (e *Error) attach(le *LogEntry) {
	le.Error = e
}

// SessionEnd is logged when the interpreter stops.
type SessionEnd struct {
	Lines  int    `json:"lines"`
	Reason string `json:"reason"`
}

func (*SessionEnd) eventType() string {
	return TypeSessionEnd
}

func (e *SessionEnd) attach(le *LogEntry) {
	le.SessionEnd = e
}

func (le *LogEntry) String() string {
	return fmt.Sprintf("%d %s %s", le.TimestampMicros, le.SessionID, le.Type)
}
