package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	for decoder.More() {
		var logEntry LogEntry
		if err := decoder.Decode(&logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// NewFailureReport creates an empty FailureReport.
func NewFailureReport() *FailureReport {
	return &FailureReport{
		Errors:   NewPathCounter("kind", "message"),
		Failures: NewPathCounter("command", "status"),
	}
}

// FailureReport pulls events that describe something going wrong.
type FailureReport struct {
	LogEntries int `json:"log_entries"`

	Errors   *PathCounter `json:"errors"`
	Failures *PathCounter `json:"failed_commands"`
}

func (r *FailureReport) Update(le *LogEntry) {
	r.LogEntries++

	switch event := le.GetEvent().(type) {
	case *Error:
		r.Errors.Increment(event.Kind, event.Message)
	case *Exit:
		if event.Code != 0 || event.Signal != "" {
			r.Failures.Increment(argv0(event.Argv), exitString(event))
		}
	}
}

// SessionReport groups the lines run by each session.
type SessionReport struct {
	// Map of sessionID -> session
	sessions map[string]*Session
}

// Session summarizes one interpreter session.
type Session struct {
	Interactive bool     `json:"interactive"`
	LogEntries  int      `json:"log_entries"`
	Lines       []string `json:"lines"`
	Errors      int      `json:"errors"`
	EndReason   string   `json:"end_reason,omitempty"`
}

func (s *Session) Update(le *LogEntry) {
	s.LogEntries++

	switch event := le.GetEvent().(type) {
	case *SessionStart:
		s.Interactive = event.Interactive
	case *Pipeline:
		s.Lines = append(s.Lines, event.Line)
	case *Error:
		s.Errors++
	case *SessionEnd:
		s.EndReason = event.Reason
	}
}

func (r *SessionReport) init() {
	if r.sessions == nil {
		r.sessions = make(map[string]*Session)
	}
}

// MarshalJSON implements custom JSON marshaler.
func (r *SessionReport) MarshalJSON() ([]byte, error) {
	r.init()

	return json.Marshal(r.sessions)
}

func (r *SessionReport) Update(le *LogEntry) {
	r.init()

	if le.SessionID == "" {
		return
	}
	session, ok := r.sessions[le.SessionID]
	if !ok {
		session = &Session{}
		r.sessions[le.SessionID] = session
	}

	session.Update(le)
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	Sessions  SessionsReport  `json:"session_report"`
	Pipelines PipelinesReport `json:"pipeline_report"`
	Spawn     SpawnReport     `json:"spawn_report"`
	Exit      ExitReport      `json:"exit_report"`
	Error     ErrorReport     `json:"error_report"`
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++

	switch event := le.GetEvent().(type) {
	case *SessionStart:
		r.Sessions.start(event)
	case *SessionEnd:
		r.Sessions.end(event)
	case *Pipeline:
		r.Pipelines.update(event)
	case *Spawn:
		r.Spawn.update(event)
	case *Exit:
		r.Exit.update(event)
	case *Error:
		r.Error.update(event)
	default:
		r.InvalidEntries.Increment(le.Type)
	}
}

type SessionsReport struct {
	Started     int        `json:"started"`
	Interactive int        `json:"interactive"`
	EndReasons  StrCounter `json:"end_reasons"`
}

func (r *SessionsReport) start(e *SessionStart) {
	r.Started++
	if e.Interactive {
		r.Interactive++
	}
}

func (r *SessionsReport) end(e *SessionEnd) {
	r.EndReasons.Increment(e.Reason)
}

type PipelinesReport struct {
	Count int `json:"count"`
	// Number of pipelines by stage count.
	Lengths StrCounter `json:"lengths"`
	// Number of pipelines by execution mode.
	Modes        StrCounter `json:"modes"`
	Redirected   int        `json:"redirected"`
	CommandNames StrCounter `json:"command_names"`
}

func (r *PipelinesReport) update(p *Pipeline) {
	r.Count++
	r.Lengths.Increment(strconv.Itoa(len(p.Stages)))
	r.Modes.Increment(p.Mode)
	if p.Input != "" || p.Output != "" {
		r.Redirected++
	}
	for _, stage := range p.Stages {
		r.CommandNames.Increment(argv0(stage))
	}
}

type SpawnReport struct {
	Count        int        `json:"count"`
	CommandNames StrCounter `json:"command_names"`
}

func (r *SpawnReport) update(s *Spawn) {
	r.Count++
	r.CommandNames.Increment(argv0(s.Argv))
}

type ExitReport struct {
	Statuses StrCounter `json:"statuses"`
}

func (r *ExitReport) update(e *Exit) {
	r.Statuses.Increment(exitString(e))
}

type ErrorReport struct {
	Kinds StrCounter `json:"kinds"`
}

func (r *ErrorReport) update(e *Error) {
	r.Kinds.Increment(e.Kind)
}

func argv0(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	return argv[0]
}

func exitString(e *Exit) string {
	if e.Signal != "" {
		return "signal " + e.Signal
	}
	return fmt.Sprintf("exit %d", e.Code)
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// MarshalJSON implements custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

// NewPathCounter creates a counter keyed on the named columns.
func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts the number of tuples seen.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// Get returns the count for the tuple.
func (ctr *PathCounter) Get(vals ...string) int {
	return ctr.internal[toKey(vals...)]
}

// MarshalJSON implements custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	out := []Count{}
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
