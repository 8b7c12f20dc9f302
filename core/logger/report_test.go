package logger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries() []*LogEntry {
	var out []*LogEntry
	log := &Logger{Record: func(le *LogEntry) error {
		out = append(out, le)
		return nil
	}}

	s := log.NewSession()
	s.Record(&SessionStart{Interactive: true})
	s.Record(&Pipeline{Line: "cat f | grep x | wc -l", Stages: [][]string{{"cat", "f"}, {"grep", "x"}, {"wc", "-l"}}, Mode: "foreground"})
	s.Record(&Spawn{Stage: 0, Argv: []string{"cat", "f"}, Pid: 10})
	s.Record(&Exit{Stage: 0, Argv: []string{"cat", "f"}, Code: 1})
	s.Record(&Pipeline{Line: "sort < in > out &", Stages: [][]string{{"sort"}}, Mode: "background", Input: "in", Output: "out"})
	s.Record(&Error{Kind: "syntax", Message: "empty stage"})
	s.Record(&Error{Kind: "syntax", Message: "empty stage"})
	s.Record(&SessionEnd{Lines: 3, Reason: "eof"})
	out = append(out, &LogEntry{Type: "mystery"})
	return out
}

func TestReport(t *testing.T) {
	var report Report
	for _, le := range sampleEntries() {
		report.Update(le)
	}

	assert.Equal(t, 9, report.LogEntries)
	assert.Equal(t, 1, report.InvalidEntries.Get("mystery"))
	assert.Equal(t, 1, report.Sessions.Started)
	assert.Equal(t, 1, report.Sessions.Interactive)
	assert.Equal(t, 1, report.Sessions.EndReasons.Get("eof"))
	assert.Equal(t, 2, report.Pipelines.Count)
	assert.Equal(t, 1, report.Pipelines.Lengths.Get("3"))
	assert.Equal(t, 1, report.Pipelines.Modes.Get("background"))
	assert.Equal(t, 1, report.Pipelines.Redirected)
	assert.Equal(t, 1, report.Pipelines.CommandNames.Get("sort"))
	assert.Equal(t, 1, report.Spawn.Count)
	assert.Equal(t, 1, report.Exit.Statuses.Get("exit 1"))
	assert.Equal(t, 2, report.Error.Kinds.Get("syntax"))

	_, err := json.Marshal(&report)
	assert.NoError(t, err)
}

func TestFailureReport(t *testing.T) {
	report := NewFailureReport()
	for _, le := range sampleEntries() {
		report.Update(le)
	}

	assert.Equal(t, 2, report.Errors.Get("syntax", "empty stage"))
	assert.Equal(t, 1, report.Failures.Get("cat", "exit 1"))
}

func TestSessionReport(t *testing.T) {
	var report SessionReport
	entries := sampleEntries()
	for _, le := range entries {
		report.Update(le)
	}

	raw, err := json.Marshal(&report)
	require.NoError(t, err)

	var sessions map[string]Session
	require.NoError(t, json.Unmarshal(raw, &sessions))
	require.Len(t, sessions, 1)

	session := sessions[entries[0].SessionID]
	assert.True(t, session.Interactive)
	assert.Equal(t, []string{"cat f | grep x | wc -l", "sort < in > out &"}, session.Lines)
	assert.Equal(t, 2, session.Errors)
	assert.Equal(t, "eof", session.EndReason)
}

func TestPathCounter(t *testing.T) {
	ctr := NewPathCounter("a", "b")
	ctr.Increment("x", "y")
	ctr.Increment("x", "y")
	ctr.Increment("x", "z")

	assert.Panics(t, func() { ctr.Increment("x") })

	raw, err := json.Marshal(ctr)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"count": 2, "event": {"a": "x", "b": "y"}},
		{"count": 1, "event": {"a": "x", "b": "z"}}
	]`, string(raw))
}
