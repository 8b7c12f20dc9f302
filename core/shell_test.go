package core

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/josephlewis42/pipesh/core/config"
	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/josephlewis42/pipesh/core/vos/vostest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shellFixture struct {
	shell  *Shell
	fake   *vostest.OS
	out    bytes.Buffer
	events []*logger.LogEntry
}

func newShellFixture(t *testing.T, cfg *config.Configuration) *shellFixture {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}

	f := &shellFixture{fake: vostest.New()}
	t.Cleanup(f.fake.Cleanup)

	log := &logger.Logger{Record: func(le *logger.LogEntry) error {
		f.events = append(f.events, le)
		return nil
	}}
	f.shell = NewShell(cfg, f.fake, &f.out, log.NewSession())
	f.shell.Orchestrator.Reaper = NewReaper()
	return f
}

func (f *shellFixture) eventTypes() []string {
	var out []string
	for _, le := range f.events {
		out = append(out, le.Type)
	}
	return out
}

func TestShell_RunLine(t *testing.T) {
	f := newShellFixture(t, nil)
	f.fake.Statuses["wc"] = vos.ExitStatus{Code: 5}

	status, err := f.shell.RunLine("ls | wc")
	require.NoError(t, err)

	assert.Equal(t, 5, status.Code)
	assert.Empty(t, f.out.String())
	assert.Equal(t, []string{
		logger.TypePipeline,
		logger.TypeSpawn,
		logger.TypeSpawn,
		logger.TypeExit,
		logger.TypeExit,
	}, f.eventTypes())
	assert.Equal(t, [][]string{{"ls"}, {"wc"}}, f.events[0].Pipeline.Stages)
	assert.Equal(t, 5, f.events[4].Exit.Code)
}

func TestShell_RunLine_syntaxError(t *testing.T) {
	f := newShellFixture(t, nil)

	status, err := f.shell.RunLine("| ls")
	require.NoError(t, err)

	assert.Equal(t, StatusSyntaxError, status.Code)
	assert.Equal(t, "ERROR: syntax error in stage 1: empty stage\n", f.out.String())
	assert.Empty(t, f.fake.Spawns)
	require.Len(t, f.events, 1)
	assert.Equal(t, "syntax", f.events[0].Error.Kind)
	assert.Equal(t, "| ls", f.events[0].Error.Line)
}

func TestShell_RunLine_blank(t *testing.T) {
	f := newShellFixture(t, nil)

	_, err := f.shell.RunLine("   ")
	assert.Equal(t, shell.ErrEndOfSession, err)
	assert.Empty(t, f.events)
}

func TestShell_RunLine_missingProgram(t *testing.T) {
	f := newShellFixture(t, nil)
	f.fake.Missing["nope"] = true

	status, err := f.shell.RunLine("ls | nope")
	require.NoError(t, err)

	assert.Equal(t, StatusNotFound, status.Code)
	assert.Equal(t, "ERROR: nope: command not found\n", f.out.String())
	assert.Len(t, f.fake.Spawns, 1)
	assert.Contains(t, f.eventTypes(), logger.TypeError)
}

func TestShell_RunLine_strictRedirect(t *testing.T) {
	cfg := config.Default()
	cfg.StrictRedirects = true
	f := newShellFixture(t, cfg)

	status, err := f.shell.RunLine("cat < missing.txt")
	require.NoError(t, err)

	assert.Equal(t, 1, status.Code)
	assert.Contains(t, f.out.String(), `ERROR: cannot open "missing.txt"`)
	assert.Empty(t, f.fake.Spawns)
}

func TestShell_RunLine_background(t *testing.T) {
	f := newShellFixture(t, nil)
	f.fake.Hold = true

	status, err := f.shell.RunLine("sleep 5 &")
	require.NoError(t, err)

	assert.True(t, status.Success())
	assert.Equal(t, []string{logger.TypePipeline, logger.TypeSpawn}, f.eventTypes())
	assert.Equal(t, 1, f.shell.Orchestrator.Reaper.Pending())
}

func TestShell_color(t *testing.T) {
	cases := map[string]struct {
		color     string
		wantColor bool
	}{
		"always": {color: config.ColorAlways, wantColor: true},
		"never":  {color: config.ColorNever, wantColor: false},
		// A buffer isn't a terminal.
		"auto": {color: config.ColorAuto, wantColor: false},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			cfg := config.Default()
			cfg.Color = tc.color
			f := newShellFixture(t, cfg)

			f.shell.RunLine("|")
			assert.Equal(t, tc.wantColor, strings.Contains(f.out.String(), "\x1b["))
		})
	}
}

func newTestReader(prompt string, out *bytes.Buffer, input string) LineReader {
	return &bufferedReader{prompt: prompt, out: out, r: bufio.NewReader(strings.NewReader(input))}
}

func TestShell_Serve(t *testing.T) {
	cases := map[string]struct {
		input      string
		wantSpawns int
		wantLines  int
		wantReason string
	}{
		"eof": {
			input:      "ls\nls | wc\n",
			wantSpawns: 3,
			wantLines:  2,
			wantReason: "eof",
		},
		"no-trailing-newline": {
			input:      "ls\nwc",
			wantSpawns: 2,
			wantLines:  2,
			wantReason: "eof",
		},
		"blank-line": {
			input:      "ls\n\nls\n",
			wantSpawns: 1,
			wantLines:  1,
			wantReason: "blank line",
		},
		"errors-continue": {
			input:      "| ls\nls\n",
			wantSpawns: 1,
			wantLines:  2,
			wantReason: "eof",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			f := newShellFixture(t, nil)
			f.shell.Prompt = ""

			assert.NoError(t, f.shell.Serve(newTestReader("", &f.out, tc.input)))

			assert.Len(t, f.fake.Spawns, tc.wantSpawns)
			first, last := f.events[0], f.events[len(f.events)-1]
			assert.Equal(t, logger.TypeSessionStart, first.Type)
			assert.False(t, first.SessionStart.Interactive)
			require.Equal(t, logger.TypeSessionEnd, last.Type)
			assert.Equal(t, tc.wantLines, last.SessionEnd.Lines)
			assert.Equal(t, tc.wantReason, last.SessionEnd.Reason)
		})
	}
}

func TestShell_Serve_prompt(t *testing.T) {
	f := newShellFixture(t, nil)
	f.shell.Prompt = "$ "

	assert.NoError(t, f.shell.Serve(newTestReader(f.shell.Prompt, &f.out, "ls\n")))

	// One prompt per line read, and a newline once input ends.
	assert.Equal(t, "$ $ \n", f.out.String())
}

func TestShell_Serve_configDir(t *testing.T) {
	f := newShellFixture(t, nil)
	f.shell.Prompt = ""
	f.shell.ConfigDir = "/home/user/.pipesh"

	assert.NoError(t, f.shell.Serve(newTestReader("", &f.out, "ls\n")))

	require.NotEmpty(t, f.events)
	require.Equal(t, logger.TypeSessionStart, f.events[0].Type)
	assert.Equal(t, "/home/user/.pipesh", f.events[0].SessionStart.ConfigDir)
}

func TestCatchInterrupts_stop(t *testing.T) {
	for i := 0; i < 2; i++ {
		stopped := make(chan struct{})
		stop := catchInterrupts()
		go func() {
			stop()
			close(stopped)
		}()

		assert.Eventually(t, func() bool {
			select {
			case <-stopped:
				return true
			default:
				return false
			}
		}, time.Second, 5*time.Millisecond)
	}
}
