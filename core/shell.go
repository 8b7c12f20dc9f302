package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"
	"github.com/josephlewis42/pipesh/core/config"
	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/josephlewis42/pipesh/core/vos"
	"golang.org/x/term"
)

// StatusSyntaxError is the status of a line that didn't compile.
const StatusSyntaxError = 2

// LineReader supplies the lines of a session. Readline returns io.EOF once
// input is exhausted.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// Shell reads lines, runs each as a pipeline and reports what happened.
type Shell struct {
	Orchestrator *Orchestrator
	Log          *logger.SessionLogger

	// Prompt is printed before each line; empty disables it.
	Prompt string
	// Out receives diagnostics.
	Out io.Writer
	// ConfigDir is where the configuration was loaded from, if anywhere.
	ConfigDir string

	errColor *color.Color
	lines    int
}

// NewShell creates a shell running pipelines on opsys with the settings in
// cfg. Diagnostics go to out.
func NewShell(cfg *config.Configuration, opsys vos.OS, out io.Writer, sessionLog *logger.SessionLogger) *Shell {
	s := &Shell{
		Orchestrator: NewOrchestrator(opsys),
		Log:          sessionLog,
		Prompt:       cfg.Prompt,
		Out:          out,
		errColor:     color.New(color.FgRed, color.Bold),
	}
	s.Orchestrator.StrictRedirects = cfg.StrictRedirects
	s.Orchestrator.AbortOnSpawnError = cfg.AbortOnSpawnError

	switch {
	case cfg.Color == config.ColorAlways:
		s.errColor.EnableColor()
	case cfg.Color == config.ColorAuto && isTerminal(out):
		s.errColor.EnableColor()
	default:
		s.errColor.DisableColor()
	}

	return s
}

func isTerminal(w interface{}) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// errorKind classifies an error for the event log.
func errorKind(err error) string {
	var (
		parseErr *shell.ParseError
		openErr  *FileOpenError
		spawnErr *SpawnError
		loadErr  *ProgramLoadError
	)
	switch {
	case errors.As(err, &parseErr):
		return "syntax"
	case errors.As(err, &openErr):
		return "redirect"
	case errors.As(err, &spawnErr):
		return "spawn"
	case errors.As(err, &loadErr):
		return "load"
	default:
		return "internal"
	}
}

// diagnose prints err and logs it.
func (s *Shell) diagnose(line string, err error) {
	s.errColor.Fprint(s.Out, "ERROR:")
	fmt.Fprintf(s.Out, " %v\n", err)

	s.record(&logger.Error{Kind: errorKind(err), Message: err.Error(), Line: line})
}

func (s *Shell) record(event logger.Event) {
	if s.Log == nil {
		return
	}
	if err := s.Log.Record(event); err != nil {
		log.Printf("Couldn't record %T event: %v", event, err)
	}
}

func pipelineEvent(spec *shell.PipelineSpec) *logger.Pipeline {
	event := &logger.Pipeline{
		Line: spec.Line,
		Mode: spec.Mode.String(),
	}
	for _, stage := range spec.Stages {
		event.Stages = append(event.Stages, stage.Args)
	}
	if spec.Input != nil {
		event.Input = spec.Input.Path
	}
	if spec.Output != nil {
		event.Output = spec.Output.Path
	}
	return event
}

// RunLine compiles and runs one line. It returns the status of the last
// stage, or zero for a background pipeline. ErrEndOfSession is returned for
// a blank line; every other failure is reported and folded into the status.
func (s *Shell) RunLine(line string) (vos.ExitStatus, error) {
	spec, err := shell.Compile(line)
	if errors.Is(err, shell.ErrEndOfSession) {
		return vos.ExitStatus{}, err
	}
	s.lines++
	if err != nil {
		s.diagnose(line, err)
		return vos.ExitStatus{Code: StatusSyntaxError}, nil
	}
	s.record(pipelineEvent(spec))

	s.Orchestrator.Report = func(err error) {
		s.diagnose(line, err)
	}
	job, err := s.Orchestrator.Launch(spec)
	if err != nil {
		s.diagnose(line, err)
		return vos.ExitStatus{Code: 1}, nil
	}

	for _, h := range job.Handles() {
		if h.Spawned() {
			s.record(&logger.Spawn{Stage: h.Stage, Argv: h.Argv, Pid: h.Pid()})
		}
	}

	if err := s.Orchestrator.Supervise(job); err != nil {
		s.diagnose(line, err)
	}
	if job.State() == Detached {
		return vos.ExitStatus{}, nil
	}

	for _, h := range job.Handles() {
		if !h.Spawned() {
			continue
		}
		status, _ := h.Status()
		s.record(&logger.Exit{Stage: h.Stage, Argv: h.Argv, Code: status.Code, Signal: status.Signal})
	}
	return job.ExitStatus(), nil
}

// catchInterrupts delivers SIGINT to a channel nobody acts on until stop is
// called. The signal is caught rather than ignored, which children would
// inherit.
func catchInterrupts() (stop func()) {
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range interrupts {
		}
	}()

	return func() {
		signal.Stop(interrupts)
		close(interrupts)
		<-done
	}
}

// Serve runs lines from r until input ends or a blank line is read.
//
// An interactive session survives SIGINT so Ctrl-C only ends the foreground
// pipeline.
func (s *Shell) Serve(r LineReader) error {
	_, interactive := r.(*readline.Instance)
	s.record(&logger.SessionStart{Interactive: interactive, ConfigDir: s.ConfigDir})

	if interactive {
		defer catchInterrupts()()
	}

	reason := "eof"
	defer func() {
		s.record(&logger.SessionEnd{Lines: s.lines, Reason: reason})
	}()

	for {
		line, err := r.Readline()

		switch {
		case err == io.EOF:
			if s.Prompt != "" {
				fmt.Fprintln(s.Out)
			}
			return nil // Input closed, quit.

		case err == readline.ErrInterrupt:
			continue // Ctrl-C discards the line.

		case err != nil:
			reason = "error"
			return err
		}

		if _, err := s.RunLine(line); errors.Is(err, shell.ErrEndOfSession) {
			reason = "blank line"
			return nil
		}
	}
}

// NewLineReader reads lines from stdin. A terminal gets line editing and
// history through readline, anything else is read a line at a time.
func (s *Shell) NewLineReader(stdin *os.File, historyPath string) (LineReader, error) {
	if !term.IsTerminal(int(stdin.Fd())) {
		return &bufferedReader{prompt: s.Prompt, out: s.Out, r: bufio.NewReader(stdin)}, nil
	}

	cfg := &readline.Config{
		Prompt:      s.Prompt,
		HistoryFile: historyPath,
		Stdin:       readline.NewCancelableStdin(stdin),
		Stdout:      s.Out,
		Stderr:      os.Stderr,
		FuncIsTerminal: func() bool {
			return true
		},
	}
	if err := cfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	return rl, nil
}

// bufferedReader reads lines from a pipe or file.
type bufferedReader struct {
	prompt string
	out    io.Writer
	r      *bufio.Reader
}

func (b *bufferedReader) Readline() (string, error) {
	if b.prompt != "" {
		fmt.Fprint(b.out, b.prompt)
	}

	line, err := b.r.ReadString('\n')
	switch {
	case err == io.EOF && line != "":
		// Final line without a newline.
		return line, nil
	case err != nil:
		return "", err
	}
	return strings.TrimSuffix(line, "\n"), nil
}

func (b *bufferedReader) Close() error {
	return nil
}
