package shell

import (
	"fmt"
	"os"
	"strings"
)

// ExecutionMode determines whether the caller waits for a pipeline.
type ExecutionMode int

const (
	// Foreground pipelines are waited on before the next prompt.
	Foreground ExecutionMode = iota
	// Background pipelines are detached and reaped asynchronously.
	Background
)

func (m ExecutionMode) String() string {
	switch m {
	case Foreground:
		return "foreground"
	case Background:
		return "background"
	default:
		return fmt.Sprintf("ExecutionMode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m ExecutionMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// RedirectMode is the way a redirect target gets opened.
type RedirectMode int

const (
	// ReadOnly opens an existing file for reading.
	ReadOnly RedirectMode = iota
	// CreateTruncWrite creates or truncates a file for writing.
	CreateTruncWrite
)

// Flags returns the os.OpenFile flags for the mode.
func (m RedirectMode) Flags() int {
	switch m {
	case CreateTruncWrite:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	default:
		return os.O_RDONLY
	}
}

func (m RedirectMode) String() string {
	switch m {
	case ReadOnly:
		return "read"
	case CreateTruncWrite:
		return "create-truncate-write"
	default:
		return fmt.Sprintf("RedirectMode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m RedirectMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Redirect replaces a standard stream of one stage with a file.
type Redirect struct {
	Path string       `json:"path"`
	Mode RedirectMode `json:"mode"`
}

// CommandSpec is a single program invocation. Args[0] is the program name.
type CommandSpec struct {
	Args []string `json:"args"`
}

// Name returns the program name or the empty string.
func (c CommandSpec) Name() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}

func (c CommandSpec) String() string {
	return strings.Join(c.Args, " ")
}

// PipelineSpec is a compiled pipeline, ready for orchestration.
type PipelineSpec struct {
	// Line is the trimmed source text.
	Line   string        `json:"line"`
	Stages []CommandSpec `json:"stages"`
	Mode   ExecutionMode `json:"mode"`

	// Input, if set, is attached to the first stage.
	Input *Redirect `json:"input,omitempty"`
	// Output, if set, is attached to the last stage.
	Output *Redirect `json:"output,omitempty"`
}

// Validate checks the structural invariants of the pipeline.
func (p *PipelineSpec) Validate() error {
	if p == nil || len(p.Stages) == 0 {
		return &ParseError{Stage: -1, Reason: "pipeline has no stages"}
	}
	for i, stage := range p.Stages {
		if len(stage.Args) == 0 {
			return &ParseError{Line: p.Line, Stage: i, Reason: "stage has no program to run"}
		}
	}
	if p.Input != nil && p.Input.Mode != ReadOnly {
		return &ParseError{Line: p.Line, Stage: 0, Reason: "input redirect must be read-only"}
	}
	if p.Output != nil && p.Output.Mode != CreateTruncWrite {
		return &ParseError{Line: p.Line, Stage: len(p.Stages) - 1, Reason: "output redirect must be writable"}
	}
	return nil
}

// Pipes returns the number of pipes needed to link the stages.
func (p *PipelineSpec) Pipes() int {
	if len(p.Stages) == 0 {
		return 0
	}
	return len(p.Stages) - 1
}
