// Package shell compiles a single line of pipeline text into a PipelineSpec.
//
// The recognized grammar is deliberately small:
//
//	stage ("|" stage)*
//
// The first stage may carry an input redirect ("<" path), the last stage may
// carry an output redirect (">" path) and a trailing background marker ("&").
// Markers are detected anywhere in the line but only resolved against their
// fixed stage. Tokens are taken literally: there is no quoting, escaping,
// globbing or variable expansion.
package shell

import (
	"errors"
	"strings"
)

// ErrEndOfSession is returned by Compile for an empty or whitespace-only line.
var ErrEndOfSession = errors.New("end of session")

// Compile turns one line of input into a validated PipelineSpec.
func Compile(line string) (*PipelineSpec, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, ErrEndOfSession
	}

	directives := ScanDirectives(line)

	stages, err := Segment(line)
	if err != nil {
		return nil, err
	}

	spec := &PipelineSpec{
		Line: line,
		Mode: Foreground,
	}

	last := len(stages) - 1
	if directives.Background {
		spec.Mode = Background
		stages[last] = StripBackground(stages[last])
	}

	// Output is resolved before input so a sole stage can carry both.
	if directives.Output {
		cleaned, path, found := ExtractRedirect(stages[last], OutputMarker)
		if found {
			stages[last] = cleaned
			spec.Output = &Redirect{Path: path, Mode: CreateTruncWrite}
		}
	}

	if directives.Input {
		cleaned, path, found := ExtractRedirect(stages[0], InputMarker)
		if found {
			stages[0] = cleaned
			spec.Input = &Redirect{Path: path, Mode: ReadOnly}
		}
	}

	for i, stage := range stages {
		args := Tokenize(stage)
		if len(args) == 0 {
			return nil, &ParseError{Line: line, Stage: i, Reason: "stage has no program to run"}
		}
		spec.Stages = append(spec.Stages, CommandSpec{Args: args})
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}

	return spec, nil
}
