package shell

import (
	"strings"
)

const (
	PipeDelimiter    = '|'
	BackgroundMarker = '&'
	InputMarker      = '<'
	OutputMarker     = '>'
)

// Directives records which markers appear anywhere in a raw line.
type Directives struct {
	Background bool
	Input      bool
	Output     bool
}

// ScanDirectives looks for the background and redirect markers. It must run
// on the raw line, before the markers are stripped from their stages.
func ScanDirectives(line string) Directives {
	return Directives{
		Background: strings.ContainsRune(line, BackgroundMarker),
		Input:      strings.ContainsRune(line, InputMarker),
		Output:     strings.ContainsRune(line, OutputMarker),
	}
}

// Segment splits a line into trimmed stage strings. A leading, trailing or
// doubled delimiter produces an empty stage, which is an error.
func Segment(line string) ([]string, error) {
	parts := strings.Split(line, string(PipeDelimiter))
	stages := make([]string, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, &ParseError{Line: line, Stage: i, Reason: "empty stage"}
		}
		stages = append(stages, part)
	}
	return stages, nil
}

// Tokenize splits a cleaned stage into literal whitespace delimited tokens.
func Tokenize(stage string) []string {
	return strings.Fields(stage)
}
