package shell

import (
	"errors"
	"fmt"
)

// ErrStructural is the category shared by every ParseError.
var ErrStructural = errors.New("syntax error")

// ParseError reports a structurally invalid pipeline, e.g. an empty stage.
// No process is ever spawned for a line that fails to parse.
type ParseError struct {
	Line string
	// Stage is the zero based stage index, or -1 for the whole line.
	Stage  int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Stage < 0 {
		return fmt.Sprintf("syntax error: %s", e.Reason)
	}
	return fmt.Sprintf("syntax error in stage %d: %s", e.Stage+1, e.Reason)
}

// Unwrap allows errors.Is(err, ErrStructural).
func (e *ParseError) Unwrap() error {
	return ErrStructural
}
