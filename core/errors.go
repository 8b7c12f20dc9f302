package core

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/josephlewis42/pipesh/core/vos"
)

// ErrAlreadyCollected is returned when a process status is collected twice.
var ErrAlreadyCollected = errors.New("process status already collected")

const (
	// StatusNotFound is reported for a program that couldn't be found.
	StatusNotFound = 127
	// StatusNotExecutable is reported for a program that couldn't be run.
	StatusNotExecutable = 126
)

// FileOpenError is returned when a redirect target can't be opened.
type FileOpenError struct {
	Path string
	Err  error
}

func (e *FileOpenError) Error() string {
	return fmt.Sprintf("cannot open %q: %v", e.Path, unwrapPath(e.Err))
}

func (e *FileOpenError) Unwrap() error {
	return e.Err
}

// SpawnError is returned when process creation itself fails.
type SpawnError struct {
	// Stage is the zero based stage index, or -1 for pipe allocation.
	Stage int
	Argv  []string
	Err   error
}

func (e *SpawnError) Error() string {
	if e.Stage < 0 {
		return fmt.Sprintf("cannot create pipe: %v", e.Err)
	}
	return fmt.Sprintf("cannot spawn stage %d (%s): %v", e.Stage+1, argv0(e.Argv), e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ProgramLoadError is returned when a program can't be found or executed.
// It is confined to its stage.
type ProgramLoadError struct {
	Stage int
	Argv  []string
	Err   error
}

func (e *ProgramLoadError) Error() string {
	if errors.Is(e.Err, vos.ErrNotFound) {
		return fmt.Sprintf("%s: command not found", argv0(e.Argv))
	}
	return fmt.Sprintf("%s: %v", argv0(e.Argv), unwrapPath(e.Err))
}

func (e *ProgramLoadError) Unwrap() error {
	return e.Err
}

// Status is the exit status a shell reports for the failure.
func (e *ProgramLoadError) Status() vos.ExitStatus {
	if errors.Is(e.Err, vos.ErrNotFound) || errors.Is(e.Err, fs.ErrNotExist) {
		return vos.ExitStatus{Code: StatusNotFound}
	}
	return vos.ExitStatus{Code: StatusNotExecutable}
}

func argv0(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	return argv[0]
}

// unwrapPath strips the operation and path from a *fs.PathError, which the
// messages above already carry.
func unwrapPath(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}
