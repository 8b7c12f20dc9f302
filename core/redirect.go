package core

import (
	"os"

	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/josephlewis42/pipesh/core/vos"
)

// RedirectPerm is the permission new output files are created with, before
// the umask is applied.
const RedirectPerm = 0666

// RedirectDescriptor is an opened redirect target. The orchestrator owns it
// until the stage using it has been spawned.
type RedirectDescriptor struct {
	shell.Redirect
	File *os.File

	opsys vos.OS
}

// Close releases the parent's copy of the descriptor. It is safe to call on
// a nil descriptor and more than once.
func (r *RedirectDescriptor) Close() error {
	if r == nil || r.File == nil {
		return nil
	}
	err := r.opsys.Close(r.File)
	r.File = nil
	return err
}

// OpenRedirect opens the target of redirect with the mode's flags.
func OpenRedirect(opsys vos.OS, redirect *shell.Redirect) (*RedirectDescriptor, error) {
	fd, err := opsys.OpenFile(redirect.Path, redirect.Mode.Flags(), RedirectPerm)
	if err != nil {
		return nil, &FileOpenError{Path: redirect.Path, Err: err}
	}
	return &RedirectDescriptor{Redirect: *redirect, File: fd, opsys: opsys}, nil
}
