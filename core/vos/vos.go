// Package vos is the narrow operating system interface the orchestrator
// spawns pipelines through.
package vos

import (
	"io/fs"
	"os"
	"strconv"
)

// ExitStatus is the collected termination state of a process.
type ExitStatus struct {
	// Code is the exit code, or 128 plus the signal number if the process
	// was killed by a signal.
	Code int `json:"code"`
	// Signal names the terminating signal, if any.
	Signal string `json:"signal,omitempty"`
}

// Success is true if the process exited with status zero.
func (e ExitStatus) Success() bool {
	return e.Code == 0 && e.Signal == ""
}

func (e ExitStatus) String() string {
	if e.Signal != "" {
		return "signal: " + e.Signal
	}
	return "exit status " + strconv.Itoa(e.Code)
}

// Process is a spawned child.
type Process interface {
	// Pid returns the OS process id.
	Pid() int
	// Wait blocks until the process exits and collects its status.
	Wait() (ExitStatus, error)
	// TryWait collects the status if the process already exited; done is
	// false if it is still running.
	TryWait() (status ExitStatus, done bool, err error)
}

// OS provides the primitives a pipeline is built from.
type OS interface {
	// Pipe allocates a pipe. Both ends are close-on-exec.
	Pipe() (r *os.File, w *os.File, err error)
	// OpenFile opens a redirect target.
	OpenFile(name string, flag int, perm fs.FileMode) (*os.File, error)
	// LookPath resolves a program name to an executable path.
	LookPath(file string) (string, error)
	// StartProcess spawns path with argv. files become the child's
	// descriptors 0, 1 and 2; no other descriptor is inherited.
	StartProcess(path string, argv []string, files []*os.File) (Process, error)
	// Close releases a descriptor returned by Pipe or OpenFile.
	Close(f *os.File) error
}
