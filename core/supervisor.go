package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/josephlewis42/pipesh/core/vos"
)

// ErrDetached is returned when waiting on a job handed to the reaper.
var ErrDetached = errors.New("job was detached to the background")

// JobState is the lifecycle position of a pipeline.
type JobState int

const (
	Compiled JobState = iota
	Spawning
	Running
	// Collected jobs had every status collected by the caller.
	Collected
	// Detached jobs are collected asynchronously by the reaper.
	Detached
)

func (s JobState) String() string {
	switch s {
	case Compiled:
		return "compiled"
	case Spawning:
		return "spawning"
	case Running:
		return "running"
	case Collected:
		return "collected"
	case Detached:
		return "detached"
	default:
		return fmt.Sprintf("JobState(%d)", int(s))
	}
}

// Job is one launched pipeline.
type Job struct {
	Spec *shell.PipelineSpec

	mu      sync.Mutex
	state   JobState
	handles []*ProcessHandle
	errs    []error
}

func newJob(spec *shell.PipelineSpec) *Job {
	return &Job{Spec: spec, state: Compiled}
}

func (j *Job) setState(state JobState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = state
}

func (j *Job) addHandle(h *ProcessHandle) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.handles = append(j.handles, h)
}

func (j *Job) addError(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errs = append(j.errs, err)
}

// State returns the job's lifecycle state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Handles returns one handle per stage that was attempted, in stage order.
func (j *Job) Handles() []*ProcessHandle {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*ProcessHandle(nil), j.handles...)
}

// Errors returns the errors recovered from while launching.
func (j *Job) Errors() []error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]error(nil), j.errs...)
}

// Wait collects the status of every stage, in stage order, and marks the
// job Collected.
func (j *Job) Wait() ([]vos.ExitStatus, error) {
	j.mu.Lock()
	switch j.state {
	case Detached:
		j.mu.Unlock()
		return nil, ErrDetached
	case Collected:
		j.mu.Unlock()
		return nil, ErrAlreadyCollected
	}
	handles := append([]*ProcessHandle(nil), j.handles...)
	j.mu.Unlock()

	statuses := make([]vos.ExitStatus, len(handles))
	var firstErr error
	for i, h := range handles {
		if !h.Spawned() {
			statuses[i], _ = h.Status()
			continue
		}
		status, err := h.Wait()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		statuses[i] = status
	}

	j.setState(Collected)
	return statuses, firstErr
}

// Detach hands the job's processes to reaper and returns immediately.
func (j *Job) Detach(reaper *Reaper) {
	j.mu.Lock()
	if j.state == Collected || j.state == Detached {
		j.mu.Unlock()
		return
	}
	j.state = Detached
	handles := append([]*ProcessHandle(nil), j.handles...)
	j.mu.Unlock()

	reaper.Track(handles...)
}

// Done reports whether every stage's status has been collected.
func (j *Job) Done() bool {
	for _, h := range j.Handles() {
		if !h.Collected() {
			return false
		}
	}
	return true
}

// Statuses returns the statuses collected so far, in stage order.
func (j *Job) Statuses() []vos.ExitStatus {
	handles := j.Handles()
	out := make([]vos.ExitStatus, len(handles))
	for i, h := range handles {
		out[i], _ = h.Status()
	}
	return out
}

// ExitStatus is the status of the last stage, the pipeline's status.
func (j *Job) ExitStatus() vos.ExitStatus {
	statuses := j.Statuses()
	if len(statuses) == 0 {
		return vos.ExitStatus{}
	}
	return statuses[len(statuses)-1]
}
