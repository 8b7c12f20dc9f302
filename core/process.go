package core

import (
	"sync"

	"github.com/josephlewis42/pipesh/core/vos"
)

// ProcessHandle identifies one spawned stage. Its status can be collected
// exactly once, either by a blocking Wait or by the reaper.
type ProcessHandle struct {
	// Stage is the zero based index of the stage the process runs.
	Stage int
	Argv  []string

	proc vos.Process

	mu sync.Mutex
	// claimed is set once a collector has started waiting.
	claimed   bool
	collected bool
	status    vos.ExitStatus
	err       error
}

func newProcessHandle(stage int, argv []string, proc vos.Process) *ProcessHandle {
	return &ProcessHandle{Stage: stage, Argv: argv, proc: proc}
}

// newFailedHandle records a stage that never became a process. It is born
// collected with the status a shell reports for the failure.
func newFailedHandle(stage int, argv []string, status vos.ExitStatus, err error) *ProcessHandle {
	return &ProcessHandle{
		Stage:     stage,
		Argv:      argv,
		claimed:   true,
		collected: true,
		status:    status,
		err:       err,
	}
}

// Pid returns the process id, or 0 if the stage was never spawned.
func (h *ProcessHandle) Pid() int {
	if h.proc == nil {
		return 0
	}
	return h.proc.Pid()
}

// Spawned is false for stages whose program failed to load.
func (h *ProcessHandle) Spawned() bool {
	return h.proc != nil
}

// Wait blocks until the process exits and collects its status. A handle
// that was already collected returns ErrAlreadyCollected.
func (h *ProcessHandle) Wait() (vos.ExitStatus, error) {
	h.mu.Lock()
	if h.claimed {
		status := h.status
		h.mu.Unlock()
		return status, ErrAlreadyCollected
	}
	h.claimed = true
	h.mu.Unlock()

	status, err := h.proc.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.collected = true
	h.status = status
	h.err = err
	return status, err
}

// tryCollect collects the status without blocking. It reports whether the
// handle is collected after the call.
func (h *ProcessHandle) tryCollect() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.claimed {
		return h.collected
	}

	status, done, err := h.proc.TryWait()
	if err != nil {
		// The child is gone from our process table, nothing more to wait on.
		h.claimed, h.collected = true, true
		h.err = err
		return true
	}
	if !done {
		return false
	}

	h.claimed, h.collected = true, true
	h.status = status
	return true
}

// Collected reports whether the exit status has been collected.
func (h *ProcessHandle) Collected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.collected
}

// Status returns the collected status and any collection error. The status
// is the zero value until Collected is true.
func (h *ProcessHandle) Status() (vos.ExitStatus, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, h.err
}
