package vos

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrNotFound is the error resulting if a path search failed to find an executable file.
var ErrNotFound = exec.ErrNotFound

// HostOS spawns real processes on the host.
type HostOS struct {
	// Env is the environment of spawned processes, os.Environ() if nil.
	Env []string
	// Dir is the working directory of spawned processes, the current
	// directory if empty.
	Dir string
	// Path overrides $PATH for program lookup if non-empty.
	Path string
}

var _ OS = (*HostOS)(nil)

// Pipe allocates a blocking, close-on-exec pipe.
//
// The descriptors stay in blocking mode so they are never registered with
// the runtime poller; the shell only hands them to children and closes them.
func (h *HostOS) Pipe() (*os.File, *os.File, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, nil, os.NewSyscallError("pipe2", err)
	}
	return os.NewFile(uintptr(fds[0]), "|0"), os.NewFile(uintptr(fds[1]), "|1"), nil
}

// OpenFile opens a file close-on-exec.
func (h *HostOS) OpenFile(name string, flag int, perm fs.FileMode) (*os.File, error) {
	if h.Dir != "" && !filepath.IsAbs(name) {
		name = filepath.Join(h.Dir, name)
	}
	return os.OpenFile(name, flag, perm)
}

// Close closes f.
func (h *HostOS) Close(f *os.File) error {
	return f.Close()
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case err != nil:
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}

// LookPath searches for an executable named file in the directories named by
// the PATH environment variable. If file contains a slash, it is tried directly
// and the PATH is not consulted. The result may be an absolute path or a path
// relative to the current directory.
func (h *HostOS) LookPath(file string) (string, error) {
	if strings.Contains(file, "/") {
		candidate := file
		if h.Dir != "" && !filepath.IsAbs(file) {
			candidate = filepath.Join(h.Dir, file)
		}
		if err := findExecutable(candidate); err != nil {
			return "", err
		}
		return candidate, nil
	}

	path := h.Path
	if path == "" {
		path = os.Getenv("PATH")
	}

	// Remember a permission failure so a file that exists but can't be
	// executed is reported as such rather than as missing.
	var lastErr error = ErrNotFound
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		path := filepath.Join(dir, file)
		err := findExecutable(path)
		if err == nil {
			return path, nil
		}
		if errors.Is(err, fs.ErrPermission) {
			lastErr = err
		}
	}
	return "", lastErr
}

// StartProcess forks and execs path. Only files are inherited.
func (h *HostOS) StartProcess(path string, argv []string, files []*os.File) (Process, error) {
	env := h.Env
	if env == nil {
		env = os.Environ()
	}

	proc, err := os.StartProcess(path, argv, &os.ProcAttr{
		Dir:   h.Dir,
		Env:   env,
		Files: files,
	})
	if err != nil {
		return nil, err
	}
	return &hostProcess{proc: proc, pid: proc.Pid}, nil
}

type hostProcess struct {
	proc *os.Process
	// pid outlives proc.Release.
	pid int
}

func (p *hostProcess) Pid() int {
	return p.pid
}

func (p *hostProcess) Wait() (ExitStatus, error) {
	state, err := p.proc.Wait()
	if err != nil {
		return ExitStatus{}, err
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return ExitStatus{Code: state.ExitCode()}, nil
	}
	return toExitStatus(ws), nil
}

func (p *hostProcess) TryWait() (ExitStatus, bool, error) {
	var ws unix.WaitStatus
	for {
		pid, err := unix.Wait4(p.pid, &ws, unix.WNOHANG, nil)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return ExitStatus{}, false, os.NewSyscallError("wait4", err)
		case pid == 0:
			return ExitStatus{}, false, nil
		}
		break
	}

	// The status is gone from the kernel, drop the runtime's handle too.
	_ = p.proc.Release()
	return toExitStatus(ws), true, nil
}

type waitStatus interface {
	Signaled() bool
	Signal() syscall.Signal
	ExitStatus() int
}

func toExitStatus(ws waitStatus) ExitStatus {
	if ws.Signaled() {
		return ExitStatus{Code: 128 + int(ws.Signal()), Signal: ws.Signal().String()}
	}
	return ExitStatus{Code: ws.ExitStatus()}
}
