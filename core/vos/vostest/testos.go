// Package vostest provides a recording vos.OS for tests.
package vostest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/spf13/afero"
)

// Pipe is a pipe handed out by OS.Pipe.
type Pipe struct {
	R *os.File
	W *os.File
}

// Spawn is a recorded StartProcess call.
type Spawn struct {
	Path    string
	Argv    []string
	Files   []*os.File
	Process *Process
}

// OS records pipes, opened files and spawned processes instead of running
// anything. Pipes are real so descriptor ownership can be checked.
type OS struct {
	// Fs decides whether OpenFile succeeds; New uses an in-memory filesystem.
	Fs afero.Fs
	// Missing lists program names LookPath reports as not found.
	Missing map[string]bool
	// SpawnErrors maps program names to the error StartProcess returns.
	SpawnErrors map[string]error
	// Statuses maps program names to the status their process exits with.
	Statuses map[string]vos.ExitStatus
	// PipeErr, if set, is returned by Pipe once PipeLimit pipes exist.
	PipeErr   error
	PipeLimit int
	// Hold keeps spawned processes running until Process.Exit is called.
	// Otherwise they exit immediately with their Statuses entry.
	Hold bool

	mu      sync.Mutex
	nextPid int
	Pipes   []Pipe
	Opened  []*os.File
	Spawns  []*Spawn
	closed  map[*os.File]int
	tmpDir  string
}

var _ vos.OS = (*OS)(nil)

// New creates a fake OS backed by an in-memory filesystem.
func New() *OS {
	return &OS{
		Fs:          afero.NewMemMapFs(),
		Missing:     make(map[string]bool),
		SpawnErrors: make(map[string]error),
		Statuses:    make(map[string]vos.ExitStatus),
		nextPid:     1000,
		closed:      make(map[*os.File]int),
	}
}

func (o *OS) Pipe() (*os.File, *os.File, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.PipeErr != nil && len(o.Pipes) >= o.PipeLimit {
		return nil, nil, o.PipeErr
	}
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	o.Pipes = append(o.Pipes, Pipe{R: r, W: w})
	return r, w, nil
}

// OpenFile checks name against Fs and returns a real temporary file standing
// in for it, so the orchestrator can own and close an *os.File.
func (o *OS) OpenFile(name string, flag int, perm fs.FileMode) (*os.File, error) {
	fd, err := o.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	fd.Close()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tmpDir == "" {
		dir, err := os.MkdirTemp("", "vostest")
		if err != nil {
			return nil, err
		}
		o.tmpDir = dir
	}
	f, err := os.CreateTemp(o.tmpDir, filepath.Base(name))
	if err != nil {
		return nil, err
	}
	o.Opened = append(o.Opened, f)
	return f, nil
}

func (o *OS) LookPath(file string) (string, error) {
	if o.Missing[file] {
		return "", vos.ErrNotFound
	}
	return filepath.Join("/bin", file), nil
}

func (o *OS) StartProcess(path string, argv []string, files []*os.File) (vos.Process, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	name := filepath.Base(path)
	if err := o.SpawnErrors[name]; err != nil {
		return nil, err
	}
	for i, f := range files {
		if o.closed[f] > 0 {
			return nil, fmt.Errorf("descriptor %d handed to %q is closed", i, name)
		}
	}

	o.nextPid++
	proc := &Process{pid: o.nextPid}
	if !o.Hold {
		proc.Exit(o.Statuses[name])
	}
	o.Spawns = append(o.Spawns, &Spawn{
		Path:    path,
		Argv:    append([]string(nil), argv...),
		Files:   append([]*os.File(nil), files...),
		Process: proc,
	})
	return proc, nil
}

// Close records that f was released and closes it.
func (o *OS) Close(f *os.File) error {
	o.mu.Lock()
	o.closed[f]++
	o.mu.Unlock()
	return f.Close()
}

// Closes returns how many times f was passed to Close.
func (o *OS) Closes(f *os.File) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed[f]
}

// OpenDescriptors returns every pipe end and opened file the caller hasn't
// closed.
func (o *OS) OpenDescriptors() []*os.File {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []*os.File
	for _, p := range o.Pipes {
		for _, f := range []*os.File{p.R, p.W} {
			if o.closed[f] == 0 {
				out = append(out, f)
			}
		}
	}
	for _, f := range o.Opened {
		if o.closed[f] == 0 {
			out = append(out, f)
		}
	}
	return out
}

// Cleanup closes everything and removes temporary files.
func (o *OS) Cleanup() {
	for _, f := range o.OpenDescriptors() {
		f.Close()
	}
	if o.tmpDir != "" {
		os.RemoveAll(o.tmpDir)
	}
}

// Process is a fake child. It is running until Exit is called.
type Process struct {
	pid int

	mu        sync.Mutex
	status    vos.ExitStatus
	exited    bool
	collected int
	done      chan struct{}
}

var _ vos.Process = (*Process)(nil)

func (p *Process) Pid() int {
	return p.pid
}

func (p *Process) init() {
	if p.done == nil {
		p.done = make(chan struct{})
	}
}

// Exit terminates the fake process with status.
func (p *Process) Exit(status vos.ExitStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.init()
	if p.exited {
		return
	}
	p.status = status
	p.exited = true
	close(p.done)
}

// Collected returns how many times the status was collected.
func (p *Process) Collected() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.collected
}

func (p *Process) Wait() (vos.ExitStatus, error) {
	p.mu.Lock()
	p.init()
	done := p.done
	p.mu.Unlock()

	<-done

	p.mu.Lock()
	defer p.mu.Unlock()
	p.collected++
	return p.status, nil
}

func (p *Process) TryWait() (vos.ExitStatus, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.exited {
		return vos.ExitStatus{}, false, nil
	}
	p.collected++
	return p.status, true, nil
}
