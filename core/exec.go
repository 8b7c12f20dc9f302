package core

import (
	"errors"
	"os"
	"syscall"

	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/josephlewis42/pipesh/core/vos"
)

// Orchestrator realizes compiled pipelines as OS processes connected by
// pipes.
type Orchestrator struct {
	OS vos.OS

	// Streams inherited by stages that aren't piped or redirected. The
	// process's own standard streams are used if nil.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// Report receives every error the orchestrator recovers from.
	Report func(error)

	// StrictRedirects aborts a pipeline whose redirect target can't be
	// opened instead of running it with the inherited stream.
	StrictRedirects bool
	// AbortOnSpawnError stops spawning the remaining stages once process
	// creation fails.
	AbortOnSpawnError bool

	// Reaper collects background pipelines, StartReaper() if nil.
	Reaper *Reaper
}

// NewOrchestrator creates an orchestrator on the host OS with inherited
// standard streams.
func NewOrchestrator(opsys vos.OS) *Orchestrator {
	return &Orchestrator{
		OS:     opsys,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// pipe is one inter-stage link. Ends are set to nil once the parent closed
// them.
type pipe struct {
	r *os.File
	w *os.File
}

func (p *pipe) closeRead(opsys vos.OS) {
	if p.r != nil {
		opsys.Close(p.r)
		p.r = nil
	}
}

func (p *pipe) closeWrite(opsys vos.OS) {
	if p.w != nil {
		opsys.Close(p.w)
		p.w = nil
	}
}

type pipes []pipe

func (ps pipes) closeAll(opsys vos.OS) {
	for i := range ps {
		ps[i].closeRead(opsys)
		ps[i].closeWrite(opsys)
	}
}

// allocatePipes creates all n pipes up front. On failure nothing stays open.
func (o *Orchestrator) allocatePipes(n int) (pipes, error) {
	out := make(pipes, 0, n)
	for i := 0; i < n; i++ {
		r, w, err := o.OS.Pipe()
		if err != nil {
			out.closeAll(o.OS)
			return nil, &SpawnError{Stage: -1, Err: err}
		}
		out = append(out, pipe{r: r, w: w})
	}
	return out, nil
}

func (o *Orchestrator) report(job *Job, err error) {
	job.addError(err)
	if o.Report != nil {
		o.Report(err)
	}
}

func orDefault(f, def *os.File) *os.File {
	if f == nil {
		return def
	}
	return f
}

// openRedirects opens the pipeline's redirect targets. In the default fail-soft
// mode a target that can't be opened is reported and left nil so the stage
// keeps its inherited stream.
func (o *Orchestrator) openRedirects(job *Job) (input, output *RedirectDescriptor, err error) {
	open := func(redirect *shell.Redirect) (*RedirectDescriptor, error) {
		if redirect == nil {
			return nil, nil
		}
		desc, err := OpenRedirect(o.OS, redirect)
		if err == nil {
			return desc, nil
		}
		if o.StrictRedirects {
			return nil, err
		}
		o.report(job, err)
		return nil, nil
	}

	if input, err = open(job.Spec.Input); err != nil {
		return nil, nil, err
	}
	if output, err = open(job.Spec.Output); err != nil {
		input.Close()
		return nil, nil, err
	}
	return input, output, nil
}

// Launch spawns every stage of spec and returns the running job without
// waiting for it.
//
// Stage i reads from pipe i-1 and writes to pipe i. The first stage reads
// from the input redirect and the last writes to the output redirect when
// those are present; otherwise they inherit the orchestrator's streams.
// Every pipe end and redirect descriptor is closed in the parent as soon as
// the stage it was handed to exists, so no reader waits on a write end the
// parent still holds.
func (o *Orchestrator) Launch(spec *shell.PipelineSpec) (*Job, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	job := newJob(spec)

	input, output, err := o.openRedirects(job)
	if err != nil {
		return nil, err
	}
	defer input.Close()
	defer output.Close()

	links, err := o.allocatePipes(spec.Pipes())
	if err != nil {
		return nil, err
	}
	defer links.closeAll(o.OS)

	job.setState(Spawning)

	stdin := orDefault(o.Stdin, os.Stdin)
	stdout := orDefault(o.Stdout, os.Stdout)
	stderr := orDefault(o.Stderr, os.Stderr)

	last := len(spec.Stages) - 1
	for i, stage := range spec.Stages {
		in, out := stdin, stdout
		switch {
		case i > 0:
			in = links[i-1].r
		case input != nil:
			in = input.File
		}
		switch {
		case i < last:
			out = links[i].w
		case output != nil:
			out = output.File
		}

		handle, err := o.spawn(i, stage, []*os.File{in, out, stderr})

		// Stage i now holds its own copies; drop the parent's.
		if i > 0 {
			links[i-1].closeRead(o.OS)
		}
		if i < last {
			links[i].closeWrite(o.OS)
		}
		if i == 0 {
			input.Close()
		}
		if i == last {
			output.Close()
		}

		if err != nil {
			o.report(job, err)

			var spawnErr *SpawnError
			if errors.As(err, &spawnErr) && o.AbortOnSpawnError {
				break
			}
			handle = failedHandle(i, stage, err)
		}
		job.addHandle(handle)
	}

	job.setState(Running)
	return job, nil
}

// Run launches spec and supervises it: foreground jobs are waited on,
// background jobs are handed to the reaper.
func (o *Orchestrator) Run(spec *shell.PipelineSpec) (*Job, error) {
	job, err := o.Launch(spec)
	if err != nil {
		return nil, err
	}
	return job, o.Supervise(job)
}

// Supervise waits for a foreground job or detaches a background one.
func (o *Orchestrator) Supervise(job *Job) error {
	if job.Spec.Mode == shell.Background {
		reaper := o.Reaper
		if reaper == nil {
			reaper = StartReaper()
		}
		job.Detach(reaper)
		return nil
	}

	_, err := job.Wait()
	return err
}

func (o *Orchestrator) spawn(i int, stage shell.CommandSpec, files []*os.File) (*ProcessHandle, error) {
	path, err := o.OS.LookPath(stage.Name())
	if err != nil {
		return nil, &ProgramLoadError{Stage: i, Argv: stage.Args, Err: err}
	}

	proc, err := o.OS.StartProcess(path, stage.Args, files)
	if err != nil {
		if isResourceError(err) {
			return nil, &SpawnError{Stage: i, Argv: stage.Args, Err: err}
		}
		return nil, &ProgramLoadError{Stage: i, Argv: stage.Args, Err: err}
	}

	return newProcessHandle(i, stage.Args, proc), nil
}

func failedHandle(i int, stage shell.CommandSpec, err error) *ProcessHandle {
	var loadErr *ProgramLoadError
	if errors.As(err, &loadErr) {
		return newFailedHandle(i, stage.Args, loadErr.Status(), err)
	}
	return newFailedHandle(i, stage.Args, vos.ExitStatus{Code: StatusNotExecutable}, err)
}

// isResourceError reports whether a failed fork/exec ran out of a system
// resource, as opposed to the program being unloadable.
func isResourceError(err error) bool {
	for _, errno := range []syscall.Errno{syscall.EAGAIN, syscall.ENOMEM, syscall.EMFILE, syscall.ENFILE} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
