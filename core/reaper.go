package core

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	processReaper     *Reaper
	processReaperOnce sync.Once
)

// StartReaper installs the process-wide reaper on first use and returns it.
// It lives for the rest of the process.
func StartReaper() *Reaper {
	processReaperOnce.Do(func() {
		processReaper = NewReaper()
		processReaper.Start()
	})
	return processReaper
}

// Reaper collects the exit status of background processes as they exit so
// they don't linger as zombies.
//
// It only ever touches handles given to Track, so it can't steal the status
// of a foreground process the caller is waiting on.
type Reaper struct {
	mu      sync.Mutex
	tracked map[*ProcessHandle]struct{}

	kick      chan struct{}
	stop      chan struct{}
	signals   chan os.Signal
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewReaper creates a reaper that isn't listening for SIGCHLD yet.
func NewReaper() *Reaper {
	return &Reaper{
		tracked: make(map[*ProcessHandle]struct{}),
		kick:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		signals: make(chan os.Signal, 1),
	}
}

// Start subscribes to SIGCHLD and sweeps on every delivery.
func (r *Reaper) Start() {
	r.startOnce.Do(func() {
		signal.Notify(r.signals, unix.SIGCHLD)
		go r.run()
	})
}

// Stop unsubscribes from SIGCHLD and ends the sweeping goroutine.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		signal.Stop(r.signals)
		close(r.stop)
	})
}

func (r *Reaper) run() {
	for {
		select {
		case <-r.stop:
			return
		case <-r.signals:
		case <-r.kick:
		}
		r.Sweep()
	}
}

// Track hands handles to the reaper and triggers a sweep, which catches
// children that exited before they were tracked.
func (r *Reaper) Track(handles ...*ProcessHandle) {
	r.mu.Lock()
	for _, h := range handles {
		if h.Spawned() {
			r.tracked[h] = struct{}{}
		}
	}
	r.mu.Unlock()

	select {
	case r.kick <- struct{}{}:
	default:
		// A sweep is already pending.
	}
}

// Sweep collects every tracked process that has exited and returns how many
// were collected.
func (r *Reaper) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	reaped := 0
	for h := range r.tracked {
		if h.tryCollect() {
			delete(r.tracked, h)
			reaped++
		}
	}
	return reaped
}

// Pending returns the number of tracked processes not collected yet.
func (r *Reaper) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tracked)
}
