package process

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// ErrClosing is returned by Run once StopAll has been called; no new
// child may start while the runner is shutting down.
var ErrClosing = errors.New("process runner is shutting down")

// RunOptions configures a single task command invocation.
type RunOptions struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  hclog.Logger
	// KillTimeout bounds how long a signaled child is given to exit
	// gracefully before being force-killed.
	KillTimeout time.Duration
}

var (
	childrenMu sync.Mutex
	children   = map[*Child]struct{}{}
	closing    bool
)

func track(c *Child) bool {
	childrenMu.Lock()
	defer childrenMu.Unlock()
	if closing {
		return false
	}
	children[c] = struct{}{}
	return true
}

func untrack(c *Child) {
	childrenMu.Lock()
	defer childrenMu.Unlock()
	delete(children, c)
}

// StopAll signals every running child to exit and refuses to start new
// ones. Used by the signal watcher so a terminated runner takes its
// task processes down with it.
func StopAll() {
	childrenMu.Lock()
	closing = true
	running := make([]*Child, 0, len(children))
	for c := range children {
		running = append(running, c)
	}
	childrenMu.Unlock()

	for _, c := range running {
		c.Stop()
	}
}

// Run spawns cmd, waits for it to exit, and returns its exit code. A
// nonzero code comes back as (code, nil); a launch failure (e.g. command
// not found) comes back as (ExitCodeError, err); a child stopped by
// StopAll comes back as (ExitCodeError, ErrClosing).
func Run(opts RunOptions) (int, error) {
	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	child := New(NewInput{
		Cmd:         cmd,
		KillSignal:  os.Interrupt,
		KillTimeout: opts.KillTimeout,
		Logger:      opts.Logger,
	})

	if !track(child) {
		return ExitCodeError, ErrClosing
	}
	defer untrack(child)

	if err := child.Start(); err != nil {
		return ExitCodeError, err
	}

	code, ok := <-child.ExitCh()
	if !ok {
		return ExitCodeError, ErrClosing
	}
	return code, nil
}
