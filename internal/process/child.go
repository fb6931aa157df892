package process

// The child supervisor is adapted from hashicorp/consul-template's child
// package (https://github.com/hashicorp/consul-template/tree/3ea7d99a/child).
// This version is one-shot: it takes a fully formed exec.Cmd, runs it to
// completion exactly once in its own process group, and reports the exit
// code over a channel. Restarting, signal splay and execution timeouts
// were dropped along with the reload semantics they existed for.

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// ExitCodeOK is a clean child exit.
	ExitCodeOK = 0

	// ExitCodeError is reported when the child fails without a usable
	// exit status (launch failure, or killed before exec).
	ExitCodeError = 127
)

// defaultKillTimeout bounds how long Stop waits for a signaled child to
// exit gracefully before force-killing it.
const defaultKillTimeout = 5 * time.Second

// Child supervises one running task command: it owns the process group,
// surfaces the exit code, and can stop the process early on shutdown.
type Child struct {
	mu sync.RWMutex

	// cmd is the process under management; nil once killed.
	cmd *exec.Cmd

	killSignal  os.Signal
	killTimeout time.Duration

	// exitCh receives the process's exit code exactly once.
	exitCh chan int

	// stopLock guards the stop transition; stopCh short-circuits the
	// kill wait; stopped records that Stop already ran.
	stopLock sync.RWMutex
	stopCh   chan struct{}
	stopped  bool

	label  string
	logger hclog.Logger
}

// NewInput is the input to New.
type NewInput struct {
	// Cmd is the unstarted, preconfigured command to run.
	Cmd *exec.Cmd

	// KillSignal is sent to the process group to request a graceful
	// exit. May be nil, in which case Stop force-kills immediately.
	KillSignal os.Signal

	// KillTimeout is how long to wait after KillSignal before
	// force-killing. Zero means defaultKillTimeout.
	KillTimeout time.Duration

	// Logger receives debug lines about process state transitions.
	Logger hclog.Logger
}

// New wraps an unstarted command in a Child.
func New(i NewInput) *Child {
	// exec.Cmd.Args already includes the command itself.
	label := fmt.Sprintf("(%v) %v", i.Cmd.Dir, strings.Join(i.Cmd.Args, " "))
	killTimeout := i.KillTimeout
	if killTimeout == 0 {
		killTimeout = defaultKillTimeout
	}
	return &Child{
		cmd:         i.Cmd,
		killSignal:  i.KillSignal,
		killTimeout: killTimeout,
		stopCh:      make(chan struct{}, 1),
		label:       label,
		logger:      i.Logger.Named(label),
	}
}

// Start launches the process in its own process group and begins
// waiting for it in the background. The exit code arrives on ExitCh.
func (c *Child) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	setSetpgid(c.cmd, true)
	if err := c.cmd.Start(); err != nil {
		return err
	}

	exitCh := make(chan int, 1)
	go func() {
		c.mu.RLock()
		cmd := c.cmd
		c.mu.RUnlock()

		code := ExitCodeOK
		if err := cmd.Wait(); err != nil {
			code = ExitCodeError
			if exitErr, ok := err.(*exec.ExitError); ok {
				if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
					code = status.ExitStatus()
				}
			}
		}

		// If Stop is tearing the process down, the exit code belongs to
		// the shutdown, not to the caller.
		c.stopLock.RLock()
		defer c.stopLock.RUnlock()
		if !c.stopped {
			select {
			case <-c.stopCh:
			case exitCh <- code:
			}
		}
		close(exitCh)
	}()

	c.exitCh = exitCh
	return nil
}

// ExitCh returns the channel the process's exit code is delivered on.
func (c *Child) ExitCh() <-chan int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.exitCh
}

// Stop terminates the process: the kill signal first, then a force-kill
// after the kill timeout. It suppresses the exit-code delivery, so a
// stopped child never reports a result. Safe to call more than once.
func (c *Child) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLock.Lock()
	defer c.stopLock.Unlock()
	if c.stopped {
		return
	}
	c.kill()
	close(c.stopCh)
	c.stopped = true
}

func (c *Child) kill() {
	if !c.running() {
		return
	}

	var exited bool
	defer func() {
		if !exited {
			c.logger.Debug("force-killing process")
			_ = c.cmd.Process.Kill()
		}
		c.cmd = nil
	}()

	if c.killSignal == nil {
		return
	}

	if err := c.signal(c.killSignal); err != nil {
		c.logger.Debug("kill signal failed", "error", err)
		if processNotFoundErr(err) {
			exited = true // checked in defer
		}
		return
	}

	killCh := make(chan struct{})
	go func() {
		defer close(killCh)
		_, _ = c.cmd.Process.Wait()
	}()

	select {
	case <-killCh:
		exited = true
	case <-time.After(c.killTimeout):
		c.logger.Debug("kill timeout elapsed")
	}
}

// signal delivers s to the child's process group, so the whole task
// tree receives it, not just the immediate shell.
func (c *Child) signal(s os.Signal) error {
	if !c.running() {
		return nil
	}

	sig, ok := s.(syscall.Signal)
	if !ok {
		return fmt.Errorf("bad signal: %s", s)
	}
	// A negative pid addresses the process group.
	p, err := os.FindProcess(-c.cmd.Process.Pid)
	if err != nil {
		return err
	}
	return p.Signal(sig)
}

func (c *Child) running() bool {
	select {
	case <-c.exitCh:
		return false
	default:
	}
	return c.cmd != nil && c.cmd.Process != nil
}
