// Package signals converts a terminating signal (interrupt, SIGTERM,
// SIGQUIT) into an orderly abort: registered handlers run exactly once,
// most recently registered first, and then Done unblocks so the caller
// can exit non-zero. Manifests written as `.next` files are left where
// they are; the next run ignores them.
package signals

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Watcher runs abort handlers when the process receives a terminating
// signal, or when Close is called directly at the end of a normal run.
type Watcher struct {
	mu       sync.Mutex
	once     sync.Once
	handlers []func()
	doneCh   chan struct{}
}

// NewWatcher starts watching for terminating signals immediately. A
// handler registered after a signal has already been handled does not
// run.
func NewWatcher() *Watcher {
	w := &Watcher{doneCh: make(chan struct{})}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sigCh
		w.Close()
	}()

	return w
}

// AddOnClose registers an abort handler. Handlers run in reverse
// registration order, mirroring defer, so later-acquired resources are
// released first.
func (w *Watcher) AddOnClose(handler func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Close runs the registered handlers and unblocks Done. Subsequent
// calls, including the one from the signal goroutine after a normal
// shutdown, are no-ops.
func (w *Watcher) Close() {
	w.once.Do(func() {
		w.mu.Lock()
		handlers := w.handlers
		w.handlers = nil
		w.mu.Unlock()

		for i := len(handlers) - 1; i >= 0; i-- {
			handlers[i]()
		}
		close(w.doneCh)
	})
}

// Done returns a channel closed once every handler has finished.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}
