// Package attachztest provides an in-memory host dispatcher for testing code
// that registers hooks through attachz.
//
// Host records every registration call it receives and can emulate the host's
// firing semantics: fire-once listeners are dropped after their first run,
// persistent listeners stay, and higher priorities run first.
//
// Basic Usage:
//
//	host := attachztest.New[Scene]()
//	defer host.Close()
//
//	if err := attachz.Attach(host, defs); err != nil {
//		t.Fatal(err)
//	}
//
//	calls := host.Calls()           // what the registrar asked for
//	err := host.Fire(ctx, "ready", s) // run the registered callbacks
//
// Failure Injection:
//
//	host.FailNext(attachz.Once, errors.New("boom"))
package attachztest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/attachz"
	"github.com/zoobzio/clockz"
)

// Option configures a Host during creation.
type Option func(*config)

type config struct {
	clock   clockz.Clock // Time abstraction for call timestamps and timeouts
	timeout time.Duration
	limit   int
}

// WithClock sets the clock used for call timestamps and listener timeouts.
// Default is clockz.RealClock.
func WithClock(clock clockz.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithTimeout bounds each listener run during Fire.
// Default is no timeout (0).
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.timeout = timeout
	}
}

// WithLimit sets the maximum number of listeners per hook name.
// Default is 100.
func WithLimit(limit int) Option {
	return func(c *config) {
		c.limit = limit
	}
}

const defaultListenersPerHook = 100

// Call is one registration request received by a Host.
type Call[T any] struct {
	ID       string // listener id, empty when the registration was rejected
	Mode     attachz.Mode
	Name     string
	Callback attachz.Callback[T]
	Options  *attachz.Options
	At       time.Time
}

type listener[T any] struct {
	id       string
	once     bool
	priority int
	callback attachz.Callback[T]
}

// Host is an in-memory attachz.Dispatcher.
//
// Thread Safety:
// All methods are safe for concurrent use. Fire runs listeners outside the
// lock, so a listener may register further hooks on the same Host.
type Host[T any] struct {
	clock     clockz.Clock
	listeners map[string][]listener[T]
	calls     []Call[T]
	failures  map[attachz.Mode][]error
	timeout   time.Duration
	limit     int
	mu        sync.Mutex
	closed    bool

	metrics Metrics
}

// New creates an empty Host.
func New[T any](opts ...Option) *Host[T] {
	cfg := config{
		clock: clockz.RealClock,
		limit: defaultListenersPerHook,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &Host[T]{
		clock:     cfg.clock,
		listeners: make(map[string][]listener[T]),
		failures:  make(map[attachz.Mode][]error),
		timeout:   cfg.timeout,
		limit:     cfg.limit,
	}
}

// Once registers a callback that is removed before its first run.
func (h *Host[T]) Once(name string, callback attachz.Callback[T], opts *attachz.Options) error {
	return h.register(attachz.Once, name, callback, opts)
}

// On registers a persistent callback.
func (h *Host[T]) On(name string, callback attachz.Callback[T], opts *attachz.Options) error {
	return h.register(attachz.On, name, callback, opts)
}

// FailNext makes the next registration under mode return err.
// Failures queue up in the order they were added.
func (h *Host[T]) FailNext(mode attachz.Mode, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[mode] = append(h.failures[mode], err)
}

func (h *Host[T]) register(mode attachz.Mode, name string, callback attachz.Callback[T], opts *attachz.Options) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Every attempt is recorded, accepted or not
	call := Call[T]{
		Mode:     mode,
		Name:     name,
		Callback: callback,
		Options:  opts,
		At:       h.clock.Now(),
	}

	if err := h.admit(mode, name); err != nil {
		h.calls = append(h.calls, call)
		atomic.AddInt64(&h.metrics.Rejected, 1)
		return err
	}

	l := listener[T]{
		id:       uuid.NewString(),
		once:     mode == attachz.Once,
		callback: callback,
	}
	if opts != nil {
		l.priority = opts.Priority
	}

	call.ID = l.id
	h.calls = append(h.calls, call)
	h.listeners[name] = append(h.listeners[name], l)
	atomic.AddInt64(&h.metrics.Registrations, 1)
	return nil
}

// admit decides whether a registration is accepted. Callers hold h.mu.
func (h *Host[T]) admit(mode attachz.Mode, name string) error {
	if h.closed {
		return ErrHostClosed
	}

	if queued := h.failures[mode]; len(queued) > 0 {
		h.failures[mode] = queued[1:]
		return queued[0]
	}

	if len(h.listeners[name]) >= h.limit {
		return ErrTooManyListeners
	}

	return nil
}

// Remove unregisters the listener created by the call with the given id.
func (h *Host[T]) Remove(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for name, ls := range h.listeners {
		for i, l := range ls {
			if l.id != id {
				continue
			}
			h.listeners[name] = append(ls[:i], ls[i+1:]...)

			// Clean up empty hooks
			if len(h.listeners[name]) == 0 {
				delete(h.listeners, name)
			}
			return nil
		}
	}
	return ErrListenerNotFound
}

// Fire runs every listener registered for name, synchronously.
//
// Listeners run highest priority first; equal priorities run in registration
// order. Fire-once listeners are removed before any listener runs, so a
// listener that fires the same hook again will not see them.
//
// Every listener runs even if an earlier one fails. The returned error joins
// all listener errors; a panicking listener contributes ErrListenerPanicked.
func (h *Host[T]) Fire(ctx context.Context, name string, data T) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHostClosed
	}

	registered := h.listeners[name]
	run := make([]listener[T], len(registered))
	copy(run, registered)

	// Drop fire-once listeners before running anything
	kept := registered[:0]
	for _, l := range registered {
		if !l.once {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		delete(h.listeners, name)
	} else {
		h.listeners[name] = kept
	}
	h.mu.Unlock()

	sort.SliceStable(run, func(i, j int) bool {
		return run[i].priority > run[j].priority
	})

	var errs []error
	for _, l := range run {
		atomic.AddInt64(&h.metrics.Invocations, 1)
		if err := h.runSafely(ctx, l, data); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
				atomic.AddInt64(&h.metrics.Expired, 1)
			}
			atomic.AddInt64(&h.metrics.Failed, 1)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// runSafely runs one listener with panic recovery and the configured timeout.
func (h *Host[T]) runSafely(ctx context.Context, l listener[T], data T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrListenerPanicked
		}
	}()

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = h.clock.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	return l.callback(ctx, data)
}

// Calls returns a copy of every registration request received so far,
// including rejected ones, in arrival order.
func (h *Host[T]) Calls() []Call[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	calls := make([]Call[T], len(h.calls))
	copy(calls, h.calls)
	return calls
}

// Listeners returns how many listeners are registered for name.
func (h *Host[T]) Listeners(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[name])
}

// Clear removes all listeners for name and returns how many were removed.
func (h *Host[T]) Clear(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := len(h.listeners[name])
	delete(h.listeners, name)
	return count
}

// ClearAll removes every listener and returns how many were removed.
func (h *Host[T]) ClearAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := 0
	for _, ls := range h.listeners {
		count += len(ls)
	}

	h.listeners = make(map[string][]listener[T])
	return count
}

// Metrics returns a snapshot of the host's counters.
func (h *Host[T]) Metrics() Metrics {
	h.mu.Lock()
	var registered int64
	for _, ls := range h.listeners {
		registered += int64(len(ls))
	}
	h.mu.Unlock()

	return Metrics{
		Registrations: atomic.LoadInt64(&h.metrics.Registrations),
		Rejected:      atomic.LoadInt64(&h.metrics.Rejected),
		Invocations:   atomic.LoadInt64(&h.metrics.Invocations),
		Failed:        atomic.LoadInt64(&h.metrics.Failed),
		Expired:       atomic.LoadInt64(&h.metrics.Expired),
		Listeners:     registered,
	}
}

// Close drops all listeners. Later registrations and fires return
// ErrHostClosed. Recorded calls stay readable.
func (h *Host[T]) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrAlreadyClosed
	}
	h.closed = true
	h.listeners = make(map[string][]listener[T])
	return nil
}
