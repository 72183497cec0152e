// Package form models a single form submission: one request in flight at a
// time, and a failure notice that dismisses itself.
package form

import (
	"context"
	"errors"
	"sync"
	"time"
)

type State int

const (
	Idle State = iota
	Submitting
	Success
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// DefaultDismissAfter matches the on-screen lifetime of a failure toast.
const DefaultDismissAfter = 2 * time.Second

var (
	ErrInFlight      = errors.New("form: submission already in flight")
	ErrNotSubmitting = errors.New("form: no submission in flight")
)

// Machine is safe for concurrent use.
type Machine struct {
	mu           sync.Mutex
	state        State
	message      string
	failedAt     time.Time
	dismissAfter time.Duration
	now          func() time.Time
}

type Option func(*Machine)

func WithDismissAfter(d time.Duration) Option {
	return func(m *Machine) { m.dismissAfter = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func New(opts ...Option) *Machine {
	m := &Machine{dismissAfter: DefaultDismissAfter, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns the current state. A failure older than the dismissal delay
// has already returned to Idle.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	return m.state
}

// Message is the failure notice, empty unless the state is Failed.
func (m *Machine) Message() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	return m.message
}

// Begin enters Submitting. It refuses while a submission is in flight, which
// is what a disabled submit button enforces.
func (m *Machine) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Submitting {
		return ErrInFlight
	}
	m.state = Submitting
	m.message = ""
	return nil
}

func (m *Machine) Succeed() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Submitting {
		return ErrNotSubmitting
	}
	m.state = Success
	return nil
}

func (m *Machine) Fail(msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Submitting {
		return ErrNotSubmitting
	}
	m.state = Failed
	m.message = msg
	m.failedAt = m.now()
	return nil
}

// Submit runs fn between Begin and Succeed/Fail. The error text of fn becomes
// the failure notice.
func (m *Machine) Submit(ctx context.Context, fn func(context.Context) error) error {
	if err := m.Begin(); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		_ = m.Fail(err.Error())
		return err
	}

	return m.Succeed()
}

func (m *Machine) expireLocked() {
	if m.state == Failed && m.now().Sub(m.failedAt) >= m.dismissAfter {
		m.state = Idle
		m.message = ""
	}
}
