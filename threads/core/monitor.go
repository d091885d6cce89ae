// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"
	"math"
	"sync"
	"time"
)

type entrant struct {
	t     *Thread
	holds int
	ready chan struct{}
}

type waiter struct {
	t        *Thread
	notified bool
	signal   chan struct{}
}

// Monitor is a re-entrant mutual exclusion lock with a wait-set.
//
// Ownership is handed directly to the oldest blocked entrant on release, so
// an unowned monitor never has entrants. Waiters are woken in arrival order.
// The zero value is an unowned monitor with an empty wait-set.
type Monitor struct {
	mu       sync.Mutex
	owner    *Thread
	holds    int
	entrants []*entrant
	waitSet  []*waiter
}

// NewMonitor returns new Monitor instance.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Enter blocks t until it owns the monitor. Re-entering an owned monitor
// increments the hold count. Enter panics if t is nil.
func (m *Monitor) Enter(t *Thread) {
	if t == nil {
		panic("core: Monitor.Enter called with a nil thread")
	}
	m.mu.Lock()
	if m.owner == t {
		m.holds++
		m.mu.Unlock()
		return
	}
	if m.owner == nil {
		m.owner, m.holds = t, 1
		m.mu.Unlock()
		return
	}
	e := &entrant{t: t, holds: 1, ready: make(chan struct{})}
	m.entrants = append(m.entrants, e)
	m.mu.Unlock()

	t.block(e.ready)
}

// Exit decrements the hold count of t and releases the monitor when it
// reaches zero.
func (m *Monitor) Exit(t *Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t == nil || m.owner != t {
		return ErrIllegalMonitorState
	}
	m.holds--
	if m.holds == 0 {
		m.handOffLocked()
	}
	return nil
}

func (m *Monitor) handOffLocked() {
	if len(m.entrants) == 0 {
		m.owner = nil
		return
	}
	e := m.entrants[0]
	m.entrants[0] = nil
	m.entrants = m.entrants[1:]
	m.owner, m.holds = e.t, e.holds
	close(e.ready)
}

// Wait releases the monitor and parks t in the wait-set until it is notified,
// interrupted or d elapses. A zero d waits forever. The monitor is re-acquired
// with the original hold count before Wait returns, including when it returns
// ErrInterrupted.
func (m *Monitor) Wait(t *Thread, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: timeout value is negative: %s", ErrIllegalArgument, d)
	}

	m.mu.Lock()
	if t == nil || m.owner != t {
		m.mu.Unlock()
		return ErrIllegalMonitorState
	}
	if t.interrupt.TestAndClear() {
		m.mu.Unlock()
		return ErrInterrupted
	}
	w := &waiter{t: t, signal: make(chan struct{})}
	m.waitSet = append(m.waitSet, w)
	holds := m.holds
	m.holds = 0
	m.handOffLocked()
	m.mu.Unlock()

	reason := t.await(w.signal, d)

	m.mu.Lock()
	if w.notified {
		// a consumed notification wins over a racing timeout or interrupt,
		// the interrupt stays pending
		reason = wokeSignaled
	} else {
		m.removeWaiterLocked(w)
	}
	if m.owner == nil {
		m.owner, m.holds = t, holds
		m.mu.Unlock()
	} else {
		e := &entrant{t: t, holds: holds, ready: make(chan struct{})}
		m.entrants = append(m.entrants, e)
		m.mu.Unlock()
		t.block(e.ready)
	}

	if reason == wokeInterrupted {
		t.interrupt.TestAndClear()
		return ErrInterrupted
	}
	return nil
}

// WaitMillis is Wait with the timeout split into milliseconds and an
// additional nanosecond part in [0, 999999].
func (m *Monitor) WaitMillis(t *Thread, millis int64, nanos int) error {
	d, err := millisToDuration(millis, nanos)
	if err != nil {
		return err
	}
	return m.Wait(t, d)
}

func (m *Monitor) removeWaiterLocked(w *waiter) {
	for i, x := range m.waitSet {
		if x == w {
			copy(m.waitSet[i:], m.waitSet[i+1:])
			m.waitSet[len(m.waitSet)-1] = nil
			m.waitSet = m.waitSet[:len(m.waitSet)-1]
			return
		}
	}
}

// Notify wakes the oldest waiter, if any.
func (m *Monitor) Notify(t *Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t == nil || m.owner != t {
		return ErrIllegalMonitorState
	}
	if len(m.waitSet) == 0 {
		return nil
	}
	w := m.waitSet[0]
	m.waitSet[0] = nil
	m.waitSet = m.waitSet[1:]
	w.notified = true
	close(w.signal)
	return nil
}

// NotifyAll wakes every waiter.
func (m *Monitor) NotifyAll(t *Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t == nil || m.owner != t {
		return ErrIllegalMonitorState
	}
	for _, w := range m.waitSet {
		w.notified = true
		close(w.signal)
	}
	m.waitSet = nil
	return nil
}

// Owner returns the owning thread, nil if the monitor is free.
func (m *Monitor) Owner() *Thread {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// HoldsLock reports whether t owns the monitor.
func (m *Monitor) HoldsLock(t *Thread) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return t != nil && m.owner == t
}

// WaitSetSize returns the number of threads parked in Wait.
func (m *Monitor) WaitSetSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waitSet)
}

// Synchronized runs fn while t owns m.
func Synchronized(t *Thread, m *Monitor, fn func() error) error {
	m.Enter(t)
	defer m.Exit(t)
	return fn()
}

// Monitors attaches one Monitor to each distinct comparable value, so any
// piece of data can be synchronized on. Keys must be comparable.
type Monitors struct {
	table sync.Map
}

// Of returns the monitor of obj, creating it on first use.
func (s *Monitors) Of(obj interface{}) *Monitor {
	if m, ok := s.table.Load(obj); ok {
		return m.(*Monitor)
	}
	m, _ := s.table.LoadOrStore(obj, NewMonitor())
	return m.(*Monitor)
}

// Forget drops the monitor of obj. Threads still using it are unaffected.
func (s *Monitors) Forget(obj interface{}) {
	s.table.Delete(obj)
}

const maxMillis = int64(math.MaxInt64 / int64(time.Millisecond))

func millisToDuration(millis int64, nanos int) (time.Duration, error) {
	if millis < 0 {
		return 0, fmt.Errorf("%w: timeout value is negative: %d", ErrIllegalArgument, millis)
	}
	if nanos < 0 || nanos > 999999 {
		return 0, fmt.Errorf("%w: nanosecond timeout value out of range: %d", ErrIllegalArgument, nanos)
	}
	if millis >= maxMillis {
		return time.Duration(math.MaxInt64), nil
	}
	return time.Duration(millis)*time.Millisecond + time.Duration(nanos), nil
}
