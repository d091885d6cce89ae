// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"go.threadkit.io/threads/metering"
	"go.threadkit.io/threads/policy"
)

// Priority bounds.
const (
	MinPriority  = 1
	NormPriority = 5
	MaxPriority  = 10
)

// Runnable is the work unit of a Thread. A returned error or a panic is an
// uncaught failure and is delivered to the thread's uncaught failure handler.
type Runnable func(t *Thread) error

var threadIDSeq int64

// Thread is a unit of concurrent execution backed by a goroutine.
//
// Operations the thread performs on itself (Sleep, Interrupted, waiting on a
// Monitor) take effect on the goroutine running the work unit, which receives
// its own *Thread as argument.
type Thread struct {
	id        int64
	rt        *Runtime
	run       Runnable
	attached  bool
	interrupt InterruptFlag
	done      chan struct{}
	exitOnce  sync.Once
	blocked   metering.Accumulator
	waited    metering.Accumulator

	mu                sync.Mutex
	name              string
	state             State
	stateLastModified time.Time
	started           bool
	daemon            bool
	priority          int
	group             *ThreadGroup
	handler           UncaughtHandler
	locals            map[*ThreadLocal]interface{}
}

// ThreadInfo is a snapshot of a thread's contention statistics.
type ThreadInfo struct {
	ID           int64
	Name         string
	State        State
	BlockedCount int64
	BlockedTime  time.Duration
	WaitedCount  int64
	WaitedTime   time.Duration
}

func (rt *Runtime) newThread(g *ThreadGroup, name string, run Runnable) *Thread {
	if name == "" {
		name = fmt.Sprintf("Thread-%d", atomic.AddInt64(&rt.nameSeq, 1)-1)
	}
	return &Thread{
		id:                atomic.AddInt64(&threadIDSeq, 1),
		rt:                rt,
		run:               run,
		done:              make(chan struct{}),
		name:              name,
		state:             StateNew,
		stateLastModified: time.Now(),
		priority:          NormPriority,
		group:             g,
	}
}

// Spawn creates a new thread in t's group. The new thread inherits the daemon
// flag, the priority (capped by the group) and inheritable thread-locals of t.
func (t *Thread) Spawn(name string, run Runnable) (*Thread, error) {
	g := t.Group()
	if g == nil {
		return nil, fmt.Errorf("%w: %s has terminated", ErrIllegalThreadState, t.Name())
	}
	child, err := g.NewThread(name, run)
	if err != nil {
		return nil, err
	}

	priority := t.Priority()
	if max := g.MaxPriority(); priority > max {
		priority = max
	}
	daemon := t.IsDaemon()
	inherited := t.inheritableLocals()

	child.mu.Lock()
	child.daemon = daemon
	child.priority = priority
	child.locals = inherited
	child.mu.Unlock()
	return child, nil
}

// Start begins concurrent execution of the work unit. A thread can be
// started at most once.
func (t *Thread) Start() error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s already started", ErrIllegalThreadState, t.name)
	}
	t.started = true
	t.setStateUnsafe(StateRunnable)
	g := t.group
	t.mu.Unlock()

	// Members of a group are always alive.
	if err := g.add(t); err != nil {
		t.mu.Lock()
		t.started = false
		t.setStateUnsafe(StateNew)
		t.mu.Unlock()
		return err
	}
	t.rt.register(t)
	log.WithField("thread", t.Name()).Debugf("Thread %d started in group %s", t.id, g.Name())

	if !t.attached {
		go t.main()
	}
	return nil
}

func (t *Thread) main() {
	defer t.exit()
	if err := t.runWorkUnit(); err != nil {
		t.dispatchUncaught(err)
	}
}

func (t *Thread) runWorkUnit() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	if t.run == nil {
		return nil
	}
	return t.run(t)
}

func (t *Thread) exit() {
	t.exitOnce.Do(t.terminate)
}

func (t *Thread) terminate() {
	if g := t.Group(); g != nil {
		g.remove(t)
	}
	t.rt.unregister(t)

	t.mu.Lock()
	t.setStateUnsafe(StateTerminated)
	t.group = nil
	t.locals = nil
	t.mu.Unlock()

	close(t.done)
	log.WithField("thread", t.Name()).Debugf("Thread %d terminated", t.id)
}

// Join blocks until t terminates or d elapses. A zero d waits forever.
// caller is the joining thread and is the one whose interrupt aborts the
// join; a nil caller joins uninterruptibly. Joining a thread that was never
// started or has already terminated returns immediately and leaves the
// caller's interrupt flag alone.
func (t *Thread) Join(caller *Thread, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: timeout value is negative: %s", ErrIllegalArgument, d)
	}
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if !started {
		return nil
	}

	if caller == nil {
		var timeout <-chan time.Time
		if d > 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()
			timeout = timer.C
		}
		select {
		case <-t.done:
		case <-timeout:
		}
		return nil
	}

	select {
	case <-t.done:
		return nil
	default:
	}
	if caller.await(t.done, d) == wokeInterrupted {
		caller.interrupt.TestAndClear()
		return ErrInterrupted
	}
	return nil
}

// JoinMillis is Join with the timeout split into milliseconds and nanoseconds.
func (t *Thread) JoinMillis(caller *Thread, millis int64, nanos int) error {
	d, err := millisToDuration(millis, nanos)
	if err != nil {
		return err
	}
	return t.Join(caller, d)
}

// Sleep suspends t for at least d. It must be called by t itself.
func (t *Thread) Sleep(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: timeout value is negative: %s", ErrIllegalArgument, d)
	}
	if t.interrupt.TestAndClear() {
		return ErrInterrupted
	}
	if d == 0 {
		return nil
	}
	if t.await(nil, d) == wokeInterrupted {
		t.interrupt.TestAndClear()
		return ErrInterrupted
	}
	return nil
}

// SleepMillis is Sleep with the duration split into milliseconds and nanoseconds.
func (t *Thread) SleepMillis(millis int64, nanos int) error {
	d, err := millisToDuration(millis, nanos)
	if err != nil {
		return err
	}
	return t.Sleep(d)
}

// Interrupt sets the interrupt flag of t, waking it if it is blocked in Wait,
// Join or Sleep. Interrupting a terminated thread has no effect.
func (t *Thread) Interrupt() error {
	if err := t.checkAccess(); err != nil {
		return err
	}
	if t.State() == StateTerminated {
		return nil
	}
	t.interrupt.Set()
	return nil
}

// IsInterrupted reports the interrupt flag without clearing it.
func (t *Thread) IsInterrupted() bool {
	return t.interrupt.IsSet()
}

// Interrupted reports and clears the interrupt flag of t.
func (t *Thread) Interrupted() bool {
	return t.interrupt.TestAndClear()
}

type wakeReason int

const (
	wokeSignaled wakeReason = iota
	wokeTimeout
	wokeInterrupted
)

// park blocks until signal is closed, d elapses (when d > 0) or t is interrupted.
func (t *Thread) park(signal <-chan struct{}, d time.Duration) wakeReason {
	intr, pending := t.interrupt.arm()
	if pending {
		return wokeInterrupted
	}
	defer t.interrupt.disarm()

	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-signal:
		return wokeSignaled
	case <-intr:
		return wokeInterrupted
	case <-timeout:
		return wokeTimeout
	}
}

// await parks t in WAITING or TIMED_WAITING state.
func (t *Thread) await(signal <-chan struct{}, d time.Duration) wakeReason {
	if d > 0 {
		t.setState(StateTimedWaiting)
	} else {
		t.setState(StateWaiting)
	}
	t.waited.Start()
	reason := t.park(signal, d)
	t.waited.Stop()
	t.setState(StateRunnable)
	return reason
}

// block parks t in BLOCKED state until it is handed a monitor.
func (t *Thread) block(ready <-chan struct{}) {
	t.setState(StateBlocked)
	t.blocked.Start()
	<-ready
	t.blocked.Stop()
	t.setState(StateRunnable)
}

func (t *Thread) setState(state State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setStateUnsafe(state)
}

func (t *Thread) setStateUnsafe(state State) {
	if t.state == StateTerminated {
		return
	}
	t.state = state
	t.stateLastModified = time.Now()
}

// State returns the liveness state of t.
func (t *Thread) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsAlive reports whether t has been started and has not yet terminated.
func (t *Thread) IsAlive() bool {
	state := t.State()
	return state != StateNew && state != StateTerminated
}

// ID returns the process-wide unique id of t.
func (t *Thread) ID() int64 {
	return t.id
}

// Name returns the name of t.
func (t *Thread) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

// SetName renames t.
func (t *Thread) SetName(name string) error {
	if err := t.checkAccess(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
	return nil
}

// IsDaemon reports the daemon flag of t.
func (t *Thread) IsDaemon() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.daemon
}

// SetDaemon marks t as a daemon or user thread. It must be called before Start.
func (t *Thread) SetDaemon(on bool) error {
	if err := t.checkAccess(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return fmt.Errorf("%w: %s already started", ErrIllegalThreadState, t.name)
	}
	t.daemon = on
	return nil
}

// Priority returns the priority of t.
func (t *Thread) Priority() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.priority
}

// SetPriority changes the priority of t. The value is capped by the maximum
// priority of the thread's group. A terminated thread keeps its priority.
func (t *Thread) SetPriority(priority int) error {
	if err := t.checkAccess(); err != nil {
		return err
	}
	if priority < MinPriority || priority > MaxPriority {
		return fmt.Errorf("%w: priority %d out of range [%d, %d]", ErrIllegalArgument, priority, MinPriority, MaxPriority)
	}
	g := t.Group()
	if g == nil {
		return nil
	}
	if max := g.MaxPriority(); priority > max {
		priority = max
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.priority = priority
	return nil
}

// Group returns the group of t, nil once t has terminated.
func (t *Thread) Group() *ThreadGroup {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.group
}

// SetUncaughtHandler overrides the handler of uncaught failures for t.
// A nil handler restores delivery to the thread's group.
func (t *Thread) SetUncaughtHandler(h UncaughtHandler) error {
	if err := t.checkAccess(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
	return nil
}

// UncaughtHandler returns the handler uncaught failures of t are delivered to:
// the explicit override if set, otherwise the thread's group.
func (t *Thread) UncaughtHandler() UncaughtHandler {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handler != nil {
		return t.handler
	}
	if t.group == nil {
		return nil
	}
	return t.group
}

// Info returns the contention statistics of t.
func (t *Thread) Info() ThreadInfo {
	blockedCount, blockedTime := t.blocked.Snapshot()
	waitedCount, waitedTime := t.waited.Snapshot()
	t.mu.Lock()
	defer t.mu.Unlock()
	return ThreadInfo{
		ID:           t.id,
		Name:         t.name,
		State:        t.state,
		BlockedCount: blockedCount,
		BlockedTime:  blockedTime,
		WaitedCount:  waitedCount,
		WaitedTime:   waitedTime,
	}
}

// Suspend is kept for compatibility. It only runs the permission check.
//
// Deprecated: suspending another thread can deadlock on monitors it holds.
func (t *Thread) Suspend() error {
	return t.checkAccess()
}

// Resume is kept for compatibility. It only runs the permission check.
//
// Deprecated: see Suspend.
func (t *Thread) Resume() error {
	return t.checkAccess()
}

// Stop is kept for compatibility. It only runs the permission checks.
//
// Deprecated: asynchronously stopping a thread leaves monitors and shared
// data in an inconsistent state. Use Interrupt.
func (t *Thread) Stop() error {
	if err := t.checkAccess(); err != nil {
		return err
	}
	return t.rt.check(policy.Permission{Action: policy.StopThread, Target: t.Name()})
}

func (t *Thread) checkAccess() error {
	return t.rt.check(policy.Permission{Action: policy.ModifyThread, Target: t.Name()})
}

func (t *Thread) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.group != nil {
		return fmt.Sprintf("Thread[%s,%d,%s]", t.name, t.priority, t.group.Name())
	}
	return fmt.Sprintf("Thread[%s,%d,]", t.name, t.priority)
}
