// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"go.threadkit.io/threads/core"
)

const (
	scenarioNotify    = "notify"
	scenarioWait      = "wait"
	scenarioInterrupt = "interrupt"
	scenarioDestroy   = "destroy"
	scenarioUncaught  = "uncaught"
	scenarioAll       = "all"

	observeTimeout = 5 * time.Second
)

type lab struct {
	rt      *core.Runtime
	main    *core.Thread
	threads int
	rng     *rand.Rand
}

type scenario struct {
	name string
	run  func(l *lab) error
}

var scenarios = []scenario{
	{scenarioNotify, (*lab).notifyOneAtATime},
	{scenarioWait, (*lab).timedWait},
	{scenarioInterrupt, (*lab).interruptWaiter},
	{scenarioDestroy, (*lab).destroyDaemonTree},
	{scenarioUncaught, (*lab).uncaughtFailure},
}

func selectScenarios(name string) []scenario {
	if name == scenarioAll {
		return scenarios
	}
	for _, s := range scenarios {
		if s.name == name {
			return []scenario{s}
		}
	}
	return nil
}

func (l *lab) runAll(selected []scenario) error {
	failed := 0
	for _, s := range selected {
		start := time.Now()
		err := s.run(l)
		entry := log.WithFields(log.Fields{"scenario": s.name, "elapsed": time.Since(start)})
		if err != nil {
			entry.WithError(err).Error("Scenario failed")
			failed++
			continue
		}
		entry.Info("Scenario passed")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(selected))
	}
	return nil
}

// scratchGroup returns a daemon group that goes away with its last thread.
func (l *lab) scratchGroup(name string) (*core.ThreadGroup, error) {
	g, err := l.rt.MainGroup().NewGroup(name)
	if err != nil {
		return nil, err
	}
	return g, g.SetDaemon(true)
}

// await polls cond from the main thread until it holds or timeout elapses.
func (l *lab) await(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			return false
		}
		if err := l.main.Sleep(time.Millisecond); err != nil {
			return false
		}
	}
	return true
}

func (l *lab) joinAll(threads []*core.Thread) error {
	for _, t := range threads {
		if err := t.Join(l.main, observeTimeout); err != nil {
			return err
		}
		if t.IsAlive() {
			return fmt.Errorf("%s did not terminate within %s", t.Name(), observeTimeout)
		}
	}
	return nil
}

func (l *lab) notifyOneAtATime() error {
	g, err := l.scratchGroup(scenarioNotify)
	if err != nil {
		return err
	}
	m := l.rt.MonitorOf(g)
	defer l.rt.ForgetMonitor(g)
	var woken int32

	threads := make([]*core.Thread, 0, l.threads)
	for i := 0; i < l.threads; i++ {
		t, err := g.NewThread(fmt.Sprintf("waiter-%d", i), func(t *core.Thread) error {
			return core.Synchronized(t, m, func() error {
				if err := m.Wait(t, 0); err != nil {
					return err
				}
				atomic.AddInt32(&woken, 1)
				return nil
			})
		})
		if err != nil {
			return err
		}
		if err := t.Start(); err != nil {
			return err
		}
		threads = append(threads, t)
	}

	if !l.await(func() bool { return m.WaitSetSize() == l.threads }, observeTimeout) {
		return fmt.Errorf("only %d of %d threads parked", m.WaitSetSize(), l.threads)
	}

	for i := 1; i <= l.threads; i++ {
		if err := core.Synchronized(l.main, m, func() error { return m.Notify(l.main) }); err != nil {
			return err
		}
		expected := int32(i)
		if !l.await(func() bool { return atomic.LoadInt32(&woken) >= expected }, observeTimeout) {
			return fmt.Errorf("notify %d woke no thread", i)
		}
		if err := l.main.Sleep(2 * time.Millisecond); err != nil {
			return err
		}
		if n := atomic.LoadInt32(&woken); n != expected {
			return fmt.Errorf("notify %d woke %d threads in total, expected %d", i, n, expected)
		}
		log.WithField("woken", expected).Debug("Notify woke exactly one thread")
	}

	if err := l.joinAll(threads); err != nil {
		return err
	}
	if !g.IsDestroyed() {
		return errors.New("daemon group outlived its threads")
	}
	return nil
}

func (l *lab) timedWait() error {
	const timeout = 200 * time.Millisecond
	m := core.NewMonitor()

	m.Enter(l.main)
	defer m.Exit(l.main)
	start := time.Now()
	if err := m.Wait(l.main, timeout); err != nil {
		return err
	}
	elapsed := time.Since(start)

	log.WithField("elapsed", elapsed).Info("Timed wait returned")
	if elapsed < timeout {
		return fmt.Errorf("wait returned after %s, before its %s timeout", elapsed, timeout)
	}
	if !m.HoldsLock(l.main) {
		return errors.New("monitor not re-acquired after timed wait")
	}
	return nil
}

func (l *lab) interruptWaiter() error {
	g, err := l.scratchGroup(scenarioInterrupt)
	if err != nil {
		return err
	}
	m := core.NewMonitor()

	var waitErr error
	var heldOnReturn, flagOnReturn bool
	waiter, err := g.NewThread("waiter", func(t *core.Thread) error {
		m.Enter(t)
		defer m.Exit(t)
		waitErr = m.Wait(t, 0)
		heldOnReturn = m.HoldsLock(t)
		flagOnReturn = t.IsInterrupted()
		return nil
	})
	if err != nil {
		return err
	}
	if err := waiter.Start(); err != nil {
		return err
	}
	if !l.await(func() bool { return m.WaitSetSize() == 1 }, observeTimeout) {
		return errors.New("waiter never parked")
	}

	if err := waiter.Interrupt(); err != nil {
		return err
	}
	if err := l.joinAll([]*core.Thread{waiter}); err != nil {
		return err
	}

	switch {
	case !errors.Is(waitErr, core.ErrInterrupted):
		return fmt.Errorf("wait returned %v, expected %v", waitErr, core.ErrInterrupted)
	case !heldOnReturn:
		return errors.New("interrupted waiter did not own the monitor")
	case flagOnReturn:
		return errors.New("interrupt flag still set after ErrInterrupted")
	}
	return nil
}

func (l *lab) destroyDaemonTree() error {
	root, err := l.scratchGroup(scenarioDestroy)
	if err != nil {
		return err
	}

	all := []*core.ThreadGroup{root}
	var build func(g *core.ThreadGroup, level int) error
	build = func(g *core.ThreadGroup, level int) error {
		if level == 4 {
			return nil
		}
		n := 1 + l.rng.Intn(3)
		for i := 0; i < n; i++ {
			child, err := g.NewGroup(fmt.Sprintf("%s.%d", g.Name(), i))
			if err != nil {
				return err
			}
			all = append(all, child)
			if err := build(child, level+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := build(root, 1); err != nil {
		return err
	}
	log.WithField("groups", len(all)).Info("Built daemon group tree")

	if err := root.Destroy(); err != nil {
		return err
	}
	for _, g := range all {
		if !g.IsDestroyed() {
			return fmt.Errorf("group %s survived destroy of %s", g.Name(), root.Name())
		}
		if err := g.Destroy(); !errors.Is(err, core.ErrIllegalThreadState) {
			return fmt.Errorf("second destroy of %s returned %v", g.Name(), err)
		}
	}
	return nil
}

func (l *lab) uncaughtFailure() error {
	g, err := l.scratchGroup(scenarioUncaught)
	if err != nil {
		return err
	}
	errBoom := errors.New("work unit failed")

	var delivered int32
	var deliveredErr error
	err = g.SetUncaughtHandler(core.UncaughtHandlerFunc(func(t *core.Thread, err error) {
		atomic.AddInt32(&delivered, 1)
		deliveredErr = err
		panic("uncaught failure handler failed")
	}))
	if err != nil {
		return err
	}

	failing, err := g.NewThread("failing", func(t *core.Thread) error { return errBoom })
	if err != nil {
		return err
	}
	if err := failing.Start(); err != nil {
		return err
	}
	if err := l.joinAll([]*core.Thread{failing}); err != nil {
		return err
	}

	if n := atomic.LoadInt32(&delivered); n != 1 {
		return fmt.Errorf("failure delivered %d times", n)
	}
	if deliveredErr != errBoom {
		return fmt.Errorf("handler received %v, expected %v", deliveredErr, errBoom)
	}
	if failing.State() != core.StateTerminated {
		return fmt.Errorf("failing thread is %s after join", failing.State())
	}
	return nil
}
