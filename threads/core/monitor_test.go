// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.threadkit.io/threads/testdata"
)

const eventuallyTimeout = 5 * time.Second

func newTestRuntime(t *testing.T, opts ...Option) (*Runtime, *Thread) {
	rt := NewRuntime(opts...)
	main, err := rt.Attach("main")
	require.NoError(t, err)
	t.Cleanup(func() { rt.Detach(main) })
	return rt, main
}

func startThread(t *testing.T, g *ThreadGroup, name string, run Runnable) *Thread {
	th, err := g.NewThread(name, run)
	require.NoError(t, err)
	require.NoError(t, th.Start())
	return th
}

func waitSetSizeIs(m *Monitor, n int) bool {
	return testdata.EventuallyTrue(func() bool { return m.WaitSetSize() == n }, eventuallyTimeout, time.Millisecond)
}

func TestEnterExitReentrant(t *testing.T) {
	_, main := newTestRuntime(t)
	m := NewMonitor()

	m.Enter(main)
	m.Enter(main)
	assert.Equal(t, main, m.Owner())
	assert.True(t, m.HoldsLock(main))

	assert.NoError(t, m.Exit(main))
	assert.True(t, m.HoldsLock(main))
	assert.NoError(t, m.Exit(main))
	assert.Nil(t, m.Owner())

	assert.Equal(t, ErrIllegalMonitorState, m.Exit(main))
}

func TestEnterNilThreadPanics(t *testing.T) {
	_, main := newTestRuntime(t)
	m := NewMonitor()

	assert.Panics(t, func() { m.Enter(nil) })
	assert.Nil(t, m.Owner())

	m.Enter(main)
	assert.Panics(t, func() { m.Enter(nil) })
	assert.Equal(t, main, m.Owner())
	assert.NoError(t, m.Exit(main))
	assert.Nil(t, m.Owner())
}

func TestOperationsWithoutOwnership(t *testing.T) {
	rt, main := newTestRuntime(t)
	other, err := rt.Attach("other")
	require.NoError(t, err)
	defer rt.Detach(other)

	m := NewMonitor()
	assert.Equal(t, ErrIllegalMonitorState, m.Wait(main, 0))
	assert.Equal(t, ErrIllegalMonitorState, m.Notify(main))
	assert.Equal(t, ErrIllegalMonitorState, m.NotifyAll(main))
	assert.Equal(t, ErrIllegalMonitorState, m.Exit(main))
	assert.Equal(t, ErrIllegalMonitorState, m.Exit(nil))

	m.Enter(other)
	assert.Equal(t, ErrIllegalMonitorState, m.Wait(main, time.Millisecond))
	assert.Equal(t, ErrIllegalMonitorState, m.Notify(main))
	assert.Equal(t, ErrIllegalMonitorState, m.NotifyAll(main))
	assert.Equal(t, ErrIllegalMonitorState, m.Exit(main))
	assert.Equal(t, other, m.Owner())
	assert.NoError(t, m.Exit(other))
}

func TestNotifyEmptyWaitSet(t *testing.T) {
	_, main := newTestRuntime(t)
	m := NewMonitor()

	m.Enter(main)
	defer m.Exit(main)
	assert.NoError(t, m.Notify(main))
	assert.NoError(t, m.NotifyAll(main))
}

func TestWaitTimeoutRestoresHoldCount(t *testing.T) {
	_, main := newTestRuntime(t)
	m := NewMonitor()

	m.Enter(main)
	m.Enter(main)
	start := time.Now()
	require.NoError(t, m.Wait(main, 200*time.Millisecond))
	elapsed := time.Since(start)

	assert.True(t, elapsed >= 200*time.Millisecond, "returned after %s", elapsed)
	assert.True(t, elapsed < 1200*time.Millisecond, "returned after %s", elapsed)
	assert.True(t, m.HoldsLock(main))

	assert.NoError(t, m.Exit(main))
	assert.NoError(t, m.Exit(main))
	assert.Equal(t, ErrIllegalMonitorState, m.Exit(main))
}

func TestWaitInvalidTimeout(t *testing.T) {
	_, main := newTestRuntime(t)
	m := NewMonitor()
	m.Enter(main)
	defer m.Exit(main)

	assert.True(t, errors.Is(m.Wait(main, -time.Millisecond), ErrIllegalArgument))
	assert.True(t, errors.Is(m.WaitMillis(main, -1, 0), ErrIllegalArgument))
	assert.True(t, errors.Is(m.WaitMillis(main, 0, -1), ErrIllegalArgument))
	assert.True(t, errors.Is(m.WaitMillis(main, 0, 1000000), ErrIllegalArgument))
	assert.NoError(t, m.WaitMillis(main, 1, 999999))
}

func TestMillisToDuration(t *testing.T) {
	d, err := millisToDuration(1, 500)
	require.NoError(t, err)
	assert.Equal(t, time.Millisecond+500*time.Nanosecond, d)

	d, err = millisToDuration(maxMillis, 999999)
	require.NoError(t, err)
	assert.True(t, d > 0)
}

func TestWaitReleasesMonitor(t *testing.T) {
	rt, main := newTestRuntime(t)
	m := NewMonitor()

	waiter := startThread(t, rt.MainGroup(), "waiter", func(th *Thread) error {
		m.Enter(th)
		defer m.Exit(th)
		return m.Wait(th, 0)
	})

	require.True(t, waitSetSizeIs(m, 1))
	assert.Nil(t, m.Owner())
	assert.Equal(t, StateWaiting, waiter.State())

	m.Enter(main)
	assert.NoError(t, m.Notify(main))
	assert.Equal(t, 0, m.WaitSetSize())
	assert.NoError(t, m.Exit(main))

	require.NoError(t, waiter.Join(main, eventuallyTimeout))
	assert.Equal(t, StateTerminated, waiter.State())
	assert.Nil(t, m.Owner())
}

func TestTimedWaitingState(t *testing.T) {
	rt, main := newTestRuntime(t)
	m := NewMonitor()

	waiter := startThread(t, rt.MainGroup(), "timed", func(th *Thread) error {
		m.Enter(th)
		defer m.Exit(th)
		return m.Wait(th, time.Minute)
	})

	require.True(t, waitSetSizeIs(m, 1))
	assert.Equal(t, StateTimedWaiting, waiter.State())

	m.Enter(main)
	assert.NoError(t, m.NotifyAll(main))
	assert.NoError(t, m.Exit(main))
	require.NoError(t, waiter.Join(main, eventuallyTimeout))
}

func TestWaitWithPendingInterrupt(t *testing.T) {
	_, main := newTestRuntime(t)
	m := NewMonitor()

	require.NoError(t, main.Interrupt())
	m.Enter(main)
	defer m.Exit(main)

	start := time.Now()
	assert.Equal(t, ErrInterrupted, m.Wait(main, 0))
	assert.True(t, time.Since(start) < time.Second)
	assert.True(t, m.HoldsLock(main))
	assert.False(t, main.IsInterrupted())
}

func TestNotifyWakesInArrivalOrder(t *testing.T) {
	rt, main := newTestRuntime(t)
	m := NewMonitor()
	var order []int

	var threads []*Thread
	for i := 0; i < 3; i++ {
		i := i
		threads = append(threads, startThread(t, rt.MainGroup(), "", func(th *Thread) error {
			m.Enter(th)
			defer m.Exit(th)
			if err := m.Wait(th, 0); err != nil {
				return err
			}
			order = append(order, i)
			return nil
		}))
		require.True(t, waitSetSizeIs(m, i+1))
	}

	for i := 0; i < 3; i++ {
		m.Enter(main)
		require.NoError(t, m.Notify(main))
		require.NoError(t, m.Exit(main))
		require.NoError(t, threads[i].Join(main, eventuallyTimeout))
	}

	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestNotifyAllWakesEveryWaiter(t *testing.T) {
	rt, main := newTestRuntime(t)
	m := NewMonitor()
	woken := 0

	var threads []*Thread
	for i := 0; i < 5; i++ {
		threads = append(threads, startThread(t, rt.MainGroup(), "", func(th *Thread) error {
			m.Enter(th)
			defer m.Exit(th)
			if err := m.Wait(th, 0); err != nil {
				return err
			}
			woken++
			return nil
		}))
	}
	require.True(t, waitSetSizeIs(m, 5))

	m.Enter(main)
	require.NoError(t, m.NotifyAll(main))
	assert.Equal(t, 0, m.WaitSetSize())
	require.NoError(t, m.Exit(main))

	for _, th := range threads {
		require.NoError(t, th.Join(main, eventuallyTimeout))
	}
	assert.Equal(t, 5, woken)
}

func TestEnterBlocksUntilHandOff(t *testing.T) {
	rt, main := newTestRuntime(t)
	m := NewMonitor()
	acquired := make(chan struct{})

	m.Enter(main)
	contender := startThread(t, rt.MainGroup(), "contender", func(th *Thread) error {
		m.Enter(th)
		close(acquired)
		return m.Exit(th)
	})

	require.True(t, testdata.EventuallyTrue(func() bool { return contender.State() == StateBlocked }, eventuallyTimeout, time.Millisecond))
	select {
	case <-acquired:
		t.Fatal("monitor acquired while owned")
	default:
	}

	require.NoError(t, m.Exit(main))
	require.NoError(t, contender.Join(main, eventuallyTimeout))
	<-acquired

	info := contender.Info()
	assert.Equal(t, int64(1), info.BlockedCount)
	assert.Equal(t, "contender", info.Name)
}

func TestMutualExclusion(t *testing.T) {
	rt, main := newTestRuntime(t)
	m := NewMonitor()
	counter := 0

	var threads []*Thread
	for i := 0; i < 8; i++ {
		threads = append(threads, startThread(t, rt.MainGroup(), "", func(th *Thread) error {
			for j := 0; j < 1000; j++ {
				if err := Synchronized(th, m, func() error {
					counter++
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		}))
	}
	for _, th := range threads {
		require.NoError(t, th.Join(main, 0))
	}
	assert.Equal(t, 8000, counter)
}

func TestSynchronizedReleasesOnError(t *testing.T) {
	_, main := newTestRuntime(t)
	m := NewMonitor()
	errTest := errors.New("ErrTest")

	err := Synchronized(main, m, func() error {
		assert.True(t, m.HoldsLock(main))
		return errTest
	})
	assert.Equal(t, errTest, err)
	assert.Nil(t, m.Owner())
}

func TestMonitorsTable(t *testing.T) {
	var table Monitors
	type key struct{ n int }
	a, b := &key{1}, &key{2}

	assert.Same(t, table.Of(a), table.Of(a))
	assert.NotSame(t, table.Of(a), table.Of(b))
	assert.Same(t, table.Of("name"), table.Of("name"))

	first := table.Of(a)
	table.Forget(a)
	assert.NotSame(t, first, table.Of(a))
}

func TestMonitorsTableConcurrentFirstUse(t *testing.T) {
	var table Monitors
	results := make([]*Monitor, 16)

	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = table.Of("shared")
		}(i)
	}
	wg.Wait()

	for _, m := range results {
		assert.Same(t, results[0], m)
	}
}
