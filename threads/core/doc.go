// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

/*
Package core provides monitors, interruptible threads and thread groups.

# Monitors

Monitor is a re-entrant lock with a wait-set. A thread must own the monitor
to wait on it or notify it:

	m.Enter(t)
	for !ready {
		if err := m.Wait(t, 0); err != nil {
			// ErrInterrupted, monitor still owned
		}
	}
	m.Exit(t)

Wait may return without a notification, callers recheck their condition.
Runtime.MonitorOf attaches a monitor to any comparable value.

# Threads

Thread runs a work unit on its own goroutine and moves through the states
NEW, RUNNABLE, BLOCKED, WAITING, TIMED_WAITING and TERMINATED. The work unit
receives its own *Thread, which it passes to every operation that acts on the
calling thread (Monitor.Wait, Sleep, Interrupted, Join as caller).

Interrupt sets a sticky flag on the target and wakes it from Wait, Join or
Sleep, which then return ErrInterrupted and clear the flag.

# Thread groups

ThreadGroup forms a tree rooted at the runtime's "system" group. Groups count
and enumerate their threads, cap thread priorities, destroy themselves when
they are daemon groups left empty, and funnel uncaught failures of their
threads up to the runtime default handler.

# Permissions

Every mutating operation on a thread or group first consults the runtime's
policy.Checker and fails with ErrAccessDenied when it rejects.
*/
package core
