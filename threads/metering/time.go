// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package metering

import (
	"sync"
	"time"
)

func Monotime() int64 {
	// Wall and monotonic clocks get out of sync inside docker: https://github.com/golang/go/issues/27090
	return time.Now().UnixNano()
}

// Accumulator counts completed intervals and sums their durations.
// Used for per-thread blocked and waited statistics.
type Accumulator struct {
	mu      sync.Mutex
	count   int64
	totalNs int64
	startNs int64
}

// Start opens an interval. Starting an already open interval restarts it.
func (a *Accumulator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startNs = Monotime()
}

// Stop closes the open interval, no-op if none is open.
func (a *Accumulator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startNs == 0 {
		return
	}
	elapsed := Monotime() - a.startNs
	if elapsed < 0 {
		elapsed = 0
	}
	a.count++
	a.totalNs += elapsed
	a.startNs = 0
}

// Snapshot returns the number of closed intervals and their total duration.
func (a *Accumulator) Snapshot() (int64, time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count, time.Duration(a.totalNs)
}
