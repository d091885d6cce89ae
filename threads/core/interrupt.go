// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import "sync"

// InterruptFlag is the sticky interrupt request of a single thread.
// Set may be called from any goroutine; arm and disarm only by the owner.
type InterruptFlag struct {
	mu   sync.Mutex
	set  bool
	wake chan struct{}
}

// Set raises the flag and wakes the owner if it is parked interruptibly.
func (f *InterruptFlag) Set() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set = true
	if f.wake != nil {
		close(f.wake)
		f.wake = nil
	}
}

// IsSet reports the flag without clearing it.
func (f *InterruptFlag) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

// TestAndClear reports the flag and clears it.
func (f *InterruptFlag) TestAndClear() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := f.set
	f.set = false
	return set
}

// arm registers an interruptible park. The returned channel is closed by Set.
// If an interrupt is already pending no channel is returned.
func (f *InterruptFlag) arm() (<-chan struct{}, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set {
		return nil, true
	}
	f.wake = make(chan struct{})
	return f.wake, false
}

func (f *InterruptFlag) disarm() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wake = nil
}
