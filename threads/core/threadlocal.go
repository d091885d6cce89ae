// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

// ThreadLocal is a variable with an independent value per thread.
type ThreadLocal struct {
	initial     func() interface{}
	inheritable bool
	childValue  func(parent interface{}) interface{}
}

// NewThreadLocal returns a thread-local whose value is initialized by initial
// on first Get in each thread. A nil initial yields nil.
func NewThreadLocal(initial func() interface{}) *ThreadLocal {
	return &ThreadLocal{initial: initial}
}

// NewInheritableThreadLocal returns a thread-local whose value is copied into
// threads spawned from a thread holding a value. childValue computes the
// child's value from the parent's; nil copies it unchanged.
func NewInheritableThreadLocal(initial func() interface{}, childValue func(parent interface{}) interface{}) *ThreadLocal {
	return &ThreadLocal{initial: initial, inheritable: true, childValue: childValue}
}

// Get returns the value of l in t, initializing it on first access.
func (l *ThreadLocal) Get(t *Thread) interface{} {
	t.mu.Lock()
	v, ok := t.locals[l]
	t.mu.Unlock()
	if ok {
		return v
	}

	if l.initial != nil {
		v = l.initial()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.locals[l]; ok {
		return existing
	}
	t.setLocalUnsafe(l, v)
	return v
}

// Set replaces the value of l in t.
func (l *ThreadLocal) Set(t *Thread, v interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setLocalUnsafe(l, v)
}

// Remove drops the value of l in t; the next Get initializes it again.
func (l *ThreadLocal) Remove(t *Thread) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.locals, l)
}

func (t *Thread) setLocalUnsafe(l *ThreadLocal, v interface{}) {
	if t.locals == nil {
		t.locals = make(map[*ThreadLocal]interface{})
	}
	t.locals[l] = v
}

func (t *Thread) inheritableLocals() map[*ThreadLocal]interface{} {
	t.mu.Lock()
	parent := make(map[*ThreadLocal]interface{})
	for l, v := range t.locals {
		if l.inheritable {
			parent[l] = v
		}
	}
	t.mu.Unlock()

	if len(parent) == 0 {
		return nil
	}
	inherited := make(map[*ThreadLocal]interface{}, len(parent))
	for l, v := range parent {
		if l.childValue != nil {
			v = l.childValue(v)
		}
		inherited[l] = v
	}
	return inherited
}
