// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"fmt"
	"sync"
)

// ErrAccessDenied returned when a checker rejects an operation
var ErrAccessDenied = errors.New("Access denied")

// Action names the kind of mutation being checked.
type Action string

const (
	ModifyThread              Action = "modifyThread"
	ModifyThreadGroup         Action = "modifyThreadGroup"
	StopThread                Action = "stopThread"
	SetDefaultUncaughtHandler Action = "setDefaultUncaughtHandler"
)

// Permission describes one checked operation on a named target.
type Permission struct {
	Action Action
	Target string
}

func (p Permission) String() string {
	return fmt.Sprintf("%s(%s)", p.Action, p.Target)
}

// Checker gates mutating operations. A non-nil error rejects the operation.
type Checker interface {
	CheckPermission(Permission) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(Permission) error

func (f CheckerFunc) CheckPermission(p Permission) error { return f(p) }

// AllowAll accepts every operation.
type AllowAll struct{}

func (AllowAll) CheckPermission(Permission) error { return nil }

// Denied returns an ErrAccessDenied wrapping error for p.
func Denied(p Permission) error {
	return fmt.Errorf("%w: %s", ErrAccessDenied, p)
}

// Rules denies configured actions, optionally restricted to targets.
// Rules can be changed while in use.
type Rules struct {
	mu     sync.RWMutex
	denied map[Action]map[string]bool
}

// NewRules returns an empty rule set that allows everything.
func NewRules() *Rules {
	return &Rules{denied: make(map[Action]map[string]bool)}
}

// Deny rejects action on the given targets, or on every target if none are given.
func (r *Rules) Deny(action Action, targets ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.denied[action]
	if !ok {
		set = make(map[string]bool)
		r.denied[action] = set
	}
	if len(targets) == 0 {
		set[""] = true
	}
	for _, target := range targets {
		set[target] = true
	}
}

// Allow drops every rule for action.
func (r *Rules) Allow(action Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.denied, action)
}

// CheckPermission implements Checker.
func (r *Rules) CheckPermission(p Permission) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.denied[p.Action]
	if !ok {
		return nil
	}
	if set[""] || set[p.Target] {
		return Denied(p)
	}
	return nil
}
