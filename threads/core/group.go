// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.threadkit.io/threads/appctx"
	"go.threadkit.io/threads/policy"
)

// ThreadGroup is a node of the group tree of a Runtime. It owns member threads
// and child groups and funnels uncaught failures towards the root.
//
// Every structural field is guarded by the runtime's tree lock.
type ThreadGroup struct {
	rt     *Runtime
	name   string
	parent *ThreadGroup

	groups      []*ThreadGroup
	threads     []*Thread
	unstarted   int
	maxPriority int
	daemon      bool
	destroyed   bool
	handler     UncaughtHandler
}

// NewGroup creates a child group of g. The child inherits the daemon flag and
// maximum priority of g.
func (g *ThreadGroup) NewGroup(name string) (*ThreadGroup, error) {
	if err := g.checkAccess(); err != nil {
		return nil, err
	}
	g.rt.treeMu.Lock()
	defer g.rt.treeMu.Unlock()
	if g.destroyed {
		return nil, fmt.Errorf("%w: group %s is destroyed", ErrIllegalThreadState, g.name)
	}
	child := &ThreadGroup{
		rt:          g.rt,
		name:        name,
		parent:      g,
		maxPriority: g.maxPriority,
		daemon:      g.daemon,
	}
	g.groups = append(g.groups, child)
	log.Debugf("Thread group %s created under %s", name, g.name)
	return child, nil
}

// NewThread creates an unstarted thread in g. An empty name is replaced by
// a generated Thread-N name.
func (g *ThreadGroup) NewThread(name string, run Runnable) (*Thread, error) {
	if err := g.checkAccess(); err != nil {
		return nil, err
	}
	g.rt.treeMu.Lock()
	defer g.rt.treeMu.Unlock()
	if g.destroyed {
		return nil, fmt.Errorf("%w: group %s is destroyed", ErrIllegalThreadState, g.name)
	}
	g.unstarted++
	t := g.rt.newThread(g, name, run)
	if t.priority > g.maxPriority {
		t.priority = g.maxPriority
	}
	return t, nil
}

func (g *ThreadGroup) add(t *Thread) error {
	g.rt.treeMu.Lock()
	defer g.rt.treeMu.Unlock()
	if g.destroyed {
		return fmt.Errorf("%w: group %s is destroyed", ErrIllegalThreadState, g.name)
	}
	g.threads = append(g.threads, t)
	if g.unstarted > 0 {
		g.unstarted--
	}
	return nil
}

func (g *ThreadGroup) remove(t *Thread) {
	g.rt.treeMu.Lock()
	defer g.rt.treeMu.Unlock()
	for i, x := range g.threads {
		if x == t {
			copy(g.threads[i:], g.threads[i+1:])
			g.threads[len(g.threads)-1] = nil
			g.threads = g.threads[:len(g.threads)-1]
			break
		}
	}
	g.autoDestroyLocked()
}

func (g *ThreadGroup) removeGroupLocked(child *ThreadGroup) {
	for i, x := range g.groups {
		if x == child {
			copy(g.groups[i:], g.groups[i+1:])
			g.groups[len(g.groups)-1] = nil
			g.groups = g.groups[:len(g.groups)-1]
			break
		}
	}
	g.autoDestroyLocked()
}

// autoDestroyLocked destroys an empty daemon group. The removal from the
// parent may cascade up the tree.
func (g *ThreadGroup) autoDestroyLocked() {
	if !g.daemon || g.destroyed {
		return
	}
	if len(g.threads) > 0 || len(g.groups) > 0 || g.unstarted > 0 {
		return
	}
	log.Debugf("Daemon thread group %s is empty, destroying", g.name)
	g.destroyLocked()
}

// Destroy destroys g and its whole subtree. It fails if g is already
// destroyed or any group of the subtree still has live threads.
func (g *ThreadGroup) Destroy() error {
	if err := g.checkAccess(); err != nil {
		return err
	}
	g.rt.treeMu.Lock()
	defer g.rt.treeMu.Unlock()
	if g.destroyed {
		return fmt.Errorf("%w: group %s is already destroyed", ErrIllegalThreadState, g.name)
	}
	if n := g.activeCountLocked(); n > 0 {
		return fmt.Errorf("%w: group %s has %d active threads", ErrIllegalThreadState, g.name, n)
	}
	g.destroyLocked()
	return nil
}

func (g *ThreadGroup) destroyLocked() {
	g.markDestroyedLocked()
	if g.parent != nil {
		g.parent.removeGroupLocked(g)
	}
}

func (g *ThreadGroup) markDestroyedLocked() {
	for _, child := range g.groups {
		child.markDestroyedLocked()
	}
	g.groups = nil
	g.threads = nil
	g.destroyed = true
	log.Debugf("Thread group %s destroyed", g.name)
}

// SetMaxPriority lowers or raises the priority ceiling of g and of its whole
// subtree. Values below MinPriority are clamped; values above the parent's
// ceiling leave the group unchanged. Priorities of existing threads are kept.
func (g *ThreadGroup) SetMaxPriority(priority int) error {
	if err := g.checkAccess(); err != nil {
		return err
	}
	g.rt.treeMu.Lock()
	defer g.rt.treeMu.Unlock()
	g.setMaxPriorityLocked(priority)
	return nil
}

func (g *ThreadGroup) setMaxPriorityLocked(priority int) {
	if priority < MinPriority {
		priority = MinPriority
	}
	ceiling := MaxPriority
	if g.parent != nil {
		ceiling = g.parent.maxPriority
	}
	if priority > ceiling {
		return
	}
	g.maxPriority = priority
	for _, child := range g.groups {
		child.setMaxPriorityLocked(priority)
	}
}

// MaxPriority returns the priority ceiling of g.
func (g *ThreadGroup) MaxPriority() int {
	g.rt.treeMu.RLock()
	defer g.rt.treeMu.RUnlock()
	return g.maxPriority
}

// IsDaemon reports whether g is destroyed automatically once empty.
func (g *ThreadGroup) IsDaemon() bool {
	g.rt.treeMu.RLock()
	defer g.rt.treeMu.RUnlock()
	return g.daemon
}

// SetDaemon changes the daemon flag of g.
func (g *ThreadGroup) SetDaemon(on bool) error {
	if err := g.checkAccess(); err != nil {
		return err
	}
	g.rt.treeMu.Lock()
	defer g.rt.treeMu.Unlock()
	g.daemon = on
	return nil
}

// IsDestroyed reports whether g has been destroyed.
func (g *ThreadGroup) IsDestroyed() bool {
	g.rt.treeMu.RLock()
	defer g.rt.treeMu.RUnlock()
	return g.destroyed
}

// Name returns the name of g.
func (g *ThreadGroup) Name() string {
	return g.name
}

// Parent returns the parent of g, nil for the root.
func (g *ThreadGroup) Parent() *ThreadGroup {
	return g.parent
}

// ParentOf reports whether g is other or one of its ancestors.
func (g *ThreadGroup) ParentOf(other *ThreadGroup) bool {
	for x := other; x != nil; x = x.parent {
		if x == g {
			return true
		}
	}
	return false
}

// ActiveCount returns the number of live threads in the subtree of g.
func (g *ThreadGroup) ActiveCount() int {
	g.rt.treeMu.RLock()
	defer g.rt.treeMu.RUnlock()
	return g.activeCountLocked()
}

func (g *ThreadGroup) activeCountLocked() int {
	n := len(g.threads)
	for _, child := range g.groups {
		n += child.activeCountLocked()
	}
	return n
}

// ActiveGroupCount returns the number of groups below g.
func (g *ThreadGroup) ActiveGroupCount() int {
	g.rt.treeMu.RLock()
	defer g.rt.treeMu.RUnlock()
	return g.activeGroupCountLocked()
}

func (g *ThreadGroup) activeGroupCountLocked() int {
	n := len(g.groups)
	for _, child := range g.groups {
		n += child.activeGroupCountLocked()
	}
	return n
}

// Enumerate copies the live threads of g, and of its subtree when recurse is
// set, into buf and returns how many were written. Threads that do not fit
// are silently dropped; slots past the count are left untouched.
func (g *ThreadGroup) Enumerate(buf []*Thread, recurse bool) int {
	g.rt.treeMu.RLock()
	defer g.rt.treeMu.RUnlock()
	return g.enumerateLocked(buf, 0, recurse)
}

func (g *ThreadGroup) enumerateLocked(buf []*Thread, n int, recurse bool) int {
	for _, t := range g.threads {
		if n >= len(buf) {
			return n
		}
		buf[n] = t
		n++
	}
	if recurse {
		for _, child := range g.groups {
			n = child.enumerateLocked(buf, n, true)
		}
	}
	return n
}

// EnumerateGroups copies the child groups of g, and their subtrees when
// recurse is set, into buf and returns how many were written.
func (g *ThreadGroup) EnumerateGroups(buf []*ThreadGroup, recurse bool) int {
	g.rt.treeMu.RLock()
	defer g.rt.treeMu.RUnlock()
	return g.enumerateGroupsLocked(buf, 0, recurse)
}

func (g *ThreadGroup) enumerateGroupsLocked(buf []*ThreadGroup, n int, recurse bool) int {
	for _, child := range g.groups {
		if n >= len(buf) {
			return n
		}
		buf[n] = child
		n++
		if recurse {
			n = child.enumerateGroupsLocked(buf, n, true)
		}
	}
	return n
}

// Interrupt interrupts every live thread in the subtree of g.
func (g *ThreadGroup) Interrupt() error {
	if err := g.checkAccess(); err != nil {
		return err
	}
	g.rt.treeMu.RLock()
	threads := make([]*Thread, g.activeCountLocked())
	n := g.enumerateLocked(threads, 0, true)
	g.rt.treeMu.RUnlock()

	for _, t := range threads[:n] {
		if err := t.Interrupt(); err != nil {
			return err
		}
	}
	return nil
}

// SetUncaughtHandler installs an override that receives the failures
// delivered to g instead of the default forwarding. The override may call
// ForwardUncaught to keep the default behavior. A nil handler removes it.
func (g *ThreadGroup) SetUncaughtHandler(h UncaughtHandler) error {
	if err := g.checkAccess(); err != nil {
		return err
	}
	g.rt.treeMu.Lock()
	defer g.rt.treeMu.Unlock()
	g.handler = h
	return nil
}

// UncaughtFailure implements UncaughtHandler.
func (g *ThreadGroup) UncaughtFailure(t *Thread, err error) {
	g.rt.treeMu.RLock()
	h := g.handler
	g.rt.treeMu.RUnlock()

	if h != nil {
		h.UncaughtFailure(t, err)
		return
	}
	g.ForwardUncaught(t, err)
}

// ForwardUncaught passes a failure to the parent group, or at the root to
// the runtime default handler.
func (g *ThreadGroup) ForwardUncaught(t *Thread, err error) {
	if g.parent != nil {
		g.parent.UncaughtFailure(t, err)
		return
	}

	appctx.StoreFirstFatalError(g.rt.appCtx, classify(err))
	if h := g.rt.DefaultUncaughtHandler(); h != nil {
		h.UncaughtFailure(t, err)
		return
	}
	g.rt.reportUncaught(t, err)
}

// List writes an indented description of the subtree of g to w.
func (g *ThreadGroup) List(w io.Writer) {
	g.rt.treeMu.RLock()
	defer g.rt.treeMu.RUnlock()
	g.listLocked(w, 0)
}

func (g *ThreadGroup) listLocked(w io.Writer, indent int) {
	pad := strings.Repeat("    ", indent)
	fmt.Fprintf(w, "%s%s\n", pad, g)
	for _, t := range g.threads {
		fmt.Fprintf(w, "%s    %s\n", pad, t)
	}
	for _, child := range g.groups {
		child.listLocked(w, indent+1)
	}
}

func (g *ThreadGroup) checkAccess() error {
	return g.rt.check(policy.Permission{Action: policy.ModifyThreadGroup, Target: g.name})
}

func (g *ThreadGroup) String() string {
	return fmt.Sprintf("ThreadGroup[name=%s]", g.name)
}
