// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.threadkit.io/threads/appctx"
	"go.threadkit.io/threads/core/statejson"
	"go.threadkit.io/threads/policy"
)

// Runtime owns a thread group tree, the registry of live threads and the
// collaborators shared by them: permission checker, default uncaught failure
// handler and application context.
type Runtime struct {
	id       uuid.UUID
	appCtx   appctx.ApplicationContext
	checker  policy.Checker
	monitors Monitors
	nameSeq  int64

	// treeMu guards the structure of every group of the tree.
	treeMu sync.RWMutex
	system *ThreadGroup
	main   *ThreadGroup

	registryMu sync.Mutex
	registry   map[int64]*Thread
}

type config struct {
	checker policy.Checker
	appCtx  appctx.ApplicationContext
	handler UncaughtHandler
}

// Option configures a Runtime.
type Option func(*config)

// WithChecker installs the permission checker consulted by mutating operations.
func WithChecker(checker policy.Checker) Option {
	return func(c *config) { c.checker = checker }
}

// WithAppCtx shares an existing application context with the runtime.
func WithAppCtx(appCtx appctx.ApplicationContext) Option {
	return func(c *config) { c.appCtx = appCtx }
}

// WithDefaultUncaughtHandler installs the handler of failures that reach the root group.
func WithDefaultUncaughtHandler(h UncaughtHandler) Option {
	return func(c *config) { c.handler = h }
}

// NewRuntime returns new Runtime instance with a "system" root group and a
// "main" group below it.
func NewRuntime(opts ...Option) *Runtime {
	cfg := config{checker: policy.AllowAll{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.appCtx == nil {
		cfg.appCtx = appctx.NewApplicationContext()
	}

	rt := &Runtime{
		id:       uuid.New(),
		appCtx:   cfg.appCtx,
		checker:  cfg.checker,
		registry: make(map[int64]*Thread),
	}
	rt.system = &ThreadGroup{rt: rt, name: "system", maxPriority: MaxPriority}
	rt.main = &ThreadGroup{rt: rt, name: "main", parent: rt.system, maxPriority: MaxPriority}
	rt.system.groups = []*ThreadGroup{rt.main}

	rt.appCtx.Store(appctx.AppCtxRuntimeIDKey, rt.id.String())
	if cfg.handler != nil {
		appctx.StoreDefaultUncaughtHandler(rt.appCtx, cfg.handler)
	}

	log.WithField("runtime", rt.id).Debug("Thread runtime created")
	return rt
}

// ID returns the instance id of rt.
func (rt *Runtime) ID() string {
	return rt.id.String()
}

// AppCtx returns the application context of rt.
func (rt *Runtime) AppCtx() appctx.ApplicationContext {
	return rt.appCtx
}

// SystemGroup returns the root group.
func (rt *Runtime) SystemGroup() *ThreadGroup {
	return rt.system
}

// MainGroup returns the group attached threads join.
func (rt *Runtime) MainGroup() *ThreadGroup {
	return rt.main
}

// MonitorOf returns the monitor attached to obj. obj must be comparable.
func (rt *Runtime) MonitorOf(obj interface{}) *Monitor {
	return rt.monitors.Of(obj)
}

// ForgetMonitor drops the monitor attached to obj.
func (rt *Runtime) ForgetMonitor(obj interface{}) {
	rt.monitors.Forget(obj)
}

// Attach returns a running thread in the main group that stands for the
// calling goroutine, so it can own monitors, wait, sleep and be interrupted.
// The caller must Detach it when done.
func (rt *Runtime) Attach(name string) (*Thread, error) {
	t, err := rt.main.NewThread(name, nil)
	if err != nil {
		return nil, err
	}
	t.attached = true
	if err := t.Start(); err != nil {
		return nil, err
	}
	return t, nil
}

// Detach terminates a thread obtained from Attach.
func (rt *Runtime) Detach(t *Thread) error {
	if !t.attached {
		return fmt.Errorf("%w: %s is not attached", ErrIllegalThreadState, t.Name())
	}
	if t.State() == StateTerminated {
		return fmt.Errorf("%w: %s already detached", ErrIllegalThreadState, t.Name())
	}
	t.exit()
	return nil
}

func (rt *Runtime) register(t *Thread) {
	rt.registryMu.Lock()
	defer rt.registryMu.Unlock()
	rt.registry[t.id] = t
}

func (rt *Runtime) unregister(t *Thread) {
	rt.registryMu.Lock()
	defer rt.registryMu.Unlock()
	delete(rt.registry, t.id)
}

// AllThreads returns every live thread of rt ordered by id.
func (rt *Runtime) AllThreads() []*Thread {
	rt.registryMu.Lock()
	threads := make([]*Thread, 0, len(rt.registry))
	for _, t := range rt.registry {
		threads = append(threads, t)
	}
	rt.registryMu.Unlock()

	sort.Slice(threads, func(i, j int) bool { return threads[i].id < threads[j].id })
	return threads
}

// ThreadByID returns the live thread with the given id.
func (rt *Runtime) ThreadByID(id int64) (*Thread, bool) {
	rt.registryMu.Lock()
	defer rt.registryMu.Unlock()
	t, ok := rt.registry[id]
	return t, ok
}

// SetDefaultUncaughtHandler installs the handler of failures that reach the
// root group. A nil handler restores logging of such failures.
func (rt *Runtime) SetDefaultUncaughtHandler(h UncaughtHandler) error {
	if err := rt.check(policy.Permission{Action: policy.SetDefaultUncaughtHandler, Target: rt.ID()}); err != nil {
		return err
	}
	appctx.StoreDefaultUncaughtHandler(rt.appCtx, h)
	return nil
}

// DefaultUncaughtHandler returns the installed default handler, nil if none.
func (rt *Runtime) DefaultUncaughtHandler() UncaughtHandler {
	h, _ := appctx.LoadDefaultUncaughtHandler(rt.appCtx).(UncaughtHandler)
	return h
}

func (rt *Runtime) check(p policy.Permission) error {
	err := rt.checker.CheckPermission(p)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrAccessDenied) {
		err = fmt.Errorf("%w: %s: %v", ErrAccessDenied, p, err)
	}
	log.WithField("permission", p.String()).Debugf("Permission check failed: %s", err)
	return err
}

// Describe returns a snapshot of the group tree for debugging purposes.
func (rt *Runtime) Describe() *statejson.RuntimeDescription {
	rt.treeMu.RLock()
	root := rt.system.describeLocked()
	rt.treeMu.RUnlock()

	firstFatalError, _ := appctx.LoadFirstFatalError(rt.appCtx)
	return &statejson.RuntimeDescription{
		ID:              rt.ID(),
		Root:            root,
		LiveThreads:     len(rt.AllThreads()),
		FirstFatalError: string(firstFatalError),
	}
}

func (g *ThreadGroup) describeLocked() statejson.GroupDescription {
	desc := statejson.GroupDescription{
		Name:        g.name,
		MaxPriority: g.maxPriority,
		Daemon:      g.daemon,
		Destroyed:   g.destroyed,
		Threads:     make([]statejson.ThreadDescription, 0, len(g.threads)),
		Groups:      make([]statejson.GroupDescription, 0, len(g.groups)),
	}
	for _, t := range g.threads {
		desc.Threads = append(desc.Threads, t.Describe())
	}
	for _, child := range g.groups {
		desc.Groups = append(desc.Groups, child.describeLocked())
	}
	return desc
}

// Describe returns a snapshot of t for debugging purposes.
func (t *Thread) Describe() statejson.ThreadDescription {
	info := t.Info()
	interrupted := t.IsInterrupted()

	t.mu.Lock()
	defer t.mu.Unlock()
	desc := statejson.ThreadDescription{
		ID:   t.id,
		Name: t.name,
		State: statejson.StateDescription{
			Name:         t.state.String(),
			LastModified: t.stateLastModified.UnixNano() / int64(time.Millisecond),
		},
		Priority:     t.priority,
		Daemon:       t.daemon,
		Interrupted:  interrupted,
		BlockedCount: info.BlockedCount,
		BlockedMs:    info.BlockedTime.Milliseconds(),
		WaitedCount:  info.WaitedCount,
		WaitedMs:     info.WaitedTime.Milliseconds(),
	}
	if t.group != nil {
		desc.Group = t.group.name
	}
	return desc
}
