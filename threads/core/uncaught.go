// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"errors"

	log "github.com/sirupsen/logrus"
	"go.threadkit.io/threads/appctx"
	"go.threadkit.io/threads/fatalerror"
)

// UncaughtHandler receives failures that escaped a thread's work unit.
type UncaughtHandler interface {
	UncaughtFailure(t *Thread, err error)
}

// UncaughtHandlerFunc adapts a function to UncaughtHandler.
type UncaughtHandlerFunc func(t *Thread, err error)

// UncaughtFailure calls f(t, err).
func (f UncaughtHandlerFunc) UncaughtFailure(t *Thread, err error) {
	f(t, err)
}

// dispatchUncaught delivers failure to the handler chain of t exactly once.
// A panic raised by any handler in the chain is suppressed.
func (t *Thread) dispatchUncaught(failure error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("thread", t.Name()).Debugf("Suppressed panic in uncaught failure handler: %v", r)
			appctx.StoreFirstFatalError(t.rt.appCtx, fatalerror.HandlerPanic)
		}
	}()

	h := t.UncaughtHandler()
	if h == nil {
		h = t.rt.system
	}
	h.UncaughtFailure(t, failure)
}

// classify maps an uncaught failure to its fatal error type.
func classify(err error) fatalerror.ErrorType {
	var panicErr *PanicError
	switch {
	case err == nil:
		return fatalerror.Unknown
	case errors.As(err, &panicErr):
		return fatalerror.ThreadPanic
	case errors.Is(err, ErrInterrupted):
		return fatalerror.ThreadInterrupted
	default:
		return fatalerror.ThreadError
	}
}

// reportUncaught is the sink used when no default handler is installed.
func (rt *Runtime) reportUncaught(t *Thread, err error) {
	fields := log.Fields{"thread": t.Name(), "id": t.ID(), "runtime": rt.id}
	if panicErr, ok := err.(*PanicError); ok {
		fields["stack"] = string(panicErr.Stack)
	}
	log.WithFields(fields).WithError(err).Warn("Uncaught failure in thread")
}
