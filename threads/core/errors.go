// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"errors"
	"fmt"

	"go.threadkit.io/threads/policy"
)

// ErrIllegalMonitorState returned when wait, notify or exit is called by a thread that does not own the monitor
var ErrIllegalMonitorState = errors.New("Current thread is not owner of the monitor")

// ErrInterrupted returned when a blocking operation was aborted by an interrupt
var ErrInterrupted = errors.New("Thread interrupted")

// ErrIllegalThreadState returned on operations that violate thread or group lifecycle
var ErrIllegalThreadState = errors.New("Illegal thread state")

// ErrIllegalArgument returned when a bounded parameter is outside its domain
var ErrIllegalArgument = errors.New("Illegal argument")

// ErrAccessDenied returned when the permission checker rejects an operation
var ErrAccessDenied = policy.ErrAccessDenied

// PanicError is the uncaught failure reported for a work unit that panicked.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
