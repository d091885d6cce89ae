// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package fatalerror

// This package defines constant error types used to classify failures that
// escaped a thread's work unit. Separate package for namespacing

// ErrorType is recorded as the first fatal error of a runtime
type ErrorType string

const (
	ThreadError       ErrorType = "Thread.Error"        // work unit returned a non-nil error
	ThreadPanic       ErrorType = "Thread.Panic"        // work unit panicked
	HandlerPanic      ErrorType = "Thread.HandlerPanic" // uncaught failure handler panicked, failure suppressed
	ThreadInterrupted ErrorType = "Thread.Interrupted"  // work unit gave up because it was interrupted
	Unknown           ErrorType = "Unknown"
)
