// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import "fmt"

// State is the liveness state of a Thread.
type State int

// NEW -> RUNNABLE -> {BLOCKED, WAITING, TIMED_WAITING} -> RUNNABLE -> ... -> TERMINATED
const (
	StateNew State = iota
	StateRunnable
	StateBlocked
	StateWaiting
	StateTimedWaiting
	StateTerminated
)

// String values of possible thread states
const (
	StateNewName          = "NEW"
	StateRunnableName     = "RUNNABLE"
	StateBlockedName      = "BLOCKED"
	StateWaitingName      = "WAITING"
	StateTimedWaitingName = "TIMED_WAITING"
	StateTerminatedName   = "TERMINATED"
)

func (s State) String() string {
	switch s {
	case StateNew:
		return StateNewName
	case StateRunnable:
		return StateRunnableName
	case StateBlocked:
		return StateBlockedName
	case StateWaiting:
		return StateWaitingName
	case StateTimedWaiting:
		return StateTimedWaitingName
	case StateTerminated:
		return StateTerminatedName
	}
	return fmt.Sprintf("Cannot stringify core.State.%d", int(s))
}
