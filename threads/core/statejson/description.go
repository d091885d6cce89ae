// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package statejson

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"
)

// StateDescription ...
type StateDescription struct {
	Name         string `json:"name"`
	LastModified int64  `json:"lastModified"`
}

// ThreadDescription ...
type ThreadDescription struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	State        StateDescription `json:"state"`
	Priority     int              `json:"priority"`
	Daemon       bool             `json:"daemon"`
	Interrupted  bool             `json:"interrupted"`
	Group        string           `json:"group,omitempty"`
	BlockedCount int64            `json:"blockedCount"`
	BlockedMs    int64            `json:"blockedMs"`
	WaitedCount  int64            `json:"waitedCount"`
	WaitedMs     int64            `json:"waitedMs"`
}

// GroupDescription describes a thread group and its subtree
type GroupDescription struct {
	Name        string              `json:"name"`
	MaxPriority int                 `json:"maxPriority"`
	Daemon      bool                `json:"daemon"`
	Destroyed   bool                `json:"destroyed"`
	Threads     []ThreadDescription `json:"threads"`
	Groups      []GroupDescription  `json:"groups"`
}

// RuntimeDescription describes a thread runtime for debugging purposes
type RuntimeDescription struct {
	ID              string           `json:"id"`
	Root            GroupDescription `json:"root"`
	LiveThreads     int              `json:"liveThreads"`
	FirstFatalError string           `json:"firstFatalError"`
}

func (s *RuntimeDescription) AsJSON() []byte {
	bytes, err := json.Marshal(s)
	if err != nil {
		log.Panicf("Failed to marshall runtime description: %s", err)
	}
	return bytes
}
