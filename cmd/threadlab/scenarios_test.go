// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.threadkit.io/threads/core"
)

func newLab(t *testing.T) *lab {
	rt := core.NewRuntime()
	main, err := rt.Attach("main")
	require.NoError(t, err)
	t.Cleanup(func() { rt.Detach(main) })
	return &lab{rt: rt, main: main, threads: 5, rng: rand.New(rand.NewSource(1))}
}

func TestScenariosPass(t *testing.T) {
	for _, s := range scenarios {
		s := s
		t.Run(s.name, func(t *testing.T) {
			l := newLab(t)
			assert.NoError(t, s.run(l))
			assert.Equal(t, 0, l.rt.MainGroup().ActiveGroupCount())
			assert.Equal(t, 1, l.rt.MainGroup().ActiveCount())
		})
	}
}

func TestRunAll(t *testing.T) {
	l := newLab(t)
	assert.NoError(t, l.runAll(selectScenarios(scenarioAll)))
}

func TestSelectScenarios(t *testing.T) {
	assert.Len(t, selectScenarios(scenarioAll), len(scenarios))

	selected := selectScenarios(scenarioDestroy)
	require.Len(t, selected, 1)
	assert.Equal(t, scenarioDestroy, selected[0].name)

	assert.Empty(t, selectScenarios("unknown"))
}
