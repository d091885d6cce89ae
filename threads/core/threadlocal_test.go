// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadLocalPerThread(t *testing.T) {
	rt, main := newTestRuntime(t)
	calls := 0
	counter := NewThreadLocal(func() interface{} {
		calls++
		return 0
	})

	assert.Equal(t, 0, counter.Get(main))
	counter.Set(main, 7)
	assert.Equal(t, 7, counter.Get(main))

	observed := make(chan interface{}, 1)
	th := startThread(t, rt.MainGroup(), "other", func(th *Thread) error {
		observed <- counter.Get(th)
		return nil
	})
	require.NoError(t, th.Join(main, eventuallyTimeout))
	assert.Equal(t, 0, <-observed)
	assert.Equal(t, 7, counter.Get(main))
	assert.Equal(t, 2, calls)

	counter.Remove(main)
	assert.Equal(t, 0, counter.Get(main))
	assert.Equal(t, 3, calls)
}

func TestThreadLocalWithoutInitial(t *testing.T) {
	_, main := newTestRuntime(t)
	local := NewThreadLocal(nil)
	assert.Nil(t, local.Get(main))
	local.Set(main, "v")
	assert.Equal(t, "v", local.Get(main))
}

func TestInheritableThreadLocalCopiesValue(t *testing.T) {
	_, main := newTestRuntime(t)
	local := NewInheritableThreadLocal(nil, nil)
	local.Set(main, "inherited")

	observed := make(chan interface{}, 1)
	child, err := main.Spawn("child", func(th *Thread) error {
		observed <- local.Get(th)
		local.Set(th, "changed")
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, child.Start())
	require.NoError(t, child.Join(main, eventuallyTimeout))

	assert.Equal(t, "inherited", <-observed)
	assert.Equal(t, "inherited", local.Get(main))
}

func TestThreadLocalsReleasedOnTermination(t *testing.T) {
	rt, main := newTestRuntime(t)
	local := NewThreadLocal(nil)

	worker := startThread(t, rt.MainGroup(), "worker", func(th *Thread) error {
		local.Set(th, "set")
		return nil
	})
	require.NoError(t, worker.Join(main, eventuallyTimeout))

	worker.mu.Lock()
	assert.Empty(t, worker.locals)
	worker.mu.Unlock()
}
