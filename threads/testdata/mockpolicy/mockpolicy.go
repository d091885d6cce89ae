// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package mockpolicy

import (
	"github.com/stretchr/testify/mock"
	"go.threadkit.io/threads/policy"
)

// MockChecker implements policy.Checker with testify expectations.
type MockChecker struct {
	mock.Mock
}

// CheckPermission records the call and returns the configured error.
func (m *MockChecker) CheckPermission(p policy.Permission) error {
	args := m.Called(p)
	return args.Error(0)
}

// NewDenyingChecker returns a checker rejecting action and allowing everything else.
func NewDenyingChecker(action policy.Action) *MockChecker {
	m := &MockChecker{}
	m.On("CheckPermission", mock.MatchedBy(func(p policy.Permission) bool { return p.Action == action })).
		Return(policy.ErrAccessDenied)
	m.On("CheckPermission", mock.Anything).Return(nil)
	return m
}
