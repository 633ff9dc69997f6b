// this package provide "mock" implementation of database for testing.
package mocks

import (
	"context"
	"errors"

	mdb "github.com/modelyard/modelyard/pkg/db"
)

type MockAccountDirectory struct {
	Impl struct {
		AssertUserExists  func(context.Context, int64) error
		AssertGroupExists func(context.Context, int64) error
		AssertUserInGroup func(context.Context, int64, int64) error
	}
	Calls struct {
		AssertUserExists  []int64
		AssertGroupExists []int64
		AssertUserInGroup []struct{ UserId, GroupId int64 }
	}
}

var _ mdb.AccountDirectory = &MockAccountDirectory{}

func NewMockAccountDirectory() *MockAccountDirectory {
	return &MockAccountDirectory{}
}

// FixedAccountDirectory returns a directory where every assertion
// passes. Useful when the test controls table contents directly.
func FixedAccountDirectory() *MockAccountDirectory {
	m := NewMockAccountDirectory()
	m.Impl.AssertUserExists = func(context.Context, int64) error { return nil }
	m.Impl.AssertGroupExists = func(context.Context, int64) error { return nil }
	m.Impl.AssertUserInGroup = func(context.Context, int64, int64) error { return nil }
	return m
}

func (m *MockAccountDirectory) AssertUserExists(ctx context.Context, userId int64) error {
	m.Calls.AssertUserExists = append(m.Calls.AssertUserExists, userId)
	if m.Impl.AssertUserExists == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.AssertUserExists(ctx, userId)
}

func (m *MockAccountDirectory) AssertGroupExists(ctx context.Context, groupId int64) error {
	m.Calls.AssertGroupExists = append(m.Calls.AssertGroupExists, groupId)
	if m.Impl.AssertGroupExists == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.AssertGroupExists(ctx, groupId)
}

func (m *MockAccountDirectory) AssertUserInGroup(ctx context.Context, userId int64, groupId int64) error {
	m.Calls.AssertUserInGroup = append(
		m.Calls.AssertUserInGroup, struct{ UserId, GroupId int64 }{userId, groupId},
	)
	if m.Impl.AssertUserInGroup == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.AssertUserInGroup(ctx, userId, groupId)
}
