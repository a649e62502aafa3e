package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock satisfying storage.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	return nil
}

// MockNavigator records pre-signed URLs handed to it instead of following them
type MockNavigator struct {
	mock.Mock
}

func (m *MockNavigator) Navigate(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

// MockOpener stands in for the OS file/URL opener
type MockOpener struct {
	mock.Mock
}

func (m *MockOpener) Open(target string) error {
	args := m.Called(target)
	return args.Error(0)
}
