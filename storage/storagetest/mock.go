// Package storagetest 提供 AssetStore 的 testify mock
package storagetest

import (
	"context"
	"io"

	"Romaly/storage"

	"github.com/stretchr/testify/mock"
)

type MockAssetStore struct {
	mock.Mock
}

func (m *MockAssetStore) Put(ctx context.Context, kind storage.Kind, r io.Reader, size int64, contentType, ext string) (string, error) {
	args := m.Called(ctx, kind, r, size, contentType, ext)
	return args.String(0), args.Error(1)
}

func (m *MockAssetStore) Delete(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockAssetStore) URLFor(ref string) string {
	if ref == "" {
		return ""
	}
	return "/uploads/" + ref
}
