// Package blobstore holds sealed key material. The database only indexes
// it; the ciphertext lives here.
package blobstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/nova-sdk/novakeeper/internal/common"
)

// Store is implemented by Memory and S3. A missing key wraps
// common.ErrKeyNotFound. Deleting a missing key is not an error.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Memory keeps blobs in process.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: map[string][]byte{}}
}

func (m *Memory) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", key, common.ErrKeyNotFound)
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}
