package store

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// MemoryStorage keeps values for the life of the process.
type MemoryStorage struct {
	cache *cache.Cache
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{cache: cache.New(cache.NoExpiration, 0)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	if x, found := m.cache.Get(key); found {
		return x.(string), true, nil
	}
	return "", false, nil
}

func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.cache.Set(key, value, cache.NoExpiration)
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}
