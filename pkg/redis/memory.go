package redis

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process Client used in tests and when running
// without a Redis server. TTLs are honored lazily on read.
type Memory struct {
	mu      sync.Mutex
	strings map[string]memoryEntry
	hashes  map[string]map[string]string
	lists   map[string][]string
	expiry  map[string]time.Time
}

type memoryEntry struct {
	value string
}

var _ Client = (*Memory)(nil)

// NewMemory creates an empty in-memory client
func NewMemory() *Memory {
	return &Memory{
		strings: make(map[string]memoryEntry),
		hashes:  make(map[string]map[string]string),
		lists:   make(map[string][]string),
		expiry:  make(map[string]time.Time),
	}
}

func (m *Memory) expired(key string) bool {
	deadline, ok := m.expiry[key]
	if !ok {
		return false
	}
	if time.Now().Before(deadline) {
		return false
	}
	delete(m.strings, key)
	delete(m.hashes, key)
	delete(m.lists, key)
	delete(m.expiry, key)
	return true
}

func (m *Memory) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[key] = memoryEntry{value: fmt.Sprintf("%v", value)}
	if ttl > 0 {
		m.expiry[key] = time.Now().Add(ttl)
	} else {
		delete(m.expiry, key)
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return "", ErrNotFound
	}
	entry, ok := m.strings[key]
	if !ok {
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (m *Memory) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.strings, key)
		delete(m.hashes, key)
		delete(m.lists, key)
		delete(m.expiry, key)
	}
	return nil
}

func (m *Memory) HSet(ctx context.Context, key string, field string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	h[field] = fmt.Sprintf("%v", value)
	return nil
}

func (m *Memory) HGet(ctx context.Context, key string, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return "", ErrNotFound
	}
	value, ok := m.hashes[key][field]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *Memory) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) LPush(ctx context.Context, key string, values ...interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, value := range values {
		m.lists[key] = append([]string{fmt.Sprintf("%v", value)}, m.lists[key]...)
	}
	return nil
}

func (m *Memory) LTrim(ctx context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if start >= n || start > stop {
		m.lists[key] = nil
		return nil
	}
	if stop >= n {
		stop = n - 1
	}
	m.lists[key] = list[start : stop+1]
	return nil
}

func (m *Memory) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return nil, nil
	}
	list := m.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if start >= n || start > stop {
		return nil, nil
	}
	if stop >= n {
		stop = n - 1
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (m *Memory) LLen(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return 0, nil
	}
	return int64(len(m.lists[key])), nil
}

func (m *Memory) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiry[key] = time.Now().Add(ttl)
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	return nil
}
