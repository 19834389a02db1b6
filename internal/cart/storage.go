package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Storage is the durable key/value store backing the cart, modelled after
// browser local storage.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// MemoryStorage keeps values in process memory.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemoryStorage returns an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: map[string][]byte{}}
}

// Get implements Storage.
func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set implements Storage.
func (m *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string][]byte{}
	}
	m.values[key] = append([]byte(nil), value...)
	return nil
}

// Remove implements Storage.
func (m *MemoryStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// FileStorage persists all keys into a single JSON document on disk.
type FileStorage struct {
	Path string

	mu sync.Mutex
}

// Get implements Storage.
func (f *FileStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return nil, false, err
	}
	v, ok := doc[key]
	return []byte(v), ok, nil
}

// Set implements Storage.
func (f *FileStorage) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	doc[key] = json.RawMessage(append([]byte(nil), value...))
	return f.write(doc)
}

// Remove implements Storage.
func (f *FileStorage) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return f.write(doc)
}

func (f *FileStorage) read() (map[string]json.RawMessage, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, errors.New("cart: file storage path not configured")
	}
	doc := map[string]json.RawMessage{}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cart: decode %s: %w", f.Path, err)
	}
	return doc, nil
}

func (f *FileStorage) write(doc map[string]json.RawMessage) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

// RedisStorage scopes keys to a browsing session, e.g. cb_cart:<session>.
type RedisStorage struct {
	Client  *redis.Client
	Session string
	TTL     time.Duration
}

func (r RedisStorage) redisKey(key string) string {
	session := strings.TrimSpace(r.Session)
	if session == "" {
		return key
	}
	return key + ":" + session
}

// Get implements Storage.
func (r RedisStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if r.Client == nil {
		return nil, false, errors.New("cart: redis client not configured")
	}
	v, err := r.Client.Get(ctx, r.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

// Set implements Storage. A zero TTL keeps the key without expiry.
func (r RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	if r.Client == nil {
		return errors.New("cart: redis client not configured")
	}
	return r.Client.Set(ctx, r.redisKey(key), value, r.TTL).Err()
}

// Remove implements Storage.
func (r RedisStorage) Remove(ctx context.Context, key string) error {
	if r.Client == nil {
		return errors.New("cart: redis client not configured")
	}
	return r.Client.Del(ctx, r.redisKey(key)).Err()
}
