package publish

import (
	"context"
	"sort"
	"sync"
)

// Compile-time interface check.
var _ ObjectStore = (*MemoryStore)(nil)

// MemoryStore is an ObjectStore that keeps objects in memory. The pipeline
// command uses it for dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	puts    int

	// PutErr, when set, is returned by every PutObject call.
	PutErr error
}

// NewMemoryStore returns an empty MemoryStore for bucket.
func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objects: make(map[string][]byte)}
}

// Bucket returns the bucket name.
func (m *MemoryStore) Bucket() string { return m.bucket }

// PutObject stores a copy of body at key.
func (m *MemoryStore) PutObject(ctx context.Context, key string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return m.PutErr
	}
	m.objects[key] = append([]byte(nil), body...)
	m.puts++
	return nil
}

// EnsureBucket is a no-op.
func (m *MemoryStore) EnsureBucket(context.Context) error { return nil }

// Object returns the object at key.
func (m *MemoryStore) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}

// Keys returns every stored key in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Puts returns the number of successful PutObject calls.
func (m *MemoryStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
