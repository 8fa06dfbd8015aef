package s3

import (
	"context"
	"crypto/md5" // #nosec G501 -- S3 ETags are MD5 by definition
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
)

// MockStore is an in-memory ObjectStore for tests. ETags follow the S3
// convention of hex-encoded MD5 so mirror comparisons behave like the real
// service.
type MockStore struct {
	mu      sync.Mutex
	Buckets map[string]map[string][]byte
	Calls   []string
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{Buckets: make(map[string]map[string][]byte)}
}

// Ensure interface compliance.
var _ ObjectStore = (*MockStore)(nil)

func (m *MockStore) record(call string) {
	m.Calls = append(m.Calls, call)
}

// EnsureBucket creates the bucket in memory.
func (m *MockStore) EnsureBucket(_ context.Context, bucket string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("EnsureBucket")
	if _, ok := m.Buckets[bucket]; ok {
		return true, nil
	}
	m.Buckets[bucket] = make(map[string][]byte)
	return false, nil
}

// BucketExists reports whether the bucket exists.
func (m *MockStore) BucketExists(_ context.Context, bucket string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("BucketExists")
	_, ok := m.Buckets[bucket]
	return ok, nil
}

// ListObjects lists stored objects under the prefix.
func (m *MockStore) ListObjects(_ context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListObjects")

	objects, ok := m.Buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("bucket %s not found", bucket)
	}

	var infos []ObjectInfo
	for key, data := range objects {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		sum := md5.Sum(data) // #nosec G401
		infos = append(infos, ObjectInfo{
			Key:  key,
			ETag: `"` + hex.EncodeToString(sum[:]) + `"`,
			Size: int64(len(data)),
		})
	}
	return infos, nil
}

// UploadFile stores the local file's content under the key.
func (m *MockStore) UploadFile(_ context.Context, bucket, key, path string) error {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UploadFile")

	objects, ok := m.Buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %s not found", bucket)
	}
	objects[key] = data
	return nil
}

// DeleteObjects removes the given keys.
func (m *MockStore) DeleteObjects(_ context.Context, bucket string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DeleteObjects")

	objects, ok := m.Buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %s not found", bucket)
	}
	for _, key := range keys {
		delete(objects, key)
	}
	return nil
}

// EmptyBucket removes all objects from the bucket.
func (m *MockStore) EmptyBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("EmptyBucket")
	if objects, ok := m.Buckets[bucket]; ok {
		for key := range objects {
			delete(objects, key)
		}
	}
	return nil
}

// DeleteBucket removes the bucket.
func (m *MockStore) DeleteBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DeleteBucket")
	delete(m.Buckets, bucket)
	return nil
}
