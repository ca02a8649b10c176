package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	contentType string
	data        []byte
}

// MemoryStore keeps blobs in process memory. URLs point at BaseURL, where
// the HTTP adapter serves them through Open.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	baseURL string
	now     func() time.Time
	unique  func() string
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
		unique:  newUnique,
	}
}

func (s *MemoryStore) Put(ctx context.Context, obj Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	key := ObjectKey(obj.OwnerID, obj.Filename, s.now(), s.unique())
	s.mu.Lock()
	s.objects[key] = memoryObject{contentType: obj.ContentType, data: data}
	s.mu.Unlock()
	return key, nil
}

func (s *MemoryStore) Remove(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, ref)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) URLFor(_ context.Context, ref string) (string, error) {
	if !s.Has(ref) {
		return "", ErrNotFound
	}
	return s.baseURL + "/" + (&url.URL{Path: ref}).EscapedPath(), nil
}

// Open returns the content and content type stored under ref.
func (s *MemoryStore) Open(ref string) (io.ReadCloser, string, error) {
	s.mu.RLock()
	obj, ok := s.objects[ref]
	s.mu.RUnlock()
	if !ok {
		return nil, "", ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.contentType, nil
}

func (s *MemoryStore) Has(ref string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[ref]
	return ok
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
