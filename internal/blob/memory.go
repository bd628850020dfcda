package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryStore struct {
	mu   sync.RWMutex
	docs map[string]memoryDoc
}

type memoryDoc struct {
	data []byte
	info Info
}

// NewMemory returns an in-memory store for tests.
func NewMemory() Store {
	return &memoryStore{docs: make(map[string]memoryDoc)}
}

func (s *memoryStore) Driver() Driver { return DriverMemory }

func (s *memoryStore) Put(ctx context.Context, key string, data []byte) (Info, error) {
	if _, err := sanitizeKey(key); err != nil {
		return Info{}, err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	sum := sha256.Sum256(cp)
	info := Info{
		Key:          key,
		Size:         int64(len(cp)),
		ETag:         hex.EncodeToString(sum[:]),
		LastModified: time.Now().UTC(),
	}
	s.mu.Lock()
	s.docs[key] = memoryDoc{data: cp, info: info}
	s.mu.Unlock()
	return info, nil
}

func (s *memoryStore) Get(ctx context.Context, key string) ([]byte, Info, error) {
	s.mu.RLock()
	doc, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Info{}, ErrNotFound
	}
	cp := make([]byte, len(doc.data))
	copy(cp, doc.data)
	return cp, doc.info, nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[key]; !ok {
		return false, nil
	}
	delete(s.docs, key)
	return true, nil
}

func (s *memoryStore) List(ctx context.Context, prefix string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var infos []Info
	for key, doc := range s.docs {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, doc.info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

var _ Store = (*memoryStore)(nil)
