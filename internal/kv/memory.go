package kv

import (
	"bytes"
	"context"
	"sync"
)

type memoryKey struct {
	origin string
	key    string
}

// MemoryStore is an in-process Store. Values do not survive a restart.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[memoryKey][]byte
	subs   map[int]chan Change
	nextID int
	closed bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[memoryKey][]byte),
		subs: make(map[int]chan Change),
	}
}

func (s *MemoryStore) Get(ctx context.Context, origin, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}

	v, ok := s.data[memoryKey{origin, key}]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (s *MemoryStore) Set(ctx context.Context, origin, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.data[memoryKey{origin, key}] = bytes.Clone(value)
	s.publishLocked(Change{Origin: origin, Key: key})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, origin, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	k := memoryKey{origin, key}
	if _, ok := s.data[k]; !ok {
		return nil
	}
	delete(s.data, k)
	s.publishLocked(Change{Origin: origin, Key: key})
	return nil
}

// Update runs fn under the store lock, so it never conflicts.
func (s *MemoryStore) Update(ctx context.Context, origin, key string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	k := memoryKey{origin, key}
	old, exists := s.data[k]
	next, write, err := fn(bytes.Clone(old), exists)
	if err != nil || !write {
		return err
	}
	if next == nil {
		if !exists {
			return nil
		}
		delete(s.data, k)
	} else {
		s.data[k] = bytes.Clone(next)
	}
	s.publishLocked(Change{Origin: origin, Key: key})
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context) (<-chan Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	id := s.nextID
	s.nextID++
	ch := make(chan Change, watchBuffer)
	s.subs[id] = ch

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}()
	return ch, nil
}

// Close closes every watch channel. Further calls return ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	return nil
}

func (s *MemoryStore) publishLocked(c Change) {
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
