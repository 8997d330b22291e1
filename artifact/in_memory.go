package artifact

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultMaxBytesPerConversation bounds how much attachment data one
// conversation may accumulate in memory.
const DefaultMaxBytesPerConversation = 32 << 20 // 32 MiB

// ErrQuotaExceeded is returned by Save when an attachment would push the
// conversation over its byte quota. The caller decides whether to delete old
// attachments and retry; the store never evicts on its own.
var ErrQuotaExceeded = fmt.Errorf("artifact quota exceeded")

// attachment is one stored blob plus the bookkeeping List and quota
// enforcement rely on.
type attachment struct {
	data    []byte
	savedAt time.Time
}

// conversationSpace tracks one conversation's attachments and their combined
// size, so quota checks don't rescan every blob.
type conversationSpace struct {
	attachments map[string]*attachment
	totalBytes  int
}

// InMemoryStoreOptions configures the in-memory store.
type InMemoryStoreOptions struct {
	// MaxBytesPerConversation caps the combined attachment size per
	// conversation. Zero applies DefaultMaxBytesPerConversation; negative
	// disables the quota.
	MaxBytesPerConversation int
}

// InMemoryStore keeps attachments in process memory, scoped by conversation
// and bounded by a per-conversation byte quota. Useful for tests and
// single-process runs; for durability use the s3 backend.
type InMemoryStore struct {
	mu       sync.RWMutex
	spaces   map[string]*conversationSpace
	maxBytes int
}

// NewInMemoryStore returns an empty in-memory attachment store.
func NewInMemoryStore(optFns ...func(o *InMemoryStoreOptions)) *InMemoryStore {
	opts := InMemoryStoreOptions{MaxBytesPerConversation: DefaultMaxBytesPerConversation}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxBytesPerConversation == 0 {
		opts.MaxBytesPerConversation = DefaultMaxBytesPerConversation
	}

	return &InMemoryStore{
		spaces:   make(map[string]*conversationSpace),
		maxBytes: opts.MaxBytesPerConversation,
	}
}

// Save stores (or replaces) an attachment. The bytes are copied, the
// conversation's usage is adjusted for any replaced blob, and the save is
// rejected with ErrQuotaExceeded when it would exceed the quota.
func (s *InMemoryStore) Save(_ context.Context, conversationID, artifactID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	space := s.spaces[conversationID]
	if space == nil {
		space = &conversationSpace{attachments: make(map[string]*attachment)}
		s.spaces[conversationID] = space
	}

	replaced := 0
	if prev, ok := space.attachments[artifactID]; ok {
		replaced = len(prev.data)
	}

	if s.maxBytes >= 0 && space.totalBytes-replaced+len(data) > s.maxBytes {
		return fmt.Errorf("%w: conversation %s holds %d bytes, saving %d more of %d allowed",
			ErrQuotaExceeded, conversationID, space.totalBytes-replaced, len(data), s.maxBytes)
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	space.attachments[artifactID] = &attachment{data: cp, savedAt: time.Now()}
	space.totalBytes += len(data) - replaced
	return nil
}

// Get returns a copy of the attachment bytes or ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, conversationID, artifactID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	att := s.lookup(conversationID, artifactID)
	if att == nil {
		return nil, ErrNotFound
	}

	cp := make([]byte, len(att.data))
	copy(cp, att.data)
	return cp, nil
}

// List returns the conversation's attachment ids ordered by save time
// (oldest first, id as tie-break). The s3 backend lists ids in key order
// instead.
func (s *InMemoryStore) List(_ context.Context, conversationID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	space := s.spaces[conversationID]
	if space == nil {
		return []string{}, nil
	}

	ids := make([]string, 0, len(space.attachments))
	for id := range space.attachments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := space.attachments[ids[i]], space.attachments[ids[j]]
		if !a.savedAt.Equal(b.savedAt) {
			return a.savedAt.Before(b.savedAt)
		}
		return ids[i] < ids[j]
	})
	return ids, nil
}

// Delete removes the attachment, releasing its quota, or returns ErrNotFound.
func (s *InMemoryStore) Delete(_ context.Context, conversationID, artifactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	space := s.spaces[conversationID]
	if space == nil {
		return ErrNotFound
	}
	att, ok := space.attachments[artifactID]
	if !ok {
		return ErrNotFound
	}

	delete(space.attachments, artifactID)
	space.totalBytes -= len(att.data)
	if len(space.attachments) == 0 {
		delete(s.spaces, conversationID)
	}
	return nil
}

// BytesStored reports the conversation's current attachment usage.
func (s *InMemoryStore) BytesStored(conversationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if space := s.spaces[conversationID]; space != nil {
		return space.totalBytes
	}
	return 0
}

func (s *InMemoryStore) lookup(conversationID, artifactID string) *attachment {
	if space := s.spaces[conversationID]; space != nil {
		return space.attachments[artifactID]
	}
	return nil
}
