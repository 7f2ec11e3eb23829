// internal/session/memory.go
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"querydesk/internal/models"
)

// MemoryStore is the redis-less Store used in tests and single-node
// deployments without a redis address configured.
type MemoryStore struct {
	mu    sync.RWMutex
	flows map[string]*QuestionFlow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flows: make(map[string]*QuestionFlow)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*QuestionFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flow, ok := s.flows[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if !flow.StartedAt.IsZero() && time.Since(flow.StartedAt) > FlowTTL {
		return nil, ErrNotFound
	}
	cp := *flow
	return &cp, nil
}

func (s *MemoryStore) Put(_ context.Context, userID string, flow *QuestionFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *flow
	s.flows[userID] = &cp
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, userID)
	return nil
}

// MemoryConversationStore is the in-memory ConversationStore counterpart.
type MemoryConversationStore struct {
	mu       sync.RWMutex
	messages map[string][]models.Message
}

func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{messages: make(map[string][]models.Message)}
}

func (s *MemoryConversationStore) Append(_ context.Context, userID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[userID] = append(s.messages[userID], models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	if len(s.messages[userID]) > conversationMax {
		s.messages[userID] = s.messages[userID][len(s.messages[userID])-conversationMax:]
	}
	return nil
}

func (s *MemoryConversationStore) History(_ context.Context, userID string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[userID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
