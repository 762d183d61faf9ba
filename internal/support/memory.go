package support

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memoryRepository keeps the chat in process memory. It backs development
// runs without MONGODB_URI and the tests.
type memoryRepository struct {
	mu            sync.RWMutex
	conversations map[primitive.ObjectID]*Conversation
	messages      map[primitive.ObjectID][]Message
}

func NewMemoryRepository() Repository {
	return &memoryRepository{
		conversations: make(map[primitive.ObjectID]*Conversation),
		messages:      make(map[primitive.ObjectID][]Message),
	}
}

func (r *memoryRepository) CreateConversation(ctx context.Context, c *Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	stored := *c
	r.conversations[c.ID] = &stored
	return nil
}

func (r *memoryRepository) GetConversation(ctx context.Context, id primitive.ObjectID) (*Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *memoryRepository) OpenConversation(ctx context.Context, userID string) (*Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.conversations {
		if c.UserID == userID && c.Status == StatusOpen {
			copied := *c
			return &copied, nil
		}
	}
	return nil, ErrConversationNotFound
}

func (r *memoryRepository) ListConversations(ctx context.Context) ([]Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Conversation, 0, len(r.conversations))
	for _, c := range r.conversations {
		list = append(list, *c)
	}

	sort.Slice(list, func(i, j int) bool {
		a, b := list[i].LastMessageAt, list[j].LastMessageAt
		switch {
		case a == nil && b == nil:
			return list[i].CreatedAt.After(list[j].CreatedAt)
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
	return list, nil
}

func (r *memoryRepository) Assign(ctx context.Context, id primitive.ObjectID, adminID string, at time.Time) (*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	if c.AssignedAdminID != nil {
		return nil, ErrAlreadyAssigned
	}

	c.AssignedAdminID = &adminID
	c.AssignedAt = &at
	copied := *c
	return &copied, nil
}

func (r *memoryRepository) Unassign(ctx context.Context, id primitive.ObjectID, adminID string) (*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	if !c.AssignedTo(adminID) {
		return nil, ErrNotAssignee
	}

	c.AssignedAdminID = nil
	c.AssignedAt = nil
	copied := *c
	return &copied, nil
}

func (r *memoryRepository) AppendMessage(ctx context.Context, m *Message, activity Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[m.ConversationID]
	if !ok {
		return ErrConversationNotFound
	}
	if c.MessageCount != m.Seq-1 {
		return ErrSeqConflict
	}
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}

	r.messages[m.ConversationID] = append(r.messages[m.ConversationID], *m)
	activity.applyTo(c)
	return nil
}

func (r *memoryRepository) Messages(ctx context.Context, conversationID primitive.ObjectID) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	messages := make([]Message, len(r.messages[conversationID]))
	copy(messages, r.messages[conversationID])
	return messages, nil
}
