package support

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxMessageLength = 4000
	lockStripes      = 256
)

var (
	ErrAdminOnly    = apperr.Forbidden("admin access required")
	ErrEmptyMessage = apperr.Validation("message text is required")
	ErrTooLong      = apperr.Validation("message is too long")
)

type SendInput struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	AttachmentURL  string `json:"attachment_url"`
}

// History is the payload of a join and of the support:messages push.
type History struct {
	Conversation *Conversation `json:"conversation"`
	Messages     []Message     `json:"messages"`
}

type Manager struct {
	repo Repository
	hub  *Hub
	now  func() time.Time

	locks [lockStripes]sync.Mutex
}

func NewManager(repo Repository, hub *Hub) *Manager {
	return &Manager{repo: repo, hub: hub, now: func() time.Time { return time.Now().UTC() }}
}

func (m *Manager) Hub() *Hub { return m.hub }

// lock serializes append and broadcast per key so every subscriber sees
// messages in append order. Keys share a fixed set of mutexes; callers must
// never hold two at once.
func (m *Manager) lock(key string) func() {
	mu := &m.locks[xxhash.Sum64String(key)%lockStripes]
	mu.Lock()
	return mu.Unlock
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, ErrConversationNotFound
	}
	return oid, nil
}

func (m *Manager) withWaiting(c Conversation, now time.Time) Conversation {
	c.WaitingSeconds = 0
	if c.AwaitingReply() {
		c.WaitingSeconds = int64(now.Sub(*c.LastUserMessageAt).Seconds())
	}
	return c
}

func (m *Manager) broadcastUpdate(c Conversation) {
	c = m.withWaiting(c, m.now())
	m.hub.BroadcastAdmins(Event{Event: EventConversationUpdated, Data: c})
}

// AdminList returns a snapshot of every conversation, most recent first.
func (m *Manager) AdminList(ctx context.Context, caller user.User) ([]Conversation, error) {
	if !caller.IsAdmin() {
		return nil, ErrAdminOnly
	}

	conversations, err := m.repo.ListConversations(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now()
	for i := range conversations {
		conversations[i] = m.withWaiting(conversations[i], now)
	}
	return conversations, nil
}

// AdminAssign claims an unassigned conversation for the caller.
func (m *Manager) AdminAssign(ctx context.Context, caller user.User, conversationID string) (*Conversation, error) {
	if !caller.IsAdmin() {
		return nil, ErrAdminOnly
	}
	id, err := parseID(conversationID)
	if err != nil {
		return nil, err
	}

	adminID := caller.ID.String()
	c, err := m.repo.Assign(ctx, id, adminID, m.now())
	if errors.Is(err, ErrAlreadyAssigned) {
		current, getErr := m.repo.GetConversation(ctx, id)
		if getErr == nil && current.AssignedTo(adminID) {
			return current, nil
		}
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Support conversation assigned", logger.Fields{logger.ConversationIdKey: c.ID.Hex(), logger.AdminIdKey: adminID})
	m.broadcastUpdate(*c)
	return c, nil
}

func (m *Manager) AdminUnassign(ctx context.Context, caller user.User, conversationID string) (*Conversation, error) {
	if !caller.IsAdmin() {
		return nil, ErrAdminOnly
	}
	id, err := parseID(conversationID)
	if err != nil {
		return nil, err
	}

	c, err := m.repo.Unassign(ctx, id, caller.ID.String())
	if err != nil {
		return nil, err
	}

	logger.Info("Support conversation unassigned", logger.Fields{logger.ConversationIdKey: c.ID.Hex(), logger.AdminIdKey: caller.ID.String()})
	m.broadcastUpdate(*c)
	return c, nil
}

// history reads the messages and subscribes under the conversation lock, so
// a concurrent send lands either in the returned history or on the live feed.
func (m *Manager) history(ctx context.Context, c *Conversation, sub *Subscriber) (*History, error) {
	unlock := m.lock(c.ID.Hex())
	defer unlock()

	c, err := m.repo.GetConversation(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	messages, err := m.repo.Messages(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		m.hub.Subscribe(c.ID.Hex(), sub)
	}

	withWaiting := m.withWaiting(*c, m.now())
	return &History{Conversation: &withWaiting, Messages: messages}, nil
}

// AdminJoin subscribes the admin's connection to the conversation and
// returns its history in append order.
func (m *Manager) AdminJoin(ctx context.Context, caller user.User, sub *Subscriber, conversationID string) (*History, error) {
	if !caller.IsAdmin() {
		return nil, ErrAdminOnly
	}
	id, err := parseID(conversationID)
	if err != nil {
		return nil, err
	}

	c, err := m.repo.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.history(ctx, c, sub)
}

// UserJoin subscribes the user to their open conversation. A user who has
// never written gets an empty history.
func (m *Manager) UserJoin(ctx context.Context, caller user.User, sub *Subscriber) (*History, error) {
	c, err := m.repo.OpenConversation(ctx, caller.ID.String())
	if errors.Is(err, ErrConversationNotFound) {
		return &History{Messages: []Message{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return m.history(ctx, c, sub)
}

// conversationFor resolves the conversation a message goes into. Users
// always write into their open conversation, which is created on demand.
func (m *Manager) conversationFor(ctx context.Context, caller user.User, in SendInput) (*Conversation, error) {
	if caller.IsAdmin() {
		id, err := parseID(in.ConversationID)
		if err != nil {
			return nil, err
		}
		return m.repo.GetConversation(ctx, id)
	}

	userID := caller.ID.String()
	unlock := m.lock("user:" + userID)
	defer unlock()

	c, err := m.repo.OpenConversation(ctx, userID)
	if !errors.Is(err, ErrConversationNotFound) {
		return c, err
	}

	c = &Conversation{
		UserID:    userID,
		UserName:  caller.FullName,
		UserEmail: caller.Email,
		Status:    StatusOpen,
		CreatedAt: m.now(),
	}
	if err := m.repo.CreateConversation(ctx, c); err != nil {
		return nil, err
	}

	logger.Info("Support conversation opened", logger.Fields{logger.ConversationIdKey: c.ID.Hex(), logger.UserIdKey: userID})
	return c, nil
}

// SendMessage appends a message from the caller and fans it out. Admins may
// only write into conversations they hold; an unassigned one is claimed first.
func (m *Manager) SendMessage(ctx context.Context, caller user.User, sub *Subscriber, in SendInput) (*Message, error) {
	in.Text = strings.TrimSpace(in.Text)
	in.AttachmentURL = strings.TrimSpace(in.AttachmentURL)
	if in.Text == "" && in.AttachmentURL == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(in.Text) > maxMessageLength {
		return nil, ErrTooLong
	}

	c, err := m.conversationFor(ctx, caller, in)
	if err != nil {
		return nil, err
	}

	unlock := m.lock(c.ID.Hex())
	defer unlock()

	// re-read under the lock so seq and timestamps see the latest append
	c, err = m.repo.GetConversation(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	senderID := caller.ID.String()
	kind := SenderUser
	claimed := false
	if caller.IsAdmin() {
		kind = SenderAdmin
		if c.AssignedAdminID == nil {
			c, err = m.repo.Assign(ctx, c.ID, senderID, m.now())
			if errors.Is(err, ErrAlreadyAssigned) {
				return nil, ErrAssignedToOther
			}
			if err != nil {
				return nil, err
			}
			claimed = true
		} else if !c.AssignedTo(senderID) {
			return nil, ErrAssignedToOther
		}
	}

	now := m.now()
	activity := Activity{MessageCount: c.MessageCount + 1, LastMessageAt: now}
	switch kind {
	case SenderUser:
		if c.FirstUserMessageAt == nil {
			activity.FirstUserMessageAt = &now
		}
		activity.LastUserMessageAt = &now
	case SenderAdmin:
		if c.AwaitingReply() {
			if c.FirstAdminReplyAt == nil {
				activity.FirstAdminReplyAt = &now
			}
			activity.LastAdminReplyAt = &now
		}
	}

	msg := &Message{
		ConversationID: c.ID,
		SenderID:       senderID,
		SenderKind:     kind,
		Text:           in.Text,
		AttachmentURL:  in.AttachmentURL,
		Seq:            activity.MessageCount,
		CreatedAt:      now,
	}
	if err := m.repo.AppendMessage(ctx, msg, activity); err != nil {
		return nil, err
	}
	activity.applyTo(c)

	if claimed {
		logger.Info("Support conversation claimed by reply", logger.Fields{logger.ConversationIdKey: c.ID.Hex(), logger.AdminIdKey: senderID})
	}

	if sub != nil {
		m.hub.Subscribe(c.ID.Hex(), sub)
	}
	m.hub.Publish(c.ID.Hex(), Event{Event: EventMessage, Data: msg})
	m.broadcastUpdate(*c)

	return msg, nil
}
