package support

import (
	"sync"

	"github.com/zjoart/varlixo/pkg/logger"
)

const (
	EventAdminList           = "support:admin_list"
	EventAdminAssign         = "support:admin_assign"
	EventAdminUnassign       = "support:admin_unassign"
	EventAdminJoin           = "support:admin_join"
	EventJoin                = "support:join"
	EventMessage             = "support:message"
	EventMessages            = "support:messages"
	EventConversationUpdated = "support:conversation_updated"
	EventAck                 = "ack"
)

// DefaultBuffer is the number of outbound events a connection may fall
// behind before it is dropped.
const DefaultBuffer = 64

type Event struct {
	Event string      `json:"event"`
	ID    string      `json:"id,omitempty"`
	Data  interface{} `json:"data"`
}

// Subscriber is the outbound side of one connection.
type Subscriber struct {
	UserID string
	Admin  bool

	send      chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func NewSubscriber(userID string, admin bool, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Subscriber{
		UserID: userID,
		Admin:  admin,
		send:   make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

func (s *Subscriber) Events() <-chan Event { return s.send }

// Done is closed once the subscriber is dropped or closed.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Deliver queues e without blocking. A full buffer closes the subscriber and
// reports false.
func (s *Subscriber) Deliver(e Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- e:
		return true
	default:
		logger.Warn("Dropping slow support chat connection", logger.Fields{logger.UserIdKey: s.UserID, "event": e.Event})
		s.Close()
		return false
	}
}

// Hub tracks which connections follow which conversation and which
// connections belong to admins.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscriber]struct{}
	admins map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Subscriber]struct{}),
		admins: make(map[*Subscriber]struct{}),
	}
}

// Register adds admin connections to the observer set.
func (h *Hub) Register(s *Subscriber) {
	if !s.Admin {
		return
	}
	h.mu.Lock()
	h.admins[s] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes s everywhere. Conversation state is untouched.
func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.admins, s)
	for id, room := range h.rooms {
		delete(room, s)
		if len(room) == 0 {
			delete(h.rooms, id)
		}
	}
}

func (h *Hub) Subscribe(conversationID string, s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[*Subscriber]struct{})
		h.rooms[conversationID] = room
	}
	room[s] = struct{}{}
}

// Subscribers returns how many connections follow the conversation.
func (h *Hub) Subscribers(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

func (h *Hub) Publish(conversationID string, e Event) {
	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.rooms[conversationID]))
	for s := range h.rooms[conversationID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	h.deliver(targets, e)
}

func (h *Hub) BroadcastAdmins(e Event) {
	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.admins))
	for s := range h.admins {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	h.deliver(targets, e)
}

func (h *Hub) deliver(targets []*Subscriber, e Event) {
	for _, s := range targets {
		if !s.Deliver(e) {
			h.Unregister(s)
		}
	}
}
