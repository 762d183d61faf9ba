// Package support runs the live support chat between users and admins.
package support

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SenderKind string

const (
	SenderUser  SenderKind = "user"
	SenderAdmin SenderKind = "admin"
)

type ConversationStatus string

const (
	StatusOpen   ConversationStatus = "open"
	StatusClosed ConversationStatus = "closed"
)

type Conversation struct {
	ID                 primitive.ObjectID `bson:"_id" json:"id"`
	UserID             string             `bson:"userId" json:"user_id"`
	UserName           string             `bson:"userName" json:"user_name"`
	UserEmail          string             `bson:"userEmail" json:"user_email"`
	Status             ConversationStatus `bson:"status" json:"status"`
	AssignedAdminID    *string            `bson:"assignedAdminId" json:"assigned_admin_id"`
	AssignedAt         *time.Time         `bson:"assignedAt" json:"assigned_at"`
	FirstUserMessageAt *time.Time         `bson:"firstUserMessageAt" json:"first_user_message_at"`
	LastUserMessageAt  *time.Time         `bson:"lastUserMessageAt" json:"last_user_message_at"`
	FirstAdminReplyAt  *time.Time         `bson:"firstAdminReplyAt" json:"first_admin_reply_at"`
	LastAdminReplyAt   *time.Time         `bson:"lastAdminReplyAt" json:"last_admin_reply_at"`
	LastMessageAt      *time.Time         `bson:"lastMessageAt" json:"last_message_at"`
	MessageCount       int64              `bson:"messageCount" json:"message_count"`
	CreatedAt          time.Time          `bson:"createdAt" json:"created_at"`

	// WaitingSeconds is computed on read and never stored.
	WaitingSeconds int64 `bson:"-" json:"waiting_seconds"`
}

// AwaitingReply reports whether the user's latest message has no admin reply yet.
func (c Conversation) AwaitingReply() bool {
	if c.LastUserMessageAt == nil {
		return false
	}
	return c.LastAdminReplyAt == nil || c.LastAdminReplyAt.Before(*c.LastUserMessageAt)
}

// AssignedTo reports whether adminID currently holds the conversation.
func (c Conversation) AssignedTo(adminID string) bool {
	return c.AssignedAdminID != nil && *c.AssignedAdminID == adminID
}

type Message struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	ConversationID primitive.ObjectID `bson:"conversationId" json:"conversation_id"`
	SenderID       string             `bson:"senderId" json:"sender_id"`
	SenderKind     SenderKind         `bson:"senderKind" json:"sender_kind"`
	Text           string             `bson:"text" json:"text"`
	AttachmentURL  string             `bson:"attachmentUrl,omitempty" json:"attachment_url,omitempty"`
	Seq            int64              `bson:"seq" json:"seq"`
	CreatedAt      time.Time          `bson:"createdAt" json:"created_at"`
}

// Activity is the conversation update written together with an appended
// message. Nil timestamps are left unchanged.
type Activity struct {
	MessageCount       int64
	LastMessageAt      time.Time
	FirstUserMessageAt *time.Time
	LastUserMessageAt  *time.Time
	FirstAdminReplyAt  *time.Time
	LastAdminReplyAt   *time.Time
}

func (a Activity) applyTo(c *Conversation) {
	c.MessageCount = a.MessageCount
	at := a.LastMessageAt
	c.LastMessageAt = &at
	if a.FirstUserMessageAt != nil {
		c.FirstUserMessageAt = a.FirstUserMessageAt
	}
	if a.LastUserMessageAt != nil {
		c.LastUserMessageAt = a.LastUserMessageAt
	}
	if a.FirstAdminReplyAt != nil {
		c.FirstAdminReplyAt = a.FirstAdminReplyAt
	}
	if a.LastAdminReplyAt != nil {
		c.LastAdminReplyAt = a.LastAdminReplyAt
	}
}
