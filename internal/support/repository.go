package support

import (
	"context"
	"errors"
	"time"

	"github.com/zjoart/varlixo/pkg/apperr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrConversationNotFound = apperr.NotFound("conversation not found")
	ErrAlreadyAssigned      = apperr.New(apperr.KindAlreadyAssigned, "conversation is already assigned")
	ErrNotAssignee          = apperr.New(apperr.KindNotAssignee, "you are not assigned to this conversation")
	ErrAssignedToOther      = apperr.New(apperr.KindNotAssignee, "conversation is assigned to another admin")
	ErrSeqConflict          = apperr.Conflict("conversation changed while sending, try again")
)

type Repository interface {
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, id primitive.ObjectID) (*Conversation, error)
	// OpenConversation returns the user's open conversation or ErrConversationNotFound.
	OpenConversation(ctx context.Context, userID string) (*Conversation, error)
	// ListConversations returns every conversation, most recent activity first.
	ListConversations(ctx context.Context) ([]Conversation, error)
	// Assign sets the assignee only while the conversation is unassigned.
	Assign(ctx context.Context, id primitive.ObjectID, adminID string, at time.Time) (*Conversation, error)
	// Unassign clears the assignee only when it equals adminID.
	Unassign(ctx context.Context, id primitive.ObjectID, adminID string) (*Conversation, error)
	// AppendMessage reserves m.Seq on the conversation, which must equal
	// messageCount+1, then stores the message.
	AppendMessage(ctx context.Context, m *Message, activity Activity) error
	Messages(ctx context.Context, conversationID primitive.ObjectID) ([]Message, error)
}

type mongoRepository struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

// NewMongoRepository uses the support_conversations and support_messages
// collections of db and makes sure their indexes exist.
func NewMongoRepository(ctx context.Context, db *mongo.Database) (Repository, error) {
	r := &mongoRepository{
		conversations: db.Collection("support_conversations"),
		messages:      db.Collection("support_messages"),
	}

	_, err := r.conversations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "lastMessageAt", Value: -1}}},
	})
	if err != nil {
		return nil, err
	}

	_, err = r.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversationId", Value: 1}, {Key: "seq", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}

	return r, nil
}

func (r *mongoRepository) CreateConversation(ctx context.Context, c *Conversation) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	_, err := r.conversations.InsertOne(ctx, c)
	return err
}

func (r *mongoRepository) findOne(ctx context.Context, filter bson.M) (*Conversation, error) {
	var c Conversation
	err := r.conversations.FindOne(ctx, filter).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *mongoRepository) GetConversation(ctx context.Context, id primitive.ObjectID) (*Conversation, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoRepository) OpenConversation(ctx context.Context, userID string) (*Conversation, error) {
	return r.findOne(ctx, bson.M{"userId": userID, "status": StatusOpen})
}

func (r *mongoRepository) ListConversations(ctx context.Context) ([]Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastMessageAt", Value: -1}, {Key: "createdAt", Value: -1}})
	cur, err := r.conversations.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}

	conversations := []Conversation{}
	if err := cur.All(ctx, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// casUpdate applies update when filter still matches. A miss is reported as
// conflict when the conversation exists and as not found otherwise.
func (r *mongoRepository) casUpdate(ctx context.Context, filter, update bson.M, conflict error) (*Conversation, error) {
	var c Conversation
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.conversations.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := r.GetConversation(ctx, filter["_id"].(primitive.ObjectID)); getErr != nil {
			return nil, getErr
		}
		return nil, conflict
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *mongoRepository) Assign(ctx context.Context, id primitive.ObjectID, adminID string, at time.Time) (*Conversation, error) {
	return r.casUpdate(ctx,
		bson.M{"_id": id, "assignedAdminId": nil},
		bson.M{"$set": bson.M{"assignedAdminId": adminID, "assignedAt": at}},
		ErrAlreadyAssigned,
	)
}

func (r *mongoRepository) Unassign(ctx context.Context, id primitive.ObjectID, adminID string) (*Conversation, error) {
	return r.casUpdate(ctx,
		bson.M{"_id": id, "assignedAdminId": adminID},
		bson.M{"$set": bson.M{"assignedAdminId": nil, "assignedAt": nil}},
		ErrNotAssignee,
	)
}

func (r *mongoRepository) AppendMessage(ctx context.Context, m *Message, activity Activity) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}

	set := bson.M{"messageCount": activity.MessageCount, "lastMessageAt": activity.LastMessageAt}
	if activity.FirstUserMessageAt != nil {
		set["firstUserMessageAt"] = *activity.FirstUserMessageAt
	}
	if activity.LastUserMessageAt != nil {
		set["lastUserMessageAt"] = *activity.LastUserMessageAt
	}
	if activity.FirstAdminReplyAt != nil {
		set["firstAdminReplyAt"] = *activity.FirstAdminReplyAt
	}
	if activity.LastAdminReplyAt != nil {
		set["lastAdminReplyAt"] = *activity.LastAdminReplyAt
	}

	res, err := r.conversations.UpdateOne(ctx,
		bson.M{"_id": m.ConversationID, "messageCount": m.Seq - 1},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetConversation(ctx, m.ConversationID); err != nil {
			return err
		}
		return ErrSeqConflict
	}

	// a failed insert leaves a gap in seq; the next send still gets a free one
	_, err = r.messages.InsertOne(ctx, m)
	return err
}

func (r *mongoRepository) Messages(ctx context.Context, conversationID primitive.ObjectID) ([]Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cur, err := r.messages.Find(ctx, bson.M{"conversationId": conversationID}, opts)
	if err != nil {
		return nil, err
	}

	messages := []Message{}
	if err := cur.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
