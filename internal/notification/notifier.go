package notification

import (
	"context"

	"github.com/google/uuid"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/pkg/events"
	"github.com/zjoart/varlixo/pkg/logger"
)

// Notifier is called by services after a state change has committed.
// Delivery problems are logged, never returned.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, template Template, data map[string]string)
}

type Publisher interface {
	PublishEvent(ctx context.Context, event events.NotificationEvent) error
}

type UserLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// QueueNotifier resolves the recipient and enqueues the email for the worker.
type QueueNotifier struct {
	users UserLookup
	queue Publisher
}

func NewQueueNotifier(users UserLookup, queue Publisher) *QueueNotifier {
	return &QueueNotifier{users: users, queue: queue}
}

func (n *QueueNotifier) Notify(ctx context.Context, userID uuid.UUID, template Template, data map[string]string) {
	usr, err := n.users.FindByID(ctx, userID)
	if err != nil {
		logger.Warn("Notification skipped, user lookup failed", logger.Merge(logger.Fields{
			logger.UserIdKey: userID.String(),
			"template":       template,
		}, logger.WithError(err)))
		return
	}

	err = n.queue.PublishEvent(ctx, events.NotificationEvent{
		Template: string(template),
		To:       usr.Email,
		Name:     usr.FullName,
		Data:     data,
	})
	if err != nil {
		logger.Error("Failed to enqueue notification", logger.Merge(logger.Fields{
			logger.UserIdKey: userID.String(),
			"template":       template,
		}, logger.WithError(err)))
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(context.Context, uuid.UUID, Template, map[string]string) {}
