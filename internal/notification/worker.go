package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/zjoart/varlixo/pkg/events"
	"github.com/zjoart/varlixo/pkg/logger"
)

const maxRetries = 3

type Queue interface {
	PopEvent(ctx context.Context, timeout time.Duration) ([]byte, error)
	PushToDLQ(ctx context.Context, data []byte) error
}

// Worker drains the notification queue and delivers emails.
type Worker struct {
	Queue   Queue
	Mailer  Mailer
	backoff func(attempt int) time.Duration
	wg      sync.WaitGroup
}

func NewWorker(queue Queue, mailer Mailer) *Worker {
	return &Worker{
		Queue:   queue,
		Mailer:  mailer,
		backoff: func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
	}
}

// Start runs the worker until ctx is cancelled. Wait blocks until it has stopped.
func (w *Worker) Start(ctx context.Context) {
	logger.Info("Starting notification worker...")
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.processEvents(ctx)
	}()
}

func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) processEvents(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			logger.Info("Notification worker stopped")
			return
		}

		eventData, err := w.Queue.PopEvent(ctx, 5*time.Second)
		if err != nil {
			if !errors.Is(err, events.ErrQueueEmpty) && ctx.Err() == nil {
				logger.Warn("NotificationWorker: Failed to pop event", logger.WithError(err))
				sleep(ctx, time.Second)
			}
			continue
		}

		var event events.NotificationEvent
		if err := json.Unmarshal(eventData, &event); err != nil {
			logger.Error("NotificationWorker: Failed to unmarshal event", logger.Fields{"error": err.Error(), "data": string(eventData)})
			w.moveToDLQ(eventData)
			continue
		}

		w.handleEvent(ctx, event, eventData)
	}
}

func (w *Worker) handleEvent(ctx context.Context, event events.NotificationEvent, rawData []byte) {
	subject, body, err := Render(Template(event.Template), event.Name, event.Data)
	if err != nil {
		logger.Error("NotificationWorker: Failed to render email", logger.Fields{"template": event.Template, "error": err.Error()})
		w.moveToDLQ(rawData)
		return
	}

	for i := 0; i < maxRetries; i++ {
		err = w.Mailer.Send(ctx, event.To, subject, body)
		if err == nil {
			logger.Info("NotificationWorker: Email sent", logger.Fields{"template": event.Template, "to": event.To})
			return
		}

		logger.Warn("NotificationWorker: Failed to send email, retrying", logger.Fields{
			"template": event.Template,
			"to":       event.To,
			"attempt":  i + 1,
			"error":    err.Error(),
		})
		sleep(ctx, w.backoff(i+1))
	}

	logger.Error("NotificationWorker: Max retries exhausted, moving to DLQ", logger.Fields{"template": event.Template, "to": event.To})
	w.moveToDLQ(rawData)
}

func (w *Worker) moveToDLQ(data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Queue.PushToDLQ(ctx, data); err != nil {
		logger.Error("Worker: Failed to push to DLQ", logger.Fields{"error": err.Error()})
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
