package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/pkg/events"
)

type fakeQueue struct {
	items chan []byte
	mu    sync.Mutex
	dlq   [][]byte
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{items: make(chan []byte, 10)}
}

func (q *fakeQueue) PopEvent(ctx context.Context, timeout time.Duration) ([]byte, error) {
	select {
	case b := <-q.items:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, events.ErrQueueEmpty
	}
}

func (q *fakeQueue) PushToDLQ(ctx context.Context, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dlq = append(q.dlq, data)
	return nil
}

func (q *fakeQueue) dead() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.dlq)
}

type fakeMailer struct {
	mu    sync.Mutex
	err   error
	calls int
	sent  []string
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+"|"+subject)
	return nil
}

func (m *fakeMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func encode(t *testing.T, e events.NotificationEvent) []byte {
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return b
}

func TestRender(t *testing.T) {
	subject, body, err := Render(TemplateDepositRejected, "Ada", map[string]string{"amount": "500.00", "reason": "<blurry proof>"})
	require.NoError(t, err)
	assert.Equal(t, "Deposit rejected", subject)
	assert.Contains(t, body, "Hi Ada")
	assert.Contains(t, body, "$500.00")
	assert.Contains(t, body, "&lt;blurry proof&gt;")

	_, _, err = Render(Template("nope"), "Ada", nil)
	assert.Error(t, err)
}

func TestWorkerMovesToDLQAfterRetries(t *testing.T) {
	q := newFakeQueue()
	m := &fakeMailer{err: errors.New("smtp down")}
	w := NewWorker(q, m)
	w.backoff = func(int) time.Duration { return 0 }

	event := events.NotificationEvent{Template: string(TemplateKYCApproved), To: "ada@example.com", Name: "Ada"}
	w.handleEvent(context.Background(), event, encode(t, event))

	assert.Equal(t, maxRetries, m.calls)
	assert.Equal(t, 1, q.dead())
}

func TestWorkerUnknownTemplateGoesToDLQ(t *testing.T) {
	q := newFakeQueue()
	m := &fakeMailer{}
	w := NewWorker(q, m)

	event := events.NotificationEvent{Template: "mystery", To: "ada@example.com"}
	w.handleEvent(context.Background(), event, encode(t, event))

	assert.Zero(t, m.calls)
	assert.Equal(t, 1, q.dead())
}

func TestWorkerDeliversQueuedEvents(t *testing.T) {
	q := newFakeQueue()
	m := &fakeMailer{}
	w := NewWorker(q, m)

	q.items <- encode(t, events.NotificationEvent{Template: string(TemplateWelcome), To: "ada@example.com", Name: "Ada", Data: map[string]string{"code": "ABCD2345"}})
	q.items <- []byte("{not json")

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	assert.Eventually(t, func() bool { return m.sentCount() == 1 && q.dead() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	w.Wait()

	assert.Equal(t, []string{"ada@example.com|Welcome to Varlixo"}, m.sent)
}

type fakePublisher struct {
	published []events.NotificationEvent
}

func (p *fakePublisher) PublishEvent(ctx context.Context, e events.NotificationEvent) error {
	p.published = append(p.published, e)
	return nil
}

type fakeUsers map[uuid.UUID]*user.User

func (f fakeUsers) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, user.ErrUserNotFound
}

func TestQueueNotifier(t *testing.T) {
	u := &user.User{ID: uuid.New(), Email: "ada@example.com", FullName: "Ada Obi"}
	pub := &fakePublisher{}
	n := NewQueueNotifier(fakeUsers{u.ID: u}, pub)

	n.Notify(context.Background(), u.ID, TemplateDepositConfirmed, map[string]string{"amount": "500.00"})
	n.Notify(context.Background(), uuid.New(), TemplateDepositConfirmed, nil)

	require.Len(t, pub.published, 1)
	assert.Equal(t, "ada@example.com", pub.published[0].To)
	assert.Equal(t, "Ada Obi", pub.published[0].Name)
	assert.Equal(t, string(TemplateDepositConfirmed), pub.published[0].Template)
}
