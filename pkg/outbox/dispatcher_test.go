package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contracttracker/pkg/trace"
)

type failedMark struct {
	id        int64
	retryable bool
}

type fakeStore struct {
	pending   []*Event
	failedEvs []*Event
	sent      []int64
	failed    []failedMark
	replayed  []int64
	listErr   error
}

func (s *fakeStore) GetPendingEvents(context.Context, int) ([]*Event, error) {
	return s.pending, s.listErr
}

func (s *fakeStore) MarkAsSent(_ context.Context, id int64) error {
	s.sent = append(s.sent, id)
	return nil
}

func (s *fakeStore) MarkAsFailed(_ context.Context, id int64, _ int, retryable bool, _ string) error {
	s.failed = append(s.failed, failedMark{id: id, retryable: retryable})
	return nil
}

func (s *fakeStore) GetFailedEvents(context.Context, int) ([]*Event, error) {
	return s.failedEvs, nil
}

func (s *fakeStore) ReplayEvent(_ context.Context, id int64) error {
	if id < 0 {
		return ErrEventNotFound
	}
	s.replayed = append(s.replayed, id)
	return nil
}

type fakePublisher struct {
	errs     map[string]error
	traceIDs []string
	bodies   [][]byte
}

func (p *fakePublisher) PublishWithContext(ctx context.Context, routingKey string, body []byte) error {
	p.traceIDs = append(p.traceIDs, trace.FromContext(ctx))
	p.bodies = append(p.bodies, body)
	return p.errs[routingKey]
}

func TestProcessOnce(t *testing.T) {
	store := &fakeStore{pending: []*Event{
		{ID: 1, RoutingKey: "baseline.signed", Payload: json.RawMessage(`{"a":1}`), TraceID: "trace-1"},
		{ID: 2, RoutingKey: "variation.drafted", Payload: json.RawMessage(`{}`)},
		{ID: 3, RoutingKey: "plan.committed", Payload: json.RawMessage(`{}`)},
	}}
	pub := &fakePublisher{errs: map[string]error{
		"variation.drafted": fmt.Errorf("publish: %w", context.DeadlineExceeded),
		"plan.committed":    errors.New("boom"),
	}}
	d := NewDispatcher(store, pub, zap.NewNop())

	sent, failed := d.ProcessOnce(context.Background())
	assert.Equal(t, 1, sent)
	assert.Equal(t, 2, failed)
	assert.Equal(t, []int64{1}, store.sent)
	assert.Equal(t, []failedMark{{id: 2, retryable: true}, {id: 3, retryable: false}}, store.failed)
	assert.Equal(t, []string{"trace-1", "", ""}, pub.traceIDs)
	assert.JSONEq(t, `{"a":1}`, string(pub.bodies[0]))
}

func TestProcessOnceListFailure(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	d := NewDispatcher(store, &fakePublisher{}, zap.NewNop())

	sent, failed := d.ProcessOnce(context.Background())
	assert.Zero(t, sent)
	assert.Zero(t, failed)
}

func TestReplayFailedEvents(t *testing.T) {
	store := &fakeStore{failedEvs: []*Event{{ID: 7}, {ID: -1}, {ID: 9}}}
	svc := NewReplayService(store, zap.NewNop())

	n, err := svc.ReplayFailedEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{7, 9}, store.replayed)
}

func TestNewEventCarriesTraceID(t *testing.T) {
	ctx := trace.WithContext(context.Background(), "abc")
	e, err := NewEvent(ctx, "milestone", uuid.New(), "baseline.reset", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "abc", e.TraceID)
	assert.Equal(t, StatusPending, e.Status)
	assert.JSONEq(t, `{"k":"v"}`, string(e.Payload))

	_, err = NewEvent(ctx, "milestone", uuid.New(), "x", make(chan int))
	assert.Error(t, err)
}
