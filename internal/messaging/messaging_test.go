package messaging

import (
	"errors"
	"sync"
	"testing"
	"time"

	"waste-report-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSink struct {
	mu       sync.Mutex
	failures int
	calls    int
	got      []model.ReportEvent
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) Deliver(event model.ReportEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("broker unavailable")
	}
	s.got = append(s.got, event)
	return nil
}

func (s *fakeSink) received() []model.ReportEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ReportEvent(nil), s.got...)
}

func event(id string) model.ReportEvent {
	return model.ReportEvent{Type: model.EventReportCreated, Report: model.Report{ID: id}}
}

func TestDispatcher_DeliversToEverySink(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{}
	d := NewDispatcher(zap.NewNop(), 8, a, b)
	d.Start()

	d.Publish(event("r1"))
	d.Publish(event("r2"))
	d.Stop()

	require.Len(t, a.received(), 2)
	require.Len(t, b.received(), 2)
	assert.Equal(t, "r1", a.received()[0].Report.ID)
	assert.Equal(t, uint64(4), d.GetStats().Delivered)
}

func TestDispatcher_RetriesFailedDelivery(t *testing.T) {
	sink := &fakeSink{failures: 2}
	d := NewDispatcher(zap.NewNop(), 8, sink)
	d.delay = time.Millisecond
	d.Start()

	d.Publish(event("r1"))
	d.Stop()

	assert.Equal(t, 3, sink.calls)
	assert.Len(t, sink.received(), 1)
	assert.Equal(t, uint64(0), d.GetStats().Failed)
}

func TestDispatcher_GivesUpAfterAttempts(t *testing.T) {
	sink := &fakeSink{failures: 10}
	d := NewDispatcher(zap.NewNop(), 8, sink)
	d.delay = time.Millisecond
	d.Start()

	d.Publish(event("r1"))
	d.Stop()

	assert.Equal(t, maxDeliverAttempts, sink.calls)
	assert.Equal(t, uint64(1), d.GetStats().Failed)
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher(zap.NewNop(), 1, sink)

	d.Publish(event("r1"))
	d.Publish(event("r2"))

	stats := d.GetStats()
	assert.Equal(t, 1, stats.Queued)
	assert.Equal(t, uint64(1), stats.Dropped)

	d.Start()
	d.Stop()
	require.Len(t, sink.received(), 1)
	assert.Equal(t, "r1", sink.received()[0].Report.ID)
}

func TestSSEHub_BroadcastReachesClients(t *testing.T) {
	hub := NewSSEHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	first := hub.RegisterClient()
	second := hub.RegisterClient()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Deliver(event("r1")))

	for _, c := range []*SSEClient{first, second} {
		select {
		case got := <-c.Channel:
			assert.Equal(t, "r1", got.Report.ID)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestSSEHub_UnregisterClosesChannel(t *testing.T) {
	hub := NewSSEHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	client := hub.RegisterClient()
	hub.UnregisterClient(client)

	select {
	case _, ok := <-client.Channel:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestSSEHub_StopClosesClients(t *testing.T) {
	hub := NewSSEHub(zap.NewNop())
	go hub.Run()

	client := hub.RegisterClient()
	hub.Stop()

	select {
	case _, ok := <-client.Channel:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	// Calls after stop must not block.
	hub.Broadcast(event("late"))
	hub.UnregisterClient(client)
}

func TestDecodeEvent(t *testing.T) {
	ev, ok := decodeEvent([]byte(`{"type":"report.status.updated","report":{"id":"a","status":"Verified"},"timestamp":1}`))
	require.True(t, ok)
	assert.Equal(t, model.EventReportStatusUpdated, ev.Type)
	assert.Equal(t, model.StatusVerified, ev.Report.Status)

	_, ok = decodeEvent([]byte(`{"type":"vote.received","report":{"id":"a"}}`))
	assert.False(t, ok)

	_, ok = decodeEvent([]byte(`{"type":"report.created","report":{}}`))
	assert.False(t, ok)

	_, ok = decodeEvent([]byte(`not json`))
	assert.False(t, ok)
}
