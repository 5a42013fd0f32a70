package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lameck50/backend-kami/internal/events"
	"github.com/lameck50/backend-kami/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Name() string {
	return "mock"
}

func (m *MockSink) Handle(ctx context.Context, evt events.Event) error {
	args := m.Called(evt.Type)
	return args.Error(0)
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Handle(_ context.Context, evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestBus_PublishBroadcastsToAllSessions(t *testing.T) {
	registry := session.NewRegistry()
	defer registry.Stop()

	a := session.NewSession("agent-1", 4)
	b := session.NewSession("supervisor-1", 4)
	registry.Register(a)
	registry.Register(b)

	bus := New(registry)
	n := bus.Publish(events.New(events.TypePositionUpdate, events.PositionUpdate{AgentID: "agent-1"}))

	assert.Equal(t, 2, n)
	assert.Len(t, a.SendCh, 1)
	assert.Len(t, b.SendCh, 1)
}

func TestBus_PublishDirectOnlyReachesRecipient(t *testing.T) {
	registry := session.NewRegistry()
	defer registry.Stop()

	a := session.NewSession("agent-1", 4)
	b := session.NewSession("agent-2", 4)
	registry.Register(a)
	registry.Register(b)

	bus := New(registry)
	n := bus.Publish(events.Direct("agent-2", events.TypeMessage, events.ChatMessage{Message: "hi"}))

	assert.Equal(t, 1, n)
	assert.Len(t, a.SendCh, 0)
	require.Len(t, b.SendCh, 1)
	evt := <-b.SendCh
	assert.Equal(t, events.TypeMessage, evt.Type)
}

func TestBus_PublishDirectToOfflineRecipientIsDropped(t *testing.T) {
	registry := session.NewRegistry()
	defer registry.Stop()

	bus := New(registry)
	assert.Equal(t, 0, bus.Publish(events.Direct("nobody", events.TypeMessage, nil)))
}

func TestBus_SlowSessionDoesNotBlockOthers(t *testing.T) {
	registry := session.NewRegistry()
	defer registry.Stop()

	slow := session.NewSession("slow", 1)
	fast := session.NewSession("fast", 10)
	registry.Register(slow)
	registry.Register(fast)

	bus := New(registry)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bus.Publish(events.New(events.TypePositionUpdate, nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full session")
	}

	assert.Len(t, slow.SendCh, 1)
	assert.Len(t, fast.SendCh, 5)
}

func TestBus_SinksReceiveEvents(t *testing.T) {
	registry := session.NewRegistry()
	defer registry.Stop()

	sink := &recordingSink{}
	bus := New(registry, WithSink(sink))
	bus.Start(context.Background())

	bus.Publish(events.New(events.TypeGeofenceAlert, events.GeofenceAlert{FenceID: "f1"}))
	bus.Publish(events.Direct("x", events.TypeMessage, nil))

	bus.Stop()
	assert.Equal(t, 2, sink.count())
}

func TestBus_SinkErrorIsIsolated(t *testing.T) {
	registry := session.NewRegistry()
	defer registry.Stop()

	failing := new(MockSink)
	failing.On("Handle", events.TypeAlert).Return(errors.New("boom"))
	ok := &recordingSink{}

	bus := New(registry, WithSink(failing), WithSink(ok))
	bus.Start(context.Background())
	bus.Publish(events.New(events.TypeAlert, events.GenericAlert{Message: "help"}))
	bus.Stop()

	failing.AssertExpectations(t)
	assert.Equal(t, 1, ok.count())
}

func TestBus_PublishBeforeStartSkipsSinks(t *testing.T) {
	registry := session.NewRegistry()
	defer registry.Stop()

	sink := new(MockSink)
	bus := New(registry, WithSink(sink))

	assert.NotPanics(t, func() {
		bus.Publish(events.New(events.TypeAlert, nil))
	})
	bus.Stop()
	sink.AssertNotCalled(t, "Handle", mock.Anything)
}

func TestBus_ConcurrentPublishAndChurn(t *testing.T) {
	registry := session.NewRegistry()
	defer registry.Stop()

	bus := New(registry, WithSink(&recordingSink{}), WithSinkQueueSize(8))
	bus.Start(context.Background())
	defer bus.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s := session.NewSession("viewer", 2)
			registry.Register(s)
			registry.Unregister(s)
		}()
		go func() {
			defer wg.Done()
			bus.Publish(events.New(events.TypePositionUpdate, nil))
		}()
	}
	wg.Wait()
}
