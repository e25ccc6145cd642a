package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longregen/parallelproof/internal/domain/models"
)

func event(taskID string, t models.EventType) models.TaskEvent {
	return models.TaskEvent{Type: t, TaskID: taskID}
}

func receive(t *testing.T, sub *Subscription) models.TaskEvent {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return models.TaskEvent{}
	}
}

func TestHub_PublishWithoutSubscribersIsNoop(t *testing.T) {
	h := NewHub(4, nil)
	h.Publish("task-1", event("task-1", models.EventTaskStarted))
	assert.Equal(t, 0, h.SubscriberCount("task-1"))
	assert.Equal(t, 0, h.TopicCount())
}

func TestHub_FanOutAndIsolation(t *testing.T) {
	h := NewHub(4, nil)

	a1, err := h.Subscribe("task-a")
	require.NoError(t, err)
	a2, err := h.Subscribe("task-a")
	require.NoError(t, err)
	b, err := h.Subscribe("task-b")
	require.NoError(t, err)

	h.Publish("task-a", event("task-a", models.EventTaskStarted))

	assert.Equal(t, models.EventTaskStarted, receive(t, a1).Type)
	assert.Equal(t, models.EventTaskStarted, receive(t, a2).Type)

	select {
	case ev := <-b.Events():
		t.Fatalf("task-b subscriber received %v", ev)
	default:
	}
}

func TestHub_PreservesPublishOrder(t *testing.T) {
	h := NewHub(8, nil)
	sub, err := h.Subscribe("task-1")
	require.NoError(t, err)

	order := []models.EventType{
		models.EventTaskStarted,
		models.EventForksCreated,
		models.EventAgentCompleted,
		models.EventComplete,
	}
	for _, typ := range order {
		h.Publish("task-1", event("task-1", typ))
	}
	for _, typ := range order {
		assert.Equal(t, typ, receive(t, sub).Type)
	}
}

func TestHub_SlowSubscriberIsDropped(t *testing.T) {
	h := NewHub(1, nil)

	slow, err := h.Subscribe("task-1")
	require.NoError(t, err)
	fast, err := h.Subscribe("task-1")
	require.NoError(t, err)

	h.Publish("task-1", event("task-1", models.EventTaskStarted))
	receive(t, fast)

	// slow never drained its single slot
	h.Publish("task-1", event("task-1", models.EventForksCreated))
	assert.Equal(t, models.EventForksCreated, receive(t, fast).Type)

	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("slow subscriber was not dropped")
	}
	assert.Equal(t, 1, h.SubscriberCount("task-1"))
}

func TestHub_UnsubscribePrunesTopic(t *testing.T) {
	h := NewHub(4, nil)
	sub, err := h.Subscribe("task-1")
	require.NoError(t, err)
	assert.Equal(t, 1, h.TopicCount())

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)

	assert.Equal(t, 0, h.TopicCount())
	select {
	case <-sub.Done():
	default:
		t.Fatal("done should be closed after unsubscribe")
	}

	h.Publish("task-1", event("task-1", models.EventComplete))
	select {
	case ev := <-sub.Events():
		t.Fatalf("unsubscribed subscriber received %v", ev)
	default:
	}
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	h := NewHub(4, nil)
	sub, err := h.Subscribe("task-1")
	require.NoError(t, err)

	h.Close()
	h.Close()

	<-sub.Done()
	_, err = h.Subscribe("task-1")
	assert.ErrorIs(t, err, ErrHubClosed)
	h.Publish("task-1", event("task-1", models.EventComplete))
}

func TestHub_ConcurrentPublishAndSubscribe(t *testing.T) {
	h := NewHub(256, nil)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := h.Subscribe("task-1")
			if err != nil {
				return
			}
			defer h.Unsubscribe(sub)
			for j := 0; j < 20; j++ {
				h.Publish("task-1", event("task-1", models.EventAgentCompleted))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, h.TopicCount())
}
