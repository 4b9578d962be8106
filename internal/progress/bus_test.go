package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_LatestWins(t *testing.T) {
	b := New()
	b.Publish("job1", Event{Stage: StageLoad, FractionComplete: 0.1, Status: StatusRunning})
	b.Publish("job1", Event{Stage: StageGA, FractionComplete: 0.5, Status: StatusRunning})

	e, ok := b.Latest("job1")
	require.True(t, ok)
	assert.Equal(t, StageGA, e.Stage)
	assert.Equal(t, 0.5, e.FractionComplete)
}

func TestCancel_IsObservedCheaply(t *testing.T) {
	b := New()
	assert.False(t, b.IsCancelled("job1"))
	b.Cancel("job1")
	assert.True(t, b.IsCancelled("job1"))
	assert.False(t, b.IsCancelled("job2"))
}

func TestSubscribe_ReceivesEventsAndUnsubscribes(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var received []Event

	unsub := b.Subscribe("job1", func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	})

	b.Publish("job1", Event{Stage: StageLoad, FractionComplete: 0.1})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	n := len(received)
	mu.Unlock()
	assert.Equal(t, 1, n)

	unsub()
	b.Publish("job1", Event{Stage: StageCluster, FractionComplete: 0.2})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received, 1)
}

func TestStageFraction_WeightsStagesInOrder(t *testing.T) {
	assert.InDelta(t, 0.02, StageFraction(StageLoad, 1.0), 1e-9)
	assert.InDelta(t, 0.05, StageFraction(StageCluster, 1.0), 1e-9)
	assert.InDelta(t, 0.15, StageFraction(StageCPSAT, 1.0), 1e-9)
	assert.InDelta(t, 0.90, StageFraction(StageGA, 1.0), 1e-9)
	assert.InDelta(t, 0.97, StageFraction(StageRL, 1.0), 1e-9)
	assert.InDelta(t, 1.0, StageFraction(StageFinalize, 1.0), 1e-9)
}

func TestForget_ClearsState(t *testing.T) {
	b := New()
	b.Publish("job1", Event{Stage: StageLoad})
	b.Cancel("job1")
	b.Forget("job1")

	_, ok := b.Latest("job1")
	assert.False(t, ok)
	assert.False(t, b.IsCancelled("job1"))
}
