package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	require.NotNil(t, c)

	// Vec-based collectors only emit a metric family once a label
	// combination exists; touch each so Gather sees all seven.
	c.StageDuration.WithLabelValues("stage1").Observe(1)
	c.StrategySuccess.WithLabelValues("full_solve", "success").Inc()
	c.ConflictCount.WithLabelValues("faculty").Set(1)
	c.StagePanics.WithLabelValues("cpsat").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(families), 7)
}

func TestObserveStage_RecordsDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveStage("stage1", 250*time.Millisecond)

	count := testutil.CollectAndCount(c.StageDuration, "timetabled_stage_duration_seconds")
	assert.Equal(t, 1, count)
}

func TestObserveStage_NilCollectorsIsNoop(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() { c.ObserveStage("stage1", time.Second) })
}

func TestResourceLevelToFloat(t *testing.T) {
	cases := map[string]float64{
		"normal":    0,
		"warn":      1,
		"critical":  2,
		"emergency": 3,
		"unknown":   0,
	}
	for level, want := range cases {
		assert.Equal(t, want, ResourceLevelToFloat(level), "level=%s", level)
	}
}
