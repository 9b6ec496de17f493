package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryRegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.FramesIngested.WithLabelValues("p").Inc()
	m.FramesAnnotated.WithLabelValues("p").Inc()
	m.FramesFailed.WithLabelValues("p").Inc()
	m.AnnotateDuration.WithLabelValues("p").Observe(0.01)
	m.WorkersActive.WithLabelValues("p").Set(2)
	m.FramesEmitted.WithLabelValues("p").Inc()
	m.FramesSkipped.WithLabelValues("p", "gap").Inc()
	m.ReorderPending.WithLabelValues("p").Set(3)
	m.SinkErrors.WithLabelValues("p").Inc()
	m.ChannelDepth.WithLabelValues("p", "input").Set(1)
	m.BackpressureEvents.WithLabelValues("p", "output").Inc()
	m.Runs.WithLabelValues("p", "ok").Inc()
	m.RunDuration.WithLabelValues("p").Observe(1)
	m.SourceErrors.WithLabelValues("p").Inc()

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 14, count)
}

func TestRegistryNamespaceAndLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistryWithConfig(Config{
		Enabled:   true,
		Registry:  reg,
		Namespace: "edge",
		Labels:    prometheus.Labels{"site": "dock"},
	})
	m.FramesEmitted.WithLabelValues("cam").Add(4)

	expected := `
# HELP edge_reorder_frames_emitted_total Total number of frames written to the sink
# TYPE edge_reorder_frames_emitted_total counter
edge_reorder_frames_emitted_total{pipeline="cam",site="dock"} 4
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "edge_reorder_frames_emitted_total")
	assert.NoError(t, err)
}

func TestConfigBuild(t *testing.T) {
	assert.Nil(t, Config{Enabled: false}.Build())
	assert.Same(t, DefaultRegistry, DefaultConfig().Build())

	custom := Config{Enabled: true, Registry: prometheus.NewRegistry()}.Build()
	require.NotNil(t, custom)
	assert.NotSame(t, DefaultRegistry, custom)
}
