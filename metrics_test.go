package rangeassign

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-krupke/drone-range-assignment/mip/bnc"
)

func TestCollectorRecordsSolves(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.cuts(0)
	c.cuts(3)
	c.solved("optimal", true, 2*time.Second)
	c.solved("time_limit", false, time.Second)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.LazyCuts))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Incumbents))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Solves.WithLabelValues("optimal", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Solves.WithLabelValues("time_limit", "false")))
	assert.Equal(t, 4, testutil.CollectAndCount(c.Solves)+testutil.CollectAndCount(c.SolveDurations)+testutil.CollectAndCount(c.LazyCuts))
}

func TestCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.cuts(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(second.LazyCuts))
	assert.Same(t, first.Solves, second.Solves)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.cuts(1)
		c.solved("optimal", true, time.Millisecond)
	})
}

func TestSolverReportsToCollector(t *testing.T) {
	inst, err := NewInstance([]Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 0, Y: 3}}, 0)
	require.NoError(t, err)
	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	s, err := NewSolver(bnc.NewModel("metrics", nil), inst)
	require.NoError(t, err)
	s.Collector = c

	sol, err := s.Solve(30 * time.Second)
	require.NoError(t, err)
	require.NotNil(t, sol)
	assert.Equal(t, float64(s.CutsAdded), testutil.ToFloat64(c.LazyCuts))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Solves.WithLabelValues("optimal", "true")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(c.Incumbents), 1.0)
}
