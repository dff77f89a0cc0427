package rangeassign_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dra "github.com/d-krupke/drone-range-assignment"
)

func relayInstance(t *testing.T) *dra.Instance {
	return newInstance(t, 1, dra.Point{X: 0, Y: 0}, dra.Point{X: 10, Y: 0})
}

func TestSolutionAccessors(t *testing.T) {
	inst := relayInstance(t)
	t0, t1, d := inst.Agent(0), inst.Agent(1), inst.Agent(2)
	power := map[dra.Agent]float64{t0: 25, t1: 25, d: 25}
	positions := map[dra.Agent]dra.Point{d: {X: 5, Y: 0}}
	sol := dra.NewSolution(inst, power, positions, 70)

	// the solution owns copies
	power[t0] = 1000
	positions[d] = dra.Point{X: 0, Y: 0}

	assert.Equal(t, 75.0, sol.Objective())
	assert.Equal(t, 70.0, sol.LowerBound())
	assert.InDelta(t, 5.0/75.0, sol.Gap(), 1e-12)
	assert.Equal(t, 5.0, sol.Range(t0))
	assert.Equal(t, 25.0, sol.Power(d))
	assert.Equal(t, dra.Point{X: 5, Y: 0}, sol.Position(d))
	assert.Equal(t, dra.Point{X: 10, Y: 0}, sol.Position(t1))
	for _, a := range inst.Agents() {
		assert.InDelta(t, math.Sqrt(sol.Power(a)), sol.Range(a), 1e-12)
	}
	assert.True(t, sol.IsFeasible(dra.DefaultEps))
}

func TestSolutionTopologyIsAsymmetric(t *testing.T) {
	inst := relayInstance(t)
	t0, t1, d := inst.Agent(0), inst.Agent(1), inst.Agent(2)
	sol := dra.NewSolution(inst,
		map[dra.Agent]float64{t0: 100, t1: 0, d: 0},
		map[dra.Agent]dra.Point{d: {X: 5, Y: 0}}, 0)

	g := sol.Topology(dra.DefaultEps)
	assert.True(t, g.HasEdgeFromTo(0, 1))
	assert.True(t, g.HasEdgeFromTo(0, 2))
	assert.False(t, g.HasEdgeFromTo(1, 0))
	assert.False(t, g.HasEdgeFromTo(2, 1))

	term, reachable, bad := sol.Unreachable(dra.DefaultEps)
	require.True(t, bad)
	assert.Equal(t, t1, term)
	assert.Equal(t, []dra.Agent{t1}, reachable)
	assert.False(t, sol.IsFeasible(dra.DefaultEps))
}

func TestSolutionFeasibilityTolerance(t *testing.T) {
	inst := relayInstance(t)
	t0, t1, d := inst.Agent(0), inst.Agent(1), inst.Agent(2)
	sol := dra.NewSolution(inst,
		map[dra.Agent]float64{t0: 24.99, t1: 24.99, d: 24.99},
		map[dra.Agent]dra.Point{d: {X: 5, Y: 0}}, 0)

	assert.False(t, sol.IsFeasible(0.001))
	assert.True(t, sol.IsFeasible(0.01))
}

func TestSingleTerminalIsAlwaysFeasible(t *testing.T) {
	inst := newInstance(t, 2, dra.Point{X: 3, Y: 3})
	sol := dra.NewSolution(inst, map[dra.Agent]float64{}, map[dra.Agent]dra.Point{}, 0)
	assert.True(t, sol.IsFeasible(0))
	assert.Equal(t, 0.0, sol.Objective())
	assert.Equal(t, 0.0, sol.Gap())
}

func TestSolutionRecord(t *testing.T) {
	inst := relayInstance(t)
	t0, t1, d := inst.Agent(0), inst.Agent(1), inst.Agent(2)
	sol := dra.NewSolution(inst,
		map[dra.Agent]float64{t0: 25, t1: 25, d: 25},
		map[dra.Agent]dra.Point{d: {X: 5, Y: 0}}, 75)

	rec := sol.Record(dra.DefaultEps)
	assert.Equal(t, 75.0, rec.Obj)
	assert.Equal(t, 75.0, rec.LBound)
	assert.True(t, rec.Feasible)
	assert.Equal(t, []float64{25, 25, 25}, rec.Powers)
	assert.Equal(t, []float64{5, 5, 5}, rec.Ranges)
	assert.Equal(t, [][]float64{{5, 0}}, rec.Drones)
}
