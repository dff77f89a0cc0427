package rangeassign_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dra "github.com/d-krupke/drone-range-assignment"
	"github.com/d-krupke/drone-range-assignment/mip"
	"github.com/d-krupke/drone-range-assignment/mip/bnc"
)

type arc struct{ from, to int }

// arcValues marks the given arcs (by agent id) as used.
func arcValues(inst *dra.Instance, arcs *dra.ArcVars, used ...arc) func(mip.Var) float64 {
	set := make(map[mip.Var]bool)
	for _, a := range used {
		set[arcs.Used(inst.Agent(a.from), inst.Agent(a.to))] = true
	}
	return func(v mip.Var) float64 {
		if set[v] {
			return 1
		}
		return 0
	}
}

func newArcVars(t *testing.T, inst *dra.Instance) *dra.ArcVars {
	t.Helper()
	arcs, err := dra.NewArcVars(bnc.NewModel("arcs", nil), inst)
	require.NoError(t, err)
	return arcs
}

// fakeCallback records lazy constraints instead of passing them to an engine.
type fakeCallback struct {
	value func(mip.Var) float64
	err   error
	lazy  []mip.LinExpr
}

func (f *fakeCallback) Where() mip.Where { return mip.CB_MIPSOL }

func (f *fakeCallback) Value(v mip.Var) float64 { return f.value(v) }

func (f *fakeCallback) Objective() float64 { return 0 }

func (f *fakeCallback) AddLazy(lhs mip.LinExpr, sense mip.Sense, rhs float64) error {
	if f.err != nil {
		return f.err
	}
	f.lazy = append(f.lazy, lhs)
	return nil
}

func TestConnectivityCutsForDisconnectedArcs(t *testing.T) {
	inst := newInstance(t, 0, dra.Point{X: 0, Y: 0}, dra.Point{X: 4, Y: 0}, dra.Point{X: 0, Y: 3})
	arcs := newArcVars(t, inst)
	// the cheapest out-arc of every terminal: 0 can never reach 1
	value := arcValues(inst, arcs, arc{0, 2}, arc{2, 0}, arc{1, 0})

	cuts := arcs.ConnectivityCuts(value)
	require.Len(t, cuts, 2)
	assert.Equal(t, inst.Agent(0), cuts[0].Terminal)
	assert.ElementsMatch(t, []dra.Agent{inst.Agent(0), inst.Agent(2)}, cuts[0].Reachable)
	assert.Equal(t, inst.Agent(2), cuts[1].Terminal)
	for _, cut := range cuts {
		assert.Len(t, cut.Lhs.Terms, 2)
		assert.False(t, mip.Satisfied(cut.Lhs, mip.GREATER_EQUAL, cut.Rhs(), value, 1e-9), "cut must separate the arcs")
	}
	// using an arc into terminal 1 satisfies the cut
	fixed := arcValues(inst, arcs, arc{0, 2}, arc{2, 0}, arc{1, 0}, arc{2, 1})
	assert.True(t, mip.Satisfied(cuts[0].Lhs, mip.GREATER_EQUAL, cuts[0].Rhs(), fixed, 1e-9))
	assert.Empty(t, arcs.ConnectivityCuts(fixed))
}

func TestConnectivityCutsThroughDrones(t *testing.T) {
	inst := newInstance(t, 1, dra.Point{X: 0, Y: 0}, dra.Point{X: 10, Y: 0})
	arcs := newArcVars(t, inst)

	relayed := arcValues(inst, arcs, arc{0, 2}, arc{2, 1}, arc{1, 2}, arc{2, 0})
	assert.Empty(t, arcs.ConnectivityCuts(relayed))

	oneWay := arcValues(inst, arcs, arc{0, 2}, arc{2, 1})
	cuts := arcs.ConnectivityCuts(oneWay)
	require.Len(t, cuts, 1)
	assert.Equal(t, inst.Agent(1), cuts[0].Terminal)
	assert.Equal(t, []dra.Agent{inst.Agent(1)}, cuts[0].Reachable)
	// both arcs leaving terminal 1
	assert.Len(t, cuts[0].Lhs.Terms, 2)
}

func TestArcGraphAndMatrix(t *testing.T) {
	inst := newInstance(t, 1, dra.Point{X: 0, Y: 0}, dra.Point{X: 10, Y: 0})
	arcs := newArcVars(t, inst)
	value := arcValues(inst, arcs, arc{0, 2}, arc{2, 1})

	g := arcs.Graph(value)
	assert.Equal(t, 3, g.Nodes().Len())
	assert.True(t, g.HasEdgeFromTo(0, 2))
	assert.True(t, g.HasEdgeFromTo(2, 1))
	assert.False(t, g.HasEdgeFromTo(1, 2))
	assert.Equal(t, [][]int{{0, 0, 1}, {0, 0, 0}, {0, 1, 0}}, arcs.Matrix(value))

	reach := dra.Reachable(g, 0, 3)
	assert.Equal(t, []bool{true, true, true}, reach)
	assert.Equal(t, []bool{false, true, false}, dra.Reachable(g, 1, 3))
}

func TestLazilyEnforceStronglyConnected(t *testing.T) {
	inst := newInstance(t, 0, dra.Point{X: 0, Y: 0}, dra.Point{X: 4, Y: 0}, dra.Point{X: 0, Y: 3})
	arcs := newArcVars(t, inst)

	cb := &fakeCallback{value: arcValues(inst, arcs, arc{0, 1}, arc{1, 2}, arc{2, 0})}
	n, err := arcs.LazilyEnforceStronglyConnected(cb)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, cb.lazy)

	cb = &fakeCallback{value: arcValues(inst, arcs, arc{0, 1}, arc{1, 0})}
	n, err = arcs.LazilyEnforceStronglyConnected(cb)
	require.NoError(t, err)
	// 0 and 1 miss 2, and 2 reaches nobody
	assert.Equal(t, 3, n)
	assert.Len(t, cb.lazy, 3)

	cb.err = mip.ErrLazyDisabled
	_, err = arcs.LazilyEnforceStronglyConnected(cb)
	assert.True(t, errors.Is(err, mip.ErrLazyDisabled))
}
