package rangeassign_test

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dra "github.com/d-krupke/drone-range-assignment"
	"github.com/d-krupke/drone-range-assignment/mip"
	"github.com/d-krupke/drone-range-assignment/mip/bnc"
)

const testTimeLimit = 30 * time.Second

func solve(t *testing.T, inst *dra.Instance) (*dra.Solver, *dra.Solution) {
	t.Helper()
	s, err := dra.NewSolver(bnc.NewModel(t.Name(), nil), inst)
	require.NoError(t, err)
	sol, err := s.Solve(testTimeLimit)
	require.NoError(t, err)
	require.NotNil(t, sol)
	return s, sol
}

func TestNewSolverRejectsEmptyInstance(t *testing.T) {
	_, err := dra.NewSolver(bnc.NewModel("empty", nil), nil)
	assert.True(t, errors.Is(err, dra.ErrNoTerminals))
	_, err = dra.NewSolver(bnc.NewModel("empty", nil), &dra.Instance{})
	assert.True(t, errors.Is(err, dra.ErrNoTerminals))
	_, err = dra.Solve(nil, time.Second)
	assert.True(t, errors.Is(err, dra.ErrNoTerminals))
}

func TestSolveSingleTerminal(t *testing.T) {
	for _, drones := range []int{0, 2} {
		inst := newInstance(t, drones, dra.Point{X: 1, Y: 1})
		s, sol := solve(t, inst)
		assert.Equal(t, mip.OPTIMAL, s.Status())
		assert.InDelta(t, 0.0, sol.Objective(), 1e-6)
		assert.True(t, sol.IsFeasible(dra.DefaultEps))
	}
}

func TestSolveTwoTerminals(t *testing.T) {
	inst := newInstance(t, 0, dra.Point{X: 0, Y: 0}, dra.Point{X: 10, Y: 0})
	s, sol := solve(t, inst)
	assert.Equal(t, mip.OPTIMAL, s.Status())
	assert.InDelta(t, 200.0, sol.Objective(), 1e-4)
	assert.InDelta(t, 200.0, sol.LowerBound(), 1e-3)
	assert.InDelta(t, 10.0, sol.Range(inst.Agent(0)), 1e-4)
	assert.True(t, sol.IsFeasible(dra.DefaultEps))

	g, err := s.UsedTopology()
	require.NoError(t, err)
	assert.True(t, g.HasEdgeFromTo(0, 1))
	assert.True(t, g.HasEdgeFromTo(1, 0))

	rec, err := s.Record(sol, dra.DefaultEps)
	require.NoError(t, err)
	assert.True(t, rec.Optimal)
	assert.ElementsMatch(t, [][]int{{0, 1}, {1, 0}}, rec.Arcs)
}

func TestSolveRelayDrone(t *testing.T) {
	inst := relayInstance(t)
	s, sol := solve(t, inst)
	assert.Equal(t, mip.OPTIMAL, s.Status())
	assert.InDelta(t, 75.0, sol.Objective(), 1e-2)
	assert.LessOrEqual(t, sol.LowerBound(), sol.Objective()+1e-6)
	drone := sol.Position(inst.Drones()[0])
	assert.InDelta(t, 5.0, drone.X, 0.1)
	assert.InDelta(t, 0.0, drone.Y, 1e-6)
	assert.True(t, sol.IsFeasible(dra.DefaultEps))

	sq, err := s.SqDist.Assignments()
	require.NoError(t, err)
	require.Len(t, sq, 3)
	assert.InDelta(t, 100.0, sq[dra.GetPairIndex(0, 1, 3)], 1e-9)
}

func TestSolveTriangleNeedsConnectivityCuts(t *testing.T) {
	inst := newInstance(t, 0, dra.Point{X: 0, Y: 0}, dra.Point{X: 4, Y: 0}, dra.Point{X: 0, Y: 3})
	s, sol := solve(t, inst)
	assert.Equal(t, mip.OPTIMAL, s.Status())
	assert.InDelta(t, 41.0, sol.Objective(), 1e-4)
	assert.Greater(t, s.CutsAdded, 0)
	assert.True(t, sol.IsFeasible(dra.DefaultEps))
}

func TestSolveWithoutIncumbent(t *testing.T) {
	inst := newInstance(t, 1, dra.Point{X: 0, Y: 0}, dra.Point{X: 4, Y: 0}, dra.Point{X: 0, Y: 3})
	s, err := dra.NewSolver(bnc.NewModel("nothing", nil), inst)
	require.NoError(t, err)
	sol, err := s.Solve(time.Nanosecond)
	require.NoError(t, err)
	assert.Nil(t, sol)
	assert.Equal(t, mip.TIME_LIMIT, s.Status())
}

func TestLongerTimeLimitNeverHurts(t *testing.T) {
	inst := newInstance(t, 1, dra.Point{X: 0, Y: 0}, dra.Point{X: 4, Y: 0}, dra.Point{X: 0, Y: 3})
	var last *dra.Solution
	for _, limit := range []time.Duration{time.Nanosecond, 50 * time.Millisecond, 10 * time.Second} {
		sol, err := dra.Solve(inst, limit)
		require.NoError(t, err)
		if sol == nil {
			assert.Nil(t, last, "a longer run lost the incumbent")
			continue
		}
		assert.True(t, sol.IsFeasible(dra.DefaultEps))
		assert.LessOrEqual(t, sol.LowerBound(), sol.Objective()+1e-6)
		if last != nil {
			assert.LessOrEqual(t, sol.Objective(), last.Objective()+1e-3)
			assert.GreaterOrEqual(t, sol.LowerBound(), last.LowerBound()-1e-3)
		}
		last = sol
	}
	require.NotNil(t, last)
}

func TestConcurrentSolvesShareInstance(t *testing.T) {
	inst := relayInstance(t)
	const workers = 4
	objs := make([]float64, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sol, err := dra.Solve(inst, testTimeLimit)
			if err == nil && sol == nil {
				err = errors.New("no solution")
			}
			if err != nil {
				errs[i] = err
				return
			}
			objs[i] = sol.Objective()
		}(i)
	}
	wg.Wait()
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.InDelta(t, 75.0, objs[i], 1e-2)
	}
}

func TestLazyCallbackRequiresParameter(t *testing.T) {
	inst := newInstance(t, 0, dra.Point{X: 0, Y: 0}, dra.Point{X: 4, Y: 0}, dra.Point{X: 0, Y: 3})
	m := bnc.NewModel("nolazy", nil)
	s, err := dra.NewSolver(m, inst)
	require.NoError(t, err)
	require.NoError(t, m.SetCallback(func(ctx mip.CallbackContext) error {
		_, err := s.Arcs.LazilyEnforceStronglyConnected(ctx)
		return err
	}))
	err = m.Optimize()
	assert.True(t, errors.Is(err, mip.ErrLazyDisabled))
}

func TestSolveRandomInstances(t *testing.T) {
	tests := []struct {
		terminals, drones int
		seed              int64
	}{
		{3, 1, 1},
		{4, 1, 2},
		{3, 2, 3},
		{5, 1, 4},
		{4, 2, 5},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d_%d", tt.terminals, tt.drones, tt.seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(tt.seed))
			points := make([]dra.Point, tt.terminals)
			for i := range points {
				points[i] = dra.Point{X: float64(rng.Intn(1000)), Y: float64(rng.Intn(1000))}
			}
			inst := newInstance(t, tt.drones, points...)
			s, err := dra.NewSolver(bnc.NewModel(t.Name(), nil), inst)
			require.NoError(t, err)
			sol, err := s.Solve(10 * time.Second)
			require.NoError(t, err)
			require.NotNil(t, sol, "no solution, status %s", s.Status())
			assert.True(t, sol.IsFeasible(dra.DefaultEps))
			assert.LessOrEqual(t, sol.LowerBound(), sol.Objective()+1e-6)
			assert.NotEqual(t, mip.NUMERIC, s.Status())
		})
	}
}

func TestSolveLongArcsStaysFeasible(t *testing.T) {
	inst := newInstance(t, 1, dra.Point{X: 0, Y: 0}, dra.Point{X: 10000, Y: 0})
	_, sol := solve(t, inst)
	assert.True(t, sol.IsFeasible(dra.DefaultEps))
	assert.InEpsilon(t, 7.5e7, sol.Objective(), 1e-3)
	assert.LessOrEqual(t, sol.LowerBound(), sol.Objective())
	// the relay has to cover both halves
	assert.GreaterOrEqual(t, sol.Range(inst.Drones()[0]), 5000.0-1e-6)
}
