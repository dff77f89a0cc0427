package rangeassign

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/d-krupke/drone-range-assignment/mip"
	"github.com/d-krupke/drone-range-assignment/mip/bnc"
)

// Solver owns the decision variables of one solve. It must not be shared
// between goroutines; the Instance it was built from may.
type Solver struct {
	model    mip.Model
	instance *Instance

	Positions *PositionVars
	Diffs     *DiffVars
	SqDist    *SqDistVars
	Arcs      *ArcVars
	Power     *PowerVars

	// Collector is optional.
	Collector *Collector

	CutsAdded  int
	Candidates int
	Elapsed    time.Duration
}

// NewSolver builds the complete model for instance into model and sets the
// objective to minimize the total power.
func NewSolver(model mip.Model, instance *Instance) (*Solver, error) {
	if instance == nil || instance.NumTerminals() == 0 {
		return nil, ErrNoTerminals
	}
	s := &Solver{model: model, instance: instance}
	var err error
	if s.Positions, err = NewPositionVars(model, instance); err != nil {
		return nil, fmt.Errorf("creating position variables: %w", err)
	}
	if s.Diffs, err = NewDiffVars(s.Positions); err != nil {
		return nil, fmt.Errorf("creating difference variables: %w", err)
	}
	if s.SqDist, err = NewSqDistVars(s.Diffs); err != nil {
		return nil, fmt.Errorf("creating squared distance variables: %w", err)
	}
	if s.Arcs, err = NewArcVars(model, instance); err != nil {
		return nil, fmt.Errorf("creating arc variables: %w", err)
	}
	if s.Power, err = NewPowerVars(s.SqDist, s.Arcs); err != nil {
		return nil, fmt.Errorf("creating power variables: %w", err)
	}
	if err = model.SetObjective(s.Power.Sum()); err != nil {
		return nil, fmt.Errorf("setting objective: %w", err)
	}
	Log(LOG_DEBUG, "Created model with %d variables for %d terminals and %d drones", model.NumVars(), instance.NumTerminals(), instance.NumDrones())
	return s, nil
}

func (s *Solver) Instance() *Instance { return s.instance }

func (s *Solver) Model() mip.Model { return s.model }

func (s *Solver) Status() mip.Status { return s.model.Status() }

func (s *Solver) callback(ctx mip.CallbackContext) error {
	if ctx.Where() != mip.CB_MIPSOL {
		return nil
	}
	n, err := s.Arcs.LazilyEnforceStronglyConnected(ctx)
	if err != nil {
		return err
	}
	s.CutsAdded += n
	s.Candidates++
	s.Collector.cuts(n)
	return nil
}

// Solve runs branch-and-cut for at most timeLimit. It returns nil and no
// error if no solution was found in time.
func (s *Solver) Solve(timeLimit time.Duration) (*Solution, error) {
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	// Must set LazyConstraints parameter when using lazy constraints
	if err := s.model.SetIntParam(mip.IntParLazyConstraints, 1); err != nil {
		return nil, err
	}
	if err := s.model.SetDblParam(mip.DblParTimeLimit, timeLimit.Seconds()); err != nil {
		return nil, err
	}
	if err := s.model.SetCallback(s.callback); err != nil {
		return nil, err
	}

	startTime := time.Now()
	err := s.model.Optimize()
	s.Elapsed = time.Since(startTime)
	if err != nil {
		s.Collector.solved("error", false, s.Elapsed)
		return nil, fmt.Errorf("optimization failed: %w", err)
	}
	Log(LOG_INFO, "---OPTIMIZATION DONE--- status %s after %s, %d connectivity cuts", s.model.Status(), s.Elapsed, s.CutsAdded)
	if s.model.Status() == mip.NUMERIC {
		Log(LOG_ERROR, "Search ended with numerical trouble, the result is not proven optimal")
	}

	if s.model.SolCount() == 0 {
		Log(LOG_INFO, "No solution found")
		s.Collector.solved(s.model.Status().String(), false, s.Elapsed)
		return nil, nil
	}
	lb, err := s.model.ObjBound()
	if err != nil {
		return nil, err
	}
	power, err := s.Power.Assignments()
	if err != nil {
		return nil, err
	}
	positions, err := s.Positions.Positions()
	if err != nil {
		return nil, err
	}
	if err = s.repairPower(power, positions); err != nil {
		return nil, err
	}
	s.Collector.solved(s.model.Status().String(), true, s.Elapsed)
	sol := NewSolution(s.instance, power, positions, lb)
	Log(LOG_INFO, "Found a solution with total power %g, lower bound %g", sol.Objective(), lb)
	return sol, nil
}

// repairPower raises the power of every agent to the exact squared distance
// of each arc the model selected for it. The model only meets power >= d^2
// up to the engine tolerances, which on long arcs exceeds the checker's eps.
func (s *Solver) repairPower(power map[Agent]float64, positions map[Agent]Point) error {
	at := func(a Agent) Point {
		if a.IsDrone() {
			return positions[a]
		}
		return a.Position
	}
	for _, a := range s.instance.Agents() {
		for _, b := range s.instance.Agents() {
			if a == b {
				continue
			}
			used, err := s.model.Value(s.Arcs.Used(a, b))
			if err != nil {
				return err
			}
			if used < 0.5 {
				continue
			}
			d := at(a).Distance(at(b))
			if need := d * d; need > power[a] {
				Log(LOG_DEBUG, "Raising power of %s from %g to %g for the arc to %s", a, power[a], need, b)
				power[a] = need
			}
		}
	}
	return nil
}

// value adapts the solved model for ArcVars.Graph and ArcVars.Matrix,
// keeping the first error.
func (s *Solver) value(err *error) func(mip.Var) float64 {
	return func(v mip.Var) float64 {
		x, e := s.model.Value(v)
		if e != nil && *err == nil {
			*err = e
		}
		return x
	}
}

// UsedTopology is the graph of the arcs the solved model selected.
func (s *Solver) UsedTopology() (*simple.DirectedGraph, error) {
	var err error
	g := s.Arcs.Graph(s.value(&err))
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Record converts sol, produced by this solver, into its JSON form.
func (s *Solver) Record(sol *Solution, eps float64) (SolutionRecord, error) {
	rec := sol.Record(eps)
	var err error
	m := s.Arcs.Matrix(s.value(&err))
	if err != nil {
		return rec, err
	}
	for i := range m {
		for j := range m[i] {
			if m[i][j] == 1 {
				rec.Arcs = append(rec.Arcs, []int{i, j})
			}
		}
	}
	Log(LOG_SPAM, "Used arcs:\n%s", FormatArcMatrix(m))
	rec.Cuts = s.CutsAdded
	rec.Optimal = s.model.Status() == mip.OPTIMAL
	rec.Time = s.Elapsed.String()
	return rec, nil
}

// Solve builds a fresh model on the built-in branch-and-cut engine and solves
// instance within timeLimit (DefaultTimeLimit if <= 0).
func Solve(instance *Instance, timeLimit time.Duration) (*Solution, error) {
	s, err := NewSolver(bnc.NewModel("dra", Log), instance)
	if err != nil {
		return nil, err
	}
	return s.Solve(timeLimit)
}
