package rangeassign

import (
	"math"

	"gonum.org/v1/gonum/graph/simple"
)

// Solution is an immutable assignment of power to every agent and positions
// to every drone, together with the best lower bound known when it was
// produced.
type Solution struct {
	instance  *Instance
	power     map[Agent]float64
	positions map[Agent]Point
	lb        float64
}

// NewSolution copies the given maps. Terminal positions come from the
// instance.
func NewSolution(instance *Instance, power map[Agent]float64, positions map[Agent]Point, lb float64) *Solution {
	s := &Solution{
		instance:  instance,
		power:     make(map[Agent]float64, len(power)),
		positions: make(map[Agent]Point, len(positions)),
		lb:        lb,
	}
	for a, p := range power {
		s.power[a] = p
	}
	for d, p := range positions {
		s.positions[d] = p
	}
	return s
}

func (s *Solution) Instance() *Instance { return s.instance }

// Objective is the total power.
func (s *Solution) Objective() float64 {
	sum := 0.0
	for _, a := range s.instance.Agents() {
		sum += s.power[a]
	}
	return sum
}

func (s *Solution) LowerBound() float64 { return s.lb }

// Gap is the relative distance between objective and lower bound.
func (s *Solution) Gap() float64 {
	obj := s.Objective()
	if obj == 0 {
		return 0
	}
	return (obj - s.lb) / obj
}

func (s *Solution) Position(a Agent) Point {
	if a.IsDrone() {
		return s.positions[a]
	}
	return a.Position
}

func (s *Solution) Power(a Agent) float64 {
	return s.power[a]
}

func (s *Solution) Range(a Agent) float64 {
	return math.Sqrt(s.power[a])
}

// Topology contains the arc a->b iff b lies within the range of a plus eps.
// It only depends on positions and powers, not on which arcs the model used.
func (s *Solution) Topology(eps float64) *simple.DirectedGraph {
	g := newAgentGraph(s.instance)
	agents := s.instance.Agents()
	for i, v := range agents {
		r := s.Range(v) + eps
		for j, w := range agents {
			if i == j {
				continue
			}
			if s.Position(v).Distance(s.Position(w)) <= r {
				g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(j)))
			}
		}
	}
	return g
}

// Unreachable returns the first terminal that cannot reach all terminals in
// Topology(eps), along with the agents it does reach. ok is false if there is
// none.
func (s *Solution) Unreachable(eps float64) (t Agent, reachable []Agent, ok bool) {
	g := s.Topology(eps)
	n := s.instance.NumAgents()
	for _, term := range s.instance.Terminals() {
		reach := Reachable(g, s.instance.ID(term), n)
		if allTerminals(s.instance, reach) {
			continue
		}
		for id, r := range reach {
			if r {
				reachable = append(reachable, s.instance.Agent(id))
			}
		}
		return term, reachable, true
	}
	return Agent{}, nil, false
}

// IsFeasible reports whether every terminal reaches every other terminal in
// Topology(eps).
func (s *Solution) IsFeasible(eps float64) bool {
	t, reachable, bad := s.Unreachable(eps)
	if bad {
		Log(LOG_ERROR, "Infeasible solution: %s only reaches %v", t, reachable)
	}
	return !bad
}

// Record converts the solution into its JSON form. Arcs, Cuts, Optimal and
// the run metadata are left for the caller.
func (s *Solution) Record(eps float64) SolutionRecord {
	rec := SolutionRecord{
		Obj:      s.Objective(),
		LBound:   s.lb,
		Feasible: s.IsFeasible(eps),
		Eps:      eps,
	}
	for _, a := range s.instance.Agents() {
		rec.Powers = append(rec.Powers, s.Power(a))
		rec.Ranges = append(rec.Ranges, s.Range(a))
	}
	for _, d := range s.instance.Drones() {
		p := s.Position(d)
		rec.Drones = append(rec.Drones, []float64{p.X, p.Y})
	}
	return rec
}
