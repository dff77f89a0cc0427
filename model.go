package rangeassign

import (
	"fmt"
	"math"

	"github.com/d-krupke/drone-range-assignment/mip"
)

// PositionVars holds the coordinates of every agent: variables bounded by the
// bounding box for drones, constants for terminals.
type PositionVars struct {
	model mip.Model
	inst  *Instance
	x     []mip.Var // by drone index
	y     []mip.Var
}

func NewPositionVars(model mip.Model, inst *Instance) (*PositionVars, error) {
	min, max := inst.BoundingBox()
	p := &PositionVars{model: model, inst: inst, x: make([]mip.Var, inst.NumDrones()), y: make([]mip.Var, inst.NumDrones())}
	var err error
	for _, d := range inst.Drones() {
		p.x[d.Index], err = model.AddVar(min.X, max.X, mip.CONTINUOUS, fmt.Sprintf("x_%d", d.Index))
		if err != nil {
			return nil, err
		}
		p.y[d.Index], err = model.AddVar(min.Y, max.Y, mip.CONTINUOUS, fmt.Sprintf("y_%d", d.Index))
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *PositionVars) X(a Agent) mip.LinExpr {
	if a.IsTerminal() {
		return mip.Const(a.Position.X)
	}
	return mip.Expr(p.x[a.Index])
}

func (p *PositionVars) Y(a Agent) mip.LinExpr {
	if a.IsTerminal() {
		return mip.Const(a.Position.Y)
	}
	return mip.Expr(p.y[a.Index])
}

// Positions resolves the drone positions of the solved model.
func (p *PositionVars) Positions() (map[Agent]Point, error) {
	positions := make(map[Agent]Point, p.inst.NumDrones())
	for _, d := range p.inst.Drones() {
		x, err := p.model.Value(p.x[d.Index])
		if err != nil {
			return nil, err
		}
		y, err := p.model.Value(p.y[d.Index])
		if err != nil {
			return nil, err
		}
		positions[d] = Point{X: x, Y: y}
	}
	return positions, nil
}

// isVariable reports whether the geometry between a and b is unknown, i.e.
// at least one of them is a drone.
func isVariable(a, b Agent) bool {
	return a.IsDrone() || b.IsDrone()
}

// DiffVars are the coordinate differences of every pair involving a drone.
// Only one direction is stored; the sign does not matter since only the
// square is used later on. Terminal pairs yield constants.
type DiffVars struct {
	model mip.Model
	inst  *Instance
	x     []mip.Var // by GetPairIndex, -1 for terminal pairs
	y     []mip.Var
}

func NewDiffVars(positions *PositionVars) (*DiffVars, error) {
	inst := positions.inst
	model := positions.model
	n := inst.NumAgents()
	maxDiff := inst.MaxExtent()
	pairs := n * (n - 1) / 2
	d := &DiffVars{model: model, inst: inst, x: make([]mip.Var, pairs), y: make([]mip.Var, pairs)}
	agents := inst.Agents()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			k := GetPairIndex(i, j, n)
			a, b := agents[i], agents[j]
			if !isVariable(a, b) {
				d.x[k], d.y[k] = -1, -1
				continue
			}
			var err error
			for _, axis := range []struct {
				vars  []mip.Var
				coord func(Agent) mip.LinExpr
				name  string
			}{
				{d.x, positions.X, "dx"},
				{d.y, positions.Y, "dy"},
			} {
				axis.vars[k], err = model.AddVar(-maxDiff, maxDiff, mip.CONTINUOUS, fmt.Sprintf("%s_%d_%d", axis.name, i, j))
				if err != nil {
					return nil, err
				}
				// v = coord(a) - coord(b)  <=>  v - coord(a) + coord(b) = 0
				lhs := mip.Expr(axis.vars[k]).Sub(axis.coord(a)).Add(axis.coord(b))
				if err = model.AddConstr(lhs, mip.EQUAL, 0, fmt.Sprintf("%s_def_%d_%d", axis.name, i, j)); err != nil {
					return nil, err
				}
			}
		}
	}
	return d, nil
}

func (d *DiffVars) XDiff(a, b Agent) mip.LinExpr {
	if !isVariable(a, b) {
		return mip.Const(math.Abs(a.Position.X - b.Position.X))
	}
	return mip.Expr(d.x[d.pair(a, b)])
}

func (d *DiffVars) YDiff(a, b Agent) mip.LinExpr {
	if !isVariable(a, b) {
		return mip.Const(math.Abs(a.Position.Y - b.Position.Y))
	}
	return mip.Expr(d.y[d.pair(a, b)])
}

func (d *DiffVars) pair(a, b Agent) int {
	return GetPairIndex(d.inst.ID(a), d.inst.ID(b), d.inst.NumAgents())
}

// SqDistVars bound the squared distance of every pair involving a drone from
// above via dx^2 + dy^2 <= s. Minimizing power pulls s down to the true value
// on every used arc. Terminal pairs yield the exact constant.
type SqDistVars struct {
	model mip.Model
	inst  *Instance
	vars  []mip.Var // by GetPairIndex, -1 for terminal pairs
}

func NewSqDistVars(diffs *DiffVars) (*SqDistVars, error) {
	inst := diffs.inst
	model := diffs.model
	n := inst.NumAgents()
	ext := inst.MaxExtent()
	s := &SqDistVars{model: model, inst: inst, vars: make([]mip.Var, n*(n-1)/2)}
	agents := inst.Agents()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			k := GetPairIndex(i, j, n)
			a, b := agents[i], agents[j]
			if !isVariable(a, b) {
				s.vars[k] = -1
				continue
			}
			v, err := model.AddVar(0, 2*ext*ext, mip.CONTINUOUS, fmt.Sprintf("sqdist_%d_%d", i, j))
			if err != nil {
				return nil, err
			}
			s.vars[k] = v
			// SOCP of the form dx^2 + dy^2 <= s
			err = model.AddQConstr([]mip.LinExpr{diffs.XDiff(a, b), diffs.YDiff(a, b)}, mip.Expr(v), fmt.Sprintf("cone_%d_%d", i, j))
			if err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// UB is the squared distance upper bound of the pair, symmetric in a and b.
func (s *SqDistVars) UB(a, b Agent) mip.LinExpr {
	if !isVariable(a, b) {
		d := a.Position.Distance(b.Position)
		return mip.Const(d * d)
	}
	return mip.Expr(s.vars[GetPairIndex(s.inst.ID(a), s.inst.ID(b), s.inst.NumAgents())])
}

// Assignments resolves the squared distance bounds of all unordered pairs,
// keyed by GetPairIndex.
func (s *SqDistVars) Assignments() ([]float64, error) {
	n := s.inst.NumAgents()
	agents := s.inst.Agents()
	res := make([]float64, len(s.vars))
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			k := GetPairIndex(i, j, n)
			if s.vars[k] < 0 {
				d := agents[i].Position.Distance(agents[j].Position)
				res[k] = d * d
				continue
			}
			v, err := s.model.Value(s.vars[k])
			if err != nil {
				return nil, err
			}
			res[k] = v
		}
	}
	return res, nil
}

// ArcVars are the binary usage variables of all directed arcs.
type ArcVars struct {
	model mip.Model
	inst  *Instance
	vars  []mip.Var // by GetArcIndex
}

func NewArcVars(model mip.Model, inst *Instance) (*ArcVars, error) {
	n := inst.NumAgents()
	a := &ArcVars{model: model, inst: inst, vars: make([]mip.Var, n*(n-1))}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			v, err := model.AddVar(0, 1, mip.BINARY, fmt.Sprintf("e_%d_%d", i, j))
			if err != nil {
				return nil, err
			}
			a.vars[GetArcIndex(i, j, n)] = v
		}
	}
	// every terminal of a strongly connected graph has an outgoing arc,
	// which gives the relaxation a better start
	if inst.NumTerminals() > 1 {
		out := mip.LinExpr{}
		for i := 0; i < inst.NumTerminals(); i++ {
			for j := 0; j < n; j++ {
				if i != j {
					out.AddTerm(1, a.vars[GetArcIndex(i, j, n)])
				}
			}
		}
		if err := model.AddConstr(out, mip.GREATER_EQUAL, float64(inst.NumTerminals()), "terminal_out"); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *ArcVars) Used(from, to Agent) mip.Var {
	return a.vars[GetArcIndex(a.inst.ID(from), a.inst.ID(to), a.inst.NumAgents())]
}

// PowerVars hold the transmission power of every agent, bounded by the
// squared diameter.
type PowerVars struct {
	model mip.Model
	inst  *Instance
	vars  []mip.Var // by agent id
}

func NewPowerVars(sqdist *SqDistVars, arcs *ArcVars) (*PowerVars, error) {
	inst := sqdist.inst
	model := sqdist.model
	maxPower := inst.Diameter() * inst.Diameter()
	p := &PowerVars{model: model, inst: inst, vars: make([]mip.Var, inst.NumAgents())}
	for id := range inst.Agents() {
		v, err := model.AddVar(0, maxPower, mip.CONTINUOUS, fmt.Sprintf("r_%d", id))
		if err != nil {
			return nil, err
		}
		p.vars[id] = v
	}
	// enforce minimal power based on topology
	for _, a := range inst.Agents() {
		for _, b := range inst.Agents() {
			if a == b {
				continue
			}
			used := arcs.Used(a, b)
			var lhs mip.LinExpr
			if a.IsTerminal() && b.IsTerminal() {
				// fixed distance allows for a tighter bound:
				// power(a) - d^2 * used(a,b) >= 0
				d := a.Position.Distance(b.Position)
				lhs = p.Power(a)
				lhs.AddTerm(-d*d, used)
			} else {
				// disabled if the arc is unused:
				// power(a) - sqdist(a,b) - maxPower*used(a,b) >= -maxPower
				lhs = p.Power(a).Sub(sqdist.UB(a, b))
				lhs.AddTerm(-maxPower, used)
				lhs.Constant += maxPower
			}
			if err := model.AddConstr(lhs, mip.GREATER_EQUAL, 0, fmt.Sprintf("power_%d_%d", inst.ID(a), inst.ID(b))); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func (p *PowerVars) Power(a Agent) mip.LinExpr {
	return mip.Expr(p.vars[p.inst.ID(a)])
}

// Sum is the total power, the objective.
func (p *PowerVars) Sum() mip.LinExpr {
	return mip.Sum(p.vars...)
}

// Assignments resolves the power of every agent.
func (p *PowerVars) Assignments() (map[Agent]float64, error) {
	res := make(map[Agent]float64, len(p.vars))
	for id, a := range p.inst.Agents() {
		v, err := p.model.Value(p.vars[id])
		if err != nil {
			return nil, err
		}
		res[a] = v
	}
	return res, nil
}
