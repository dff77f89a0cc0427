// Package bnc is a small LP-based branch-and-cut engine implementing
// mip.Model. Linear relaxations are solved by a bounded primal simplex on
// gonum/mat that warm starts from the previous basis; convex
// quadratic constraints sum(e_i^2) <= b are handled by outer approximation,
// i.e. tangent cuts are added until the relaxation satisfies them within the
// feasibility tolerance. Every integer feasible candidate is reported to the
// registered callback, which may reject it by adding lazy constraints.
//
// The objective is always minimized. All variables need finite bounds.
package bnc

import (
	"fmt"
	"math"
	"sort"

	"github.com/d-krupke/drone-range-assignment/mip"
)

// LogFunc receives engine log lines. Levels follow the package rangeassign
// convention: 1 error, 2 info, 3 debug, 4 spam.
type LogFunc func(level int, format string, args ...interface{})

type variable struct {
	lb, ub float64
	vtype  mip.VarType
	name   string
}

// row is a compiled linear constraint sum(val[k]*x[ind[k]]) sense rhs.
type row struct {
	ind   []int
	val   []float64
	sense mip.Sense
	rhs   float64
	name  string
	stat  basisStat
	age   int
}

type qconstr struct {
	sq    []mip.LinExpr
	bound mip.LinExpr
	name  string

	// points the outer approximation already has a tangent at
	tangents [][]float64
}

// IntParOARounds limits the outer approximation rounds per relaxation.
const IntParOARounds = "OARounds"

// Model implements mip.Model. It is not safe for concurrent use.
type Model struct {
	name string
	logf LogFunc

	vars    []variable
	colStat []basisStat
	rows    []row
	lazy    []row
	oa      []row
	oaPool  []row
	quads   []qconstr

	obj      []float64
	objConst float64
	callback mip.Callback

	lazyOn    bool
	timeLimit float64
	feasTol   float64
	intTol    float64
	nodeLimit int
	oaRounds  int

	optimized    bool
	status       mip.Status
	incumbent    []float64
	incumbentObj float64
	bound        float64
	solCount     int

	NodeCount      int
	LPCount        int
	OACutCount     int
	LazyCount      int
	CandidateCount int
}

var _ mip.Model = (*Model)(nil)

// NewModel creates an empty minimization model. logf may be nil.
func NewModel(name string, logf LogFunc) *Model {
	if logf == nil {
		logf = func(int, string, ...interface{}) {}
	}
	return &Model{
		name:         name,
		logf:         logf,
		timeLimit:    math.Inf(1),
		feasTol:      1e-6,
		intTol:       1e-6,
		oaRounds:     maxOARounds,
		status:       mip.LOADED,
		incumbentObj: math.Inf(1),
		bound:        math.Inf(-1),
	}
}

func (m *Model) AddVar(lb, ub float64, vtype mip.VarType, name string) (mip.Var, error) {
	if vtype == mip.BINARY {
		lb = math.Max(lb, 0)
		ub = math.Min(ub, 1)
	}
	if math.IsInf(lb, 0) || math.IsInf(ub, 0) || math.IsNaN(lb) || math.IsNaN(ub) {
		return -1, fmt.Errorf("bnc: variable %q needs finite bounds, got [%g, %g]", name, lb, ub)
	}
	if lb > ub {
		return -1, fmt.Errorf("bnc: variable %q has empty domain [%g, %g]", name, lb, ub)
	}
	m.vars = append(m.vars, variable{lb: lb, ub: ub, vtype: vtype, name: name})
	m.obj = append(m.obj, 0)
	m.colStat = append(m.colStat, atLower)
	return mip.Var(len(m.vars) - 1), nil
}

func (m *Model) AddConstr(lhs mip.LinExpr, sense mip.Sense, rhs float64, name string) error {
	r, err := m.compile(lhs, sense, rhs, name)
	if err != nil {
		return err
	}
	m.rows = append(m.rows, r)
	return nil
}

func (m *Model) AddQConstr(sq []mip.LinExpr, bound mip.LinExpr, name string) error {
	for _, e := range append(append([]mip.LinExpr{}, sq...), bound) {
		if err := m.checkVars(e); err != nil {
			return fmt.Errorf("bnc: quadratic constraint %q: %w", name, err)
		}
	}
	m.quads = append(m.quads, qconstr{sq: sq, bound: bound, name: name})
	return nil
}

// SetObjective sets the expression to minimize.
func (m *Model) SetObjective(obj mip.LinExpr) error {
	if err := m.checkVars(obj); err != nil {
		return fmt.Errorf("bnc: objective: %w", err)
	}
	for j := range m.obj {
		m.obj[j] = 0
	}
	for _, t := range obj.Terms {
		m.obj[t.Var] += t.Coef
	}
	m.objConst = obj.Constant
	return nil
}

func (m *Model) SetIntParam(name string, value int) error {
	switch name {
	case mip.IntParLazyConstraints:
		m.lazyOn = value != 0
	case mip.IntParNodeLimit:
		m.nodeLimit = value
	case IntParOARounds:
		if value < 1 {
			return fmt.Errorf("bnc: %s must be positive, got %d", name, value)
		}
		m.oaRounds = value
	default:
		return fmt.Errorf("%w: %s", mip.ErrUnknownParam, name)
	}
	return nil
}

func (m *Model) SetDblParam(name string, value float64) error {
	switch name {
	case mip.DblParTimeLimit:
		m.timeLimit = value
	case mip.DblParFeasTol:
		m.feasTol = value
	case mip.DblParIntTol:
		m.intTol = value
	default:
		return fmt.Errorf("%w: %s", mip.ErrUnknownParam, name)
	}
	return nil
}

func (m *Model) SetCallback(cb mip.Callback) error {
	m.callback = cb
	return nil
}

func (m *Model) Status() mip.Status { return m.status }

func (m *Model) SolCount() int { return m.solCount }

func (m *Model) NumVars() int { return len(m.vars) }

func (m *Model) ObjVal() (float64, error) {
	if !m.optimized {
		return 0, mip.ErrNotSolved
	}
	if m.solCount == 0 {
		return 0, mip.ErrNoSolution
	}
	return m.incumbentObj, nil
}

// ObjBound returns the best proven lower bound on the objective.
func (m *Model) ObjBound() (float64, error) {
	if !m.optimized {
		return 0, mip.ErrNotSolved
	}
	return m.bound, nil
}

func (m *Model) Value(v mip.Var) (float64, error) {
	if !m.optimized {
		return 0, mip.ErrNotSolved
	}
	if m.solCount == 0 {
		return 0, mip.ErrNoSolution
	}
	if int(v) < 0 || int(v) >= len(m.incumbent) {
		return 0, fmt.Errorf("%w: %d", mip.ErrUnknownVar, v)
	}
	return m.incumbent[v], nil
}

func (m *Model) checkVars(e mip.LinExpr) error {
	for _, t := range e.Terms {
		if int(t.Var) < 0 || int(t.Var) >= len(m.vars) {
			return fmt.Errorf("%w: %d", mip.ErrUnknownVar, t.Var)
		}
	}
	return nil
}

// compile merges duplicate terms and moves the constant to the right hand side.
func (m *Model) compile(lhs mip.LinExpr, sense mip.Sense, rhs float64, name string) (row, error) {
	if err := m.checkVars(lhs); err != nil {
		return row{}, fmt.Errorf("bnc: constraint %q: %w", name, err)
	}
	coef := make(map[int]float64, len(lhs.Terms))
	for _, t := range lhs.Terms {
		coef[int(t.Var)] += t.Coef
	}
	ind := make([]int, 0, len(coef))
	for j, c := range coef {
		if c != 0 {
			ind = append(ind, j)
		}
	}
	sort.Ints(ind)
	val := make([]float64, len(ind))
	for k, j := range ind {
		val[k] = coef[j]
	}
	return row{ind: ind, val: val, sense: sense, rhs: rhs - lhs.Constant, name: name}, nil
}

func (r row) activity(x []float64) float64 {
	sum := 0.0
	for k, j := range r.ind {
		sum += r.val[k] * x[j]
	}
	return sum
}

func (r row) violated(x []float64, tol float64) bool {
	a := r.activity(x)
	tol *= math.Max(1, math.Abs(r.rhs))
	switch r.sense {
	case mip.LESS_EQUAL:
		return a > r.rhs+tol
	case mip.GREATER_EQUAL:
		return a < r.rhs-tol
	}
	return math.Abs(a-r.rhs) > tol
}

func (m *Model) objective(x []float64) float64 {
	sum := m.objConst
	for j, c := range m.obj {
		sum += c * x[j]
	}
	return sum
}
