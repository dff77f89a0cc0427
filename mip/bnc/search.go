package bnc

import (
	"container/heap"
	"fmt"
	"math"
	"time"

	"github.com/d-krupke/drone-range-assignment/mip"
)

const (
	maxOARounds = 1000
	mipGap      = 1e-6
)

type node struct {
	lb, ub []float64
	bound  float64
	depth  int
	up     bool
}

// nodeQueue is a best-bound priority queue, deeper nodes first on ties.
// While dive is set it is depth first instead, preferring the up branch, so
// that an incumbent is found early.
type nodeQueue struct {
	nodes []*node
	dive  bool
}

func (q *nodeQueue) Len() int { return len(q.nodes) }
func (q *nodeQueue) Less(i, j int) bool {
	a, b := q.nodes[i], q.nodes[j]
	if q.dive {
		if a.depth != b.depth {
			return a.depth > b.depth
		}
		if a.up != b.up {
			return a.up
		}
	}
	if a.bound != b.bound {
		return a.bound < b.bound
	}
	return a.depth > b.depth
}
func (q *nodeQueue) Swap(i, j int)      { q.nodes[i], q.nodes[j] = q.nodes[j], q.nodes[i] }
func (q *nodeQueue) Push(x interface{}) { q.nodes = append(q.nodes, x.(*node)) }
func (q *nodeQueue) Pop() interface{} {
	n := q.nodes[len(q.nodes)-1]
	q.nodes = q.nodes[:len(q.nodes)-1]
	return n
}

type cbContext struct {
	m     *Model
	x     []float64
	obj   float64
	added []row
}

func (c *cbContext) Where() mip.Where { return mip.CB_MIPSOL }

func (c *cbContext) Value(v mip.Var) float64 {
	if int(v) < 0 || int(v) >= len(c.x) {
		return math.NaN()
	}
	return c.x[v]
}

func (c *cbContext) Objective() float64 { return c.obj }

func (c *cbContext) AddLazy(lhs mip.LinExpr, sense mip.Sense, rhs float64) error {
	if !c.m.lazyOn {
		return mip.ErrLazyDisabled
	}
	r, err := c.m.compile(lhs, sense, rhs, fmt.Sprintf("lazy_%d", len(c.m.lazy)))
	if err != nil {
		return err
	}
	c.m.lazy = append(c.m.lazy, r)
	c.m.LazyCount++
	c.added = append(c.added, r)
	return nil
}

// Optimize runs branch-and-cut until the tree is exhausted, the time limit
// passes or the node limit is reached. The best incumbent and the best proven
// bound are kept in the model. If nodes had to be given up because their
// outer approximation did not converge, an exhausted tree ends in NUMERIC.
func (m *Model) Optimize() error {
	start := time.Now()
	deadline := time.Duration(math.MaxInt64)
	if !math.IsInf(m.timeLimit, 1) {
		deadline = time.Duration(m.timeLimit * float64(time.Second))
	}
	m.optimized = true
	m.status = mip.LOADED
	m.incumbent = nil
	m.incumbentObj = math.Inf(1)
	m.solCount = 0
	m.bound = math.Inf(-1)

	root := &node{lb: make([]float64, len(m.vars)), ub: make([]float64, len(m.vars)), bound: math.Inf(-1)}
	for j, v := range m.vars {
		root.lb[j] = v.lb
		root.ub[j] = v.ub
	}
	queue := &nodeQueue{nodes: []*node{root}, dive: true}
	unresolved := math.Inf(1)
	dropped := 0

	m.logf(2, "bnc: optimizing %q with %d variables, %d rows, %d quadratic constraints", m.name, len(m.vars), len(m.rows), len(m.quads))
	for queue.Len() > 0 {
		if time.Since(start) >= deadline {
			m.status = mip.TIME_LIMIT
			break
		}
		if m.nodeLimit > 0 && m.NodeCount >= m.nodeLimit {
			m.status = mip.NODE_LIMIT
			break
		}
		nd := heap.Pop(queue).(*node)
		if m.pruned(nd.bound) {
			continue
		}
		m.NodeCount++
		children, resolved, err := m.process(nd)
		if err != nil {
			m.status = mip.LOADED
			return err
		}
		if !math.IsInf(resolved, 1) {
			unresolved = math.Min(unresolved, resolved)
			dropped++
		}
		for _, ch := range children {
			heap.Push(queue, ch)
		}
		if queue.dive && m.solCount > 0 {
			queue.dive = false
			heap.Init(queue)
		}
		m.logf(4, "bnc: node %d done, %d open, incumbent %g", m.NodeCount, queue.Len(), m.incumbentObj)
	}

	if queue.Len() == 0 {
		switch {
		case dropped > 0:
			m.status = mip.NUMERIC
			m.logf(1, "bnc: %d nodes were dropped unsolved, optimality is not proven", dropped)
		case m.solCount > 0:
			m.status = mip.OPTIMAL
		default:
			m.status = mip.INFEASIBLE
		}
		m.bound = math.Min(m.incumbentObj, unresolved)
	} else {
		m.bound = math.Min(m.incumbentObj, unresolved)
		for _, nd := range queue.nodes {
			m.bound = math.Min(m.bound, nd.bound)
		}
	}
	m.logf(2, "bnc: %s after %d nodes, %d LPs, %d OA cuts, %d lazy constraints, obj %g, bound %g, %s",
		m.status, m.NodeCount, m.LPCount, m.OACutCount, m.LazyCount, m.incumbentObj, m.bound, time.Since(start))
	return nil
}

func (m *Model) pruned(bound float64) bool {
	if math.IsInf(m.incumbentObj, 1) {
		return false
	}
	return bound >= m.incumbentObj-mipGap*math.Max(1, math.Abs(m.incumbentObj))
}

// process solves one node. It returns the child nodes to explore and, when
// the node had to be dropped unsolved, its bound.
func (m *Model) process(nd *node) ([]*node, float64, error) {
	for {
		res, converged, err := m.solveRelaxation(nd.lb, nd.ub)
		if err != nil {
			return nil, 0, err
		}
		if res.infeasible || m.pruned(res.obj) {
			return nil, math.Inf(1), nil
		}
		if j := m.branchVar(res.x, m.intTol); j >= 0 {
			return m.branch(nd, j, res), math.Inf(1), nil
		}
		if !converged {
			m.logf(1, "bnc: outer approximation did not converge within %d rounds, node dropped with bound %g", m.oaRounds, res.obj)
			return nil, res.obj, nil
		}

		// binaries are integral up to intTol; the continuous part has to be
		// feasible for the exact 0/1 values
		fixed, converged, err := m.solveFixed(nd, res.x)
		if err != nil {
			return nil, 0, err
		}
		if fixed.infeasible {
			if j := m.branchVar(res.x, 0); j >= 0 {
				return m.branch(nd, j, res), math.Inf(1), nil
			}
			return nil, math.Inf(1), nil
		}
		if m.pruned(fixed.obj) {
			return nil, math.Inf(1), nil
		}
		if !converged {
			m.logf(1, "bnc: outer approximation did not converge for the rounded candidate, node dropped with bound %g", res.obj)
			return nil, res.obj, nil
		}
		accepted, err := m.candidate(fixed)
		if err != nil {
			return nil, 0, err
		}
		if accepted {
			return nil, math.Inf(1), nil
		}
		// lazy constraints cut the candidate off, resolve the node
	}
}

// solveRelaxation alternates LP solves and outer approximation rounds. It
// reports false for converged if a violated quadratic constraint remains.
func (m *Model) solveRelaxation(lb, ub []float64) (lpResult, bool, error) {
	for round := 0; ; round++ {
		res, err := m.solveLP(lb, ub)
		if err != nil || res.infeasible {
			return res, true, err
		}
		m.retireCuts()
		if m.pruned(res.obj) {
			return res, true, nil
		}
		cuts, stalled, err := m.separate(res.x)
		if err != nil {
			return res, false, err
		}
		if len(cuts) == 0 {
			if stalled {
				m.logf(3, "bnc: outer approximation stalled after %d rounds", round+1)
			}
			return res, !stalled, nil
		}
		m.oa = append(m.oa, cuts...)
		m.OACutCount += len(cuts)
		if round+1 >= m.oaRounds {
			return res, false, nil
		}
	}
}

// solveFixed resolves the node with every binary fixed to its rounded value.
func (m *Model) solveFixed(nd *node, x []float64) (lpResult, bool, error) {
	lb := append([]float64(nil), nd.lb...)
	ub := append([]float64(nil), nd.ub...)
	for j, v := range m.vars {
		if v.vtype == mip.BINARY {
			r := math.Round(x[j])
			lb[j], ub[j] = r, r
		}
	}
	return m.solveRelaxation(lb, ub)
}

// branchVar returns the most fractional binary variable above tol or -1.
func (m *Model) branchVar(x []float64, tol float64) int {
	best, bestFrac := -1, tol
	for j, v := range m.vars {
		if v.vtype != mip.BINARY {
			continue
		}
		frac := math.Min(x[j]-math.Floor(x[j]), math.Ceil(x[j])-x[j])
		if frac > bestFrac {
			best, bestFrac = j, frac
		}
	}
	return best
}

func (m *Model) branch(nd *node, j int, res lpResult) []*node {
	down := &node{lb: append([]float64(nil), nd.lb...), ub: append([]float64(nil), nd.ub...), bound: res.obj, depth: nd.depth + 1}
	up := &node{lb: append([]float64(nil), nd.lb...), ub: append([]float64(nil), nd.ub...), bound: res.obj, depth: nd.depth + 1, up: true}
	down.ub[j] = math.Floor(res.x[j])
	up.lb[j] = math.Ceil(res.x[j])
	m.logf(4, "bnc: branching on %s = %g at depth %d", m.vars[j].name, res.x[j], nd.depth)
	return []*node{down, up}
}

// candidate reports an integer feasible point to the callback and makes it
// the incumbent unless the callback added a lazy constraint it violates.
func (m *Model) candidate(res lpResult) (bool, error) {
	m.CandidateCount++
	if m.callback != nil {
		ctx := &cbContext{m: m, x: res.x, obj: res.obj}
		if err := m.callback(ctx); err != nil {
			return false, fmt.Errorf("bnc: callback: %w", err)
		}
		for _, r := range ctx.added {
			if r.violated(res.x, rowTol) {
				m.logf(3, "bnc: candidate with obj %g rejected by %d lazy constraints", res.obj, len(ctx.added))
				return false, nil
			}
		}
	}
	if res.obj < m.incumbentObj {
		m.incumbent = res.x
		m.incumbentObj = res.obj
		m.solCount++
		m.logf(2, "bnc: new incumbent %g after %d nodes", res.obj, m.NodeCount)
	}
	return true, nil
}
