package bnc

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/d-krupke/drone-range-assignment/mip"
)

// ErrNumerical reports an LP the simplex could not solve reliably.
var ErrNumerical = errors.New("bnc: numerical failure")

const (
	primalTol = 1e-9
	dualTol   = 1e-9
	pivotTol  = 1e-9
	fixedTol  = 1e-12
	rowTol    = 1e-9
	// tangent points closer than this (relative) are the same cut
	tangentTol = 1e-9
	maxCond    = 1e12
	// consecutive degenerate pivots before switching to Bland's rule
	blandAfter    = 50
	refactorEvery = 50
	// LP solves an outer approximation cut may stay slack before it is
	// moved to the pool
	cutAgeLimit = 20
)

// basisStat is the simplex status of a column or of a row activity.
type basisStat int8

const (
	basic basisStat = iota
	atLower
	atUpper
)

type lpStatus int8

const (
	lpOptimal lpStatus = iota
	lpInfeasible
)

type lpResult struct {
	infeasible bool
	obj        float64
	x          []float64
}

// lpProblem is the bounded form
//
//	min c'x  s.t.  Ax - r = 0,  lo <= (x, r) <= hi
//
// of a relaxation. Column k < n is structural variable k, column n+i is the
// activity r_i of row i. Every row is scaled to a largest coefficient of 1.
type lpProblem struct {
	n, m   int
	a      [][]float64
	c      []float64
	lo, hi []float64
	stat   []basisStat
	z      []float64 // values of the nonbasic columns
	basis  []int
	xb     []float64 // values of the basic columns, by basis position
}

func feasTol(bound float64) float64 {
	return primalTol * math.Max(1, math.Abs(bound))
}

// solveLP solves the linear relaxation over all static, lazy and outer
// approximation rows with the given bounds, starting from the basis the
// previous call ended with.
func (m *Model) solveLP(lb, ub []float64) (res lpResult, err error) {
	m.LPCount++
	defer func() {
		if r := recover(); r != nil {
			m.resetBasis()
			res, err = lpResult{}, fmt.Errorf("%w: %v", ErrNumerical, r)
		}
	}()
	p, rows, empty := m.buildLP(lb, ub)
	if empty {
		return lpResult{infeasible: true}, nil
	}
	status, err := p.solve(false)
	if err != nil {
		m.logf(3, "bnc: %v, restarting the LP from the slack basis", err)
		p.coldStart()
		status, err = p.solve(true)
	}
	if err != nil {
		m.resetBasis()
		return lpResult{}, err
	}
	for j := 0; j < p.n; j++ {
		m.colStat[j] = p.stat[j]
	}
	for i, r := range rows {
		r.stat = p.stat[p.n+i]
	}
	if status == lpInfeasible {
		return lpResult{infeasible: true}, nil
	}
	x := make([]float64, p.n)
	for j := 0; j < p.n; j++ {
		if p.stat[j] != basic {
			x[j] = p.z[j]
		}
	}
	for q, k := range p.basis {
		if k < p.n {
			x[k] = p.xb[q]
		}
	}
	for j := range x {
		x[j] = math.Min(ub[j], math.Max(lb[j], x[j]))
	}
	return lpResult{obj: m.objective(x), x: x}, nil
}

func (m *Model) allRows() []*row {
	rows := make([]*row, 0, len(m.rows)+len(m.lazy)+len(m.oa))
	for i := range m.rows {
		rows = append(rows, &m.rows[i])
	}
	for i := range m.lazy {
		rows = append(rows, &m.lazy[i])
	}
	for i := range m.oa {
		rows = append(rows, &m.oa[i])
	}
	return rows
}

// resetBasis forgets the warm start: all variables at their lower bound, all
// row activities basic.
func (m *Model) resetBasis() {
	for j := range m.colStat {
		m.colStat[j] = atLower
	}
	for _, r := range m.allRows() {
		r.stat = basic
	}
}

// buildLP returns false for empty when some variable has an empty domain.
func (m *Model) buildLP(lb, ub []float64) (*lpProblem, []*row, bool) {
	n := len(m.vars)
	rows := m.allRows()
	total := n + len(rows)
	p := &lpProblem{
		n:     n,
		m:     len(rows),
		a:     make([][]float64, len(rows)),
		c:     m.obj,
		lo:    make([]float64, total),
		hi:    make([]float64, total),
		stat:  make([]basisStat, total),
		z:     make([]float64, total),
		basis: make([]int, 0, len(rows)),
	}
	for j := 0; j < n; j++ {
		if ub[j] < lb[j]-fixedTol {
			return nil, nil, true
		}
		p.lo[j], p.hi[j] = lb[j], math.Max(lb[j], ub[j])
		p.stat[j] = m.colStat[j]
	}
	for i, r := range rows {
		scale := 0.0
		for _, v := range r.val {
			scale = math.Max(scale, math.Abs(v))
		}
		if scale == 0 {
			scale = 1
		}
		p.a[i] = make([]float64, n)
		for k, j := range r.ind {
			p.a[i][j] = r.val[k] / scale
		}
		rhs := r.rhs / scale
		lo, hi := math.Inf(-1), math.Inf(1)
		switch r.sense {
		case mip.LESS_EQUAL:
			hi = rhs
		case mip.GREATER_EQUAL:
			lo = rhs
		default:
			lo, hi = rhs, rhs
		}
		p.lo[n+i], p.hi[n+i] = lo, hi
		p.stat[n+i] = r.stat
	}
	if !p.setBasis() {
		p.coldStart()
	}
	return p, rows, false
}

// setBasis collects the basic columns and puts every nonbasic column on a
// finite bound. It reports whether there is one basic column per row.
func (p *lpProblem) setBasis() bool {
	p.basis = p.basis[:0]
	for k, s := range p.stat {
		switch {
		case s == basic:
			p.basis = append(p.basis, k)
			continue
		case s == atUpper && !math.IsInf(p.hi[k], 1):
			p.z[k] = p.hi[k]
		case !math.IsInf(p.lo[k], -1):
			p.stat[k], p.z[k] = atLower, p.lo[k]
		default:
			p.stat[k], p.z[k] = atUpper, p.hi[k]
		}
	}
	return len(p.basis) == p.m
}

func (p *lpProblem) coldStart() {
	for k := range p.stat {
		if k < p.n {
			p.stat[k] = atLower
		} else {
			p.stat[k] = basic
		}
	}
	p.setBasis()
}

// column writes column k of [A -I] to dst.
func (p *lpProblem) column(dst []float64, k int) {
	for i := range dst {
		dst[i] = 0
		if k < p.n {
			dst[i] = p.a[i][k]
		}
	}
	if k >= p.n {
		dst[k-p.n] = -1
	}
}

func (p *lpProblem) cost(k int) float64 {
	if k < p.n {
		return p.c[k]
	}
	return 0
}

func (p *lpProblem) reducedCost(k int, y []float64, phase1 bool) float64 {
	d := 0.0
	if !phase1 {
		d = p.cost(k)
	}
	if k >= p.n {
		return d + y[k-p.n]
	}
	for i := 0; i < p.m; i++ {
		d -= y[i] * p.a[i][k]
	}
	return d
}

// ratio is the step after which the basic column k, currently at v and
// changing at rate g, hits a bound. Columns outside their bounds stop as
// soon as they become feasible. relaxed widens the bounds by the primal
// tolerance (first pass of the Harris ratio test).
func (p *lpProblem) ratio(v float64, k int, g float64, relaxed bool) (float64, bool) {
	lo, hi := p.lo[k], p.hi[k]
	tl, th := feasTol(lo), feasTol(hi)
	if g < 0 {
		if v > hi+th {
			return (v - hi) / -g, true
		}
		if math.IsInf(lo, -1) || v < lo-tl {
			return 0, false
		}
		slack := v - lo
		if relaxed {
			slack += tl
		}
		return math.Max(slack, 0) / -g, true
	}
	if v < lo-tl {
		return (lo - v) / g, true
	}
	if math.IsInf(hi, 1) || v > hi+th {
		return 0, false
	}
	slack := hi - v
	if relaxed {
		slack += th
	}
	return math.Max(slack, 0) / g, true
}

// factorize sets binv to the inverse of the basis matrix.
func (p *lpProblem) factorize(binv *mat.Dense) error {
	B := mat.NewDense(p.m, p.m, nil)
	col := make([]float64, p.m)
	for q, k := range p.basis {
		p.column(col, k)
		B.SetCol(q, col)
	}
	var lu mat.LU
	lu.Factorize(B)
	if cond := lu.Cond(); math.IsNaN(cond) || cond > maxCond {
		return fmt.Errorf("%w: basis condition number %.3g", ErrNumerical, cond)
	}
	ones := make([]float64, p.m)
	for i := range ones {
		ones[i] = 1
	}
	if err := lu.SolveTo(binv, false, mat.NewDiagDense(p.m, ones)); err != nil {
		return fmt.Errorf("%w: %v", ErrNumerical, err)
	}
	return nil
}

// solve runs the bounded primal simplex. While basic columns violate their
// bounds it minimizes the sum of infeasibilities (phase 1), afterwards the
// objective (phase 2). The basis inverse is updated in product form and
// recomputed every refactorEvery pivots and before the final answer.
func (p *lpProblem) solve(bland bool) (lpStatus, error) {
	m := p.m
	p.xb = make([]float64, m)
	if m == 0 {
		for k := 0; k < p.n; k++ {
			if p.c[k] < 0 {
				p.stat[k], p.z[k] = atUpper, p.hi[k]
			} else {
				p.stat[k], p.z[k] = atLower, p.lo[k]
			}
		}
		return lpOptimal, nil
	}

	binv := mat.NewDense(m, m, nil)
	col := make([]float64, m)
	rhs := make([]float64, m)
	cb := make([]float64, m)
	y := make([]float64, m)
	alpha := make([]float64, m)
	degenerate := 0
	sinceFactor := refactorEvery
	maxIter := 50*(p.n+m) + 1000

	for iter := 0; iter < maxIter; iter++ {
		if sinceFactor >= refactorEvery {
			if err := p.factorize(binv); err != nil {
				return 0, err
			}
			sinceFactor = 0
		}

		// B x_B = -N z_N
		for i := range rhs {
			rhs[i] = 0
		}
		for k, s := range p.stat {
			if s == basic || p.z[k] == 0 {
				continue
			}
			if k >= p.n {
				rhs[k-p.n] += p.z[k]
				continue
			}
			for i := 0; i < m; i++ {
				rhs[i] -= p.a[i][k] * p.z[k]
			}
		}
		for i := 0; i < m; i++ {
			p.xb[i] = dot(binv.RawRowView(i), rhs)
		}

		phase1 := false
		for q, k := range p.basis {
			cb[q] = 0
			if p.xb[q] < p.lo[k]-feasTol(p.lo[k]) {
				cb[q], phase1 = -1, true
			} else if p.xb[q] > p.hi[k]+feasTol(p.hi[k]) {
				cb[q], phase1 = 1, true
			}
		}
		if !phase1 {
			for q, k := range p.basis {
				cb[q] = p.cost(k)
			}
		}
		// y = B^-T c_B
		for j := range y {
			y[j] = 0
		}
		for i := 0; i < m; i++ {
			if cb[i] == 0 {
				continue
			}
			for j, v := range binv.RawRowView(i) {
				y[j] += cb[i] * v
			}
		}

		useBland := bland || degenerate > blandAfter
		enter, dir, best := -1, 0.0, 0.0
		for k, s := range p.stat {
			if s == basic || p.hi[k]-p.lo[k] <= fixedTol {
				continue
			}
			d := p.reducedCost(k, y, phase1)
			var move float64
			switch {
			case s == atLower && d < -dualTol:
				move = 1
			case s == atUpper && d > dualTol:
				move = -1
			default:
				continue
			}
			if useBland {
				enter, dir = k, move
				break
			}
			if math.Abs(d) > best {
				enter, dir, best = k, move, math.Abs(d)
			}
		}
		if enter < 0 {
			if sinceFactor > 0 {
				// confirm on a fresh inverse
				sinceFactor = refactorEvery
				continue
			}
			if phase1 {
				return lpInfeasible, nil
			}
			return lpOptimal, nil
		}

		// x_B(t) = x_B + t*g with g = -dir * B^-1 a_enter
		p.column(col, enter)
		for i := 0; i < m; i++ {
			alpha[i] = dot(binv.RawRowView(i), col)
		}
		flip := p.hi[enter] - p.lo[enter]
		tmax := flip
		for q, k := range p.basis {
			g := -dir * alpha[q]
			if math.Abs(g) <= pivotTol {
				continue
			}
			if r, ok := p.ratio(p.xb[q], k, g, true); ok && r < tmax {
				tmax = r
			}
		}
		leave, step := -1, flip
		if tmax < flip {
			bestPivot := 0.0
			for q, k := range p.basis {
				g := -dir * alpha[q]
				if math.Abs(g) <= pivotTol {
					continue
				}
				r, ok := p.ratio(p.xb[q], k, g, false)
				if !ok || r > tmax {
					continue
				}
				if useBland {
					if leave < 0 || k < p.basis[leave] {
						leave, step = q, r
					}
					continue
				}
				if math.Abs(g) > bestPivot {
					leave, step, bestPivot = q, r, math.Abs(g)
				}
			}
		}
		if leave < 0 && math.IsInf(flip, 1) {
			return 0, fmt.Errorf("%w: unbounded ray (phase 1: %t)", ErrNumerical, phase1)
		}
		if step <= fixedTol {
			degenerate++
		} else {
			degenerate = 0
		}

		if leave < 0 {
			if dir > 0 {
				p.stat[enter], p.z[enter] = atUpper, p.hi[enter]
			} else {
				p.stat[enter], p.z[enter] = atLower, p.lo[enter]
			}
			continue
		}
		k := p.basis[leave]
		v := p.xb[leave]
		if g := -dir * alpha[leave]; g < 0 {
			if v > p.hi[k]+feasTol(p.hi[k]) {
				p.stat[k], p.z[k] = atUpper, p.hi[k]
			} else {
				p.stat[k], p.z[k] = atLower, p.lo[k]
			}
		} else {
			if v < p.lo[k]-feasTol(p.lo[k]) {
				p.stat[k], p.z[k] = atLower, p.lo[k]
			} else {
				p.stat[k], p.z[k] = atUpper, p.hi[k]
			}
		}
		p.stat[enter] = basic
		p.basis[leave] = enter

		pivot := binv.RawRowView(leave)
		for j := range pivot {
			pivot[j] /= alpha[leave]
		}
		for i := 0; i < m; i++ {
			if i == leave || alpha[i] == 0 {
				continue
			}
			ri := binv.RawRowView(i)
			for j, v := range pivot {
				ri[j] -= alpha[i] * v
			}
		}
		sinceFactor++
	}
	return 0, fmt.Errorf("%w: simplex iteration limit %d reached", ErrNumerical, maxIter)
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i, v := range a {
		sum += v * b[i]
	}
	return sum
}

// separate returns the cuts x violates. Pooled outer approximation cuts come
// back first; then every quadratic constraint violated at x gets a tangent.
// For f(x) = sum(e_i(x)^2) - b(x) the linearization at x* is
// sum(2 e_i(x*) e_i(x)) - b(x) <= sum(e_i(x*)^2).
// stalled reports a violated constraint that already has an active tangent
// at x*, i.e. the LP did not honor an existing cut.
func (m *Model) separate(x []float64) (cuts []row, stalled bool, err error) {
	pool := m.oaPool[:0]
	for _, r := range m.oaPool {
		if r.violated(x, rowTol) {
			r.stat, r.age = basic, 0
			cuts = append(cuts, r)
			continue
		}
		pool = append(pool, r)
	}
	m.oaPool = pool

	value := func(v mip.Var) float64 { return x[v] }
	for qi := range m.quads {
		q := &m.quads[qi]
		sum := 0.0
		vals := make([]float64, len(q.sq))
		for i, e := range q.sq {
			vals[i] = e.Eval(value)
			sum += vals[i] * vals[i]
		}
		b := q.bound.Eval(value)
		if sum-b <= m.feasTol*math.Max(1, math.Abs(b)) {
			continue
		}
		if q.hasTangent(vals) {
			stalled = true
			continue
		}
		lhs := q.bound.Scale(-1)
		for i, e := range q.sq {
			lhs = lhs.Add(e.Scale(2 * vals[i]))
		}
		r, err := m.compile(lhs, mip.LESS_EQUAL, sum, q.name+"_oa")
		if err != nil {
			return nil, false, err
		}
		q.tangents = append(q.tangents, vals)
		cuts = append(cuts, r)
	}
	return cuts, stalled, nil
}

// retireCuts moves outer approximation cuts that were slack in the last
// cutAgeLimit LPs to the pool. Their row activity is basic, so the remaining
// basis stays square.
func (m *Model) retireCuts() {
	active := m.oa[:0]
	for _, r := range m.oa {
		if r.stat == basic {
			r.age++
		} else {
			r.age = 0
		}
		if r.age > cutAgeLimit {
			m.oaPool = append(m.oaPool, r)
			continue
		}
		active = append(active, r)
	}
	m.oa = active
}

func (q *qconstr) hasTangent(vals []float64) bool {
	scale := 1.0
	for _, v := range vals {
		scale = math.Max(scale, math.Abs(v))
	}
	for _, t := range q.tangents {
		dist := 0.0
		for i := range t {
			dist = math.Max(dist, math.Abs(t[i]-vals[i]))
		}
		if dist <= tangentTol*scale {
			return true
		}
	}
	return false
}
