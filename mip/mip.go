// Package mip describes the constrained-optimization engine the range
// assignment model is built on: continuous and binary variables, linear and
// convex quadratic constraints, a linear objective, a time-limited
// branch-and-cut search and an incumbent callback that can add lazy cuts.
package mip

import (
	"errors"
	"fmt"
	"strings"
)

// VarType is the domain of a decision variable.
type VarType int8

const (
	CONTINUOUS VarType = iota
	BINARY
)

// Sense of a linear constraint.
type Sense int8

const (
	LESS_EQUAL Sense = iota
	GREATER_EQUAL
	EQUAL
)

func (s Sense) String() string {
	switch s {
	case LESS_EQUAL:
		return "<="
	case GREATER_EQUAL:
		return ">="
	case EQUAL:
		return "="
	}
	return "?"
}

// Status of a model after Optimize.
type Status int8

const (
	LOADED Status = iota
	OPTIMAL
	INFEASIBLE
	TIME_LIMIT
	NODE_LIMIT
	// the search finished but some nodes could not be solved reliably, so
	// neither optimality nor infeasibility is proven
	NUMERIC
)

func (s Status) String() string {
	switch s {
	case LOADED:
		return "loaded"
	case OPTIMAL:
		return "optimal"
	case INFEASIBLE:
		return "infeasible"
	case TIME_LIMIT:
		return "time_limit"
	case NODE_LIMIT:
		return "node_limit"
	case NUMERIC:
		return "numeric"
	}
	return "unknown"
}

// Where tells a callback in which phase of the search it was invoked.
type Where int8

const (
	// CB_MIPSOL fires for every new integer feasible candidate before it
	// becomes the incumbent.
	CB_MIPSOL Where = iota
)

// Parameter names.
const (
	IntParLazyConstraints = "LazyConstraints"
	IntParNodeLimit       = "NodeLimit"
	DblParTimeLimit       = "TimeLimit"
	DblParFeasTol         = "FeasibilityTol"
	DblParIntTol          = "IntFeasTol"
)

var (
	ErrNotSolved    = errors.New("mip: model has not been optimized")
	ErrNoSolution   = errors.New("mip: no solution available")
	ErrLazyDisabled = errors.New("mip: lazy constraint added without LazyConstraints=1")
	ErrUnknownParam = errors.New("mip: unknown parameter")
	ErrUnknownVar   = errors.New("mip: unknown variable")
)

// Var is a handle to a variable of one model.
type Var int

// Term is coef*var.
type Term struct {
	Var  Var
	Coef float64
}

// LinExpr is a linear expression sum(terms) + Constant.
type LinExpr struct {
	Terms    []Term
	Constant float64
}

// Const returns the constant expression c.
func Const(c float64) LinExpr {
	return LinExpr{Constant: c}
}

// Expr returns the expression 1*v.
func Expr(v Var) LinExpr {
	return LinExpr{Terms: []Term{{Var: v, Coef: 1}}}
}

// Sum returns the expression sum(vars).
func Sum(vars ...Var) LinExpr {
	e := LinExpr{Terms: make([]Term, 0, len(vars))}
	for _, v := range vars {
		e.Terms = append(e.Terms, Term{Var: v, Coef: 1})
	}
	return e
}

// AddTerm appends coef*v and returns the receiver for chaining.
func (e *LinExpr) AddTerm(coef float64, v Var) *LinExpr {
	e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
	return e
}

// Add returns e + o.
func (e LinExpr) Add(o LinExpr) LinExpr {
	terms := make([]Term, 0, len(e.Terms)+len(o.Terms))
	terms = append(terms, e.Terms...)
	terms = append(terms, o.Terms...)
	return LinExpr{Terms: terms, Constant: e.Constant + o.Constant}
}

// Scale returns f*e.
func (e LinExpr) Scale(f float64) LinExpr {
	terms := make([]Term, len(e.Terms))
	for i, t := range e.Terms {
		terms[i] = Term{Var: t.Var, Coef: f * t.Coef}
	}
	return LinExpr{Terms: terms, Constant: f * e.Constant}
}

// Sub returns e - o.
func (e LinExpr) Sub(o LinExpr) LinExpr {
	return e.Add(o.Scale(-1))
}

// IsConstant reports whether the expression has no variable terms.
func (e LinExpr) IsConstant() bool {
	return len(e.Terms) == 0
}

// Eval evaluates the expression with the given variable values.
func (e LinExpr) Eval(value func(Var) float64) float64 {
	sum := e.Constant
	for _, t := range e.Terms {
		sum += t.Coef * value(t.Var)
	}
	return sum
}

// Satisfied reports whether lhs sense rhs holds for the given values within tol.
func Satisfied(lhs LinExpr, sense Sense, rhs float64, value func(Var) float64, tol float64) bool {
	v := lhs.Eval(value)
	switch sense {
	case LESS_EQUAL:
		return v <= rhs+tol
	case GREATER_EQUAL:
		return v >= rhs-tol
	}
	return v >= rhs-tol && v <= rhs+tol
}

func (e LinExpr) String() string {
	var sb strings.Builder
	for i, t := range e.Terms {
		if i > 0 {
			sb.WriteString(" + ")
		}
		fmt.Fprintf(&sb, "%g*v%d", t.Coef, t.Var)
	}
	if e.Constant != 0 || len(e.Terms) == 0 {
		if len(e.Terms) > 0 {
			sb.WriteString(" + ")
		}
		fmt.Fprintf(&sb, "%g", e.Constant)
	}
	return sb.String()
}

// CallbackContext is handed to a Callback. It only exposes the reported
// candidate; the model itself must not be modified from inside a callback
// except through AddLazy.
type CallbackContext interface {
	Where() Where
	// Value returns the candidate's value of v.
	Value(v Var) float64
	// Objective returns the candidate's objective value.
	Objective() float64
	// AddLazy adds lhs sense rhs to the model. The candidate is rejected
	// if it violates the new constraint.
	AddLazy(lhs LinExpr, sense Sense, rhs float64) error
}

// Callback is invoked synchronously by the engine.
type Callback func(ctx CallbackContext) error

// Model is a single optimization session. A Model is not safe for concurrent
// use; create one per solve.
type Model interface {
	AddVar(lb, ub float64, vtype VarType, name string) (Var, error)
	AddConstr(lhs LinExpr, sense Sense, rhs float64, name string) error
	// AddQConstr adds sum(sq_i^2) <= bound.
	AddQConstr(sq []LinExpr, bound LinExpr, name string) error
	SetObjective(obj LinExpr) error
	SetIntParam(name string, value int) error
	SetDblParam(name string, value float64) error
	SetCallback(cb Callback) error
	Optimize() error

	Status() Status
	SolCount() int
	ObjVal() (float64, error)
	ObjBound() (float64, error)
	Value(v Var) (float64, error)
	NumVars() int
}
