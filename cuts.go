package rangeassign

import (
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/d-krupke/drone-range-assignment/mip"
)

// newAgentGraph returns a directed graph with one node per agent id.
func newAgentGraph(inst *Instance) *simple.DirectedGraph {
	g := simple.NewDirectedGraph()
	for id := range inst.Agents() {
		g.AddNode(simple.Node(id))
	}
	return g
}

// Reachable returns, indexed by agent id, which agents can be reached from
// the agent with id from, including from itself.
func Reachable(g traverse.Graph, from int, n int) []bool {
	reach := make([]bool, n)
	dfs := traverse.DepthFirst{
		Visit: func(v graph.Node) { reach[v.ID()] = true },
	}
	dfs.Walk(g, simple.Node(from), nil)
	return reach
}

// allTerminals reports whether every terminal is marked in reach.
func allTerminals(inst *Instance, reach []bool) bool {
	for id := 0; id < inst.NumTerminals(); id++ {
		if !reach[id] {
			return false
		}
	}
	return true
}

// Graph builds the topology of the arcs with value > 0.5. value is either the
// callback's incumbent or the solved model.
func (a *ArcVars) Graph(value func(mip.Var) float64) *simple.DirectedGraph {
	g := newAgentGraph(a.inst)
	n := a.inst.NumAgents()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && value(a.vars[GetArcIndex(i, j, n)]) > 0.5 {
				g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(j)))
			}
		}
	}
	return g
}

// Matrix returns the 0/1 adjacency matrix of the arcs with value > 0.5.
func (a *ArcVars) Matrix(value func(mip.Var) float64) [][]int {
	n := a.inst.NumAgents()
	res := make([][]int, n)
	for i := 0; i < n; i++ {
		res[i] = make([]int, n)
		for j := 0; j < n; j++ {
			if i != j && value(a.vars[GetArcIndex(i, j, n)]) > 0.5 {
				res[i][j] = 1
			}
		}
	}
	return res
}

// Cut demands at least one used arc leaving the agents reachable from
// Terminal: Lhs >= 1.
type Cut struct {
	Terminal  Agent
	Reachable []Agent
	Lhs       mip.LinExpr
}

func (c Cut) Rhs() float64 { return 1 }

// ConnectivityCuts checks, for every terminal, whether all terminals can be
// reached over the arcs with value > 0.5. For each terminal that fails, the
// cut forbidding its reachable set to be closed is returned. An empty result
// means the arcs connect all terminals strongly.
func (a *ArcVars) ConnectivityCuts(value func(mip.Var) float64) []Cut {
	g := a.Graph(value)
	n := a.inst.NumAgents()
	var cuts []Cut
	for _, t := range a.inst.Terminals() {
		reach := Reachable(g, a.inst.ID(t), n)
		if allTerminals(a.inst, reach) {
			continue
		}
		cut := Cut{Terminal: t}
		for v := 0; v < n; v++ {
			if !reach[v] {
				continue
			}
			cut.Reachable = append(cut.Reachable, a.inst.Agent(v))
			for w := 0; w < n; w++ {
				if !reach[w] {
					cut.Lhs.AddTerm(1, a.vars[GetArcIndex(v, w, n)])
				}
			}
		}
		cuts = append(cuts, cut)
	}
	return cuts
}

// LazilyEnforceStronglyConnected adds the connectivity cuts of the reported
// incumbent as lazy constraints and returns how many were added.
func (a *ArcVars) LazilyEnforceStronglyConnected(ctx mip.CallbackContext) (int, error) {
	cuts := a.ConnectivityCuts(ctx.Value)
	for _, cut := range cuts {
		Log(LOG_SPAM, "Terminal %d only reaches %v, adding cut %s >= 1", cut.Terminal.Index, cut.Reachable, cut.Lhs)
		if err := ctx.AddLazy(cut.Lhs, mip.GREATER_EQUAL, cut.Rhs()); err != nil {
			return 0, fmt.Errorf("adding connectivity cut for %s: %w", cut.Terminal, err)
		}
	}
	if len(cuts) > 0 {
		Log(LOG_DEBUG, "Added %d connectivity cuts for incumbent with obj %g", len(cuts), ctx.Objective())
	}
	return len(cuts), nil
}
