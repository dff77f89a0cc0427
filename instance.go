package rangeassign

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoTerminals    = errors.New("rangeassign: instance has no terminals")
	ErrNegativeDrones = errors.New("rangeassign: negative number of drones")
	ErrBadCoordinates = errors.New("rangeassign: coordinates must be pairs")
)

// Instance owns the terminals and drones of one problem. It is read-only
// after construction and may be shared between concurrent solves.
type Instance struct {
	terminals []Agent
	drones    []Agent
	agents    []Agent
}

// NewInstance creates terminals 0..len(points)-1 in input order and drones
// 0..numDrones-1.
func NewInstance(points []Point, numDrones int) (*Instance, error) {
	if len(points) == 0 {
		return nil, ErrNoTerminals
	}
	if numDrones < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeDrones, numDrones)
	}
	inst := &Instance{
		terminals: make([]Agent, len(points)),
		drones:    make([]Agent, numDrones),
	}
	for i, p := range points {
		inst.terminals[i] = NewTerminal(i, p)
	}
	for i := 0; i < numDrones; i++ {
		inst.drones[i] = NewDrone(i)
	}
	inst.agents = append(append(make([]Agent, 0, len(points)+numDrones), inst.terminals...), inst.drones...)
	return inst, nil
}

// Instance converts the file representation.
func (f *InstanceFile) Instance() (*Instance, error) {
	points := make([]Point, len(f.NodeCoordinates))
	for i, c := range f.NodeCoordinates {
		if len(c) != 2 {
			return nil, fmt.Errorf("%w: node %d has %d values", ErrBadCoordinates, i, len(c))
		}
		points[i] = Point{X: c[0], Y: c[1]}
	}
	return NewInstance(points, f.DroneCount)
}

func (inst *Instance) Terminals() []Agent { return inst.terminals }

func (inst *Instance) Drones() []Agent { return inst.drones }

// Agents returns terminals followed by drones. The position in this slice is
// the agent's id used for variable indexing and graph nodes.
func (inst *Instance) Agents() []Agent { return inst.agents }

func (inst *Instance) NumTerminals() int { return len(inst.terminals) }

func (inst *Instance) NumDrones() int { return len(inst.drones) }

func (inst *Instance) NumAgents() int { return len(inst.agents) }

func (inst *Instance) TerminalIndices() []int {
	idx := make([]int, len(inst.terminals))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// ID returns the position of a in Agents().
func (inst *Instance) ID(a Agent) int {
	if a.IsTerminal() {
		return a.Index
	}
	return len(inst.terminals) + a.Index
}

// Agent is the inverse of ID.
func (inst *Instance) Agent(id int) Agent {
	return inst.agents[id]
}

// BoundingBox returns the lower left and upper right corner of the terminals.
func (inst *Instance) BoundingBox() (min, max Point) {
	min = Point{X: math.Inf(1), Y: math.Inf(1)}
	max = Point{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, t := range inst.terminals {
		min.X = math.Min(min.X, t.Position.X)
		min.Y = math.Min(min.Y, t.Position.Y)
		max.X = math.Max(max.X, t.Position.X)
		max.Y = math.Max(max.Y, t.Position.Y)
	}
	return min, max
}

// MaxExtent is the larger side of the bounding box.
func (inst *Instance) MaxExtent() float64 {
	min, max := inst.BoundingBox()
	return math.Max(max.X-min.X, max.Y-min.Y)
}

// Diameter is the largest distance between two terminals, 0 for a single
// terminal.
func (inst *Instance) Diameter() float64 {
	d := 0.0
	for i, t1 := range inst.terminals {
		for _, t2 := range inst.terminals[i+1:] {
			d = math.Max(d, t1.Position.Distance(t2.Position))
		}
	}
	return d
}
