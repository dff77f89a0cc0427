package rangeassign

import (
	"fmt"
	"math"
	"time"
)

const (
	INSTANCE_TYPE = "DRA"

	// DefaultTimeLimit bounds a solve when the caller passes no limit.
	DefaultTimeLimit = 60 * time.Second
	// DefaultEps absorbs rounding between solver ranges and true distances.
	DefaultEps = 0.001
)

type Point struct {
	X float64
	Y float64
}

func (p Point) Distance(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

type AgentKind int8

const (
	TERMINAL AgentKind = iota
	DRONE
)

// Agent is either a terminal with a fixed position or a drone whose position
// is decided by the solver. Agents are comparable and can be used as map keys;
// two terminals are equal iff index and position match.
type Agent struct {
	Kind     AgentKind
	Index    int
	Position Point // zero for drones
}

func NewTerminal(index int, position Point) Agent {
	return Agent{Kind: TERMINAL, Index: index, Position: position}
}

func NewDrone(index int) Agent {
	return Agent{Kind: DRONE, Index: index}
}

func (a Agent) IsTerminal() bool { return a.Kind == TERMINAL }

func (a Agent) IsDrone() bool { return a.Kind == DRONE }

func (a Agent) String() string {
	if a.IsTerminal() {
		return fmt.Sprintf("Terminal(%d, %s)", a.Index, a.Position)
	}
	return fmt.Sprintf("Drone(%d)", a.Index)
}

// InstanceFile is the JSON representation of an instance, optionally carrying
// the solution found for it.
type InstanceFile struct {
	Name    string `json:"name"`
	Comment string `json:"comment"`
	Type    string `json:"type"`

	TerminalCount   int         `json:"terminal_count"`
	DroneCount      int         `json:"drone_count"`
	NodeCoordinates [][]float64 `json:"node_coordinates"`

	Solution *SolutionRecord `json:"solution,omitempty"`
}

// SolutionRecord is the JSON representation of a Solution. Agents are listed
// terminals first, then drones, as returned by Instance.Agents.
type SolutionRecord struct {
	RunID    string      `json:"run_id"`
	Obj      float64     `json:"obj"`
	LBound   float64     `json:"lbound"`
	Optimal  bool        `json:"optimal"`
	Feasible bool        `json:"feasible"`
	Eps      float64     `json:"eps"`
	Powers   []float64   `json:"powers"`
	Ranges   []float64   `json:"ranges"`
	Drones   [][]float64 `json:"drone_positions"`
	Arcs     [][]int     `json:"arcs"`
	Cuts     int         `json:"cuts"`

	Time    string  `json:"time"`
	System  SysInfo `json:"system"`
	Comment string  `json:"comment"`
}

// SysInfo saves the basic system information
type SysInfo struct {
	Platform string
	CPU      string
	RAM      string
}
