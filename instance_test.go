package rangeassign_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dra "github.com/d-krupke/drone-range-assignment"
)

func newInstance(t *testing.T, numDrones int, points ...dra.Point) *dra.Instance {
	t.Helper()
	inst, err := dra.NewInstance(points, numDrones)
	require.NoError(t, err)
	return inst
}

func TestNewInstanceRejectsMalformedInput(t *testing.T) {
	_, err := dra.NewInstance(nil, 2)
	assert.True(t, errors.Is(err, dra.ErrNoTerminals))

	_, err = dra.NewInstance([]dra.Point{{X: 0, Y: 0}}, -1)
	assert.True(t, errors.Is(err, dra.ErrNegativeDrones))

	file := dra.InstanceFile{NodeCoordinates: [][]float64{{0, 0}, {1}}, DroneCount: 1}
	_, err = file.Instance()
	assert.True(t, errors.Is(err, dra.ErrBadCoordinates))
}

func TestInstanceAgents(t *testing.T) {
	inst := newInstance(t, 2, dra.Point{X: 1, Y: 2}, dra.Point{X: 3, Y: 4}, dra.Point{X: 5, Y: 6})
	require.Equal(t, 3, inst.NumTerminals())
	require.Equal(t, 2, inst.NumDrones())
	require.Equal(t, 5, inst.NumAgents())
	assert.Equal(t, []int{0, 1, 2}, inst.TerminalIndices())

	for id, a := range inst.Agents() {
		assert.Equal(t, id, inst.ID(a))
		assert.Equal(t, a, inst.Agent(id))
		assert.Equal(t, id < 3, a.IsTerminal())
		assert.Equal(t, id >= 3, a.IsDrone())
	}
	assert.Equal(t, dra.Point{X: 3, Y: 4}, inst.Terminals()[1].Position)
	assert.Equal(t, dra.NewDrone(1), inst.Drones()[1])
	assert.NotEqual(t, inst.Terminals()[0], inst.Terminals()[1])
}

func TestInstanceGeometry(t *testing.T) {
	inst := newInstance(t, 1, dra.Point{X: 0, Y: 0}, dra.Point{X: 4, Y: 0}, dra.Point{X: 0, Y: 3})
	min, max := inst.BoundingBox()
	assert.Equal(t, dra.Point{X: 0, Y: 0}, min)
	assert.Equal(t, dra.Point{X: 4, Y: 3}, max)
	assert.Equal(t, 4.0, inst.MaxExtent())
	assert.InDelta(t, 5.0, inst.Diameter(), 1e-12)

	single := newInstance(t, 3, dra.Point{X: 7, Y: -1})
	assert.Equal(t, 0.0, single.Diameter())
	assert.Equal(t, 0.0, single.MaxExtent())
}

func TestInstanceFileRoundTrip(t *testing.T) {
	file := dra.InstanceFile{
		Name:            "square",
		Type:            dra.INSTANCE_TYPE,
		TerminalCount:   4,
		DroneCount:      1,
		NodeCoordinates: [][]float64{{0, 0}, {0, 1}, {1, 1}, {1, 0}},
	}
	inst, err := file.Instance()
	require.NoError(t, err)
	assert.Equal(t, 4, inst.NumTerminals())
	assert.Equal(t, 1, inst.NumDrones())
	assert.Equal(t, dra.Point{X: 1, Y: 1}, inst.Terminals()[2].Position)
}
