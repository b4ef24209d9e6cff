package motion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tile = 32.0

func TestGridHelpers(t *testing.T) {
	g := NewGrid(10, 8, tile, tile, []int{23}, 12)

	assert.Equal(t, 23, g.Index(3, 2))
	assert.Equal(t, Vec2{X: 96, Y: 64}, g.WorldOf(23))
	assert.Equal(t, Vec2{}, g.WorldOf(0))
	assert.Equal(t, Vec2{X: 64, Y: 32}, g.Spawn())

	x, y := g.CellOf(Vec2{X: 95, Y: 47})
	assert.Equal(t, 3, x)
	assert.Equal(t, 1, y)

	assert.True(t, g.Blocked(3, 2))
	assert.False(t, g.Blocked(2, 2))
	assert.True(t, g.Blocked(-1, 0))
	assert.True(t, g.Blocked(10, 0))
	assert.True(t, g.Blocked(0, 8))
}

func TestDirectionVector(t *testing.T) {
	assert.Equal(t, Vec2{X: 1}, Direction{Right: true}.Vector())
	assert.Equal(t, Vec2{Y: -1}, Direction{Down: true}.Vector())
	assert.Equal(t, Vec2{}, Direction{Left: true, Right: true}.Vector())
	assert.Equal(t, Vec2{X: -1, Y: 1}, Direction{Left: true, Up: true}.Vector())
}

func TestStepRejectsHitbox(t *testing.T) {
	// (3,2) on a 10 column grid.
	g := NewGrid(10, 10, tile, tile, []int{23}, 0)
	c := NewController(g)

	m := NewModel()
	start := g.CellWorld(2, 2)
	m.Place(start)

	moved := c.Step(m, Direction{Right: true}, 1.0/60)
	assert.False(t, moved)
	assert.Equal(t, start, m.Position())
}

func TestStepRejectsOutOfBounds(t *testing.T) {
	g := NewGrid(4, 4, tile, tile, nil, 0)
	c := NewController(g)

	m := NewModel()
	m.Place(g.CellWorld(0, 0))

	assert.False(t, c.Step(m, Direction{Left: true}, 1.0/60))
	assert.False(t, c.Step(m, Direction{Down: true}, 1.0/60))
	assert.Equal(t, Vec2{}, m.Position())
}

func TestStepMovesAndWalks(t *testing.T) {
	g := NewGrid(10, 10, tile, tile, nil, 0)
	c := NewController(g)

	m := NewModel()
	m.Place(g.CellWorld(2, 2))

	require.True(t, c.Step(m, Direction{Right: true}, 0.5))
	assert.Equal(t, Vec2{X: 2*tile + tile, Y: 2 * tile}, m.Position())
	assert.Equal(t, ANIMATION_WALK, m.Animation())
	assert.Equal(t, 1.0, m.ScaleX())

	require.True(t, c.Step(m, Direction{Left: true}, 0.25))
	assert.Equal(t, -1.0, m.ScaleX())
}

func TestStepWithoutInputIdles(t *testing.T) {
	g := NewGrid(10, 10, tile, tile, nil, 0)
	c := NewController(g)

	m := NewModel()
	m.Place(g.CellWorld(2, 2))
	m.SetAnimation(ANIMATION_WALK)

	assert.False(t, c.Step(m, Direction{}, 1.0/60))
	assert.Equal(t, ANIMATION_IDLE, m.Animation())
	assert.Equal(t, g.CellWorld(2, 2), m.Position())
}
