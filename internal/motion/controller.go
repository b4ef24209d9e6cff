package motion

import "math"

// Tiles per second.
const DEFAULT_SPEED = 2

type Direction struct {
	Up, Down, Left, Right bool
}

func (d Direction) Vector() Vec2 {
	var v Vec2
	if d.Right {
		v.X++
	}
	if d.Left {
		v.X--
	}
	if d.Up {
		v.Y++
	}
	if d.Down {
		v.Y--
	}
	return v
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Controller moves the local participant on a grid.
type Controller struct {
	grid  *Grid
	speed float64
}

func (c *Controller) Grid() *Grid {
	return c.grid
}

// Step applies one tick of input. The leading edge of the body, half a tile
// ahead of the candidate position, must land on a walkable cell.
func (c *Controller) Step(m *Model, dir Direction, dt float64) bool {
	v := dir.Vector()
	if v.IsZero() {
		m.SetAnimation(ANIMATION_IDLE)
		return false
	}

	candidate := m.Position().Add(Vec2{
		X: v.X * c.grid.TileWidth * c.speed * dt,
		Y: v.Y * c.grid.TileHeight * c.speed * dt,
	})
	probe := candidate.Add(Vec2{
		X: sign(v.X) * c.grid.TileWidth / 2,
		Y: sign(v.Y) * c.grid.TileHeight / 2,
	})

	x, y := c.grid.CellOf(probe)
	if c.grid.Blocked(x, y) || math.IsNaN(candidate.X) || math.IsNaN(candidate.Y) {
		return false
	}

	m.SetAnimation(ANIMATION_WALK)
	m.SetPosition(candidate)
	return true
}

func NewController(grid *Grid) *Controller {
	return &Controller{grid: grid, speed: DEFAULT_SPEED}
}
