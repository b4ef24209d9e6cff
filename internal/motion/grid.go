package motion

import "math"

// Grid is the walkable tile layout of a map. Cells are indexed row-major.
type Grid struct {
	Cols       int
	Rows       int
	TileWidth  float64
	TileHeight float64
	SpawnIndex int

	hitbox map[int]struct{}
}

func (g *Grid) Index(x, y int) int {
	return y*g.Cols + x
}

func (g *Grid) CellOf(p Vec2) (x, y int) {
	return int(math.Round(p.X / g.TileWidth)), int(math.Round(p.Y / g.TileHeight))
}

func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Cols && y < g.Rows
}

func (g *Grid) Blocked(x, y int) bool {
	if !g.InBounds(x, y) {
		return true
	}
	_, hit := g.hitbox[g.Index(x, y)]
	return hit
}

func (g *Grid) CellWorld(x, y int) Vec2 {
	return Vec2{X: float64(x) * g.TileWidth, Y: float64(y) * g.TileHeight}
}

func (g *Grid) WorldOf(index int) Vec2 {
	if g.Cols == 0 {
		return Vec2{}
	}
	return g.CellWorld(index%g.Cols, index/g.Cols)
}

func (g *Grid) Spawn() Vec2 {
	return g.WorldOf(g.SpawnIndex)
}

func NewGrid(cols, rows int, tileWidth, tileHeight float64, hitbox []int, spawnIndex int) *Grid {
	g := &Grid{
		Cols:       cols,
		Rows:       rows,
		TileWidth:  tileWidth,
		TileHeight: tileHeight,
		SpawnIndex: spawnIndex,
		hitbox:     make(map[int]struct{}, len(hitbox)),
	}
	for _, index := range hitbox {
		g.hitbox[index] = struct{}{}
	}
	return g
}
