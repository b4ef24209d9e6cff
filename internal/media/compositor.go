package media

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

const (
	FRAME_WIDTH  = 1920
	FRAME_HEIGHT = 1080

	MAX_TILE_WIDTH  = 480
	MAX_TILE_HEIGHT = 270

	MOVE_SPEED = 16
)

// compositor places the camera picture on a fixed size canvas and moves it
// around between frames.
type compositor struct {
	frame    *image.RGBA
	offset   image.Point
	velocity image.Point
}

func fitTile(bounds image.Rectangle) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	if w <= MAX_TILE_WIDTH && h <= MAX_TILE_HEIGHT {
		return image.Rect(0, 0, w, h)
	}

	// Keep the aspect ratio inside the tile box.
	if w*MAX_TILE_HEIGHT > h*MAX_TILE_WIDTH {
		return image.Rect(0, 0, MAX_TILE_WIDTH, max(1, h*MAX_TILE_WIDTH/w))
	}
	return image.Rect(0, 0, max(1, w*MAX_TILE_HEIGHT/h), MAX_TILE_HEIGHT)
}

func bounce(pos, velocity, size, limit int) (int, int) {
	pos += velocity
	switch {
	case pos < 0:
		return 0, -velocity
	case pos+size > limit:
		return max(0, limit-size), -velocity
	}
	return pos, velocity
}

func (c *compositor) Composite(src image.Image) *image.RGBA {
	tile := fitTile(src.Bounds())

	draw.Draw(c.frame, c.frame.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	dst := tile.Add(c.offset)
	if tile.Size() == src.Bounds().Size() {
		draw.Draw(c.frame, dst, src, src.Bounds().Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(c.frame, dst, src, src.Bounds(), draw.Src, nil)
	}

	c.offset.X, c.velocity.X = bounce(c.offset.X, c.velocity.X, tile.Dx(), FRAME_WIDTH)
	c.offset.Y, c.velocity.Y = bounce(c.offset.Y, c.velocity.Y, tile.Dy(), FRAME_HEIGHT)
	return c.frame
}

func (c *compositor) Offset() image.Point {
	return c.offset
}

func newCompositor() *compositor {
	return &compositor{
		frame:    image.NewRGBA(image.Rect(0, 0, FRAME_WIDTH, FRAME_HEIGHT)),
		velocity: image.Pt(MOVE_SPEED, MOVE_SPEED),
	}
}
