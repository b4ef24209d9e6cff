package media

import (
	"context"
	"image"
	"image/color"
	"time"
)

// TestPattern produces solid frames cycling through a small palette at the
// capture rate until ctx is done. It stands in for a camera on hosts that have
// none.
func TestPattern(ctx context.Context, width, height int) <-chan image.Image {
	frames := make(chan image.Image, 1)
	palette := []color.RGBA{
		{255, 0, 0, 255},
		{0, 255, 0, 255},
		{0, 0, 255, 255},
	}

	go func() {
		defer close(frames)

		ticker := time.NewTicker(FRAME_INTERVAL)
		defer ticker.Stop()

		for n := 0; ; n++ {
			img := image.NewRGBA(image.Rect(0, 0, width, height))
			fill := palette[(n/FPS)%len(palette)]
			for idx := 0; idx < len(img.Pix); idx += 4 {
				img.Pix[idx] = fill.R
				img.Pix[idx+1] = fill.G
				img.Pix[idx+2] = fill.B
				img.Pix[idx+3] = fill.A
			}

			select {
			case <-ctx.Done():
				return
			case frames <- img:
			default:
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return frames
}
