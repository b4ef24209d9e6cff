package media

import (
	"context"
	"image"
	"log/slog"
	"time"

	webrtc "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// drain empties the source so a blocked producer can move on.
func drain(frames <-chan image.Image) {
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// latest returns the newest buffered frame, if any.
func latest(frames <-chan image.Image) (image.Image, bool, error) {
	var (
		frame image.Image
		got   bool
	)
	for {
		select {
		case img, ok := <-frames:
			if !ok {
				return frame, got, ErrSourceClosed
			}
			frame, got = img, true
		default:
			return frame, got, nil
		}
	}
}

func (c *Controller) runOutbound(slot *Slot, frames <-chan image.Image) {
	defer close(slot.done)
	defer drain(frames)
	defer c.forget(slot)

	logger := c.logger.With(slog.String("track", slot.Name), slog.String("direction", "outbound"))

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"camera",
		slot.Name,
	)
	if err != nil {
		logger.Error("create track", slog.String("err", err.Error()))
		return
	}

	encoder, err := c.newEncoder(FRAME_WIDTH, FRAME_HEIGHT, FPS)
	if err != nil {
		logger.Error("create encoder", slog.String("err", err.Error()))
		return
	}
	defer encoder.Close()

	ctx, cancel := context.WithTimeout(slot.ctx, _PUBLISH_TIMEOUT)
	publication, err := c.transport.PublishTrack(ctx, track)
	cancel()
	if err != nil {
		logger.Warn("publish track", slog.String("err", err.Error()))
		return
	}
	defer func() {
		if err := publication.Unpublish(); err != nil {
			logger.Warn("unpublish track", slog.String("err", err.Error()))
		}
		logger.Info("track released", slog.Any("cause", context.Cause(slot.ctx)))
	}()

	logger.Info("track published", slog.String("track_id", publication.TrackID()))
	c.pump(slot, frames, track, encoder, logger)
}

type sampleWriter interface {
	WriteSample(sample media.Sample) error
}

func (c *Controller) pump(slot *Slot, frames <-chan image.Image, track sampleWriter, encoder Encoder, logger *slog.Logger) {
	ticker := time.NewTicker(FRAME_INTERVAL)
	defer ticker.Stop()

	comp := newCompositor()

	for {
		select {
		case <-slot.ctx.Done():
			return
		case <-ticker.C:
		}

		img, ok, err := latest(frames)
		if err != nil {
			slot.cancel(err)
			return
		}
		if !ok {
			continue
		}

		data, err := encoder.Encode(comp.Composite(img))
		if err != nil {
			logger.Warn("encode frame", slog.String("err", err.Error()))
			continue
		}
		if len(data) == 0 {
			continue
		}

		if err := track.WriteSample(media.Sample{Data: data, Duration: FRAME_INTERVAL}); err != nil {
			logger.Warn("write sample", slog.String("err", err.Error()))
			continue
		}
		slot.frames.Inc()
	}
}
