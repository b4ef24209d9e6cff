package media

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
	"github.com/shalloville/shalloville/pkg/codecutils"
	"github.com/shalloville/shalloville/pkg/roomservice"
)

const _MAX_LATE_PACKETS = 64

// releaseOnCancel expires the read deadline once the slot is canceled so a
// blocked ReadRTP returns. The returned func stops the watcher and waits for it.
func releaseOnCancel(slot *Slot, track roomservice.RemoteTrack) func() {
	finished := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-slot.ctx.Done():
			_ = track.SetReadDeadline(time.Now())
		case <-finished:
		}
	}()

	return func() {
		close(finished)
		wg.Wait()
	}
}

// runInbound reads one remote track. prev is a stopped worker for the same
// participant that may still hold the track.
func (c *Controller) runInbound(slot *Slot, prev *Slot, track roomservice.RemoteTrack, feedback roomservice.RTCPWriter) {
	defer close(slot.done)
	defer c.forget(slot)

	logger := c.logger.With(slog.String("track", slot.Name), slog.String("direction", "inbound"))

	if prev != nil {
		select {
		case <-prev.done:
		case <-slot.ctx.Done():
			return
		}
	}
	// A stopped predecessor leaves an expired deadline behind.
	_ = track.SetReadDeadline(time.Time{})

	defer releaseOnCancel(slot, track)()

	if feedback != nil {
		if err := feedback.WriteRTCP([]rtcp.Packet{
			&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
		}); err != nil {
			logger.Debug("keyframe request", slog.String("err", err.Error()))
		}
	}

	clockRate := track.Codec().ClockRate
	if clockRate == 0 {
		clockRate = 90000
	}
	builder := samplebuilder.New(_MAX_LATE_PACKETS, &codecs.VP8Packet{}, clockRate)
	// Inter frames are useless until a key frame has been seen.
	synced := false

	for {
		packet, _, err := track.ReadRTP()
		if slot.ctx.Err() != nil {
			logger.Debug("track released")
			return
		}
		if err != nil {
			logger.Info("track ended", slog.String("err", err.Error()))
			return
		}

		if !synced {
			if !codecutils.IsVP8IKeyFrame(packet) {
				continue
			}
			synced = true
			logger.Debug("key frame received")
		}

		builder.Push(packet)
		for sample := builder.Pop(); sample != nil; sample = builder.Pop() {
			slot.frames.Inc()
			if width, height, ok := codecutils.VP8Resolution(sample.Data); ok {
				slot.width.Store(int32(width))
				slot.height.Store(int32(height))
			}
		}
	}
}
