package session

import (
	"context"
	"log/slog"

	"github.com/shalloville/shalloville/pkg/roomservice"
)

// deliver hands one event to the tick loop, giving up when the session ends.
func (h *Handle) deliver(s *Session, evt roomservice.Event) bool {
	select {
	case s.events <- evt:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (h *Handle) release(s *Session) {
	s.released.Store(true)
	s.setState(StateIdle)
}

func (h *Handle) work(s *Session, opts startOptions) {
	defer close(s.done)
	defer s.setState(StateIdle)

	logger := h.logger.With(slog.String("room", s.RoomID), slog.Bool("admin", opts.create))

	ctx, cancel := context.WithTimeout(s.ctx, _CONNECT_TIMEOUT)
	defer cancel()

	if opts.create {
		_, err := h.api.CreateRoom(ctx, roomservice.CreateRoomRequest{
			Name:         s.RoomID,
			EmptyTimeout: uint32(h.emptyTimeout.Seconds()),
			Metadata:     opts.metadata,
		})
		if err != nil {
			h.report("create", s.RoomID, err)
			h.release(s)
			return
		}
	} else {
		exists, err := roomservice.RoomExists(ctx, h.api, s.RoomID)
		if err != nil {
			h.report("probe", s.RoomID, err)
		}
		if !exists {
			logger.Info("room not found")
			h.release(s)
			h.deliver(s, roomservice.RoomNotFound{RoomID: s.RoomID})
			return
		}
	}

	conn, err := h.dialer.Connect(ctx, roomservice.ConnectOptions{
		RoomID:   s.RoomID,
		Identity: s.LocalUserID,
		Name:     opts.name,
		Admin:    opts.create,
	})
	if err != nil {
		h.report("connect", s.RoomID, err)
		h.release(s)
		return
	}
	defer conn.Close()

	if err := h.api.UpdateParticipant(ctx, s.RoomID, s.LocalUserID, opts.attributes); err != nil {
		h.report("attributes", s.RoomID, err)
	}

	s.setState(StateConnected)
	logger.Info("room connected")

	if !opts.create {
		if !h.deliver(s, roomservice.RoomMetadata{RoomID: s.RoomID, Metadata: conn.Room().Metadata}) {
			return
		}
	}

	h.pump(s, conn)
	logger.Info("room worker stopped", slog.Any("cause", context.Cause(s.ctx)))
}

func (h *Handle) pump(s *Session, conn roomservice.Connection) {
	events := conn.Events()

	for {
		select {
		case <-s.ctx.Done():
			return

		case cmd := <-s.commands:
			h.execute(s, conn, cmd)

		case evt, ok := <-events:
			if !ok {
				h.report("pump", s.RoomID, ErrEventStreamEnd)
				return
			}
			if !h.deliver(s, evt) {
				return
			}
			if _, disconnected := evt.(roomservice.Disconnected); disconnected {
				return
			}
		}
	}
}

func (h *Handle) execute(s *Session, conn roomservice.Connection, cmd command) {
	switch c := cmd.(type) {
	case publishCommand:
		publication, err := conn.PublishTrack(s.ctx, c.track)
		if err != nil {
			h.report("publish", s.RoomID, err)
		}
		c.ack <- publishAck{publication: publication, err: err}

	case unpublishCommand:
		err := c.publication.Unpublish()
		if err != nil {
			h.report("unpublish", s.RoomID, err)
		}
		c.ack <- err

	case subscribeCommand:
		if err := conn.SetSubscribed(c.trackSIDs, c.subscribed); err != nil {
			h.report("subscribe", s.RoomID, err)
		}
	}
}
