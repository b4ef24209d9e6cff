package session

import (
	"context"

	webrtc "github.com/pion/webrtc/v4"
	"github.com/shalloville/shalloville/pkg/roomservice"
	"go.uber.org/atomic"
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "idle"
}

type command interface{}

type publishAck struct {
	publication roomservice.Publication
	err         error
}

type publishCommand struct {
	track webrtc.TrackLocal
	ack   chan publishAck
}

type unpublishCommand struct {
	publication roomservice.Publication
	ack         chan error
}

type subscribeCommand struct {
	trackSIDs  []string
	subscribed bool
}

// Session is one live room membership. Its connection lives inside the
// worker goroutine; the foreground only sees the channels below.
type Session struct {
	RoomID      string
	LocalUserID string
	Admin       bool

	state *atomic.Int32
	// released sessions no longer block a new create or join.
	released *atomic.Bool

	ctx    context.Context
	cancel context.CancelCauseFunc

	events   chan roomservice.Event
	commands chan command
	done     chan struct{}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// Done is closed once the worker has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func newSession(roomID, localUserID string, admin bool) *Session {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Session{
		RoomID:      roomID,
		LocalUserID: localUserID,
		Admin:       admin,
		state:       atomic.NewInt32(int32(StateConnecting)),
		released:    atomic.NewBool(false),
		ctx:         ctx,
		cancel:      cancel,
		events:      make(chan roomservice.Event, 1),
		commands:    make(chan command, 16),
		done:        make(chan struct{}),
	}
}
