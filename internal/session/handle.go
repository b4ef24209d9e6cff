package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	webrtc "github.com/pion/webrtc/v4"
	"github.com/shalloville/shalloville/internal/config"
	"github.com/shalloville/shalloville/pkg/protocol"
	"github.com/shalloville/shalloville/pkg/ratelimit"
	"github.com/shalloville/shalloville/pkg/roomservice"
	"go.uber.org/atomic"
	"go.uber.org/fx"
)

const (
	_CONNECT_TIMEOUT     = 15 * time.Second
	_REQUEST_TIMEOUT     = 5 * time.Second
	_DIAGNOSTICS_BACKLOG = 64
)

// Handle is the foreground side of the room session. Every method returns
// without waiting on the network.
type Handle struct {
	api          roomservice.RoomAPI
	dialer       roomservice.Dialer
	limiter      *ratelimit.Limiter
	logger       *slog.Logger
	emptyTimeout time.Duration
	now          func() time.Time

	sessionMu sync.Mutex
	session   *Session

	diagnostics chan *Error
	failures    *atomic.Uint64
	dropped     *atomic.Uint64
}

func (h *Handle) current() *Session {
	h.sessionMu.Lock()
	defer h.sessionMu.Unlock()
	return h.session
}

func (h *Handle) Session() (*Session, bool) {
	s := h.current()
	return s, s != nil
}

func (h *Handle) State() State {
	if s := h.current(); s != nil {
		return s.State()
	}
	return StateIdle
}

func (h *Handle) IsConnected() bool {
	return h.State() == StateConnected
}

func (h *Handle) Diagnostics() <-chan *Error { return h.diagnostics }

func (h *Handle) Failures() uint64 { return h.failures.Load() }

// DroppedDiagnostics counts reports lost to a full diagnostics channel.
func (h *Handle) DroppedDiagnostics() uint64 { return h.dropped.Load() }

func (h *Handle) report(op, roomID string, err error) {
	h.failures.Inc()
	h.logger.Warn("session failure",
		slog.String("op", op),
		slog.String("room", roomID),
		slog.String("err", err.Error()),
	)

	select {
	case h.diagnostics <- &Error{Op: op, RoomID: roomID, Err: err}:
	default:
		h.dropped.Inc()
	}
}

type startOptions struct {
	roomID      string
	localUserID string
	name        string
	metadata    string
	attributes  map[string]string
	create      bool
}

func (h *Handle) start(opts startOptions) error {
	h.sessionMu.Lock()
	defer h.sessionMu.Unlock()

	if h.session != nil && !h.session.released.Load() {
		return ErrSessionActive
	}
	if h.session != nil {
		h.session.cancel(ErrSessionReplaced)
	}

	s := newSession(opts.roomID, opts.localUserID, opts.create)
	h.session = s
	go h.work(s, opts)
	return nil
}

// Create opens a new room and joins it as admin. While another session is
// live it does nothing and returns ErrSessionActive as a notice.
func (h *Handle) Create(roomID, localUserID, name, metadata string, attributes map[string]string) error {
	return h.start(startOptions{
		roomID:      roomID,
		localUserID: localUserID,
		name:        name,
		metadata:    metadata,
		attributes:  attributes,
		create:      true,
	})
}

// Join enters an existing room. A missing room surfaces as a
// roomservice.RoomNotFound event. Like Create it is a no-op while a session
// is live.
func (h *Handle) Join(roomID, localUserID, name string, attributes map[string]string) error {
	return h.start(startOptions{
		roomID:      roomID,
		localUserID: localUserID,
		name:        name,
		attributes:  attributes,
	})
}

func (h *Handle) Leave() bool {
	h.sessionMu.Lock()
	s := h.session
	h.session = nil
	h.sessionMu.Unlock()

	if s == nil {
		return false
	}

	s.cancel(ErrSessionCanceled)
	h.limiter.Reset()

	if s.released.Load() {
		return true
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), _REQUEST_TIMEOUT)
		defer cancel()

		if err := h.api.RemoveParticipant(ctx, s.RoomID, s.LocalUserID); err != nil {
			h.report("leave", s.RoomID, err)
		}
	}()
	return true
}

// PollEvent returns at most one queued event.
func (h *Handle) PollEvent() (roomservice.Event, bool) {
	s := h.current()
	if s == nil {
		return nil, false
	}

	select {
	case evt := <-s.events:
		return evt, true
	default:
		return nil, false
	}
}

func (h *Handle) Send(topic, body string, kind protocol.Reliability, roomSize int) {
	if roomSize < 2 {
		return
	}

	s := h.current()
	if s == nil || s.State() != StateConnected {
		return
	}

	if !h.limiter.Allow(topic, h.now()) {
		return
	}

	payload, err := protocol.EncodeDataMessage(s.LocalUserID, body)
	if err != nil {
		h.report("send", s.RoomID, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, _REQUEST_TIMEOUT)
		defer cancel()

		err := h.api.SendData(ctx, roomservice.SendDataRequest{
			Room:    s.RoomID,
			Topic:   topic,
			Kind:    kind,
			Payload: payload,
		})
		if err != nil && s.ctx.Err() == nil {
			h.report("send", s.RoomID, err)
		}
	}()
}

func (h *Handle) dispatch(s *Session, cmd command) {
	select {
	case s.commands <- cmd:
		return
	default:
	}

	go func() {
		select {
		case s.commands <- cmd:
		case <-s.done:
		}
	}()
}

// SetSubscribed forwards a subscription change to the connection owner.
func (h *Handle) SetSubscribed(trackSIDs []string, subscribed bool) {
	if len(trackSIDs) == 0 {
		return
	}
	s := h.current()
	if s == nil {
		return
	}
	h.dispatch(s, subscribeCommand{trackSIDs: trackSIDs, subscribed: subscribed})
}

type sessionPublication struct {
	session     *Session
	publication roomservice.Publication
}

func (p *sessionPublication) TrackID() string {
	return p.publication.TrackID()
}

func (p *sessionPublication) Unpublish() error {
	ack := make(chan error, 1)
	select {
	case p.session.commands <- unpublishCommand{publication: p.publication, ack: ack}:
	case <-p.session.done:
		return nil
	}

	select {
	case err := <-ack:
		return err
	case <-p.session.done:
		return nil
	}
}

// PublishTrack asks the worker to publish a local track and waits for it.
// Call it off the tick loop.
func (h *Handle) PublishTrack(ctx context.Context, track webrtc.TrackLocal) (roomservice.Publication, error) {
	s := h.current()
	if s == nil || s.State() != StateConnected {
		return nil, ErrNotConnected
	}

	ack := make(chan publishAck, 1)
	select {
	case s.commands <- publishCommand{track: track, ack: ack}:
	case <-s.done:
		return nil, ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-ack:
		if res.err != nil {
			return nil, res.err
		}
		return &sessionPublication{session: s, publication: res.publication}, nil
	case <-s.done:
		return nil, ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProbeResult of a room existence check.
type ProbeResult int

const (
	RoomMissing ProbeResult = iota
	RoomExists
)

type ProbeTask struct {
	RoomID string

	done   chan struct{}
	result ProbeResult
	err    error
}

// Poll never blocks; ok is false while the probe is still running.
func (p *ProbeTask) Poll() (result ProbeResult, ok bool) {
	select {
	case <-p.done:
		return p.result, true
	default:
		return RoomMissing, false
	}
}

func (p *ProbeTask) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Probe checks room existence in the background. Failures count as missing.
func (h *Handle) Probe(roomID string) *ProbeTask {
	task := &ProbeTask{RoomID: roomID, done: make(chan struct{})}

	go func() {
		defer close(task.done)

		ctx, cancel := context.WithTimeout(context.Background(), _REQUEST_TIMEOUT)
		defer cancel()

		exists, err := roomservice.RoomExists(ctx, h.api, roomID)
		if err != nil {
			task.err = err
			h.report("probe", roomID, err)
			return
		}
		if exists {
			task.result = RoomExists
		}
	}()
	return task
}

type NewHandleParams struct {
	fx.In

	API     roomservice.RoomAPI
	Dialer  roomservice.Dialer
	Limiter *ratelimit.Limiter
	Config  *config.Config
	Logger  *slog.Logger
}

func NewHandle(params NewHandleParams) *Handle {
	emptyTimeout := config.DEFAULT_EMPTY_TIMEOUT
	if params.Config != nil && params.Config.EmptyTimeout > 0 {
		emptyTimeout = params.Config.EmptyTimeout
	}

	return &Handle{
		api:          params.API,
		dialer:       params.Dialer,
		limiter:      params.Limiter,
		logger:       params.Logger.With(slog.String("component", "session")),
		emptyTimeout: emptyTimeout,
		now:          time.Now,
		diagnostics:  make(chan *Error, _DIAGNOSTICS_BACKLOG),
		failures:     atomic.NewUint64(0),
		dropped:      atomic.NewUint64(0),
	}
}

type lifecycle_Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Handle    *Handle
}

func registerLifecycle(params lifecycle_Params) {
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			params.Handle.Leave()
			return nil
		},
	})
}

var Module = fx.Module("session",
	fx.Provide(
		ratelimit.NewDefault,
		NewHandle,
	),
	fx.Invoke(registerLifecycle),
)
