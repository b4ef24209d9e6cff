package host

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shalloville/shalloville/internal/media"
	"github.com/shalloville/shalloville/internal/motion"
	"github.com/shalloville/shalloville/internal/reconcile"
	"github.com/shalloville/shalloville/internal/session"
	"github.com/shalloville/shalloville/pkg/protocol"
	"github.com/shalloville/shalloville/pkg/roomservice"
	"go.uber.org/atomic"
	"go.uber.org/fx"
)

const (
	VIDEO_WIDTH   = 320
	CAMERA_WIDTH  = 640
	CAMERA_HEIGHT = 360

	_ACTION_BACKLOG       = 32
	_SCALE_BACKLOG        = 16
	_DIAGNOSTICS_PER_TICK = 8
	_TEARDOWN_TIMEOUT     = 5 * time.Second
)

type Route int

const (
	RouteLobby Route = iota
	RouteWardrobe
	RouteGame
)

func (r Route) String() string {
	switch r {
	case RouteWardrobe:
		return "wardrobe"
	case RouteGame:
		return "game"
	}
	return "lobby"
}

// Input is the local player's intent for one tick.
type Input struct {
	Direction motion.Direction
	DT        float64
}

// VideoRenderer shows remote camera feeds next to avatars.
type VideoRenderer interface {
	ShowVideo(participant string, scale float64)
	HideVideo(participant string)
}

// CameraSource opens the local capture device until ctx is done.
type CameraSource func(ctx context.Context) <-chan image.Image

type scaleResult struct {
	participant string
	scale       float64
}

// Host drives one client: it polls the session, feeds the reconciler and
// reacts to media events. Everything except Submit and Snapshot must run on
// the tick goroutine.
type Host struct {
	session    *session.Handle
	reconciler *reconcile.Reconciler
	media      *media.Controller
	video      VideoRenderer
	camera     CameraSource
	logger     *slog.Logger
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	localID    string
	name       string
	appearance reconcile.Appearance

	route       Route
	roomID      string
	pendingRoom string
	mapName     string
	probe       *session.ProbeTask
	controller  *motion.Controller

	cameraOn     bool
	cameraCancel context.CancelFunc
	videos       map[string]bool

	tick      uint64
	lastError string

	actions   chan func(*Host)
	scales    chan scaleResult
	published atomic.Value
}

func (h *Host) LocalID() string { return h.localID }

func (h *Host) Route() Route { return h.route }

func (h *Host) RoomID() string { return h.roomID }

func (h *Host) Map() string { return h.mapName }

func (h *Host) Reconciler() *reconcile.Reconciler { return h.reconciler }

// SetProfile changes the local display name and appearance. It only takes
// effect for the next room.
func (h *Host) SetProfile(name string, appearance reconcile.Appearance) {
	if name != "" {
		h.name = name
	}
	h.appearance = appearance
}

// SetAppearance updates one wardrobe attribute.
func (h *Host) SetAppearance(key, value string) bool {
	return h.appearance.Set(key, value)
}

// Submit queues fn to run at the start of the next tick.
func (h *Host) Submit(fn func(*Host)) bool {
	select {
	case h.actions <- fn:
		return true
	default:
		return false
	}
}

func (h *Host) fail(err error) error {
	h.lastError = err.Error()
	return err
}

// ignored reports a create or join that lost to a live session. Nothing
// changes; the sentinel is handed back for the caller's information only.
func (h *Host) ignored(err error) bool {
	if !errors.Is(err, session.ErrSessionActive) {
		return false
	}
	h.logger.Debug("session already active", slog.String("room", h.roomID))
	return true
}

// CreateRoom opens a fresh room running mapName and enters it.
func (h *Host) CreateRoom(mapName string) (string, error) {
	if h.route != RouteLobby {
		return "", h.fail(ErrNotInLobby)
	}

	metadata, err := protocol.EncodeRoomMetadata(protocol.RoomMetadata{Map: mapName})
	if err != nil {
		return "", h.fail(err)
	}

	roomID := uuid.NewString()
	if err := h.session.Create(roomID, h.localID, h.name, metadata, h.appearance.Attributes(h.name)); err != nil {
		if h.ignored(err) {
			return "", err
		}
		return "", h.fail(err)
	}

	h.enter(roomID)
	h.mapName = mapName
	h.logger.Info("room created", slog.String("room", roomID), slog.String("map", mapName))
	return roomID, nil
}

// CheckRoom starts a background existence probe. The host moves to the
// wardrobe once the room is confirmed.
func (h *Host) CheckRoom(roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if h.route != RouteLobby {
		return h.fail(ErrNotInLobby)
	}
	if roomID == "" {
		return h.fail(ErrNoPendingRoom)
	}
	h.probe = h.session.Probe(roomID)
	return nil
}

// JoinRoom enters the room confirmed by CheckRoom, or roomID when given.
func (h *Host) JoinRoom(roomID string) error {
	if roomID == "" {
		roomID = h.pendingRoom
	}
	if roomID == "" {
		return h.fail(ErrNoPendingRoom)
	}
	if h.route == RouteGame {
		return h.fail(ErrNotInLobby)
	}

	if err := h.session.Join(roomID, h.localID, h.name, h.appearance.Attributes(h.name)); err != nil {
		if h.ignored(err) {
			return err
		}
		return h.fail(err)
	}

	h.enter(roomID)
	return nil
}

func (h *Host) enter(roomID string) {
	h.route = RouteGame
	h.roomID = roomID
	h.pendingRoom = ""
	h.probe = nil
	h.lastError = ""
	h.reconciler.AddLocal(h.localID, h.name, h.appearance)
}

// LeaveRoom tears down the session, participant state and every track, then
// returns to the lobby.
func (h *Host) LeaveRoom() bool {
	left := h.session.Leave()

	h.reconciler.Reset()
	h.stopCamera()
	h.media.CloseAll()
	for name := range h.videos {
		if h.video != nil {
			h.video.HideVideo(name)
		}
		delete(h.videos, name)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), _TEARDOWN_TIMEOUT)
		defer cancel()
		if err := h.media.Wait(ctx); err != nil {
			h.logger.Warn("media teardown", slog.String("err", err.Error()))
		}
	}()

	if h.roomID != "" {
		h.logger.Info("room left", slog.String("room", h.roomID))
	}

	h.route = RouteLobby
	h.roomID = ""
	h.mapName = ""
	h.controller = nil
	return left
}

// LoadScene is called by the renderer once the tilemap for Map() is ready.
func (h *Host) LoadScene(grid *motion.Grid) {
	h.controller = motion.NewController(grid)
	h.reconciler.SceneLoaded(grid.Spawn())
}

func (h *Host) roomSize() int {
	return h.reconciler.Len()
}

// SendChat records body locally and broadcasts it.
func (h *Host) SendChat(body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return ErrEmptyMessage
	}
	if h.route != RouteGame || !h.session.IsConnected() {
		return ErrNotInRoom
	}

	h.reconciler.AppendChat(h.localID, body)
	h.session.Send(protocol.TOPIC_CHAT, body, protocol.Reliable, h.roomSize())
	return nil
}

// ToggleCamera flips the local capture track and reports the new state.
func (h *Host) ToggleCamera() bool {
	if h.cameraOn {
		h.stopCamera()
		return false
	}
	if h.route != RouteGame || !h.session.IsConnected() {
		return false
	}

	h.cameraOn = true
	h.publishCamera()
	return true
}

func (h *Host) publishCamera() {
	if !h.cameraOn || h.media.IsActive(h.localID) {
		return
	}

	if h.cameraCancel != nil {
		h.cameraCancel()
	}
	ctx, cancel := context.WithCancel(h.ctx)
	h.cameraCancel = cancel
	h.media.Publish(h.localID, h.camera(ctx))
}

func (h *Host) stopCamera() {
	h.cameraOn = false
	h.media.Unpublish(h.localID)
	if h.cameraCancel != nil {
		h.cameraCancel()
		h.cameraCancel = nil
	}
}

func (h *Host) pollProbe() {
	if h.probe == nil {
		return
	}
	result, ok := h.probe.Poll()
	if !ok {
		return
	}

	roomID := h.probe.RoomID
	h.probe = nil

	if result == session.RoomExists {
		h.pendingRoom = roomID
		h.route = RouteWardrobe
		return
	}
	h.pendingRoom = ""
	h.route = RouteLobby
	h.lastError = roomservice.ErrRoomNotFound.Error()
}

func (h *Host) subscribeVideo(evt roomservice.TrackSubscribed) {
	if !h.media.Subscribe(evt.Participant, evt.Track, evt.Feedback) {
		return
	}

	go func() {
		scale := h.media.WaitScale(h.ctx, evt.Participant, VIDEO_WIDTH)
		select {
		case h.scales <- scaleResult{participant: evt.Participant, scale: scale}:
		case <-h.ctx.Done():
		}
	}()
}

func (h *Host) hideVideo(participant string) {
	h.media.Unsubscribe(participant)
	if !h.videos[participant] {
		return
	}
	delete(h.videos, participant)
	if h.video != nil {
		h.video.HideVideo(participant)
	}
}

func (h *Host) handle(evt roomservice.Event) {
	switch e := evt.(type) {
	case roomservice.RoomNotFound:
		h.LeaveRoom()
		h.lastError = roomservice.ErrRoomNotFound.Error()
		return

	case roomservice.RoomMetadata:
		meta, err := protocol.DecodeRoomMetadata(e.Metadata)
		if err != nil {
			h.logger.Warn("room metadata", slog.String("err", err.Error()))
			return
		}
		h.mapName = meta.Map
		return

	case roomservice.Disconnected:
		h.logger.Info("room disconnected", slog.String("reason", e.Reason))
		h.LeaveRoom()
		return

	case roomservice.TrackSubscribed:
		h.subscribeVideo(e)
		return

	case roomservice.TrackUnsubscribed:
		h.hideVideo(e.Participant)
		return

	case roomservice.ParticipantConnected:
		h.publishCamera()

	case roomservice.ParticipantDisconnected:
		h.hideVideo(e.Participant.Identity)
	}

	h.reconciler.Apply(evt)
}

func (h *Host) move(input Input) {
	if h.controller == nil {
		return
	}
	local, ok := h.reconciler.Local()
	if !ok || local.Avatar == 0 {
		return
	}

	if h.controller.Step(local.Motion, input.Direction, input.DT) {
		pos := local.Motion.Position()
		h.session.Send(protocol.TOPIC_MOVE, protocol.MoveBody(pos.X, pos.Y), protocol.Lossy, h.roomSize())
	}
}

func (h *Host) drainScales() {
	for {
		select {
		case res := <-h.scales:
			if !h.media.IsSubscribed(res.participant) {
				continue
			}
			h.videos[res.participant] = true
			if h.video != nil {
				h.video.ShowVideo(res.participant, res.scale)
			}
		default:
			return
		}
	}
}

func (h *Host) drainDiagnostics() {
	for i := 0; i < _DIAGNOSTICS_PER_TICK; i++ {
		select {
		case err := <-h.session.Diagnostics():
			h.lastError = err.Error()
		default:
			return
		}
	}
}

func (h *Host) drainActions() {
	for {
		select {
		case fn := <-h.actions:
			fn(h)
		default:
			return
		}
	}
}

// Tick runs one frame of the client. It never blocks.
func (h *Host) Tick(input Input) {
	h.tick++

	h.drainActions()
	h.pollProbe()

	if evt, ok := h.session.PollEvent(); ok {
		h.handle(evt)
	} else if h.route == RouteGame {
		if s, ok := h.session.Session(); ok {
			select {
			case <-s.Done():
				h.LeaveRoom()
			default:
			}
		}
	}

	if h.route == RouteGame {
		h.move(input)
		h.reconciler.Advance(motion.DEFAULT_STEP, func(frame motion.Frame) {
			body := protocol.AnimeBody(frame.Animation, frame.Position.X, frame.Position.Y)
			h.session.Send(protocol.TOPIC_ANIME, body, protocol.Reliable, h.roomSize())
		})
	}

	h.drainScales()
	h.drainDiagnostics()
	h.published.Store(h.snapshot())
}

// Run ticks at interval until ctx is done. input is sampled once per tick.
func (h *Host) Run(ctx context.Context, interval time.Duration, input func() Input) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		in := Input{DT: interval.Seconds()}
		if input != nil {
			in = input()
		}
		h.Tick(in)
	}
}

// Close stops background helpers. The host is unusable afterwards.
func (h *Host) Close() {
	h.LeaveRoom()
	h.cancel()
}

type NewHostParams struct {
	fx.In

	Session  *session.Handle
	Media    *media.Controller
	Renderer reconcile.Renderer
	Video    VideoRenderer `optional:"true"`
	Camera   CameraSource  `optional:"true"`
	Logger   *slog.Logger
}

func NewHost(params NewHostParams) *Host {
	ctx, cancel := context.WithCancel(context.Background())
	logger := params.Logger.With(slog.String("component", "host"))

	camera := params.Camera
	if camera == nil {
		camera = func(ctx context.Context) <-chan image.Image {
			return media.TestPattern(ctx, CAMERA_WIDTH, CAMERA_HEIGHT)
		}
	}

	reconciler := reconcile.NewReconciler(reconcile.NewReconcilerParams{
		Renderer:   params.Renderer,
		Subscriber: params.Session,
		Logger:     logger,
	})

	h := &Host{
		session:    params.Session,
		reconciler: reconciler,
		media:      params.Media,
		video:      params.Video,
		camera:     camera,
		logger:     logger,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		localID:    uuid.NewString(),
		name:       "guest",
		appearance: reconcile.DefaultAppearance(),
		videos:     make(map[string]bool),
		actions:    make(chan func(*Host), _ACTION_BACKLOG),
		scales:     make(chan scaleResult, _SCALE_BACKLOG),
	}
	return h
}

type lifecycle_Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Host      *Host
}

func registerLifecycle(params lifecycle_Params) {
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			params.Host.Close()
			return nil
		},
	})
}

var Module = fx.Module("host",
	fx.Provide(NewHost),
	fx.Invoke(registerLifecycle),
)
