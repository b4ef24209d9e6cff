package host

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"testing"
	"time"

	webrtc "github.com/pion/webrtc/v4"
	"github.com/shalloville/shalloville/internal/config"
	"github.com/shalloville/shalloville/internal/media"
	"github.com/shalloville/shalloville/internal/motion"
	"github.com/shalloville/shalloville/internal/reconcile"
	"github.com/shalloville/shalloville/internal/session"
	"github.com/shalloville/shalloville/pkg/ratelimit"
	"github.com/shalloville/shalloville/pkg/roomservice"
	"go.uber.org/atomic"
)

const wait = 2 * time.Second

type fakeAPI struct {
	mu      sync.Mutex
	rooms   map[string]roomservice.Room
	created []roomservice.CreateRoomRequest
	removed []string
	sent    []roomservice.SendDataRequest
}

func (f *fakeAPI) CreateRoom(_ context.Context, req roomservice.CreateRoomRequest) (*roomservice.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	room := roomservice.Room{Name: req.Name, Metadata: req.Metadata}
	f.rooms[req.Name] = room
	return &room, nil
}

func (f *fakeAPI) ListRooms(_ context.Context, names []string) ([]roomservice.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []roomservice.Room
	for _, name := range names {
		if room, ok := f.rooms[name]; ok {
			result = append(result, room)
		}
	}
	return result, nil
}

func (f *fakeAPI) UpdateParticipant(context.Context, string, string, map[string]string) error {
	return nil
}

func (f *fakeAPI) RemoveParticipant(_ context.Context, roomID, identity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, roomID+"/"+identity)
	return nil
}

func (f *fakeAPI) SendData(_ context.Context, req roomservice.SendDataRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeAPI) topics() map[string]roomservice.SendDataRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := map[string]roomservice.SendDataRequest{}
	for _, req := range f.sent {
		result[req.Topic] = req
	}
	return result
}

func (f *fakeAPI) removedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.removed)
}

type fakePublication struct {
	id          string
	unpublished *atomic.Bool
}

func (p *fakePublication) TrackID() string { return p.id }

func (p *fakePublication) Unpublish() error {
	p.unpublished.Store(true)
	return nil
}

type fakeConn struct {
	room      roomservice.Room
	events    chan roomservice.Event
	published chan *fakePublication

	mu         sync.Mutex
	subscribed []string
}

func (c *fakeConn) Events() <-chan roomservice.Event { return c.events }
func (c *fakeConn) Room() roomservice.Room           { return c.room }
func (c *fakeConn) Identity() string                 { return "" }
func (c *fakeConn) Close() error                     { return nil }

func (c *fakeConn) PublishTrack(_ context.Context, track webrtc.TrackLocal) (roomservice.Publication, error) {
	pub := &fakePublication{id: track.ID(), unpublished: atomic.NewBool(false)}
	c.published <- pub
	return pub, nil
}

func (c *fakeConn) SetSubscribed(sids []string, on bool) error {
	if !on {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, sids...)
	return nil
}

func (c *fakeConn) subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subscribed...)
}

type fakeDialer struct {
	api   *fakeAPI
	conns chan *fakeConn
}

func (d *fakeDialer) Connect(_ context.Context, opts roomservice.ConnectOptions) (roomservice.Connection, error) {
	d.api.mu.Lock()
	room := d.api.rooms[opts.RoomID]
	d.api.mu.Unlock()

	conn := &fakeConn{
		room:      room,
		events:    make(chan roomservice.Event, 16),
		published: make(chan *fakePublication, 4),
	}
	d.conns <- conn
	return conn, nil
}

type fakeRenderer struct {
	next    reconcile.AvatarRef
	spawned map[reconcile.AvatarRef]string
	placed  map[reconcile.AvatarRef]motion.Frame
}

func (f *fakeRenderer) Spawn(p *reconcile.Participant) reconcile.AvatarRef {
	f.next++
	f.spawned[f.next] = p.ID
	return f.next
}

func (f *fakeRenderer) Despawn(ref reconcile.AvatarRef) {
	delete(f.spawned, ref)
	delete(f.placed, ref)
}

func (f *fakeRenderer) PatchAppearance(reconcile.AvatarRef, reconcile.Appearance) {}

func (f *fakeRenderer) Place(ref reconcile.AvatarRef, frame motion.Frame) {
	f.placed[ref] = frame
}

func (f *fakeRenderer) ref(id string) reconcile.AvatarRef {
	for ref, owner := range f.spawned {
		if owner == id {
			return ref
		}
	}
	return 0
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(*image.RGBA) ([]byte, error) { return []byte{0x10, 0x02, 0x00}, nil }
func (fakeEncoder) Close() error                        { return nil }

type fixture struct {
	host     *Host
	api      *fakeAPI
	dialer   *fakeDialer
	renderer *fakeRenderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	api := &fakeAPI{rooms: map[string]roomservice.Room{}}
	dialer := &fakeDialer{api: api, conns: make(chan *fakeConn, 4)}
	renderer := &fakeRenderer{
		spawned: map[reconcile.AvatarRef]string{},
		placed:  map[reconcile.AvatarRef]motion.Frame{},
	}

	handle := session.NewHandle(session.NewHandleParams{
		API:     api,
		Dialer:  dialer,
		Limiter: ratelimit.NewDefault(),
		Config:  &config.Config{EmptyTimeout: config.DEFAULT_EMPTY_TIMEOUT},
		Logger:  slog.Default(),
	})
	controller := media.NewController(media.NewControllerParams{
		Transport: handle,
		NewEncoder: func(int, int, float32) (media.Encoder, error) {
			return fakeEncoder{}, nil
		},
		Logger: slog.Default(),
	})

	h := NewHost(NewHostParams{
		Session:  handle,
		Media:    controller,
		Renderer: renderer,
		Camera: func(ctx context.Context) <-chan image.Image {
			return media.TestPattern(ctx, 8, 8)
		},
		Logger: slog.Default(),
	})
	t.Cleanup(h.Close)

	return &fixture{host: h, api: api, dialer: dialer, renderer: renderer}
}

func (f *fixture) tickUntil(t *testing.T, input Input, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(wait)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		f.host.Tick(input)
		time.Sleep(2 * time.Millisecond)
	}
}

func (f *fixture) conn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case conn := <-f.dialer.conns:
		return conn
	case <-time.After(wait):
		t.Fatal("no connection dialed")
		return nil
	}
}

// enterRoom creates a room with a loaded scene and one remote participant.
func (f *fixture) enterRoom(t *testing.T) *fakeConn {
	t.Helper()
	return f.enterRoomOn(t, motion.NewGrid(10, 10, 16, 16, nil, 55))
}

func (f *fixture) enterRoomOn(t *testing.T, grid *motion.Grid) *fakeConn {
	t.Helper()

	_, err := f.host.CreateRoom("garden")
	if err != nil {
		t.Fatal(err)
	}
	conn := f.conn(t)
	f.tickUntil(t, Input{}, f.host.session.IsConnected)

	f.host.LoadScene(grid)
	conn.events <- roomservice.ParticipantConnected{Participant: roomservice.Participant{
		Identity:   "bob",
		Attributes: map[string]string{"name": "Bob", "hair": "2"},
	}}
	f.tickUntil(t, Input{}, func() bool { return f.renderer.ref("bob") != 0 })
	return conn
}
