package session

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	webrtc "github.com/pion/webrtc/v4"
	"github.com/shalloville/shalloville/internal/config"
	"github.com/shalloville/shalloville/pkg/ratelimit"
	"github.com/shalloville/shalloville/pkg/roomservice"
	"go.uber.org/atomic"
)

type fakeAPI struct {
	mu sync.Mutex

	rooms     map[string]roomservice.Room
	created   []roomservice.CreateRoomRequest
	updated   map[string]map[string]string
	removed   []string
	sent      []roomservice.SendDataRequest
	listErr   error
	createErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		rooms:   map[string]roomservice.Room{},
		updated: map[string]map[string]string{},
	}
}

func (f *fakeAPI) CreateRoom(_ context.Context, req roomservice.CreateRoomRequest) (*roomservice.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	room := roomservice.Room{Name: req.Name, Metadata: req.Metadata, EmptyTimeout: req.EmptyTimeout}
	f.rooms[req.Name] = room
	return &room, nil
}

func (f *fakeAPI) ListRooms(_ context.Context, names []string) ([]roomservice.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var result []roomservice.Room
	for _, name := range names {
		if room, ok := f.rooms[name]; ok {
			result = append(result, room)
		}
	}
	return result, nil
}

func (f *fakeAPI) UpdateParticipant(_ context.Context, _ string, identity string, attrs map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated[identity] = attrs
	return nil
}

func (f *fakeAPI) RemoveParticipant(_ context.Context, roomID, identity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, roomID+"/"+identity)
	return nil
}

func (f *fakeAPI) SendData(ctx context.Context, req roomservice.SendDataRequest) error {
	f.mu.Lock()
	f.sent = append(f.sent, req)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeAPI) removedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.removed)
}

type fakePublication struct {
	track       webrtc.TrackLocal
	unpublished *atomic.Bool
}

func (p *fakePublication) TrackID() string { return p.track.ID() }

func (p *fakePublication) Unpublish() error {
	p.unpublished.Store(true)
	return nil
}

type fakeConn struct {
	room       roomservice.Room
	identity   string
	events     chan roomservice.Event
	closed     *atomic.Bool
	subscribed chan []string
	published  chan *fakePublication
}

func (c *fakeConn) Events() <-chan roomservice.Event { return c.events }
func (c *fakeConn) Room() roomservice.Room           { return c.room }
func (c *fakeConn) Identity() string                 { return c.identity }

func (c *fakeConn) PublishTrack(_ context.Context, track webrtc.TrackLocal) (roomservice.Publication, error) {
	pub := &fakePublication{track: track, unpublished: atomic.NewBool(false)}
	c.published <- pub
	return pub, nil
}

func (c *fakeConn) SetSubscribed(sids []string, _ bool) error {
	c.subscribed <- sids
	return nil
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

type fakeDialer struct {
	api   *fakeAPI
	mu    sync.Mutex
	conns []*fakeConn
	opts  []roomservice.ConnectOptions
	err   error
}

func (d *fakeDialer) Connect(_ context.Context, opts roomservice.ConnectOptions) (roomservice.Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.opts = append(d.opts, opts)
	if d.err != nil {
		return nil, d.err
	}

	d.api.mu.Lock()
	room := d.api.rooms[opts.RoomID]
	d.api.mu.Unlock()

	conn := &fakeConn{
		room:       room,
		identity:   opts.Identity,
		events:     make(chan roomservice.Event, 16),
		closed:     atomic.NewBool(false),
		subscribed: make(chan []string, 4),
		published:  make(chan *fakePublication, 4),
	}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestHandle(t *testing.T) (*Handle, *fakeAPI, *fakeDialer, *clock) {
	t.Helper()

	api := newFakeAPI()
	dialer := &fakeDialer{api: api}
	clk := &clock{now: time.Unix(1_700_000_000, 0)}

	h := NewHandle(NewHandleParams{
		API:     api,
		Dialer:  dialer,
		Limiter: ratelimit.NewDefault(),
		Config:  &config.Config{EmptyTimeout: config.DEFAULT_EMPTY_TIMEOUT},
		Logger:  slog.Default(),
	})
	h.now = clk.Now

	t.Cleanup(func() { h.Leave() })
	return h, api, dialer, clk
}
