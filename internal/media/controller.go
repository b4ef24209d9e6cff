package media

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	webrtc "github.com/pion/webrtc/v4"
	"github.com/shalloville/shalloville/pkg/roomservice"
	"go.uber.org/atomic"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

const (
	FPS            = 15
	FRAME_INTERVAL = time.Second / FPS

	_PUBLISH_TIMEOUT = 10 * time.Second

	RESOLUTION_TIMEOUT  = 5 * time.Second
	RESOLUTION_INTERVAL = 200 * time.Millisecond
	DEFAULT_SCALE       = 0.2
)

type Direction int

const (
	Outbound Direction = iota
	Inbound
)

// Encoder turns composited frames into VP8 samples.
type Encoder interface {
	Encode(frame *image.RGBA) ([]byte, error)
	Close() error
}

type EncoderFactory func(width, height int, fps float32) (Encoder, error)

type Transport interface {
	PublishTrack(ctx context.Context, track webrtc.TrackLocal) (roomservice.Publication, error)
}

// Slot is one live track worker keyed by participant id.
type Slot struct {
	Name      string
	Direction Direction

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}

	frames *atomic.Uint64
	width  *atomic.Int32
	height *atomic.Int32
}

func (s *Slot) Frames() uint64 { return s.frames.Load() }

func (s *Slot) Done() <-chan struct{} { return s.done }

func newSlot(name string, direction Direction) *Slot {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Slot{
		Name:      name,
		Direction: direction,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		frames:    atomic.NewUint64(0),
		width:     atomic.NewInt32(0),
		height:    atomic.NewInt32(0),
	}
}

type Controller struct {
	transport  Transport
	newEncoder EncoderFactory
	logger     *slog.Logger

	slotsMu  sync.Mutex
	outbound map[string]*Slot
	inbound  map[string]*Slot
	// stopped slots still draining
	closing []*Slot
}

func (c *Controller) IsActive(name string) bool {
	c.slotsMu.Lock()
	defer c.slotsMu.Unlock()

	_, exist := c.outbound[name]
	return exist
}

func (c *Controller) IsSubscribed(name string) bool {
	c.slotsMu.Lock()
	defer c.slotsMu.Unlock()

	_, exist := c.inbound[name]
	return exist
}

// Publish starts the capture track for name. A second call while the track
// is live is a no-op.
func (c *Controller) Publish(name string, frames <-chan image.Image) bool {
	c.slotsMu.Lock()
	defer c.slotsMu.Unlock()

	if _, exist := c.outbound[name]; exist {
		return false
	}

	slot := newSlot(name, Outbound)
	c.outbound[name] = slot
	go c.runOutbound(slot, frames)
	return true
}

// pruneClosing must be called with slotsMu held.
func (c *Controller) pruneClosing() {
	alive := c.closing[:0]
	for _, slot := range c.closing {
		select {
		case <-slot.done:
		default:
			alive = append(alive, slot)
		}
	}
	c.closing = alive
}

func (c *Controller) stop(slots map[string]*Slot, name string) bool {
	c.slotsMu.Lock()
	slot, exist := slots[name]
	if exist {
		delete(slots, name)
		c.pruneClosing()
		c.closing = append(c.closing, slot)
	}
	c.slotsMu.Unlock()

	if exist {
		slot.cancel(ErrTrackCancelByUser)
	}
	return exist
}

// Unpublish signals the capture worker and returns immediately.
func (c *Controller) Unpublish(name string) bool {
	return c.stop(c.outbound, name)
}

func (c *Controller) Subscribe(name string, track roomservice.RemoteTrack, feedback roomservice.RTCPWriter) bool {
	c.slotsMu.Lock()
	defer c.slotsMu.Unlock()

	if _, exist := c.inbound[name]; exist {
		return false
	}

	var prev *Slot
	for _, closing := range c.closing {
		if closing.Direction == Inbound && closing.Name == name {
			prev = closing
		}
	}

	slot := newSlot(name, Inbound)
	c.inbound[name] = slot
	go c.runInbound(slot, prev, track, feedback)
	return true
}

func (c *Controller) Unsubscribe(name string) bool {
	return c.stop(c.inbound, name)
}

// forget drops a slot whose worker ended on its own.
func (c *Controller) forget(slot *Slot) {
	c.slotsMu.Lock()
	defer c.slotsMu.Unlock()

	slots := c.outbound
	if slot.Direction == Inbound {
		slots = c.inbound
	}
	if slots[slot.Name] == slot {
		delete(slots, slot.Name)
	}
}

func (c *Controller) Resolution(name string) (width, height int, ok bool) {
	c.slotsMu.Lock()
	slot, exist := c.inbound[name]
	c.slotsMu.Unlock()

	if !exist {
		return 0, 0, false
	}
	width, height = int(slot.width.Load()), int(slot.height.Load())
	return width, height, width > 0 && height > 0
}

// WaitScale blocks up to RESOLUTION_TIMEOUT for the first inbound key frame
// and returns the factor that fits it into targetWidth.
func (c *Controller) WaitScale(ctx context.Context, name string, targetWidth float64) float64 {
	ctx, cancel := context.WithTimeout(ctx, RESOLUTION_TIMEOUT)
	defer cancel()

	ticker := time.NewTicker(RESOLUTION_INTERVAL)
	defer ticker.Stop()

	for {
		if width, _, ok := c.Resolution(name); ok {
			return targetWidth / float64(width)
		}

		select {
		case <-ctx.Done():
			return DEFAULT_SCALE
		case <-ticker.C:
		}
	}
}

// CloseAll cancels every worker without waiting for them.
func (c *Controller) CloseAll() {
	c.slotsMu.Lock()
	var slots []*Slot
	for name, slot := range c.outbound {
		slots = append(slots, slot)
		delete(c.outbound, name)
	}
	for name, slot := range c.inbound {
		slots = append(slots, slot)
		delete(c.inbound, name)
	}
	c.closing = append(c.closing, slots...)
	c.slotsMu.Unlock()

	for _, slot := range slots {
		slot.cancel(ErrTrackCancelByUser)
	}
}

// Wait blocks until every stopped worker has released its track.
func (c *Controller) Wait(ctx context.Context) error {
	c.slotsMu.Lock()
	closing := c.closing
	c.closing = nil
	c.slotsMu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, slot := range closing {
		slot := slot
		g.Go(func() error {
			select {
			case <-slot.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return g.Wait()
}

type NewControllerParams struct {
	fx.In

	Transport  Transport
	NewEncoder EncoderFactory
	Logger     *slog.Logger
}

func NewController(params NewControllerParams) *Controller {
	return &Controller{
		transport:  params.Transport,
		newEncoder: params.NewEncoder,
		logger:     params.Logger.With(slog.String("component", "media")),
		outbound:   make(map[string]*Slot),
		inbound:    make(map[string]*Slot),
	}
}
