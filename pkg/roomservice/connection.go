package roomservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/rtcp"
	webrtc "github.com/pion/webrtc/v4"
	"github.com/shalloville/shalloville/pkg/protocol"
)

type ConnectOptions struct {
	RoomID   string
	Identity string
	Name     string
	Admin    bool
}

type Dialer interface {
	Connect(ctx context.Context, opts ConnectOptions) (Connection, error)
}

// Connection is the realtime link to one room.
type Connection interface {
	Events() <-chan Event
	Room() Room
	Identity() string
	PublishTrack(ctx context.Context, track webrtc.TrackLocal) (Publication, error)
	SetSubscribed(trackSIDs []string, subscribed bool) error
	Close() error
}

type Publication interface {
	TrackID() string
	Unpublish() error
}

type connection struct {
	room   *lksdk.Room
	queue  *eventQueue
	logger *slog.Logger

	info     Room
	identity string

	// Callbacks fired while joining are held back so Connected stays first.
	joinMu sync.Mutex
	joined bool
	early  []Event

	ctx       context.Context
	cancel    context.CancelCauseFunc
	closeOnce sync.Once
}

func (c *connection) Events() <-chan Event { return c.queue.out }
func (c *connection) Room() Room           { return c.info }
func (c *connection) Identity() string     { return c.identity }

func (c *connection) emit(evt Event) {
	c.joinMu.Lock()
	defer c.joinMu.Unlock()

	if !c.joined {
		c.early = append(c.early, evt)
		return
	}
	c.queue.push(evt)
}

func (c *connection) join(snapshot Connected) {
	c.joinMu.Lock()
	defer c.joinMu.Unlock()

	c.queue.push(snapshot)
	for _, evt := range c.early {
		c.queue.push(evt)
	}
	c.early = nil
	c.joined = true
}

func (c *connection) disconnect(reason string) {
	c.emit(Disconnected{Reason: reason})
	c.queue.close()
}

type publication struct {
	local   *lksdk.LocalParticipant
	sid     string
	trackID string
	ctx     context.Context
}

func (p *publication) TrackID() string {
	return p.trackID
}

func (p *publication) Unpublish() error {
	if p.ctx.Err() != nil {
		return nil
	}
	return p.local.UnpublishTrack(p.sid)
}

func (c *connection) PublishTrack(ctx context.Context, track webrtc.TrackLocal) (Publication, error) {
	if c.ctx.Err() != nil {
		return nil, ErrConnectionClosed
	}

	pub, err := c.room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   track.ID(),
		Source: livekit.TrackSource_CAMERA,
	})
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		_ = c.room.LocalParticipant.UnpublishTrack(pub.SID())
		return nil, ctx.Err()
	default:
	}

	return &publication{
		local:   c.room.LocalParticipant,
		sid:     pub.SID(),
		trackID: track.ID(),
		ctx:     c.ctx,
	}, nil
}

func (c *connection) SetSubscribed(trackSIDs []string, subscribed bool) error {
	if len(trackSIDs) == 0 {
		return nil
	}
	if c.ctx.Err() != nil {
		return ErrConnectionClosed
	}

	pending := make(map[string]struct{}, len(trackSIDs))
	for _, sid := range trackSIDs {
		pending[sid] = struct{}{}
	}

	var err error
	for _, rp := range c.room.GetRemoteParticipants() {
		for _, pub := range rp.TrackPublications() {
			if _, ok := pending[pub.SID()]; !ok {
				continue
			}
			delete(pending, pub.SID())

			remote, ok := pub.(*lksdk.RemoteTrackPublication)
			if !ok {
				continue
			}
			err = errors.Join(err, remote.SetSubscribed(subscribed))
		}
	}

	if len(pending) > 0 {
		missing := make([]string, 0, len(pending))
		for sid := range pending {
			missing = append(missing, sid)
		}
		err = errors.Join(err, fmt.Errorf("%w: %s", ErrTrackNotPublished, strings.Join(missing, ",")))
	}
	return err
}

func (c *connection) Close() error {
	c.closeOnce.Do(func() {
		c.cancel(ErrConnectionCanceled)
		c.queue.close()
		if c.room != nil {
			c.room.Disconnect()
		}
	})
	return nil
}

func participantFrom(rp *lksdk.RemoteParticipant) Participant {
	p := Participant{
		SID:        rp.SID(),
		Identity:   rp.Identity(),
		Name:       rp.Name(),
		Metadata:   rp.Metadata(),
		Attributes: rp.Attributes(),
	}
	for _, pub := range rp.TrackPublications() {
		p.Tracks = append(p.Tracks, TrackInfo{
			SID:   pub.SID(),
			Name:  pub.Name(),
			Kind:  string(pub.Kind()),
			Muted: pub.IsMuted(),
		})
	}
	return p
}

// pliWriter forwards key frame requests through the remote participant.
type pliWriter struct {
	participant *lksdk.RemoteParticipant
}

func (w pliWriter) WriteRTCP(pkts []rtcp.Packet) error {
	for _, pkt := range pkts {
		if pli, ok := pkt.(*rtcp.PictureLossIndication); ok {
			w.participant.WritePLI(webrtc.SSRC(pli.MediaSSRC))
		}
	}
	return nil
}

func (c *connection) onDataPacket(packet lksdk.DataPacket, params lksdk.DataReceiveParams) {
	user, ok := packet.(*lksdk.UserDataPacket)
	if !ok {
		return
	}
	c.emit(DataReceived{
		Sender:  params.SenderIdentity,
		Topic:   user.Topic,
		Kind:    protocol.Reliable,
		Payload: user.Payload,
	})
}

func (c *connection) callback() *lksdk.RoomCallback {
	cb := lksdk.NewRoomCallback()

	cb.OnParticipantConnected = func(rp *lksdk.RemoteParticipant) {
		c.emit(ParticipantConnected{Participant: participantFrom(rp)})
	}
	cb.OnParticipantDisconnected = func(rp *lksdk.RemoteParticipant) {
		c.emit(ParticipantDisconnected{Participant: participantFrom(rp)})
	}
	cb.OnDisconnected = func() {
		if c.ctx.Err() == nil {
			c.disconnect("disconnected by server")
		}
	}

	cb.OnAttributesChanged = func(changed map[string]string, p lksdk.Participant) {
		rp, ok := p.(*lksdk.RemoteParticipant)
		if !ok {
			return
		}
		c.emit(ParticipantAttributesChanged{Participant: participantFrom(rp), Changed: changed})
	}
	cb.OnDataPacket = c.onDataPacket
	cb.OnTrackPublished = func(pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
		c.emit(TrackPublished{Participant: rp.Identity(), TrackSID: pub.SID()})
	}
	cb.OnTrackSubscribed = func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		c.emit(TrackSubscribed{
			Participant: rp.Identity(),
			TrackSID:    pub.SID(),
			Track:       track,
			Feedback:    pliWriter{participant: rp},
		})
	}
	cb.OnTrackUnsubscribed = func(_ *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
		c.emit(TrackUnsubscribed{Participant: rp.Identity(), TrackSID: pub.SID()})
	}
	return cb
}

type connectFunc func(url, token string, callback *lksdk.RoomCallback, opts ...lksdk.ConnectOption) (*lksdk.Room, error)

// RoomDialer joins rooms through the realtime SDK.
type RoomDialer struct {
	url     string
	signer  *TokenSigner
	options []lksdk.ConnectOption
	logger  *slog.Logger
	connect connectFunc
}

type connectResult struct {
	room *lksdk.Room
	err  error
}

func (d *RoomDialer) Connect(ctx context.Context, opts ConnectOptions) (Connection, error) {
	token, err := d.signer.Sign(opts.Identity, opts.Name, JoinGrant(opts.RoomID, opts.Admin))
	if err != nil {
		return nil, err
	}

	connCtx, cancel := context.WithCancelCause(context.Background())
	conn := &connection{
		queue:    newEventQueue(connCtx.Done()),
		logger:   d.logger.With(slog.String("room", opts.RoomID)),
		identity: opts.Identity,
		ctx:      connCtx,
		cancel:   cancel,
	}

	results := make(chan connectResult, 1)
	go func() {
		room, err := d.connect(d.url, token, conn.callback(), d.options...)
		results <- connectResult{room: room, err: err}
	}()

	var result connectResult
	select {
	case <-ctx.Done():
		cancel(context.Cause(ctx))
		conn.queue.close()
		go func() {
			if late := <-results; late.err == nil {
				late.room.Disconnect()
			}
		}()
		return nil, context.Cause(ctx)
	case result = <-results:
	}

	if result.err != nil {
		cancel(result.err)
		conn.queue.close()
		return nil, result.err
	}

	conn.room = result.room
	conn.info = Room{Name: result.room.Name(), Metadata: result.room.Metadata()}

	remotes := result.room.GetRemoteParticipants()
	participants := make([]Participant, 0, len(remotes))
	for _, rp := range remotes {
		participants = append(participants, participantFrom(rp))
	}
	conn.join(Connected{Room: conn.info, Participants: participants})

	conn.logger.Debug("connected", slog.Int("participants", len(participants)))
	return conn, nil
}

type NewDialerParams struct {
	URL     string
	Signer  *TokenSigner
	Options []lksdk.ConnectOption
	Logger  *slog.Logger
}

func NewDialer(params NewDialerParams) *RoomDialer {
	return &RoomDialer{
		url:     params.URL,
		signer:  params.Signer,
		options: params.Options,
		logger:  params.Logger,
		connect: lksdk.ConnectToRoomWithToken,
	}
}
