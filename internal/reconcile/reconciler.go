package reconcile

import (
	"log/slog"
	"slices"
	"sort"

	"github.com/shalloville/shalloville/internal/motion"
	"github.com/shalloville/shalloville/pkg/protocol"
	"github.com/shalloville/shalloville/pkg/roomservice"
)

const CHAT_LOG_LIMIT = 15

type Presence int

const (
	PresencePending Presence = iota
	PresenceActive
)

func (p Presence) String() string {
	if p == PresenceActive {
		return "active"
	}
	return "pending"
}

// AvatarRef is an opaque handle issued by the renderer. Zero means none.
type AvatarRef uint64

type Participant struct {
	ID          string
	DisplayName string
	Appearance  Appearance
	Motion      *motion.Model
	Presence    Presence
	Avatar      AvatarRef
	TrackSIDs   []string
}

type ChatMessage struct {
	Sender string
	Name   string
	Body   string
}

type Renderer interface {
	Spawn(p *Participant) AvatarRef
	Despawn(ref AvatarRef)
	PatchAppearance(ref AvatarRef, appearance Appearance)
	Place(ref AvatarRef, frame motion.Frame)
}

type Subscriber interface {
	SetSubscribed(trackSIDs []string, subscribed bool)
}

// Reconciler owns the participant map. It is driven from the tick loop only.
type Reconciler struct {
	localID      string
	renderer     Renderer
	subscriber   Subscriber
	logger       *slog.Logger
	participants map[string]*Participant
	chat         []ChatMessage

	sceneLoaded bool
	spawn       motion.Vec2

	dropped uint64
}

func (r *Reconciler) LocalID() string { return r.localID }

func (r *Reconciler) Len() int { return len(r.participants) }

func (r *Reconciler) Dropped() uint64 { return r.dropped }

func (r *Reconciler) SceneReady() bool { return r.sceneLoaded }

// Participant is a read-only lookup.
func (r *Reconciler) Participant(id string) (*Participant, bool) {
	p, exist := r.participants[id]
	return p, exist
}

func (r *Reconciler) Local() (*Participant, bool) {
	return r.Participant(r.localID)
}

func (r *Reconciler) Participants() []*Participant {
	result := make([]*Participant, 0, len(r.participants))
	for _, p := range r.participants {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (r *Reconciler) Chat() []ChatMessage {
	return append([]ChatMessage(nil), r.chat...)
}

func (r *Reconciler) AppendChat(sender, body string) {
	name := sender
	if p, exist := r.participants[sender]; exist && p.DisplayName != "" {
		name = p.DisplayName
	}

	r.chat = append(r.chat, ChatMessage{Sender: sender, Name: name, Body: body})
	if overflow := len(r.chat) - CHAT_LOG_LIMIT; overflow > 0 {
		r.chat = append(r.chat[:0:0], r.chat[overflow:]...)
	}
}

// AddLocal registers the local participant once a session starts.
func (r *Reconciler) AddLocal(id, name string, appearance Appearance) *Participant {
	r.localID = id
	p := &Participant{
		ID:          id,
		DisplayName: name,
		Appearance:  appearance,
		Motion:      motion.NewModel(),
		Presence:    PresenceActive,
	}
	r.participants[id] = p
	r.render(p)
	return p
}

// Reset despawns everyone and forgets the room.
func (r *Reconciler) Reset() {
	for id, p := range r.participants {
		if p.Avatar != 0 {
			r.renderer.Despawn(p.Avatar)
		}
		delete(r.participants, id)
	}
	r.chat = nil
	r.sceneLoaded = false
	r.spawn = motion.Vec2{}
}

// SceneLoaded spawns everyone waiting for the map and moves them to the
// spawn point.
func (r *Reconciler) SceneLoaded(spawn motion.Vec2) {
	r.sceneLoaded = true
	r.spawn = spawn

	for _, p := range r.Participants() {
		p.Motion.Place(spawn)
		r.render(p)
	}
}

func (r *Reconciler) render(p *Participant) {
	if !r.sceneLoaded || p.Avatar != 0 {
		return
	}
	if p.Motion.Position().IsZero() {
		p.Motion.Place(r.spawn)
	}
	p.Avatar = r.renderer.Spawn(p)
}

func (r *Reconciler) add(info roomservice.Participant) {
	if info.Identity == "" || info.Identity == r.localID {
		return
	}

	p, exist := r.participants[info.Identity]
	if !exist {
		p = &Participant{
			ID:          info.Identity,
			DisplayName: info.Name,
			Appearance:  DefaultAppearance(),
			Motion:      motion.NewModel(),
			Presence:    PresencePending,
		}
		r.participants[info.Identity] = p
	}
	p.TrackSIDs = info.TrackSIDs()
	r.subscribe(p.TrackSIDs, true)

	if len(info.Attributes) > 0 {
		r.merge(p, info.Attributes)
		return
	}
	r.render(p)
}

func (r *Reconciler) merge(p *Participant, changed map[string]string) {
	for key, value := range changed {
		if key == protocol.ATTR_NAME {
			p.DisplayName = value
			continue
		}
		p.Appearance.Set(key, value)
	}
	p.Presence = PresenceActive

	if p.Avatar != 0 {
		r.renderer.PatchAppearance(p.Avatar, p.Appearance)
		return
	}
	r.render(p)
}

func (r *Reconciler) remove(id string) {
	p, exist := r.participants[id]
	if !exist || id == r.localID {
		return
	}

	if p.Avatar != 0 {
		r.renderer.Despawn(p.Avatar)
	}
	delete(r.participants, id)
	r.subscribe(p.TrackSIDs, false)
}

func (r *Reconciler) subscribe(trackSIDs []string, subscribed bool) {
	if len(trackSIDs) == 0 {
		return
	}
	r.subscriber.SetSubscribed(trackSIDs, subscribed)
}

func (r *Reconciler) published(evt roomservice.TrackPublished) {
	if evt.Participant == r.localID || evt.TrackSID == "" {
		return
	}
	if p, exist := r.participants[evt.Participant]; exist && !slices.Contains(p.TrackSIDs, evt.TrackSID) {
		p.TrackSIDs = append(p.TrackSIDs, evt.TrackSID)
	}
	r.subscribe([]string{evt.TrackSID}, true)
}

func (r *Reconciler) drop(reason error, attrs ...any) {
	r.dropped++
	r.logger.Debug("event dropped", append([]any{slog.String("reason", reason.Error())}, attrs...)...)
}

func (r *Reconciler) data(evt roomservice.DataReceived) {
	msg, err := protocol.DecodeDataMessage(evt.Payload)
	if err != nil {
		r.drop(err, slog.String("topic", evt.Topic))
		return
	}

	if msg.Sender == r.localID {
		return
	}

	p, exist := r.participants[msg.Sender]
	if !exist {
		r.drop(ErrUnknownParticipant, slog.String("sender", msg.Sender))
		return
	}

	switch evt.Topic {
	case protocol.TOPIC_CHAT:
		r.AppendChat(msg.Sender, msg.Body)

	case protocol.TOPIC_MOVE:
		x, y, err := protocol.ParseMove(msg.Body)
		if err != nil {
			r.drop(err, slog.String("topic", evt.Topic), slog.String("body", msg.Body))
			return
		}
		p.Motion.SetPosition(motion.Vec2{X: x, Y: y})
		p.Motion.SetAnimation(motion.ANIMATION_WALK)

	case protocol.TOPIC_ANIME:
		name, x, y, err := protocol.ParseAnime(msg.Body)
		if err != nil {
			r.drop(err, slog.String("topic", evt.Topic), slog.String("body", msg.Body))
			return
		}
		p.Motion.SetAnimation(name)
		p.Motion.SetPosition(motion.Vec2{X: x, Y: y})
	}
}

func (r *Reconciler) Apply(evt roomservice.Event) {
	switch e := evt.(type) {
	case roomservice.Connected:
		for _, info := range e.Participants {
			if _, known := r.participants[info.Identity]; known || info.Identity == r.localID {
				continue
			}
			r.add(info)
		}

	case roomservice.ParticipantConnected:
		r.add(e.Participant)

	case roomservice.ParticipantAttributesChanged:
		if e.Participant.Identity == r.localID {
			return
		}
		p, exist := r.participants[e.Participant.Identity]
		if !exist {
			r.drop(ErrUnknownParticipant, slog.String("participant", e.Participant.Identity))
			return
		}
		r.merge(p, e.Changed)

	case roomservice.ParticipantDisconnected:
		r.remove(e.Participant.Identity)

	case roomservice.TrackPublished:
		r.published(e)

	case roomservice.DataReceived:
		r.data(e)
	}
}

// Advance runs one interpolation tick for every rendered participant.
// onLocalAnimation fires when the local participant crosses an animation
// boundary.
func (r *Reconciler) Advance(step float64, onLocalAnimation func(motion.Frame)) {
	for id, p := range r.participants {
		if p.Avatar == 0 {
			continue
		}

		frame, ok := p.Motion.Advance(step)
		if !ok {
			continue
		}
		r.renderer.Place(p.Avatar, frame)

		if frame.AnimationChanged && id == r.localID && onLocalAnimation != nil {
			onLocalAnimation(frame)
		}
	}
}

type NewReconcilerParams struct {
	Renderer   Renderer
	Subscriber Subscriber
	Logger     *slog.Logger
}

func NewReconciler(params NewReconcilerParams) *Reconciler {
	return &Reconciler{
		renderer:     params.Renderer,
		subscriber:   params.Subscriber,
		logger:       params.Logger,
		participants: make(map[string]*Participant),
	}
}
