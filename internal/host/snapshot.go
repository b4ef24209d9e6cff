package host

import (
	"time"

	"github.com/shalloville/shalloville/internal/reconcile"
)

type ParticipantView struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Presence  string  `json:"presence"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Animation string  `json:"animation"`
	Rendered  bool    `json:"rendered"`
	Video     bool    `json:"video"`
}

type ChatView struct {
	Sender string `json:"sender"`
	Name   string `json:"name"`
	Body   string `json:"body"`
}

type Counters struct {
	SessionFailures    uint64 `json:"session_failures"`
	DroppedDiagnostics uint64 `json:"dropped_diagnostics"`
	DroppedMessages    uint64 `json:"dropped_messages"`
}

// Snapshot is an immutable copy of host state, safe to read from any
// goroutine.
type Snapshot struct {
	Tick         uint64            `json:"tick"`
	Route        string            `json:"route"`
	RoomID       string            `json:"room_id,omitempty"`
	Map          string            `json:"map,omitempty"`
	State        string            `json:"state"`
	LocalID      string            `json:"local_id"`
	Camera       bool              `json:"camera"`
	Participants []ParticipantView `json:"participants"`
	Chat         []ChatView        `json:"chat"`
	Counters     Counters          `json:"counters"`
	LastError    string            `json:"last_error,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (h *Host) snapshot() *Snapshot {
	snap := &Snapshot{
		Tick:      h.tick,
		Route:     h.route.String(),
		RoomID:    h.roomID,
		Map:       h.mapName,
		State:     h.session.State().String(),
		LocalID:   h.localID,
		Camera:    h.cameraOn,
		LastError: h.lastError,
		UpdatedAt: h.now(),
		Counters: Counters{
			SessionFailures:    h.session.Failures(),
			DroppedDiagnostics: h.session.DroppedDiagnostics(),
			DroppedMessages:    h.reconciler.Dropped(),
		},
	}

	participants := h.reconciler.Participants()
	snap.Participants = make([]ParticipantView, 0, len(participants))
	for _, p := range participants {
		visible := p.Motion.Visible()
		snap.Participants = append(snap.Participants, ParticipantView{
			ID:        p.ID,
			Name:      p.DisplayName,
			Presence:  p.Presence.String(),
			X:         visible.X,
			Y:         visible.Y,
			Animation: p.Motion.Animation(),
			Rendered:  p.Avatar != reconcile.AvatarRef(0),
			Video:     h.videos[p.ID],
		})
	}

	chat := h.reconciler.Chat()
	snap.Chat = make([]ChatView, 0, len(chat))
	for _, msg := range chat {
		snap.Chat = append(snap.Chat, ChatView{Sender: msg.Sender, Name: msg.Name, Body: msg.Body})
	}
	return snap
}

// Snapshot returns the state published by the last tick.
func (h *Host) Snapshot() *Snapshot {
	if snap, ok := h.published.Load().(*Snapshot); ok {
		return snap
	}
	return &Snapshot{Route: RouteLobby.String(), State: "idle", LocalID: h.localID}
}
