package roomservice

import (
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	webrtc "github.com/pion/webrtc/v4"
	"github.com/shalloville/shalloville/pkg/protocol"
)

type TrackInfo struct {
	SID   string `json:"sid"`
	Name  string `json:"name"`
	Kind  string `json:"type"`
	Muted bool   `json:"muted"`
}

type Participant struct {
	SID        string            `json:"sid"`
	Identity   string            `json:"identity"`
	Name       string            `json:"name"`
	Metadata   string            `json:"metadata"`
	Attributes map[string]string `json:"attributes"`
	Tracks     []TrackInfo       `json:"tracks"`
}

func (p *Participant) TrackSIDs() []string {
	sids := make([]string, 0, len(p.Tracks))
	for _, track := range p.Tracks {
		sids = append(sids, track.SID)
	}
	return sids
}

type Room struct {
	SID             string `json:"sid"`
	Name            string `json:"name"`
	Metadata        string `json:"metadata"`
	EmptyTimeout    uint32 `json:"empty_timeout"`
	NumParticipants uint32 `json:"num_participants"`
}

// RemoteTrack is the read side of a subscribed media track.
type RemoteTrack interface {
	ID() string
	SSRC() webrtc.SSRC
	Codec() webrtc.RTPCodecParameters
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
	SetReadDeadline(t time.Time) error
}

type RTCPWriter interface {
	WriteRTCP(pkts []rtcp.Packet) error
}

// Event is one entry of the room event stream.
type Event interface {
	eventName() string
}

// Connected carries the snapshot of participants already in the room.
type Connected struct {
	Room         Room
	Participants []Participant
}

type ParticipantConnected struct {
	Participant Participant
}

type ParticipantDisconnected struct {
	Participant Participant
}

type ParticipantAttributesChanged struct {
	Participant Participant
	Changed     map[string]string
}

type DataReceived struct {
	Sender  string
	Topic   string
	Kind    protocol.Reliability
	Payload []byte
}

// TrackPublished announces a remote track that can now be subscribed.
type TrackPublished struct {
	Participant string
	TrackSID    string
}

type TrackSubscribed struct {
	Participant string
	TrackSID    string
	Track       RemoteTrack
	Feedback    RTCPWriter
}

type TrackUnsubscribed struct {
	Participant string
	TrackSID    string
}

type Disconnected struct {
	Reason string
}

// RoomNotFound is delivered when a join targets a room that does not exist.
type RoomNotFound struct {
	RoomID string
}

// RoomMetadata is delivered once a join succeeded.
type RoomMetadata struct {
	RoomID   string
	Metadata string
}

func (Connected) eventName() string                    { return "connected" }
func (ParticipantConnected) eventName() string         { return "participant_connected" }
func (ParticipantDisconnected) eventName() string      { return "participant_disconnected" }
func (ParticipantAttributesChanged) eventName() string { return "attributes_changed" }
func (DataReceived) eventName() string                 { return "data" }
func (TrackPublished) eventName() string               { return "track_published" }
func (TrackSubscribed) eventName() string              { return "track_subscribed" }
func (TrackUnsubscribed) eventName() string            { return "track_unsubscribed" }
func (Disconnected) eventName() string                 { return "disconnected" }
func (RoomNotFound) eventName() string                 { return "room_not_found" }
func (RoomMetadata) eventName() string                 { return "room_metadata" }

func EventName(evt Event) string {
	if evt == nil {
		return ""
	}
	return evt.eventName()
}
