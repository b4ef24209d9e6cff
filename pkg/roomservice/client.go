package roomservice

import (
	"context"
	"errors"
	"log/slog"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/shalloville/shalloville/pkg/protocol"
	"github.com/twitchtv/twirp"
)

// RoomAPI is the server side room management surface.
type RoomAPI interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error)
	ListRooms(ctx context.Context, names []string) ([]Room, error)
	UpdateParticipant(ctx context.Context, roomID, identity string, attributes map[string]string) error
	RemoveParticipant(ctx context.Context, roomID, identity string) error
	SendData(ctx context.Context, req SendDataRequest) error
}

type CreateRoomRequest struct {
	Name         string
	EmptyTimeout uint32
	Metadata     string
}

type SendDataRequest struct {
	Room    string
	Topic   string
	Kind    protocol.Reliability
	Payload []byte
}

// Client is RoomAPI on top of the room service Twirp client.
type Client struct {
	rooms  *lksdk.RoomServiceClient
	logger *slog.Logger
}

func roomFrom(room *livekit.Room) Room {
	if room == nil {
		return Room{}
	}
	return Room{
		SID:             room.Sid,
		Name:            room.Name,
		Metadata:        room.Metadata,
		EmptyTimeout:    room.EmptyTimeout,
		NumParticipants: room.NumParticipants,
	}
}

func dataKind(kind protocol.Reliability) livekit.DataPacket_Kind {
	if kind == protocol.Lossy {
		return livekit.DataPacket_LOSSY
	}
	return livekit.DataPacket_RELIABLE
}

// wrapError tags twirp not_found responses with ErrRoomNotFound.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var twirpErr twirp.Error
	if errors.As(err, &twirpErr) && twirpErr.Code() == twirp.NotFound {
		return errors.Join(ErrRoomNotFound, err)
	}
	return err
}

func (c *Client) CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error) {
	created, err := c.rooms.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:         req.Name,
		EmptyTimeout: req.EmptyTimeout,
		Metadata:     req.Metadata,
	})
	if err != nil {
		return nil, wrapError(err)
	}

	room := roomFrom(created)
	c.logger.Debug("room created", slog.String("room", room.Name))
	return &room, nil
}

func (c *Client) ListRooms(ctx context.Context, names []string) ([]Room, error) {
	resp, err := c.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{Names: names})
	if err != nil {
		return nil, wrapError(err)
	}

	rooms := make([]Room, 0, len(resp.Rooms))
	for _, room := range resp.Rooms {
		rooms = append(rooms, roomFrom(room))
	}
	return rooms, nil
}

func (c *Client) UpdateParticipant(ctx context.Context, roomID, identity string, attributes map[string]string) error {
	_, err := c.rooms.UpdateParticipant(ctx, &livekit.UpdateParticipantRequest{
		Room:       roomID,
		Identity:   identity,
		Attributes: attributes,
	})
	return wrapError(err)
}

func (c *Client) RemoveParticipant(ctx context.Context, roomID, identity string) error {
	_, err := c.rooms.RemoveParticipant(ctx, &livekit.RoomParticipantIdentity{
		Room:     roomID,
		Identity: identity,
	})
	return wrapError(err)
}

func (c *Client) SendData(ctx context.Context, req SendDataRequest) error {
	request := &livekit.SendDataRequest{
		Room: req.Room,
		Data: req.Payload,
		Kind: dataKind(req.Kind),
	}
	if req.Topic != "" {
		topic := req.Topic
		request.Topic = &topic
	}
	_, err := c.rooms.SendData(ctx, request)
	return wrapError(err)
}

// RoomExists reports whether the named room is currently open on the server.
func RoomExists(ctx context.Context, api RoomAPI, roomID string) (bool, error) {
	rooms, err := api.ListRooms(ctx, []string{roomID})
	if err != nil {
		return false, err
	}
	for _, room := range rooms {
		if room.Name == roomID {
			return true, nil
		}
	}
	return false, nil
}

type NewClientParams struct {
	// Server API base, http(s):// or ws(s)://.
	URL       string
	APIKey    string
	APISecret string
	Logger    *slog.Logger
}

func NewClient(params NewClientParams) *Client {
	return &Client{
		rooms:  lksdk.NewRoomServiceClient(params.URL, params.APIKey, params.APISecret),
		logger: params.Logger,
	}
}
