package roomservice

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/shalloville/shalloville/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(t *testing.T) *connection {
	ctx, cancel := context.WithCancelCause(context.Background())
	t.Cleanup(func() { cancel(nil) })

	return &connection{
		queue:    newEventQueue(ctx.Done()),
		logger:   slog.Default(),
		identity: "alice",
		ctx:      ctx,
		cancel:   cancel,
	}
}

func nextEvent(t *testing.T, conn Connection) Event {
	select {
	case evt, ok := <-conn.Events():
		require.True(t, ok, "event stream closed")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
		return nil
	}
}

func TestConnectionHoldsEventsUntilJoined(t *testing.T) {
	conn := newTestConnection(t)

	conn.emit(TrackPublished{Participant: "bob", TrackSID: "TR_1"})
	conn.join(Connected{
		Room:         Room{Name: "room-1"},
		Participants: []Participant{{Identity: "bob", Tracks: []TrackInfo{{SID: "TR_1"}}}},
	})
	conn.emit(ParticipantConnected{Participant: Participant{Identity: "carol"}})

	connected, ok := nextEvent(t, conn).(Connected)
	require.True(t, ok)
	assert.Equal(t, "room-1", connected.Room.Name)
	require.Len(t, connected.Participants, 1)

	published, ok := nextEvent(t, conn).(TrackPublished)
	require.True(t, ok)
	assert.Equal(t, "TR_1", published.TrackSID)

	joined, ok := nextEvent(t, conn).(ParticipantConnected)
	require.True(t, ok)
	assert.Equal(t, "carol", joined.Participant.Identity)
}

func TestCallbackTranslatesDataPackets(t *testing.T) {
	conn := newTestConnection(t)
	conn.join(Connected{Room: Room{Name: "room-1"}})
	_ = nextEvent(t, conn)

	payload, err := protocol.EncodeDataMessage("bob", "hi")
	require.NoError(t, err)

	cb := conn.callback()
	cb.OnDataPacket(&lksdk.UserDataPacket{Payload: payload, Topic: protocol.TOPIC_CHAT}, lksdk.DataReceiveParams{SenderIdentity: "bob"})

	data, ok := nextEvent(t, conn).(DataReceived)
	require.True(t, ok)
	assert.Equal(t, "bob", data.Sender)
	assert.Equal(t, protocol.TOPIC_CHAT, data.Topic)
	assert.Equal(t, protocol.Reliable, data.Kind)
	assert.Equal(t, payload, data.Payload)
}

func TestCallbackDisconnectClosesStream(t *testing.T) {
	conn := newTestConnection(t)
	conn.join(Connected{Room: Room{Name: "room-1"}})
	_ = nextEvent(t, conn)

	conn.callback().OnDisconnected()

	disconnected, ok := nextEvent(t, conn).(Disconnected)
	require.True(t, ok)
	assert.NotEmpty(t, disconnected.Reason)

	_, open := <-conn.Events()
	assert.False(t, open)
}

func TestCloseSilencesServerDisconnect(t *testing.T) {
	conn := newTestConnection(t)
	conn.join(Connected{Room: Room{Name: "room-1"}})
	_ = nextEvent(t, conn)

	require.NoError(t, conn.Close())
	conn.callback().OnDisconnected()

	_, open := <-conn.Events()
	assert.False(t, open)
	assert.ErrorIs(t, conn.SetSubscribed([]string{"TR_1"}, true), ErrConnectionClosed)
}

func TestDialerSignsJoinToken(t *testing.T) {
	errRefused := errors.New("refused")

	var gotURL, gotToken string
	dialer := NewDialer(NewDialerParams{
		URL:    "wss://rooms.example.com",
		Signer: NewTokenSigner("key", "secret", time.Minute),
		Logger: slog.Default(),
	})
	dialer.connect = func(url, token string, cb *lksdk.RoomCallback, _ ...lksdk.ConnectOption) (*lksdk.Room, error) {
		gotURL, gotToken = url, token
		assert.NotNil(t, cb.OnTrackPublished)
		return nil, errRefused
	}

	_, err := dialer.Connect(context.Background(), ConnectOptions{RoomID: "room-1", Identity: "alice", Name: "Alice", Admin: true})
	require.ErrorIs(t, err, errRefused)
	assert.Equal(t, "wss://rooms.example.com", gotURL)

	token, err := jwt.Parse([]byte(gotToken), jwt.WithKey(jwa.HS256, []byte("secret")))
	require.NoError(t, err)
	assert.Equal(t, "alice", token.Subject())

	raw, _ := token.Get("video")
	video := raw.(map[string]any)
	assert.Equal(t, "room-1", video["room"])
	assert.Equal(t, true, video["roomAdmin"])
}

func TestDialerHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	dialer := NewDialer(NewDialerParams{
		URL:    "wss://rooms.example.com",
		Signer: NewTokenSigner("key", "secret", time.Minute),
		Logger: slog.Default(),
	})
	dialer.connect = func(string, string, *lksdk.RoomCallback, ...lksdk.ConnectOption) (*lksdk.Room, error) {
		<-release
		return nil, errors.New("too late")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := dialer.Connect(ctx, ConnectOptions{RoomID: "room-1", Identity: "alice"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
