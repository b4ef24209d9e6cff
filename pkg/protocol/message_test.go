package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataMessageEnvelope(t *testing.T) {
	payload, err := EncodeDataMessage("user-1", "hello there")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"user-1","b":"hello there"}`, string(payload))

	msg, err := DecodeDataMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, "user-1", msg.Sender)
	assert.Equal(t, "hello there", msg.Body)

	_, err = DecodeDataMessage([]byte("not json"))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestParseMove(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		x, y    float64
		wantErr bool
	}{
		{name: "integers", body: "32 64", x: 32, y: 64},
		{name: "floats", body: "12.5 -3.25", x: 12.5, y: -3.25},
		{name: "one number", body: "12.5", wantErr: true},
		{name: "three numbers", body: "1 2 3", wantErr: true},
		{name: "not a number", body: "abc 1", wantErr: true},
		{name: "nan", body: "NaN 1", wantErr: true},
		{name: "infinity", body: "1 Inf", wantErr: true},
		{name: "signed infinity", body: "-Inf +Inf", wantErr: true},
		{name: "empty", body: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, err := ParseMove(tt.body)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedBody)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.x, x)
			assert.Equal(t, tt.y, y)
		})
	}
}

func TestMoveBodyRoundTrip(t *testing.T) {
	assert.Equal(t, "96 -32.5", MoveBody(96, -32.5))

	x, y, err := ParseMove(MoveBody(0.1, 0.2))
	require.NoError(t, err)
	assert.Equal(t, 0.1, x)
	assert.Equal(t, 0.2, y)
}

func TestParseAnime(t *testing.T) {
	assert.Equal(t, "walk 10 20", AnimeBody("walk", 10, 20))

	name, x, y, err := ParseAnime("idle 10 20")
	require.NoError(t, err)
	assert.Equal(t, "idle", name)
	assert.Equal(t, 10.0, x)
	assert.Equal(t, 20.0, y)

	_, _, _, err = ParseAnime("idle 10")
	assert.ErrorIs(t, err, ErrMalformedBody)

	_, _, _, err = ParseAnime("idle x 10")
	assert.ErrorIs(t, err, ErrMalformedBody)

	_, _, _, err = ParseAnime("walk NaN 10")
	assert.ErrorIs(t, err, ErrMalformedBody)
}

func TestRoomMetadata(t *testing.T) {
	raw, err := EncodeRoomMetadata(RoomMetadata{Map: "town"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"map":"town"}`, raw)

	meta, err := DecodeRoomMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, "town", meta.Map)

	_, err = DecodeRoomMetadata("")
	assert.ErrorIs(t, err, ErrMalformedMetadata)
}

func TestReliabilityString(t *testing.T) {
	assert.Equal(t, "RELIABLE", Reliable.String())
	assert.Equal(t, "LOSSY", Lossy.String())
}
