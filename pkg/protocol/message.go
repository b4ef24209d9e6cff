package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	TOPIC_CHAT  = "chat"
	TOPIC_MOVE  = "move"
	TOPIC_ANIME = "anime"
)

type Reliability int

const (
	Reliable Reliability = iota
	Lossy
)

func (r Reliability) String() string {
	if r == Lossy {
		return "LOSSY"
	}
	return "RELIABLE"
}

// Participant attribute keys.
const (
	ATTR_NAME  = "name"
	ATTR_HEAD  = "head"
	ATTR_HAIR  = "hair"
	ATTR_EYES  = "eyes"
	ATTR_UPPER = "upper"
	ATTR_HIP   = "hip"
	ATTR_LEGS  = "legs"
)

// DataMessage is the envelope of every data packet: a sender id and a topic
// specific body.
type DataMessage struct {
	Sender string `json:"a"`
	Body   string `json:"b"`
}

func EncodeDataMessage(sender, body string) ([]byte, error) {
	return json.Marshal(&DataMessage{Sender: sender, Body: body})
}

func DecodeDataMessage(payload []byte) (DataMessage, error) {
	var msg DataMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, errors.Join(ErrMalformedEnvelope, err)
	}
	return msg, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloats(fields []string) ([]float64, error) {
	result := make([]float64, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, errors.Join(ErrMalformedBody, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite %q", ErrMalformedBody, field)
		}
		result = append(result, v)
	}
	return result, nil
}

// MoveBody encodes "<x> <y>".
func MoveBody(x, y float64) string {
	return formatFloat(x) + " " + formatFloat(y)
}

func ParseMove(body string) (x, y float64, err error) {
	fields := strings.Fields(body)
	if len(fields) != 2 {
		return 0, 0, ErrMalformedBody
	}
	values, err := parseFloats(fields)
	if err != nil {
		return 0, 0, err
	}
	return values[0], values[1], nil
}

// AnimeBody encodes "<name> <x> <y>".
func AnimeBody(name string, x, y float64) string {
	return name + " " + MoveBody(x, y)
}

func ParseAnime(body string) (name string, x, y float64, err error) {
	fields := strings.Fields(body)
	if len(fields) != 3 {
		return "", 0, 0, ErrMalformedBody
	}
	values, err := parseFloats(fields[1:])
	if err != nil {
		return "", 0, 0, err
	}
	return fields[0], values[0], values[1], nil
}

type RoomMetadata struct {
	Map string `json:"map"`
}

func EncodeRoomMetadata(meta RoomMetadata) (string, error) {
	b, err := json.Marshal(&meta)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeRoomMetadata(raw string) (RoomMetadata, error) {
	var meta RoomMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return meta, errors.Join(ErrMalformedMetadata, err)
	}
	return meta, nil
}
