package codecutils

import (
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// I-frame - completed picture, can be decoded
func IsVP8IKeyFrame(packet *rtp.Packet) bool {
	var vp8 codecs.VP8Packet
	_, err := vp8.Unmarshal(packet.Payload)

	if err != nil || len(vp8.Payload) < 1 {
		return false
	}

	if vp8.S != 0 && vp8.PID == 0 && (vp8.Payload[0]&0x1) == 0 {
		return true
	}
	return false
}

// VP8Resolution reads the picture size from an assembled VP8 key frame:
// a 3 byte frame tag, the 0x9d012a start code, then two little endian
// 14 bit dimensions.
func VP8Resolution(frame []byte) (width, height int, ok bool) {
	if len(frame) < 10 || frame[0]&0x1 != 0 {
		return 0, 0, false
	}
	if frame[3] != 0x9d || frame[4] != 0x01 || frame[5] != 0x2a {
		return 0, 0, false
	}

	width = int(uint16(frame[6])|uint16(frame[7])<<8) & 0x3fff
	height = int(uint16(frame[8])|uint16(frame[9])<<8) & 0x3fff
	if width == 0 || height == 0 {
		return 0, 0, false
	}
	return width, height, true
}
