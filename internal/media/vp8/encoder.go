// Package vp8 binds the libvpx encoder from mediadevices to the media
// controller. It needs cgo and libvpx at build time.
package vp8

import (
	"errors"
	"image"
	"io"
	"sync"

	"github.com/pion/mediadevices/pkg/codec"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/shalloville/shalloville/internal/media"
)

const DEFAULT_BITRATE = 1_000_000

var ErrEncoderClosed = errors.New("vp8 encoder closed")

// Encoder feeds one frame at a time through a libvpx reader pipeline.
type Encoder struct {
	frames chan image.Image
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	encoder codec.ReadCloser
}

func (e *Encoder) reader() video.Reader {
	return video.ReaderFunc(func() (image.Image, func(), error) {
		select {
		case img := <-e.frames:
			return img, func() {}, nil
		case <-e.closed:
			return nil, nil, io.EOF
		}
	})
}

func (e *Encoder) Encode(img *image.RGBA) ([]byte, error) {
	select {
	case <-e.closed:
		return nil, ErrEncoderClosed
	case e.frames <- img:
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	data, release, err := e.encoder.Read()
	if err != nil {
		return nil, err
	}
	defer release()

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (e *Encoder) Close() error {
	var err error
	e.once.Do(func() {
		close(e.closed)
		err = e.encoder.Close()
	})
	return err
}

func NewEncoder(width, height int, fps float32) (*Encoder, error) {
	params, err := vpx.NewVP8Params()
	if err != nil {
		return nil, err
	}
	params.BitRate = DEFAULT_BITRATE
	params.LagInFrames = 0

	e := &Encoder{
		frames: make(chan image.Image, 1),
		closed: make(chan struct{}),
	}

	encoder, err := params.BuildVideoEncoder(video.ToI420(e.reader()), prop.Media{
		Video: prop.Video{
			Width:       width,
			Height:      height,
			FrameRate:   fps,
			FrameFormat: frame.FormatI420,
		},
	})
	if err != nil {
		return nil, errors.Join(errors.New("build vp8 encoder"), err)
	}
	e.encoder = encoder
	return e, nil
}

// Factory adapts NewEncoder to media.EncoderFactory.
func Factory() media.EncoderFactory {
	return func(width, height int, fps float32) (media.Encoder, error) {
		return NewEncoder(width, height, fps)
	}
}
