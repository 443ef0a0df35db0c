// Package engine reads and writes timestamped compressed packets
// from and to a single container track.
//
// A track is opened for either reading or writing and keeps all of
// its position, chunk and timing state inside the track value.
// Tracks are not safe for concurrent use.
package engine

import (
	"errors"
	"fmt"
	"sort"

	"mediamux/pkg/codec"
	"mediamux/pkg/container"
	"mediamux/pkg/log"
	"mediamux/pkg/packet"
)

// Errors.
var (
	ErrWrongDirection        = errors.New("operation does not match track direction")
	ErrUnsupportedFraming    = errors.New("track has no supported packet framing")
	ErrCompressedUnsupported = errors.New("compressed writing is not supported")
	ErrClosed                = errors.New("track is closed")
)

// Direction of a track.
type Direction uint8

// Directions.
const (
	DirectionRead Direction = iota
	DirectionWrite
)

func (d Direction) String() string {
	if d == DirectionWrite {
		return "write"
	}
	return "read"
}

type options struct {
	logger        log.ILogger
	codec         codec.Codec
	params        map[string]string
	containerType container.Type
	name          string
}

// Option configures a track.
type Option func(*options)

// WithLogger sets the logger, events are discarded by default.
func WithLogger(logger log.ILogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCodec binds a codec plugin to the track.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithParameters are applied through SetParameter when the track is opened.
func WithParameters(params map[string]string) Option {
	return func(o *options) {
		o.params = params
	}
}

// WithContainerType sets the container type used
// by the compressed writing check, default mp4.
func WithContainerType(ct container.Type) Option {
	return func(o *options) {
		o.containerType = ct
	}
}

// WithName sets the track name used in logs.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

func newOptions(name string, opts []Option) options {
	o := options{
		logger:        log.NewMockLogger(),
		containerType: container.TypeMP4,
		name:          name,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// track is the state shared by audio and video tracks.
type track struct {
	dir    Direction
	codec  *codec.Binding
	logger log.ILogger
	name   string

	position    int64
	chunkCursor int

	pkt    *packet.Packet
	closed bool
}

func newTrack(dir Direction, o options) track {
	return track{
		dir:    dir,
		codec:  codec.Bind(o.codec),
		logger: o.logger,
		name:   o.name,
	}
}

// check returns an error if the track is closed
// or if its direction is not dir.
func (t *track) check(dir Direction) error {
	if t.closed {
		return ErrClosed
	}
	if t.dir != dir {
		return fmt.Errorf("%w: %v track", ErrWrongDirection, t.dir)
	}
	return nil
}

// packet returns the reusable packet, allocated on first use.
func (t *track) packet() *packet.Packet {
	if t.pkt == nil {
		t.pkt = &packet.Packet{}
	}
	t.pkt.Reset()
	return t.pkt
}

// ioError logs and wraps a container or codec failure.
func (t *track) ioError(op string, err error) error {
	t.logger.Error().Src("engine").Track(t.name).Msgf("%v: %v", op, err)
	return fmt.Errorf("%v: %w", op, err)
}

// Direction returns the direction of the track.
func (t *track) Direction() Direction {
	return t.dir
}

// Position returns the sample position. It is the number of
// decoded samples for audio and the frame index for video.
func (t *track) Position() int64 {
	return t.position
}

// ChunkCursor returns the index of the next chunk.
// For VBR audio reads it is the chunk being read.
func (t *track) ChunkCursor() int {
	return t.chunkCursor
}

// Codec returns the codec binding.
func (t *track) Codec() *codec.Binding {
	return t.codec
}

// SetParameter passes a parameter to the codec.
// It is ignored if the codec does not accept parameters.
func (t *track) SetParameter(key, value string) error {
	if t.closed {
		return ErrClosed
	}
	if !t.codec.Has(codec.CapSetParameter) {
		t.logger.Debug().Src("engine").Track(t.name).
			Msgf("codec %v ignored parameter %v", t.codec.Name(), key)
		return nil
	}
	if err := t.codec.SetParameter(key, value); err != nil {
		return fmt.Errorf("set parameter %v: %w", key, err)
	}
	return nil
}

func (t *track) applyParameters(params map[string]string) error {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := t.SetParameter(key, params[key]); err != nil {
			return err
		}
	}
	return nil
}

// close releases the codec and the packet.
func (t *track) close() error {
	t.closed = true
	if t.pkt != nil {
		t.pkt.Release()
		t.pkt = nil
	}
	if err := t.codec.Close(); err != nil {
		return fmt.Errorf("close codec: %w", err)
	}
	return nil
}
