// Package container defines the accessors the engine uses to reach
// the bitstream of a track. The container layer owns the file and
// the atom tree, the engine only sees a single track through these
// interfaces.
package container

import (
	"errors"

	"mediamux/pkg/compression"
	"mediamux/pkg/mp4"
	"mediamux/pkg/packet"
)

// Type container format.
type Type uint8

// Container types.
const (
	TypeQuickTime Type = iota
	TypeMP4
	TypeM4A
	Type3GP
	TypeAVI
	TypeAVIODML
)

var typeNames = map[Type]string{
	TypeQuickTime: "quicktime",
	TypeMP4:       "mp4",
	TypeM4A:       "m4a",
	Type3GP:       "3gp",
	TypeAVI:       "avi",
	TypeAVIODML:   "avi_odml",
}

func (t Type) String() string {
	if name, exist := typeNames[t]; exist {
		return name
	}
	return "unknown"
}

// ErrUnknownType unknown container type.
var ErrUnknownType = errors.New("unknown container type")

// ParseType returns the container type for a name.
func ParseType(name string) (Type, error) {
	for typ, n := range typeNames {
		if n == name {
			return typ, nil
		}
	}
	return 0, ErrUnknownType
}

// IsISOBMFF reports if the container is QuickTime or derived from it.
func (t Type) IsISOBMFF() bool {
	return t <= Type3GP
}

// Errors.
var (
	ErrChunkNotOpen     = errors.New("chunk not open")
	ErrChunkAlreadyOpen = errors.New("chunk already open")
	ErrFrameNotOpen     = errors.New("vbr frame not open")
	ErrOutOfRange       = errors.New("out of range")
)

// AudioSource is the read side of an audio track.
type AudioSource interface {
	// Compression returns the compression id, flags and global header.
	// Rate and channel fields are filled in by the engine.
	Compression() compression.Descriptor

	SampleRate() int
	Channels() int

	// BlockAlign returns the size of one sample frame for
	// fixed rate block aligned streams, zero otherwise.
	BlockAlign() int

	// IsVBR reports if chunks hold multiple variable sized packets.
	IsVBR() bool

	ChunkCount() int

	// ChunkSamples returns the declared sample count of chunk.
	ChunkSamples(chunk int) int

	// ReadChunk reads the raw bytes of chunk into p and returns the
	// number of bytes read. Zero is returned for chunks past the end.
	ReadChunk(chunk int, p *packet.Packet) (int, error)

	// ChunkPackets returns the number of packets in a VBR chunk.
	ChunkPackets(chunk int) int

	// ReadVBRPacket reads packet index of a VBR chunk into p and
	// returns its duration in samples.
	ReadVBRPacket(chunk, index int, p *packet.Packet) (int64, error)
}

// VideoSource is the read side of a video track.
type VideoSource interface {
	// Compression returns the compression id, flags and global header.
	// Geometry fields are filled in by the engine.
	Compression() compression.Descriptor

	Width() int
	Height() int
	PixelAspect() (int, int)
	Colormodel() string
	Timescale() int

	SampleCount() int

	// Sample tables, Ctts and Stss return nil when absent.
	Stts() *mp4.Stts
	Ctts() *mp4.Ctts
	Stss() *mp4.Stss

	// ReadFrame reads the raw bytes of sample into p.
	ReadFrame(sample int, p *packet.Packet) error
}

// AudioSink is the write side of an audio track.
type AudioSink interface {
	// IsVBR reports if packets are packed into chunks as VBR frames.
	IsVBR() bool

	// StartChunk writes the header of chunk.
	StartChunk(chunk int) error

	// Write writes raw bytes into the open chunk or VBR frame.
	Write(p []byte) error

	// FinishChunk writes the footer of the open chunk
	// and sets its declared sample count.
	FinishChunk(samples int) error

	// StartVBRFrame starts a packet inside the open chunk.
	StartVBRFrame() error

	// FinishVBRFrame records the packet and its sample count
	// in the packet table of the chunk.
	FinishVBRFrame(samples int) error
}

// VideoSink is the write side of a video track.
type VideoSink interface {
	Timescale() int

	StartChunk(chunk int) error
	Write(p []byte) error
	FinishChunk(samples int) error
}

// TimingSink is implemented by sinks that store the timing
// tables when the track is closed. ctts and stss may be nil.
type TimingSink interface {
	SetTiming(stts *mp4.Stts, ctts *mp4.Ctts, stss *mp4.Stss) error
}

// ChunkTabler is implemented by tracks that can
// describe their chunk layout as sample table boxes.
type ChunkTabler interface {
	Stsc() *mp4.Stsc
	Stsz() *mp4.Stsz
	Stco() *mp4.Stco
}
