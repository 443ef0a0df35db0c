package memtrack

import (
	"errors"
	"fmt"

	"mediamux/pkg/compression"
	"mediamux/pkg/container"
	"mediamux/pkg/mp4"
	"mediamux/pkg/packet"
)

// VideoConfig video track parameters.
type VideoConfig struct {
	Compression compression.Descriptor
	Width       int
	Height      int
	PixelWidth  int
	PixelHeight int
	Colormodel  string
	Timescale   int
}

// ErrMultiFrameChunk video chunks hold exactly one frame.
var ErrMultiFrameChunk = errors.New("video chunk must hold one frame")

// Video is an in-memory video track, one frame per chunk.
// It implements container.VideoSource, container.VideoSink
// and container.TimingSink.
type Video struct {
	storage
	config VideoConfig

	stts *mp4.Stts
	ctts *mp4.Ctts
	stss *mp4.Stss
}

// NewVideo creates an empty video track.
func NewVideo(config VideoConfig) *Video {
	return &Video{
		config: config,
		stts:   &mp4.Stts{},
	}
}

// AddFrame appends a frame in its own chunk.
func (v *Video) AddFrame(data []byte) {
	v.addChunk(data, 1, nil)
}

// Compression implements container.VideoSource.
func (v *Video) Compression() compression.Descriptor {
	return *v.config.Compression.Copy()
}

// Width implements container.VideoSource.
func (v *Video) Width() int {
	return v.config.Width
}

// Height implements container.VideoSource.
func (v *Video) Height() int {
	return v.config.Height
}

// PixelAspect implements container.VideoSource.
func (v *Video) PixelAspect() (int, int) {
	return v.config.PixelWidth, v.config.PixelHeight
}

// Colormodel implements container.VideoSource.
func (v *Video) Colormodel() string {
	return v.config.Colormodel
}

// Timescale implements container.VideoSource and container.VideoSink.
func (v *Video) Timescale() int {
	return v.config.Timescale
}

// SampleCount implements container.VideoSource.
func (v *Video) SampleCount() int {
	return len(v.chunks)
}

// Stts implements container.VideoSource.
func (v *Video) Stts() *mp4.Stts {
	return v.stts
}

// Ctts implements container.VideoSource.
func (v *Video) Ctts() *mp4.Ctts {
	return v.ctts
}

// Stss implements container.VideoSource.
func (v *Video) Stss() *mp4.Stss {
	return v.stss
}

// ReadFrame implements container.VideoSource.
func (v *Video) ReadFrame(sample int, p *packet.Packet) error {
	if sample < 0 || sample >= len(v.chunks) {
		return fmt.Errorf("sample %d: %w", sample, container.ErrOutOfRange)
	}
	readInto(p, v.chunkData(sample))
	return nil
}

// FinishChunk implements container.VideoSink.
func (v *Video) FinishChunk(samples int) error {
	if samples != 1 {
		return fmt.Errorf("%w: %d", ErrMultiFrameChunk, samples)
	}
	return v.finishChunk(samples)
}

// SetTiming implements container.TimingSink.
func (v *Video) SetTiming(stts *mp4.Stts, ctts *mp4.Ctts, stss *mp4.Stss) error {
	if stts == nil {
		stts = &mp4.Stts{}
	}
	v.stts = stts
	v.ctts = ctts
	v.stss = stss
	return nil
}

// Stsc implements container.ChunkTabler.
func (v *Video) Stsc() *mp4.Stsc {
	return v.stsc(func(c chunk) int { return c.samples })
}

// Stsz implements container.ChunkTabler.
func (v *Video) Stsz() *mp4.Stsz {
	sizes := make([]uint32, len(v.chunks))
	for i, c := range v.chunks {
		sizes[i] = uint32(c.size)
	}
	return &mp4.Stsz{
		SampleCount: uint32(len(sizes)),
		EntrySizes:  sizes,
	}
}
