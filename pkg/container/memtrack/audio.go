package memtrack

import (
	"fmt"

	"mediamux/pkg/compression"
	"mediamux/pkg/container"
	"mediamux/pkg/mp4"
	"mediamux/pkg/packet"
)

// AudioConfig audio track parameters.
type AudioConfig struct {
	Compression compression.Descriptor
	SampleRate  int
	Channels    int
	BlockAlign  int
	VBR         bool
}

// Audio is an in-memory audio track.
// It implements container.AudioSource and container.AudioSink.
type Audio struct {
	storage
	config AudioConfig

	frameStart int
	framing    bool
}

// NewAudio creates an empty audio track.
func NewAudio(config AudioConfig) *Audio {
	return &Audio{config: config}
}

// VBRPacket is used to build VBR chunks.
type VBRPacket struct {
	Data    []byte
	Samples int
}

// AddChunk appends a fixed rate chunk with a declared sample count.
func (a *Audio) AddChunk(data []byte, samples int) {
	a.addChunk(data, samples, nil)
}

// AddVBRChunk appends a chunk holding packets.
func (a *Audio) AddVBRChunk(packets ...VBRPacket) {
	var data []byte
	var table []vbrPacket
	samples := 0
	for _, p := range packets {
		table = append(table, vbrPacket{
			offset:  len(data),
			size:    len(p.Data),
			samples: p.Samples,
		})
		data = append(data, p.Data...)
		samples += p.Samples
	}
	a.addChunk(data, samples, table)
}

// Compression implements container.AudioSource.
func (a *Audio) Compression() compression.Descriptor {
	return *a.config.Compression.Copy()
}

// SampleRate implements container.AudioSource.
func (a *Audio) SampleRate() int {
	return a.config.SampleRate
}

// Channels implements container.AudioSource.
func (a *Audio) Channels() int {
	return a.config.Channels
}

// BlockAlign implements container.AudioSource.
func (a *Audio) BlockAlign() int {
	return a.config.BlockAlign
}

// IsVBR implements container.AudioSource and container.AudioSink.
func (a *Audio) IsVBR() bool {
	return a.config.VBR
}

// ChunkSamples implements container.AudioSource.
func (a *Audio) ChunkSamples(chunk int) int {
	if chunk < 0 || chunk >= len(a.chunks) {
		return 0
	}
	return a.chunks[chunk].samples
}

// ReadChunk implements container.AudioSource.
func (a *Audio) ReadChunk(chunk int, p *packet.Packet) (int, error) {
	if chunk < 0 || chunk >= len(a.chunks) {
		p.Truncate(0)
		return 0, nil
	}
	return readInto(p, a.chunkData(chunk)), nil
}

// ChunkPackets implements container.AudioSource.
func (a *Audio) ChunkPackets(chunk int) int {
	if chunk < 0 || chunk >= len(a.chunks) {
		return 0
	}
	return len(a.chunks[chunk].packets)
}

// ReadVBRPacket implements container.AudioSource.
func (a *Audio) ReadVBRPacket(chunk, index int, p *packet.Packet) (int64, error) {
	if chunk < 0 || chunk >= len(a.chunks) {
		return 0, fmt.Errorf("chunk %d: %w", chunk, container.ErrOutOfRange)
	}
	packets := a.chunks[chunk].packets
	if index < 0 || index >= len(packets) {
		return 0, fmt.Errorf("chunk %d packet %d: %w", chunk, index, container.ErrOutOfRange)
	}
	vp := packets[index]
	p.SetData(a.mdat[vp.offset : vp.offset+vp.size])
	return int64(vp.samples), nil
}

// FinishChunk implements container.AudioSink.
func (a *Audio) FinishChunk(samples int) error {
	if a.framing {
		return fmt.Errorf("finish chunk inside vbr frame: %w", container.ErrChunkAlreadyOpen)
	}
	return a.finishChunk(samples)
}

// StartVBRFrame implements container.AudioSink.
func (a *Audio) StartVBRFrame() error {
	if a.open == nil {
		return container.ErrChunkNotOpen
	}
	a.frameStart = len(a.mdat)
	a.framing = true
	return nil
}

// FinishVBRFrame implements container.AudioSink.
func (a *Audio) FinishVBRFrame(samples int) error {
	if !a.framing {
		return container.ErrFrameNotOpen
	}
	a.open.packets = append(a.open.packets, vbrPacket{
		offset:  a.frameStart,
		size:    len(a.mdat) - a.frameStart,
		samples: samples,
	})
	a.framing = false
	return nil
}

// Stsc implements container.ChunkTabler.
func (a *Audio) Stsc() *mp4.Stsc {
	return a.stsc(func(c chunk) int {
		if a.config.VBR {
			return len(c.packets)
		}
		return c.samples
	})
}

// Stsz implements container.ChunkTabler.
func (a *Audio) Stsz() *mp4.Stsz {
	if !a.config.VBR {
		total := 0
		for _, c := range a.chunks {
			total += c.samples
		}
		return &mp4.Stsz{
			SampleSize:  uint32(a.config.BlockAlign),
			SampleCount: uint32(total),
		}
	}

	var sizes []uint32
	for _, c := range a.chunks {
		for _, p := range c.packets {
			sizes = append(sizes, uint32(p.size))
		}
	}
	return &mp4.Stsz{
		SampleCount: uint32(len(sizes)),
		EntrySizes:  sizes,
	}
}
