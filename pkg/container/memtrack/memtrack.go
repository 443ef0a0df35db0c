// Package memtrack is an in-memory container track.
//
// Media data is stored in one contiguous mdat buffer, chunks and
// VBR packets are stored as offset and size into that buffer.
//
//	mdat: []byte
//	chunk {
//	  offset  int
//	  size    int
//	  samples int          // declared sample count.
//	  packets []vbrPacket  // VBR audio only.
//	}
package memtrack

import (
	"fmt"

	"mediamux/pkg/container"
	"mediamux/pkg/mp4"
	"mediamux/pkg/packet"
)

type vbrPacket struct {
	offset  int
	size    int
	samples int
}

type chunk struct {
	offset  int
	size    int
	samples int
	packets []vbrPacket
}

// storage is shared by the audio and video tracks.
type storage struct {
	mdat   []byte
	chunks []chunk
	open   *chunk

	// WriteErr is returned by Write when set.
	WriteErr error
}

func (s *storage) StartChunk(index int) error {
	if s.open != nil {
		return container.ErrChunkAlreadyOpen
	}
	if index != len(s.chunks) {
		return fmt.Errorf("start chunk %d, next chunk is %d: %w",
			index, len(s.chunks), container.ErrOutOfRange)
	}
	s.open = &chunk{offset: len(s.mdat)}
	return nil
}

func (s *storage) Write(p []byte) error {
	if s.open == nil {
		return container.ErrChunkNotOpen
	}
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.mdat = append(s.mdat, p...)
	return nil
}

func (s *storage) finishChunk(samples int) error {
	if s.open == nil {
		return container.ErrChunkNotOpen
	}
	s.open.size = len(s.mdat) - s.open.offset
	s.open.samples = samples
	s.chunks = append(s.chunks, *s.open)
	s.open = nil
	return nil
}

func (s *storage) addChunk(data []byte, samples int, packets []vbrPacket) {
	c := chunk{
		offset:  len(s.mdat),
		size:    len(data),
		samples: samples,
	}
	for _, p := range packets {
		p.offset += c.offset
		c.packets = append(c.packets, p)
	}
	s.mdat = append(s.mdat, data...)
	s.chunks = append(s.chunks, c)
}

func (s *storage) chunkData(index int) []byte {
	c := s.chunks[index]
	return s.mdat[c.offset : c.offset+c.size]
}

// ChunkCount returns the number of finished chunks.
func (s *storage) ChunkCount() int {
	return len(s.chunks)
}

// MdatSize returns the number of media bytes written.
func (s *storage) MdatSize() int {
	return len(s.mdat)
}

// Stco returns the chunk offsets relative to the start of the media data.
func (s *storage) Stco() *mp4.Stco {
	offsets := make([]uint32, len(s.chunks))
	for i, c := range s.chunks {
		offsets[i] = uint32(c.offset)
	}
	return &mp4.Stco{ChunkOffsets: offsets}
}

// stsc merges consecutive chunks with the same sample count.
func (s *storage) stsc(samplesInChunk func(c chunk) int) *mp4.Stsc {
	var entries []mp4.StscEntry
	for i, c := range s.chunks {
		n := uint32(samplesInChunk(c))
		if len(entries) > 0 && entries[len(entries)-1].SamplesPerChunk == n {
			continue
		}
		entries = append(entries, mp4.StscEntry{
			FirstChunk:             uint32(i + 1),
			SamplesPerChunk:        n,
			SampleDescriptionIndex: 1,
		})
	}
	return &mp4.Stsc{Entries: entries}
}

func readInto(p *packet.Packet, data []byte) int {
	p.SetData(data)
	return p.Len()
}
