package engine

import (
	"fmt"
	"io"

	"mediamux/pkg/codec"
	"mediamux/pkg/compression"
	"mediamux/pkg/container"
	"mediamux/pkg/packet"
)

type audioFraming uint8

const (
	framingCodec audioFraming = iota
	framingBlockAligned
	framingVBR
)

var framingNames = map[audioFraming]string{
	framingCodec:        "codec",
	framingBlockAligned: "block aligned",
	framingVBR:          "vbr",
}

// vbrState is the position inside the current VBR chunk.
type vbrState struct {
	packets int
	index   int
}

// AudioTrack is an audio track opened for reading or writing.
type AudioTrack struct {
	track

	src  container.AudioSource
	sink container.AudioSink

	framing audioFraming

	// Read side descriptor is populated on first use.
	desc      *compression.Descriptor
	descReady bool

	vbr *vbrState

	// Write side VBR chunk.
	chunkOpen    bool
	chunkSamples int
}

// OpenAudioReader opens src for reading. The framing is selected once,
// a codec that reads packets takes precedence over block aligned
// chunks which take precedence over VBR chunks.
func OpenAudioReader(src container.AudioSource, opts ...Option) (*AudioTrack, error) {
	o := newOptions("audio", opts)
	t := &AudioTrack{
		track: newTrack(DirectionRead, o),
		src:   src,
	}

	switch {
	case t.codec.Has(codec.CapReadPacket):
		t.framing = framingCodec
	case src.BlockAlign() > 0:
		t.framing = framingBlockAligned
	case src.IsVBR():
		t.framing = framingVBR
	default:
		return nil, fmt.Errorf("%w: audio codec %v", ErrUnsupportedFraming, t.codec.Name())
	}

	if err := t.applyParameters(o.params); err != nil {
		return nil, err
	}

	t.logger.Debug().Src("engine").Track(t.name).
		Msgf("opened for reading, framing: %v, codec: %v", framingNames[t.framing], t.codec.Name())
	return t, nil
}

// OpenAudioWriter opens sink for writing packets described by d.
//
// If d is compressed the codec must report that it can write the
// compression into the container type without re-encoding, it is
// then initialized once so that it can set the global header.
func OpenAudioWriter(sink container.AudioSink, d compression.Descriptor, opts ...Option) (*AudioTrack, error) {
	o := newOptions("audio", opts)
	t := &AudioTrack{
		track:     newTrack(DirectionWrite, o),
		sink:      sink,
		desc:      d.Copy(),
		descReady: true,
	}

	if t.codec.Has(codec.CapWritePacket) {
		t.framing = framingCodec
	} else if sink.IsVBR() {
		t.framing = framingVBR
	} else {
		t.framing = framingBlockAligned
	}

	if err := openCompressed(&t.track, o, t.desc); err != nil {
		return nil, err
	}
	if err := t.applyParameters(o.params); err != nil {
		return nil, err
	}

	t.logger.Debug().Src("engine").Track(t.name).
		Msgf("opened for writing, framing: %v, %v", framingNames[t.framing], t.desc)
	return t, nil
}

func openCompressed(t *track, o options, d *compression.Descriptor) error {
	if d.ID == compression.None {
		return nil
	}
	if !t.codec.WritesCompressed(o.containerType, d) {
		return fmt.Errorf("%w: codec %v, %v into %v",
			ErrCompressedUnsupported, t.codec.Name(), d.ID, o.containerType)
	}
	if !t.codec.Has(codec.CapInitCompressed) {
		return nil
	}
	if err := t.codec.InitCompressed(d); err != nil {
		return fmt.Errorf("init compressed: %w", err)
	}
	return nil
}

// info returns the descriptor, populating it on first call.
func (t *AudioTrack) info() *compression.Descriptor {
	if t.descReady {
		return t.desc
	}
	t.descReady = true

	d := t.src.Compression()
	d.SampleRate = t.src.SampleRate()
	d.Channels = t.src.Channels()
	if err := d.ProbeSBR(); err != nil {
		t.logger.Warn().Src("engine").Track(t.name).
			Msgf("could not parse audio specific config: %v", err)
	}
	if d.Flags.Has(compression.FlagSBR) {
		d.SampleRate *= 2
	}
	t.desc = &d
	return t.desc
}

// CompressionInfo returns the compression descriptor of the track,
// nil if the track is not compressed.
func (t *AudioTrack) CompressionInfo() *compression.Descriptor {
	d := t.info()
	if d.ID == compression.None {
		return nil
	}
	return d
}

func (t *AudioTrack) sbr() bool {
	return t.info().Flags.Has(compression.FlagSBR)
}

// SampleRate returns the sample rate of the descriptor.
func (t *AudioTrack) SampleRate() int {
	return t.info().SampleRate
}

// positionRate returns the rate of the position unit,
// half the descriptor rate for written SBR tracks.
func (t *AudioTrack) positionRate() int {
	if t.dir == DirectionWrite && t.sbr() {
		return t.info().SampleRate / 2
	}
	return t.info().SampleRate
}

// ReadPacket reads the next packet. The returned packet is owned by
// the track and is only valid until the next call.
// io.EOF is returned at the end of the track.
func (t *AudioTrack) ReadPacket() (*packet.Packet, error) {
	if err := t.check(DirectionRead); err != nil {
		return nil, err
	}
	p := t.packet()

	switch t.framing {
	case framingCodec:
		if err := t.codec.ReadPacket(p); err != nil {
			return nil, err
		}
		return p, nil
	case framingBlockAligned:
		return t.readBlockAligned(p)
	default:
		return t.readVBR(p)
	}
}

func (t *AudioTrack) readBlockAligned(p *packet.Packet) (*packet.Packet, error) {
	n, err := t.src.ReadChunk(t.chunkCursor, p)
	if err != nil {
		return nil, t.ioError(fmt.Sprintf("read chunk %d", t.chunkCursor), err)
	}
	if n == 0 {
		return nil, io.EOF
	}

	samples := t.src.ChunkSamples(t.chunkCursor)
	p.Truncate(samples * t.src.BlockAlign())
	p.Timestamp = t.position
	p.Duration = int64(samples)
	p.Flags |= packet.FlagKeyframe

	t.position += int64(samples)
	t.chunkCursor++
	return p, nil
}

func (t *AudioTrack) readVBR(p *packet.Packet) (*packet.Packet, error) {
	if t.vbr == nil {
		t.vbr = &vbrState{packets: t.src.ChunkPackets(t.chunkCursor)}
	}

	// Advance to the next chunk holding packets.
	for t.vbr.index >= t.vbr.packets {
		if t.chunkCursor+1 >= t.src.ChunkCount() {
			return nil, io.EOF
		}
		t.chunkCursor++
		t.vbr.packets = t.src.ChunkPackets(t.chunkCursor)
		t.vbr.index = 0
	}

	duration, err := t.src.ReadVBRPacket(t.chunkCursor, t.vbr.index, p)
	if err != nil {
		return nil, t.ioError(fmt.Sprintf(
			"read chunk %d packet %d", t.chunkCursor, t.vbr.index), err)
	}
	if t.sbr() {
		duration *= 2
	}

	p.Timestamp = t.position
	p.Duration = duration
	p.Flags |= packet.FlagKeyframe

	t.position += duration
	t.vbr.index++
	return p, nil
}

// WritePacket writes p, p.Duration is the number of samples.
func (t *AudioTrack) WritePacket(p *packet.Packet) error {
	if err := t.check(DirectionWrite); err != nil {
		return err
	}

	samples := p.Duration
	if t.sbr() {
		samples /= 2
	}

	switch t.framing {
	case framingCodec:
		if err := t.codec.WritePacket(p); err != nil {
			return t.ioError("codec write packet", err)
		}
	case framingVBR:
		if err := t.writeVBR(p.Bytes(), int(samples)); err != nil {
			return err
		}
	default:
		if err := t.writeChunk(p.Bytes(), int(samples)); err != nil {
			return err
		}
	}

	t.position += samples
	return nil
}

func (t *AudioTrack) writeChunk(data []byte, samples int) error {
	if err := t.sink.StartChunk(t.chunkCursor); err != nil {
		return t.ioError(fmt.Sprintf("start chunk %d", t.chunkCursor), err)
	}
	if err := t.sink.Write(data); err != nil {
		return t.ioError(fmt.Sprintf("write chunk %d", t.chunkCursor), err)
	}
	if err := t.sink.FinishChunk(samples); err != nil {
		return t.ioError(fmt.Sprintf("finish chunk %d", t.chunkCursor), err)
	}
	t.chunkCursor++
	return nil
}

func (t *AudioTrack) writeVBR(data []byte, samples int) error {
	if !t.chunkOpen {
		if err := t.sink.StartChunk(t.chunkCursor); err != nil {
			return t.ioError(fmt.Sprintf("start chunk %d", t.chunkCursor), err)
		}
		t.chunkOpen = true
		t.chunkSamples = 0
	}
	if err := t.sink.StartVBRFrame(); err != nil {
		return t.ioError("start vbr frame", err)
	}
	if err := t.sink.Write(data); err != nil {
		return t.ioError("write vbr frame", err)
	}
	if err := t.sink.FinishVBRFrame(samples); err != nil {
		return t.ioError("finish vbr frame", err)
	}
	t.chunkSamples += samples
	return nil
}

// FlushChunk finishes the open VBR chunk, if any.
func (t *AudioTrack) FlushChunk() error {
	if err := t.check(DirectionWrite); err != nil {
		return err
	}
	return t.flushChunk()
}

func (t *AudioTrack) flushChunk() error {
	if !t.chunkOpen {
		return nil
	}
	t.chunkOpen = false
	if err := t.sink.FinishChunk(t.chunkSamples); err != nil {
		return t.ioError(fmt.Sprintf("finish chunk %d", t.chunkCursor), err)
	}
	t.chunkCursor++
	return nil
}

// Close flushes the open VBR chunk and closes the codec.
func (t *AudioTrack) Close() error {
	if t.closed {
		return ErrClosed
	}

	var flushErr error
	if t.dir == DirectionWrite {
		flushErr = t.flushChunk()
	}
	if err := t.close(); err != nil {
		return err
	}
	return flushErr
}
