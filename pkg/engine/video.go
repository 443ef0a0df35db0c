package engine

import (
	"fmt"
	"io"

	"mediamux/pkg/codec"
	"mediamux/pkg/compression"
	"mediamux/pkg/container"
	"mediamux/pkg/mp4"
	"mediamux/pkg/packet"
	"mediamux/pkg/timing"
)

// VideoTrack is a video track opened for reading or writing.
// Every chunk holds exactly one frame.
type VideoTrack struct {
	track

	src  container.VideoSource
	sink container.VideoSink

	desc      *compression.Descriptor
	descReady bool

	durations   *timing.DurationTable
	composition *timing.CompositionTable // nil without B-frames.
	keyframes   *timing.KeyframeIndex
	allKeys     bool // Read side without stss.

	// Decode timestamp of the next written frame.
	accumulator int64
}

// OpenVideoReader opens src for reading.
func OpenVideoReader(src container.VideoSource, opts ...Option) (*VideoTrack, error) {
	o := newOptions("video", opts)
	t := &VideoTrack{
		track:     newTrack(DirectionRead, o),
		src:       src,
		durations: &timing.DurationTable{},
		keyframes: &timing.KeyframeIndex{},
	}

	if stts := src.Stts(); stts != nil {
		t.durations = timing.DurationTableFromStts(stts)
	}
	if ctts := src.Ctts(); ctts != nil {
		t.composition = timing.CompositionTableFromCtts(ctts)
	}
	if stss := src.Stss(); stss != nil {
		t.keyframes = timing.KeyframeIndexFromStss(stss)
	} else {
		t.allKeys = true
	}

	if err := t.applyParameters(o.params); err != nil {
		return nil, err
	}

	t.logger.Debug().Src("engine").Track(t.name).
		Msgf("opened for reading, samples: %d, codec: %v", src.SampleCount(), t.codec.Name())
	return t, nil
}

// OpenVideoWriter opens sink for writing frames described by d.
// The composition table is kept when d has FlagHasBFrames.
func OpenVideoWriter(sink container.VideoSink, d compression.Descriptor, opts ...Option) (*VideoTrack, error) {
	o := newOptions("video", opts)
	t := &VideoTrack{
		track:     newTrack(DirectionWrite, o),
		sink:      sink,
		desc:      d.Copy(),
		descReady: true,
		durations: &timing.DurationTable{},
		keyframes: &timing.KeyframeIndex{},
	}
	if t.desc.Flags.Has(compression.FlagHasBFrames) {
		t.composition = &timing.CompositionTable{}
	}

	if err := openCompressed(&t.track, o, t.desc); err != nil {
		return nil, err
	}
	if err := t.applyParameters(o.params); err != nil {
		return nil, err
	}

	t.logger.Debug().Src("engine").Track(t.name).Msgf("opened for writing, %v", t.desc)
	return t, nil
}

func (t *VideoTrack) info() *compression.Descriptor {
	if t.descReady {
		return t.desc
	}
	t.descReady = true

	d := t.src.Compression()
	d.Width = t.src.Width()
	d.Height = t.src.Height()
	d.PixelWidth, d.PixelHeight = t.src.PixelAspect()
	d.Colormodel = t.src.Colormodel()
	if t.composition != nil {
		d.Flags |= compression.FlagHasBFrames
	}
	t.desc = &d
	return t.desc
}

// CompressionInfo returns the compression descriptor of the track,
// nil if the track is not compressed.
func (t *VideoTrack) CompressionInfo() *compression.Descriptor {
	d := t.info()
	if d.ID == compression.None {
		return nil
	}
	return d
}

// Timescale returns the number of time units per second.
func (t *VideoTrack) Timescale() int {
	if t.dir == DirectionRead {
		return t.src.Timescale()
	}
	return t.sink.Timescale()
}

// Accumulator returns the decode timestamp of the next written frame.
func (t *VideoTrack) Accumulator() int64 {
	return t.accumulator
}

// ReadPacket reads the next frame in decode order. The returned packet
// is owned by the track and is only valid until the next call.
// io.EOF is returned at the end of the track.
func (t *VideoTrack) ReadPacket() (*packet.Packet, error) {
	if err := t.check(DirectionRead); err != nil {
		return nil, err
	}
	p := t.packet()

	if t.codec.Has(codec.CapReadPacket) {
		if err := t.codec.ReadPacket(p); err != nil {
			return nil, err
		}
		return p, nil
	}

	if t.position >= int64(t.src.SampleCount()) {
		return nil, io.EOF
	}
	sample := int(t.position)

	timestamp, duration, err := t.sampleTiming(sample)
	if err != nil {
		return nil, t.ioError(fmt.Sprintf("timing of sample %d", sample), err)
	}

	if t.allKeys || t.keyframes.Contains(sample) {
		p.Flags |= packet.FlagKeyframe
	}

	if err := t.src.ReadFrame(sample, p); err != nil {
		return nil, t.ioError(fmt.Sprintf("read frame %d", sample), err)
	}

	p.Timestamp = timestamp
	p.Duration = duration

	t.position++
	t.chunkCursor++
	return p, nil
}

// sampleTiming returns the presentation timestamp and duration of sample.
func (t *VideoTrack) sampleTiming(sample int) (int64, int64, error) {
	duration, ok := t.durations.At(sample)
	if !ok {
		return 0, 0, fmt.Errorf("stts: %w", timing.ErrOutOfRange)
	}
	timestamp, _ := t.durations.Timestamp(sample)

	if t.composition != nil {
		offset, ok := t.composition.Relative(sample)
		if !ok {
			return 0, 0, fmt.Errorf("ctts: %w", timing.ErrOutOfRange)
		}
		timestamp += offset
	}
	return timestamp, duration, nil
}

// WritePacket writes one frame in its own chunk.
// p.Timestamp is the presentation time, p.Duration the decode duration.
func (t *VideoTrack) WritePacket(p *packet.Packet) error {
	if err := t.check(DirectionWrite); err != nil {
		return err
	}

	// Nothing is written if the tables cannot store the frame.
	offset := p.Timestamp - t.accumulator
	if err := timing.CheckDuration(p.Duration); err != nil {
		return err
	}
	if t.composition != nil {
		if err := timing.CheckOffset(offset); err != nil {
			return err
		}
	}

	if err := t.sink.StartChunk(t.chunkCursor); err != nil {
		return t.ioError(fmt.Sprintf("start chunk %d", t.chunkCursor), err)
	}
	if t.codec.Has(codec.CapWritePacket) {
		if err := t.codec.WritePacket(p); err != nil {
			return t.ioError("codec write packet", err)
		}
	} else if err := t.sink.Write(p.Bytes()); err != nil {
		return t.ioError(fmt.Sprintf("write chunk %d", t.chunkCursor), err)
	}
	if err := t.sink.FinishChunk(1); err != nil {
		return t.ioError(fmt.Sprintf("finish chunk %d", t.chunkCursor), err)
	}

	sample := int(t.position)
	if p.IsKeyframe() {
		t.keyframes.Insert(sample)
	}
	if err := t.durations.Append(p.Duration); err != nil {
		return err
	}
	if t.composition != nil {
		if err := t.composition.Append(offset); err != nil {
			return err
		}
	}
	t.accumulator += p.Duration
	t.chunkCursor++
	t.position++

	if t.durations.Len() != int(t.position) {
		return fmt.Errorf("durations %d, position %d: %w",
			t.durations.Len(), t.position, timing.ErrPositionMismatch)
	}
	return nil
}

// Durations returns the duration table.
func (t *VideoTrack) Durations() *timing.DurationTable {
	return t.durations
}

// Composition returns the composition table, nil without B-frames.
func (t *VideoTrack) Composition() *timing.CompositionTable {
	return t.composition
}

// Keyframes returns the keyframe index.
func (t *VideoTrack) Keyframes() *timing.KeyframeIndex {
	return t.keyframes
}

func (t *VideoTrack) timingBoxes() (*mp4.Stts, *mp4.Ctts, *mp4.Stss) {
	var ctts *mp4.Ctts
	if t.composition != nil {
		ctts = t.composition.Ctts()
	}
	var stss *mp4.Stss
	if !t.allKeys {
		stss = t.keyframes.Stss()
	}
	return t.durations.Stts(), ctts, stss
}

// SampleTable returns the timing tables as a stbl box. The chunk
// tables are included when the container can describe them.
func (t *VideoTrack) SampleTable() mp4.Boxes {
	stts, ctts, stss := t.timingBoxes()

	stbl := mp4.Boxes{
		Box:      &mp4.Stbl{},
		Children: []mp4.Boxes{{Box: stts}},
	}
	if ctts != nil {
		stbl.Children = append(stbl.Children, mp4.Boxes{Box: ctts})
	}
	if stss != nil {
		stbl.Children = append(stbl.Children, mp4.Boxes{Box: stss})
	}

	var tabler container.ChunkTabler
	if t.dir == DirectionRead {
		tabler, _ = t.src.(container.ChunkTabler)
	} else {
		tabler, _ = t.sink.(container.ChunkTabler)
	}
	if tabler != nil {
		stbl.Children = append(stbl.Children,
			mp4.Boxes{Box: tabler.Stsc()},
			mp4.Boxes{Box: tabler.Stsz()},
			mp4.Boxes{Box: tabler.Stco()},
		)
	}
	return stbl
}

// Close hands the timing tables to the sink if it stores
// them and closes the codec.
func (t *VideoTrack) Close() error {
	if t.closed {
		return ErrClosed
	}

	var timingErr error
	if ts, ok := t.sink.(container.TimingSink); ok && t.dir == DirectionWrite {
		stts, ctts, stss := t.timingBoxes()
		if err := ts.SetTiming(stts, ctts, stss); err != nil {
			timingErr = t.ioError("set timing", err)
		}
	}
	if err := t.close(); err != nil {
		return err
	}
	return timingErr
}
