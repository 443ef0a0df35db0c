package engine

import (
	"bytes"
	"io"
	"testing"

	"mediamux/pkg/compression"
	"mediamux/pkg/container"
	"mediamux/pkg/container/memtrack"
	"mediamux/pkg/mp4"
	"mediamux/pkg/packet"
	"mediamux/pkg/timing"

	"github.com/stretchr/testify/require"
)

type frame struct {
	data      []byte
	timestamp int64
	duration  int64
	keyframe  bool
}

func readAllVideo(t *testing.T, track *VideoTrack) []frame {
	t.Helper()
	var frames []frame
	for {
		p, err := track.ReadPacket()
		if err == io.EOF {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, frame{
			data:      append([]byte(nil), p.Bytes()...),
			timestamp: p.Timestamp,
			duration:  p.Duration,
			keyframe:  p.IsKeyframe(),
		})
	}
}

func newTestVideo(frames int) *memtrack.Video {
	v := memtrack.NewVideo(memtrack.VideoConfig{
		Compression: compression.Descriptor{ID: compression.H264},
		Width:       1920,
		Height:      1080,
		PixelWidth:  1,
		PixelHeight: 1,
		Colormodel:  "yuv420p",
		Timescale:   90000,
	})
	for i := 0; i < frames; i++ {
		v.AddFrame([]byte{byte(i)})
	}
	return v
}

func TestReadVideo(t *testing.T) {
	t.Run("bFrames", func(t *testing.T) {
		v := newTestVideo(4)
		stts := &mp4.Stts{Entries: []mp4.SttsEntry{{SampleCount: 4, SampleDelta: 1000}}}
		ctts := &mp4.Ctts{Entries: []mp4.CttsEntry{
			{SampleCount: 1, SampleOffset: 0},
			{SampleCount: 1, SampleOffset: 300},
			{SampleCount: 1, SampleOffset: -300},
			{SampleCount: 1, SampleOffset: 0},
		}}
		require.NoError(t, v.SetTiming(stts, ctts, nil))

		track, err := OpenVideoReader(v)
		require.NoError(t, err)

		expected := []frame{
			{data: []byte{0}, timestamp: 0, duration: 1000, keyframe: true},
			{data: []byte{1}, timestamp: 1300, duration: 1000, keyframe: true},
			{data: []byte{2}, timestamp: 1700, duration: 1000, keyframe: true},
			{data: []byte{3}, timestamp: 3000, duration: 1000, keyframe: true},
		}
		require.Equal(t, expected, readAllVideo(t, track))
		require.Equal(t, int64(4), track.Position())
		require.Equal(t, 4, track.ChunkCursor())

		_, err = track.ReadPacket()
		require.Equal(t, io.EOF, err)
	})
	t.Run("offsetBaseline", func(t *testing.T) {
		v := newTestVideo(3)
		stts := &mp4.Stts{Entries: []mp4.SttsEntry{{SampleCount: 3, SampleDelta: 1000}}}
		ctts := &mp4.Ctts{Entries: []mp4.CttsEntry{
			{SampleCount: 1, SampleOffset: 2000},
			{SampleCount: 1, SampleOffset: 3000},
			{SampleCount: 1, SampleOffset: 1000},
		}}
		require.NoError(t, v.SetTiming(stts, ctts, nil))

		track, err := OpenVideoReader(v)
		require.NoError(t, err)

		var timestamps []int64
		for _, f := range readAllVideo(t, track) {
			timestamps = append(timestamps, f.timestamp)
		}
		require.Equal(t, []int64{0, 2000, 1000}, timestamps)
	})
	t.Run("keyframes", func(t *testing.T) {
		v := newTestVideo(4)
		stts := &mp4.Stts{Entries: []mp4.SttsEntry{
			{SampleCount: 2, SampleDelta: 3000},
			{SampleCount: 2, SampleDelta: 1500},
		}}
		stss := &mp4.Stss{SampleNumbers: []uint32{1, 3}}
		require.NoError(t, v.SetTiming(stts, nil, stss))

		track, err := OpenVideoReader(v)
		require.NoError(t, err)

		expected := []frame{
			{data: []byte{0}, timestamp: 0, duration: 3000, keyframe: true},
			{data: []byte{1}, timestamp: 3000, duration: 3000, keyframe: false},
			{data: []byte{2}, timestamp: 6000, duration: 1500, keyframe: true},
			{data: []byte{3}, timestamp: 7500, duration: 1500, keyframe: false},
		}
		require.Equal(t, expected, readAllVideo(t, track))
	})
	t.Run("shortStts", func(t *testing.T) {
		v := newTestVideo(4)
		stts := &mp4.Stts{Entries: []mp4.SttsEntry{{SampleCount: 2, SampleDelta: 1000}}}
		require.NoError(t, v.SetTiming(stts, nil, nil))

		track, err := OpenVideoReader(v)
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			_, err := track.ReadPacket()
			require.NoError(t, err)
		}
		_, err = track.ReadPacket()
		require.ErrorIs(t, err, timing.ErrOutOfRange)
		require.Equal(t, int64(2), track.Position())
	})
	t.Run("shortCtts", func(t *testing.T) {
		v := newTestVideo(4)
		stts := &mp4.Stts{Entries: []mp4.SttsEntry{{SampleCount: 4, SampleDelta: 1000}}}
		ctts := &mp4.Ctts{Entries: []mp4.CttsEntry{{SampleCount: 2, SampleOffset: 500}}}
		require.NoError(t, v.SetTiming(stts, ctts, nil))

		track, err := OpenVideoReader(v)
		require.NoError(t, err)

		var timestamps []int64
		for i := 0; i < 2; i++ {
			p, err := track.ReadPacket()
			require.NoError(t, err)
			timestamps = append(timestamps, p.Timestamp)
		}
		require.Equal(t, []int64{0, 1000}, timestamps)

		_, err = track.ReadPacket()
		require.ErrorIs(t, err, timing.ErrOutOfRange)
	})
	t.Run("empty", func(t *testing.T) {
		track, err := OpenVideoReader(newTestVideo(0))
		require.NoError(t, err)

		_, err = track.ReadPacket()
		require.Equal(t, io.EOF, err)
	})
	t.Run("codec", func(t *testing.T) {
		c := &readerCodec{packets: []*packet.Packet{
			newPacket([]byte{7}, 10, 20, false),
		}}
		track, err := OpenVideoReader(newTestVideo(2), WithCodec(c))
		require.NoError(t, err)

		p, err := track.ReadPacket()
		require.NoError(t, err)
		require.Equal(t, []byte{7}, p.Bytes())
		require.Equal(t, int64(10), p.Timestamp)
		require.False(t, p.IsKeyframe())

		_, err = track.ReadPacket()
		require.Equal(t, io.EOF, err)
	})
	t.Run("compressionInfo", func(t *testing.T) {
		v := newTestVideo(1)
		ctts := &mp4.Ctts{Entries: []mp4.CttsEntry{{SampleCount: 1}}}
		require.NoError(t, v.SetTiming(nil, ctts, nil))

		track, err := OpenVideoReader(v)
		require.NoError(t, err)

		info := track.CompressionInfo()
		require.NotNil(t, info)
		require.Equal(t, compression.H264, info.ID)
		require.Equal(t, 1920, info.Width)
		require.Equal(t, 1080, info.Height)
		require.Equal(t, 1, info.PixelWidth)
		require.Equal(t, 1, info.PixelHeight)
		require.Equal(t, "yuv420p", info.Colormodel)
		require.True(t, info.Flags.Has(compression.FlagHasBFrames))
		require.Same(t, info, track.CompressionInfo())
		require.Equal(t, 90000, track.Timescale())
	})
	t.Run("compressionInfoNone", func(t *testing.T) {
		v := memtrack.NewVideo(memtrack.VideoConfig{Width: 2})
		track, err := OpenVideoReader(v)
		require.NoError(t, err)
		require.Nil(t, track.CompressionInfo())
	})
}

func writeFrames(t *testing.T, track *VideoTrack, frames []frame) {
	t.Helper()
	for _, f := range frames {
		p := newPacket(f.data, f.timestamp, f.duration, f.keyframe)
		require.NoError(t, track.WritePacket(p))
	}
}

func TestVideoRoundTrip(t *testing.T) {
	t.Run("bFrames", func(t *testing.T) {
		v := newTestVideo(0)
		d := compression.Descriptor{
			ID:    compression.H264,
			Flags: compression.FlagHasPFrames | compression.FlagHasBFrames,
		}
		track, err := OpenVideoWriter(v, d, WithCodec(newPassthrough(compression.H264)))
		require.NoError(t, err)

		frames := []frame{
			{data: []byte{0}, timestamp: 0, duration: 1000, keyframe: true},
			{data: []byte{1}, timestamp: 3000, duration: 1000},
			{data: []byte{2}, timestamp: 1000, duration: 1000},
			{data: []byte{3}, timestamp: 2000, duration: 1000},
			{data: []byte{4, 4}, timestamp: 6000, duration: 1000, keyframe: true},
			{data: []byte{5}, timestamp: 4000, duration: 1000},
			{data: []byte{6}, timestamp: 5000, duration: 1000},
		}
		writeFrames(t, track, frames)
		require.Equal(t, int64(7), track.Position())
		require.Equal(t, int64(7000), track.Accumulator())
		require.Equal(t, []int{0, 4}, track.Keyframes().Samples())
		require.NoError(t, track.Close())

		require.Equal(t, &mp4.Stss{SampleNumbers: []uint32{1, 5}}, v.Stss())
		require.Equal(t, uint8(1), v.Ctts().Version)

		reader, err := OpenVideoReader(v)
		require.NoError(t, err)
		require.Equal(t, frames, readAllVideo(t, reader))
	})
	t.Run("noBFrames", func(t *testing.T) {
		v := newTestVideo(0)
		track, err := OpenVideoWriter(v, compression.Descriptor{})
		require.NoError(t, err)
		require.Nil(t, track.Composition())

		frames := []frame{
			{data: []byte{0}, timestamp: 0, duration: 3000, keyframe: true},
			{data: []byte{1}, timestamp: 3000, duration: 3000},
			{data: []byte{2}, timestamp: 6000, duration: 1500},
		}
		writeFrames(t, track, frames)
		require.NoError(t, track.Close())
		require.Nil(t, v.Ctts())

		reader, err := OpenVideoReader(v)
		require.NoError(t, err)
		require.Equal(t, frames, readAllVideo(t, reader))
	})
}

func TestWriteVideo(t *testing.T) {
	t.Run("duplicateKeyframe", func(t *testing.T) {
		v := newTestVideo(0)
		track, err := OpenVideoWriter(v, compression.Descriptor{})
		require.NoError(t, err)

		writeFrames(t, track, []frame{{data: []byte{0}, duration: 1, keyframe: true}})
		track.Keyframes().Insert(0)
		require.Equal(t, 1, track.Keyframes().Len())
	})
	t.Run("codec", func(t *testing.T) {
		v := newTestVideo(0)
		c := &writerCodec{}
		track, err := OpenVideoWriter(v, compression.Descriptor{}, WithCodec(c))
		require.NoError(t, err)

		writeFrames(t, track, []frame{{data: []byte{1, 2}, duration: 1}})
		require.Equal(t, [][]byte{{1, 2}}, c.written)
		require.Equal(t, 1, v.ChunkCount())
		require.Equal(t, 0, v.MdatSize())
		require.Equal(t, 1, track.Durations().Len())
	})
	t.Run("writeError", func(t *testing.T) {
		v := newTestVideo(0)
		v.WriteErr = errIO
		track, err := OpenVideoWriter(v, compression.Descriptor{})
		require.NoError(t, err)

		err = track.WritePacket(newPacket([]byte{1}, 0, 1, true))
		require.ErrorIs(t, err, errIO)
		require.Equal(t, int64(0), track.Position())
		require.Equal(t, 0, track.Durations().Len())
	})
	t.Run("valueRange", func(t *testing.T) {
		v := newTestVideo(0)
		d := compression.Descriptor{Flags: compression.FlagHasBFrames}
		track, err := OpenVideoWriter(v, d)
		require.NoError(t, err)

		err = track.WritePacket(newPacket([]byte{1}, 0, -1, true))
		require.ErrorIs(t, err, timing.ErrValueRange)

		err = track.WritePacket(newPacket([]byte{1}, 1<<40, 1000, true))
		require.ErrorIs(t, err, timing.ErrValueRange)

		require.Equal(t, 0, v.ChunkCount())
		require.Equal(t, int64(0), track.Position())
		require.NoError(t, track.WritePacket(newPacket([]byte{1}, 0, 1000, true)))
	})
	t.Run("startChunkError", func(t *testing.T) {
		v := newTestVideo(0)
		require.NoError(t, v.StartChunk(0))
		track, err := OpenVideoWriter(v, compression.Descriptor{})
		require.NoError(t, err)

		err = track.WritePacket(newPacket([]byte{1}, 0, 1, true))
		require.ErrorIs(t, err, container.ErrChunkAlreadyOpen)
	})
	t.Run("compressedUnsupported", func(t *testing.T) {
		_, err := OpenVideoWriter(newTestVideo(0), compression.Descriptor{ID: compression.H264})
		require.ErrorIs(t, err, ErrCompressedUnsupported)
	})
}

func TestSampleTable(t *testing.T) {
	v := newTestVideo(0)
	d := compression.Descriptor{ID: compression.H264, Flags: compression.FlagHasBFrames}
	track, err := OpenVideoWriter(v, d, WithCodec(newPassthrough(compression.H264)))
	require.NoError(t, err)

	writeFrames(t, track, []frame{
		{data: []byte{0, 0}, timestamp: 0, duration: 1000, keyframe: true},
		{data: []byte{1}, timestamp: 2000, duration: 1000},
		{data: []byte{2}, timestamp: 1000, duration: 1000},
	})

	stbl := track.SampleTable()
	var types []string
	for _, child := range stbl.Children {
		types = append(types, child.Box.Type().String())
	}
	require.Equal(t, []string{"stts", "ctts", "stss", "stsc", "stsz", "stco"}, types)

	box, found := stbl.Child(mp4.BoxType{'s', 't', 's', 'z'})
	require.True(t, found)
	require.Equal(t, &mp4.Stsz{SampleCount: 3, EntrySizes: []uint32{2, 1, 1}}, box)

	var buf bytes.Buffer
	require.NoError(t, mp4.Marshal(&buf, stbl))
	require.Equal(t, stbl.Size(), buf.Len())

	reader, err := OpenVideoReader(v)
	require.NoError(t, err)
	types = nil
	for _, child := range reader.SampleTable().Children {
		types = append(types, child.Box.Type().String())
	}
	require.Equal(t, []string{"stts", "stsc", "stsz", "stco"}, types)
}
