package timing

import (
	"math"
	"testing"

	"mediamux/pkg/mp4"

	"github.com/stretchr/testify/require"
)

func TestDurationTable(t *testing.T) {
	t.Run("merge", func(t *testing.T) {
		var d DurationTable
		for _, v := range []int64{1000, 1000, 1000, 500, 500, 1000} {
			require.NoError(t, d.Append(v))
		}
		expected := []Run{
			{Count: 3, Value: 1000},
			{Count: 2, Value: 500},
			{Count: 1, Value: 1000},
		}
		require.Equal(t, expected, d.Runs())
		require.Equal(t, 6, d.Len())
		require.Equal(t, int64(5000), d.Duration())
	})
	t.Run("lookup", func(t *testing.T) {
		d, err := NewDurationTable([]Run{
			{Count: 3, Value: 1000},
			{Count: 2, Value: 500},
			{Count: 1, Value: 1000},
		})
		require.NoError(t, err)
		cases := []struct {
			sample   int
			duration int64
			dts      int64
		}{
			{0, 1000, 0},
			{2, 1000, 2000},
			{3, 500, 3000},
			{4, 500, 3500},
			{5, 1000, 4000},
		}
		for _, tc := range cases {
			duration, ok := d.At(tc.sample)
			require.True(t, ok)
			require.Equal(t, tc.duration, duration, tc.sample)

			dts, ok := d.Timestamp(tc.sample)
			require.True(t, ok)
			require.Equal(t, tc.dts, dts, tc.sample)
		}

		end, ok := d.Timestamp(6)
		require.True(t, ok)
		require.Equal(t, int64(5000), end)

		_, ok = d.At(6)
		require.False(t, ok)
		_, ok = d.At(-1)
		require.False(t, ok)
		_, ok = d.Timestamp(7)
		require.False(t, ok)
	})
	t.Run("zeroRun", func(t *testing.T) {
		d, err := NewDurationTable([]Run{{Count: 0, Value: 1}})
		require.NoError(t, err)
		require.Equal(t, 0, d.Len())
		require.Empty(t, d.Runs())
	})
	t.Run("stts", func(t *testing.T) {
		d, err := NewDurationTable([]Run{{Count: 4, Value: 1000}, {Count: 1, Value: 20}})
		require.NoError(t, err)
		stts := d.Stts()
		expected := &mp4.Stts{Entries: []mp4.SttsEntry{
			{SampleCount: 4, SampleDelta: 1000},
			{SampleCount: 1, SampleDelta: 20},
		}}
		require.Equal(t, expected, stts)
		require.Equal(t, d, DurationTableFromStts(stts))
	})
	t.Run("valueRange", func(t *testing.T) {
		var d DurationTable
		require.NoError(t, d.Append(math.MaxUint32))
		require.ErrorIs(t, d.Append(math.MaxUint32+1), ErrValueRange)
		require.ErrorIs(t, d.Append(-1), ErrValueRange)
		require.Equal(t, 1, d.Len())
		require.Equal(t, uint32(math.MaxUint32), d.Stts().Entries[0].SampleDelta)

		_, err := NewDurationTable([]Run{{Count: 1, Value: -20}})
		require.ErrorIs(t, err, ErrValueRange)
	})
}

func TestCompositionTable(t *testing.T) {
	t.Run("relative", func(t *testing.T) {
		c, err := NewCompositionTable([]Run{
			{Count: 1, Value: 1000},
			{Count: 1, Value: 3000},
			{Count: 1, Value: 0},
		})
		require.NoError(t, err)
		cases := []struct {
			sample   int
			expected int64
		}{
			{0, 0},
			{1, 2000},
			{2, -1000},
		}
		for _, tc := range cases {
			actual, ok := c.Relative(tc.sample)
			require.True(t, ok)
			require.Equal(t, tc.expected, actual)
		}
		_, ok := c.Relative(3)
		require.False(t, ok)
	})
	t.Run("ctts", func(t *testing.T) {
		var c CompositionTable
		for _, v := range []int64{0, 300, 300, -300} {
			require.NoError(t, c.Append(v))
		}
		ctts := c.Ctts()
		expected := &mp4.Ctts{
			FullBox: mp4.FullBox{Version: 1},
			Entries: []mp4.CttsEntry{
				{SampleCount: 1, SampleOffset: 0},
				{SampleCount: 2, SampleOffset: 300},
				{SampleCount: 1, SampleOffset: -300},
			},
		}
		require.Equal(t, expected, ctts)
		require.Equal(t, c.Runs(), CompositionTableFromCtts(ctts).Runs())
		require.Equal(t, 4, c.Len())
	})
	t.Run("valueRange", func(t *testing.T) {
		var c CompositionTable
		require.NoError(t, c.Append(math.MinInt32))
		require.ErrorIs(t, c.Append(math.MaxInt32+1), ErrValueRange)
		require.ErrorIs(t, c.Append(math.MinInt32-1), ErrValueRange)
		require.Equal(t, 1, c.Len())
		require.Equal(t, int32(math.MinInt32), c.Ctts().Entries[0].SampleOffset)

		_, err := NewCompositionTable([]Run{{Count: 1, Value: 1 << 40}})
		require.ErrorIs(t, err, ErrValueRange)
	})
}

func TestPresentationTimestamps(t *testing.T) {
	durations, err := NewDurationTable([]Run{{Count: 4, Value: 1000}})
	require.NoError(t, err)
	offsets, err := NewCompositionTable([]Run{
		{Count: 1, Value: 0},
		{Count: 1, Value: 300},
		{Count: 1, Value: -300},
		{Count: 1, Value: 0},
	})
	require.NoError(t, err)

	var dts, pts []int64
	for i := 0; i < 4; i++ {
		d, ok := durations.Timestamp(i)
		require.True(t, ok)
		offset, ok := offsets.Relative(i)
		require.True(t, ok)

		dts = append(dts, d)
		pts = append(pts, d+offset)
	}
	require.Equal(t, []int64{0, 1000, 2000, 3000}, dts)
	require.Equal(t, []int64{0, 1300, 1700, 3000}, pts)
}

func TestKeyframeIndex(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		k := NewKeyframeIndex(0, 5)
		k.Insert(5)
		k.Insert(5)
		require.Equal(t, 2, k.Len())
		require.Equal(t, []int{0, 5}, k.Samples())
	})
	t.Run("outOfOrder", func(t *testing.T) {
		k := NewKeyframeIndex(10, 2, 7, 2, 0, 10)
		require.Equal(t, []int{0, 2, 7, 10}, k.Samples())

		samples := k.Samples()
		for i := 1; i < len(samples); i++ {
			require.Less(t, samples[i-1], samples[i])
		}
	})
	t.Run("contains", func(t *testing.T) {
		k := NewKeyframeIndex(0, 3)
		require.True(t, k.Contains(0))
		require.True(t, k.Contains(3))
		require.False(t, k.Contains(1))
		require.False(t, k.Contains(4))
		require.False(t, (&KeyframeIndex{}).Contains(0))
	})
	t.Run("stss", func(t *testing.T) {
		k := NewKeyframeIndex(0, 3)
		stss := k.Stss()
		require.Equal(t, []uint32{1, 4}, stss.SampleNumbers)

		stss.SampleNumbers = append(stss.SampleNumbers, 0)
		require.Equal(t, []int{0, 3}, KeyframeIndexFromStss(stss).Samples())
	})
}
