// Package timing implements the per track sample timing tables:
// decode durations, composition offsets and the keyframe index.
package timing

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Errors.
var (
	ErrPositionMismatch = errors.New("table length does not match position")
	ErrOutOfRange       = errors.New("sample is not covered by table")
	ErrValueRange       = errors.New("value does not fit box field")
)

// CheckDuration returns an error if duration
// cannot be stored in a stts entry.
func CheckDuration(duration int64) error {
	if duration < 0 || duration > math.MaxUint32 {
		return fmt.Errorf("%w: duration %d", ErrValueRange, duration)
	}
	return nil
}

// CheckOffset returns an error if offset
// cannot be stored in a version 1 ctts entry.
func CheckOffset(offset int64) error {
	if offset < math.MinInt32 || offset > math.MaxInt32 {
		return fmt.Errorf("%w: composition offset %d", ErrValueRange, offset)
	}
	return nil
}

// Run is a run-length encoded table entry.
type Run struct {
	Count uint32
	Value int64
}

// runTable is an append-only run-length encoded table.
// starts[i] is the sample number of the first sample in runs[i].
type runTable struct {
	runs   []Run
	starts []int
	total  int
}

func (t *runTable) appendRun(run Run) {
	if run.Count == 0 {
		return
	}
	if n := len(t.runs); n > 0 && t.runs[n-1].Value == run.Value {
		t.runs[n-1].Count += run.Count
	} else {
		t.runs = append(t.runs, run)
		t.starts = append(t.starts, t.total)
	}
	t.total += int(run.Count)
}

// index returns the index of the run covering sample.
func (t *runTable) index(sample int) (int, bool) {
	if sample < 0 || sample >= t.total {
		return 0, false
	}
	i := sort.Search(len(t.starts), func(i int) bool {
		return t.starts[i] > sample
	})
	return i - 1, true
}

func (t *runTable) at(sample int) (int64, bool) {
	i, ok := t.index(sample)
	if !ok {
		return 0, false
	}
	return t.runs[i].Value, true
}

func (t *runTable) copyRuns() []Run {
	runs := make([]Run, len(t.runs))
	copy(runs, t.runs)
	return runs
}
