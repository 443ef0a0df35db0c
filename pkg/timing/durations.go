package timing

import "mediamux/pkg/mp4"

// DurationTable run-length encoded decode time deltas, stts.
type DurationTable struct {
	runTable

	// Decode timestamp of the first sample in each run.
	startTimes []int64
	totalTime  int64
}

// NewDurationTable creates a table from runs.
func NewDurationTable(runs []Run) (*DurationTable, error) {
	t := &DurationTable{}
	for _, run := range runs {
		if err := t.AppendRun(run); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Append adds one sample with duration, merging it
// into the last run if the duration is equal.
func (t *DurationTable) Append(duration int64) error {
	return t.AppendRun(Run{Count: 1, Value: duration})
}

// AppendRun adds run.Count samples with duration run.Value.
// The table is unchanged if the duration does not fit stts.
func (t *DurationTable) AppendRun(run Run) error {
	if err := CheckDuration(run.Value); err != nil {
		return err
	}
	if run.Count == 0 {
		return nil
	}
	runs := len(t.runs)
	t.appendRun(run)
	if len(t.runs) > runs {
		t.startTimes = append(t.startTimes, t.totalTime)
	}
	t.totalTime += int64(run.Count) * run.Value
	return nil
}

// Len returns the number of samples.
func (t *DurationTable) Len() int {
	return t.total
}

// Duration returns the total duration of all samples.
func (t *DurationTable) Duration() int64 {
	return t.totalTime
}

// At returns the duration of sample.
func (t *DurationTable) At(sample int) (int64, bool) {
	return t.at(sample)
}

// Timestamp returns the decode timestamp of sample.
// Timestamp(Len()) is the end time of the last sample.
func (t *DurationTable) Timestamp(sample int) (int64, bool) {
	if sample == t.total {
		return t.totalTime, true
	}
	i, ok := t.index(sample)
	if !ok {
		return 0, false
	}
	return t.startTimes[i] + int64(sample-t.starts[i])*t.runs[i].Value, true
}

// Runs returns a copy of the runs.
func (t *DurationTable) Runs() []Run {
	return t.copyRuns()
}

// Stts returns the table as a stts box.
func (t *DurationTable) Stts() *mp4.Stts {
	entries := make([]mp4.SttsEntry, len(t.runs))
	for i, run := range t.runs {
		entries[i] = mp4.SttsEntry{
			SampleCount: run.Count,
			SampleDelta: uint32(run.Value),
		}
	}
	return &mp4.Stts{Entries: entries}
}

// DurationTableFromStts creates a table from a stts box.
func DurationTableFromStts(stts *mp4.Stts) *DurationTable {
	t := &DurationTable{}
	for _, entry := range stts.Entries {
		// uint32 deltas always fit.
		run := Run{Count: entry.SampleCount, Value: int64(entry.SampleDelta)}
		t.AppendRun(run) //nolint:errcheck
	}
	return t
}
