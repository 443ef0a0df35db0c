package timing

import "mediamux/pkg/mp4"

// CompositionTable run-length encoded composition offsets, ctts.
// Offsets are PTS - DTS.
type CompositionTable struct {
	runTable
}

// NewCompositionTable creates a table from runs.
func NewCompositionTable(runs []Run) (*CompositionTable, error) {
	t := &CompositionTable{}
	for _, run := range runs {
		if err := CheckOffset(run.Value); err != nil {
			return nil, err
		}
		t.appendRun(run)
	}
	return t, nil
}

// Append adds the offset of the next sample.
// The table is unchanged if the offset does not fit ctts.
func (t *CompositionTable) Append(offset int64) error {
	if err := CheckOffset(offset); err != nil {
		return err
	}
	t.appendRun(Run{Count: 1, Value: offset})
	return nil
}

// Len returns the number of samples.
func (t *CompositionTable) Len() int {
	return t.total
}

// At returns the offset of sample.
func (t *CompositionTable) At(sample int) (int64, bool) {
	return t.at(sample)
}

// Relative returns the offset of sample minus the offset of sample 0,
// so that the first sample of the stream is presented at zero.
func (t *CompositionTable) Relative(sample int) (int64, bool) {
	offset, ok := t.at(sample)
	if !ok {
		return 0, false
	}
	base, _ := t.at(0)
	return offset - base, true
}

// Runs returns a copy of the runs.
func (t *CompositionTable) Runs() []Run {
	return t.copyRuns()
}

// Ctts returns the table as a version 1 ctts box.
func (t *CompositionTable) Ctts() *mp4.Ctts {
	entries := make([]mp4.CttsEntry, len(t.runs))
	for i, run := range t.runs {
		entries[i] = mp4.CttsEntry{
			SampleCount:  run.Count,
			SampleOffset: int32(run.Value),
		}
	}
	return &mp4.Ctts{
		FullBox: mp4.FullBox{Version: 1},
		Entries: entries,
	}
}

// CompositionTableFromCtts creates a table from a ctts box.
func CompositionTableFromCtts(ctts *mp4.Ctts) *CompositionTable {
	t := &CompositionTable{}
	for _, entry := range ctts.Entries {
		t.appendRun(Run{
			Count: entry.SampleCount,
			Value: int64(entry.SampleOffset),
		})
	}
	return t
}
