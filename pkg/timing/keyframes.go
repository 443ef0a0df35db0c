package timing

import (
	"sort"

	"mediamux/pkg/mp4"
)

// KeyframeIndex strictly increasing set of sync sample numbers, stss.
// Sample numbers are 0-based.
type KeyframeIndex struct {
	samples []int
}

// NewKeyframeIndex creates an index from sample numbers in any order.
func NewKeyframeIndex(samples ...int) *KeyframeIndex {
	k := &KeyframeIndex{}
	for _, s := range samples {
		k.Insert(s)
	}
	return k
}

// Insert adds sample, inserting an existing sample is a no-op.
func (k *KeyframeIndex) Insert(sample int) {
	n := len(k.samples)

	// Samples are almost always inserted in order.
	if n == 0 || k.samples[n-1] < sample {
		k.samples = append(k.samples, sample)
		return
	}

	i := sort.SearchInts(k.samples, sample)
	if k.samples[i] == sample {
		return
	}
	k.samples = append(k.samples, 0)
	copy(k.samples[i+1:], k.samples[i:])
	k.samples[i] = sample
}

// Contains reports if sample is a keyframe.
func (k *KeyframeIndex) Contains(sample int) bool {
	i := sort.SearchInts(k.samples, sample)
	return i < len(k.samples) && k.samples[i] == sample
}

// Len returns the number of keyframes.
func (k *KeyframeIndex) Len() int {
	return len(k.samples)
}

// Samples returns a copy of the sample numbers.
func (k *KeyframeIndex) Samples() []int {
	samples := make([]int, len(k.samples))
	copy(samples, k.samples)
	return samples
}

// Stss returns the index as a stss box with 1-based sample numbers.
func (k *KeyframeIndex) Stss() *mp4.Stss {
	numbers := make([]uint32, len(k.samples))
	for i, s := range k.samples {
		numbers[i] = uint32(s + 1)
	}
	return &mp4.Stss{SampleNumbers: numbers}
}

// KeyframeIndexFromStss creates an index from a stss box.
func KeyframeIndexFromStss(stss *mp4.Stss) *KeyframeIndex {
	k := &KeyframeIndex{}
	for _, number := range stss.SampleNumbers {
		if number == 0 {
			continue
		}
		k.Insert(int(number) - 1)
	}
	return k
}
