package engine

import (
	"errors"
	"fmt"
)

// Stream selects the track to service next.
type Stream uint8

// Streams.
const (
	StreamVideo Stream = iota
	StreamAudio
)

func (s Stream) String() string {
	if s == StreamAudio {
		return "audio"
	}
	return "video"
}

// ErrInvalidTimebase the sample rate or timescale is not positive.
var ErrInvalidTimebase = errors.New("invalid timebase")

// Interleaver decides which of two write tracks to service next
// so that their presentation times advance together.
//
// The open VBR audio chunk is flushed whenever servicing switches
// from audio to video, so each audio chunk covers the time between
// two video frames.
type Interleaver struct {
	audio *AudioTrack
	video *VideoTrack

	audioRate int64
	timescale int64

	last Stream
}

// NewInterleaver returns an interleaver for two write tracks.
func NewInterleaver(audio *AudioTrack, video *VideoTrack) (*Interleaver, error) {
	if audio.Direction() != DirectionWrite || video.Direction() != DirectionWrite {
		return nil, fmt.Errorf("%w: interleaver needs write tracks", ErrWrongDirection)
	}

	audioRate := int64(audio.positionRate())
	timescale := int64(video.Timescale())
	if audioRate <= 0 || timescale <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d, timescale %d",
			ErrInvalidTimebase, audioRate, timescale)
	}

	return &Interleaver{
		audio:     audio,
		video:     video,
		audioRate: audioRate,
		timescale: timescale,
		last:      StreamVideo,
	}, nil
}

// Next returns the stream that is behind in presentation time,
// video when both are equal.
func (i *Interleaver) Next() (Stream, error) {
	// audio.position / audioRate < video.accumulator / timescale
	audioBehind := i.audio.Position()*i.timescale < i.video.Accumulator()*i.audioRate

	next := StreamVideo
	if audioBehind {
		next = StreamAudio
	}

	if i.last == StreamAudio && next == StreamVideo {
		if err := i.audio.FlushChunk(); err != nil {
			return 0, err
		}
	}
	i.last = next
	return next, nil
}
