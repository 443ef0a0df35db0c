// Package compression describes the compressed format of a track.
package compression

import (
	"fmt"
	"strings"
)

// Flags descriptor capability flags.
type Flags uint8

// Descriptor flags.
const (
	FlagHasPFrames Flags = 1 << iota
	FlagHasBFrames
	FlagSBR
)

// Has reports whether all bits in flag are set.
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// Descriptor describes the compressed format of a track.
// Populated fields are treated as read-only.
type Descriptor struct {
	ID    ID
	Flags Flags

	Bitrate int // Bits per second, 0 if unknown. Negative for VBR.

	// Audio.
	SampleRate int
	Channels   int

	// Video.
	Width       int
	Height      int
	PixelWidth  int
	PixelHeight int
	Colormodel  string

	// Codec specific global header, the AudioSpecificConfig for AAC
	// or the avcC payload for H.264.
	GlobalHeader []byte
}

// Copy returns a deep copy.
func (d *Descriptor) Copy() *Descriptor {
	c := *d
	if d.GlobalHeader != nil {
		c.GlobalHeader = make([]byte, len(d.GlobalHeader))
		copy(c.GlobalHeader, d.GlobalHeader)
	}
	return &c
}

// SetHeader replaces the global header with a copy of header.
func (d *Descriptor) SetHeader(header []byte) {
	if header == nil {
		d.GlobalHeader = nil
		return
	}
	d.GlobalHeader = make([]byte, len(header))
	copy(d.GlobalHeader, header)
}

// String returns a one line summary.
func (d *Descriptor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "codec: %v", d.ID)

	switch {
	case d.ID.IsAudio():
		fmt.Fprintf(&b, ", samplerate: %d, channels: %d", d.SampleRate, d.Channels)
		if d.Flags.Has(FlagSBR) {
			b.WriteString(", sbr")
		}
	case d.ID.IsVideo():
		fmt.Fprintf(&b, ", size: %dx%d", d.Width, d.Height)
		if d.PixelWidth != 0 && d.PixelHeight != 0 {
			fmt.Fprintf(&b, ", pixel aspect: %d:%d", d.PixelWidth, d.PixelHeight)
		}
		if d.Colormodel != "" {
			fmt.Fprintf(&b, ", colormodel: %s", d.Colormodel)
		}
		if d.Flags.Has(FlagHasBFrames) {
			b.WriteString(", frames: I+P+B")
		} else if d.Flags.Has(FlagHasPFrames) {
			b.WriteString(", frames: I+P")
		} else {
			b.WriteString(", frames: I")
		}
	}

	switch {
	case d.Bitrate > 0:
		fmt.Fprintf(&b, ", bitrate: %d", d.Bitrate)
	case d.Bitrate < 0:
		b.WriteString(", bitrate: vbr")
	}

	if len(d.GlobalHeader) != 0 {
		fmt.Fprintf(&b, ", global header: %d bytes", len(d.GlobalHeader))
	}
	return b.String()
}
