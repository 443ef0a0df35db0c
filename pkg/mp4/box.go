// Package mp4 marshals the ISOBMFF sample table boxes
// produced by the engine.
package mp4

import (
	"io"

	"github.com/icza/bitio"
)

// BoxType is mpeg box type.
type BoxType [4]byte

// String returns the four character code.
func (t BoxType) String() string {
	return string(t[:])
}

// ImmutableBox is common interface of box.
type ImmutableBox interface {
	// Type returns the BoxType.
	Type() BoxType

	// Size returns the marshaled size in bytes excluding the header.
	// The size must be known before marshaling
	// since the box header contains the size.
	Size() int

	// Marshal box to writer.
	Marshal(w *Writer) error
}

// Writer is a big endian writer with a sticky error.
type Writer struct {
	w *bitio.Writer

	// TryError holds the first error that occurred.
	TryError error
}

// NewWriter returns a new Writer.
func NewWriter(out io.Writer) *Writer {
	return &Writer{w: bitio.NewWriter(out)}
}

// TryWrite writes p unless a previous write failed.
func (w *Writer) TryWrite(p []byte) {
	if w.TryError == nil {
		_, w.TryError = w.w.Write(p)
	}
}

// TryWriteByte writes 1 byte unless a previous write failed.
func (w *Writer) TryWriteByte(b byte) {
	if w.TryError == nil {
		w.TryError = w.w.WriteByte(b)
	}
}

// TryWriteUint32 writes 32 bits unless a previous write failed.
func (w *Writer) TryWriteUint32(v uint32) {
	if w.TryError == nil {
		w.TryError = w.w.WriteBits(uint64(v), 32)
	}
}

// Close flushes cached bits, it does not close the underlying writer.
func (w *Writer) Close() error {
	if w.TryError != nil {
		return w.TryError
	}
	return w.w.Close()
}

// Boxes is a structure of boxes that can be marshaled together.
type Boxes struct {
	Box      ImmutableBox
	Children []Boxes
}

// Size returns the total size of the box including header and children.
func (b *Boxes) Size() int {
	total := b.Box.Size() + 8
	for _, child := range b.Children {
		total += child.Size()
	}
	return total
}

// Marshal box including children.
func (b *Boxes) Marshal(w *Writer) error {
	w.TryWriteUint32(uint32(b.Size()))
	typ := b.Box.Type()
	w.TryWrite(typ[:])
	if w.TryError != nil {
		return w.TryError
	}

	if err := b.Box.Marshal(w); err != nil {
		return err
	}

	for _, child := range b.Children {
		if err := child.Marshal(w); err != nil {
			return err
		}
	}
	return nil
}

// Child returns the first direct child of the given type.
func (b *Boxes) Child(typ BoxType) (ImmutableBox, bool) {
	for _, child := range b.Children {
		if child.Box.Type() == typ {
			return child.Box, true
		}
	}
	return nil, false
}

// Marshal writes the box tree to out.
func Marshal(out io.Writer, boxes Boxes) error {
	w := NewWriter(out)
	if err := boxes.Marshal(w); err != nil {
		return err
	}
	return w.Close()
}
