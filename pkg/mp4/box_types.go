package mp4

/************************* FullBox **************************/

// FullBox is ISOBMFF FullBox.
type FullBox struct {
	Version uint8
	Flags   [3]byte
}

// MarshalField box to writer.
func (b *FullBox) MarshalField(w *Writer) error {
	w.TryWriteByte(b.Version)
	w.TryWrite(b.Flags[:])
	return w.TryError
}

/*************************** ctts ****************************/

// Ctts is ISOBMFF ctts box type.
// Version 1 offsets are signed.
type Ctts struct {
	FullBox
	Entries []CttsEntry
}

// CttsEntry .
type CttsEntry struct {
	SampleCount  uint32
	SampleOffset int32
}

// Type returns the BoxType.
func (*Ctts) Type() BoxType {
	return [4]byte{'c', 't', 't', 's'}
}

// Size returns the marshaled size in bytes.
func (b *Ctts) Size() int {
	return 8 + len(b.Entries)*8
}

// Marshal box to writer.
func (b *Ctts) Marshal(w *Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	w.TryWriteUint32(uint32(len(b.Entries)))
	for _, entry := range b.Entries {
		w.TryWriteUint32(entry.SampleCount)
		w.TryWriteUint32(uint32(entry.SampleOffset))
	}
	return w.TryError
}

/*************************** stbl ****************************/

// Stbl is ISOBMFF stbl box type.
type Stbl struct{}

// Type returns the BoxType.
func (*Stbl) Type() BoxType {
	return [4]byte{'s', 't', 'b', 'l'}
}

// Size returns the marshaled size in bytes.
func (*Stbl) Size() int {
	return 0
}

// Marshal is a no-op, stbl only has children.
func (*Stbl) Marshal(w *Writer) error { return nil }

/*************************** stco ****************************/

// Stco is ISOBMFF stco box type.
type Stco struct {
	FullBox
	ChunkOffsets []uint32
}

// Type returns the BoxType.
func (*Stco) Type() BoxType {
	return [4]byte{'s', 't', 'c', 'o'}
}

// Size returns the marshaled size in bytes.
func (b *Stco) Size() int {
	return 8 + len(b.ChunkOffsets)*4
}

// Marshal box to writer.
func (b *Stco) Marshal(w *Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	w.TryWriteUint32(uint32(len(b.ChunkOffsets)))
	for _, offset := range b.ChunkOffsets {
		w.TryWriteUint32(offset)
	}
	return w.TryError
}

/*************************** stsc ****************************/

// StscEntry .
type StscEntry struct {
	FirstChunk             uint32 // 1-based.
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}

// Stsc is ISOBMFF stsc box type.
type Stsc struct {
	FullBox
	Entries []StscEntry
}

// Type returns the BoxType.
func (*Stsc) Type() BoxType {
	return [4]byte{'s', 't', 's', 'c'}
}

// Size returns the marshaled size in bytes.
func (b *Stsc) Size() int {
	return 8 + len(b.Entries)*12
}

// Marshal box to writer.
func (b *Stsc) Marshal(w *Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	w.TryWriteUint32(uint32(len(b.Entries)))
	for _, entry := range b.Entries {
		w.TryWriteUint32(entry.FirstChunk)
		w.TryWriteUint32(entry.SamplesPerChunk)
		w.TryWriteUint32(entry.SampleDescriptionIndex)
	}
	return w.TryError
}

/*************************** stss ****************************/

// Stss is ISOBMFF stss box type.
type Stss struct {
	FullBox
	SampleNumbers []uint32 // 1-based.
}

// Type returns the BoxType.
func (*Stss) Type() BoxType {
	return [4]byte{'s', 't', 's', 's'}
}

// Size returns the marshaled size in bytes.
func (b *Stss) Size() int {
	return 8 + len(b.SampleNumbers)*4
}

// Marshal box to writer.
func (b *Stss) Marshal(w *Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	w.TryWriteUint32(uint32(len(b.SampleNumbers)))
	for _, number := range b.SampleNumbers {
		w.TryWriteUint32(number)
	}
	return w.TryError
}

/*************************** stsz ****************************/

// Stsz is ISOBMFF stsz box type.
// EntrySizes is empty when all samples have SampleSize.
type Stsz struct {
	FullBox
	SampleSize  uint32
	SampleCount uint32
	EntrySizes  []uint32
}

// Type returns the BoxType.
func (*Stsz) Type() BoxType {
	return [4]byte{'s', 't', 's', 'z'}
}

// Size returns the marshaled size in bytes.
func (b *Stsz) Size() int {
	return 12 + len(b.EntrySizes)*4
}

// Marshal box to writer.
func (b *Stsz) Marshal(w *Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	w.TryWriteUint32(b.SampleSize)
	w.TryWriteUint32(b.SampleCount)
	for _, size := range b.EntrySizes {
		w.TryWriteUint32(size)
	}
	return w.TryError
}

/*************************** stts ****************************/

// Stts is ISOBMFF stts box type.
type Stts struct {
	FullBox
	Entries []SttsEntry
}

// SttsEntry .
type SttsEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

// Type returns the BoxType.
func (*Stts) Type() BoxType {
	return [4]byte{'s', 't', 't', 's'}
}

// Size returns the marshaled size in bytes.
func (b *Stts) Size() int {
	return 8 + len(b.Entries)*8
}

// Marshal box to writer.
func (b *Stts) Marshal(w *Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	w.TryWriteUint32(uint32(len(b.Entries)))
	for _, entry := range b.Entries {
		w.TryWriteUint32(entry.SampleCount)
		w.TryWriteUint32(entry.SampleDelta)
	}
	return w.TryError
}
