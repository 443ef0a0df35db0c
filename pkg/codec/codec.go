// Package codec defines the contract between the engine and codec plugins.
//
// A plugin implements Codec and any subset of the optional capability
// interfaces. A missing capability means the engine uses its built-in
// framing, it is never an error.
package codec

import (
	"io"

	"mediamux/pkg/compression"
	"mediamux/pkg/container"
	"mediamux/pkg/packet"
)

// Codec is implemented by every plugin.
type Codec interface {
	Name() string
}

// PacketReader takes over framing and timestamping on the read side.
// ReadPacket returns io.EOF at the end of the stream.
type PacketReader interface {
	ReadPacket(p *packet.Packet) error
}

// PacketWriter takes over framing on the write side.
type PacketWriter interface {
	WritePacket(p *packet.Packet) error
}

// ParameterSetter accepts codec specific parameters.
type ParameterSetter interface {
	SetParameter(key string, value string) error
}

// CompressedInitializer is called once when a compressed track is
// created so the codec can negotiate decoder setup, the global header
// is pushed with d.SetHeader.
type CompressedInitializer interface {
	InitCompressed(d *compression.Descriptor) error
}

// CompressionSource reports the compression produced by the codec.
type CompressionSource interface {
	CompressionID() compression.ID
}

// CompressedWriteChecker reports if already compressed packets
// described by d can be written into container type ct.
type CompressedWriteChecker interface {
	WritesCompressed(ct container.Type, d *compression.Descriptor) bool
}

// Capabilities bit set.
type Capabilities uint8

// Capabilities.
const (
	CapReadPacket Capabilities = 1 << iota
	CapWritePacket
	CapSetParameter
	CapInitCompressed
	CapCompressionID
	CapWritesCompressed
	CapClose
)

var capNames = []string{
	"read_packet",
	"write_packet",
	"set_parameter",
	"init_compressed",
	"compression_id",
	"writes_compressed",
	"close",
}

// Has reports whether all bits in flag are set.
func (c Capabilities) Has(flag Capabilities) bool {
	return c&flag == flag
}

// Strings returns the names of the set capabilities.
func (c Capabilities) Strings() []string {
	var names []string
	for i, name := range capNames {
		if c.Has(1 << uint(i)) {
			names = append(names, name)
		}
	}
	return names
}

// Binding is a codec with its capabilities resolved once.
type Binding struct {
	codec Codec
	caps  Capabilities

	reader      PacketReader
	writer      PacketWriter
	setter      ParameterSetter
	initializer CompressedInitializer
	source      CompressionSource
	checker     CompressedWriteChecker
	closer      io.Closer
}

// Bind queries the capabilities of c. A nil codec has none.
func Bind(c Codec) *Binding {
	b := &Binding{codec: c}
	if c == nil {
		return b
	}
	if v, ok := c.(PacketReader); ok {
		b.reader = v
		b.caps |= CapReadPacket
	}
	if v, ok := c.(PacketWriter); ok {
		b.writer = v
		b.caps |= CapWritePacket
	}
	if v, ok := c.(ParameterSetter); ok {
		b.setter = v
		b.caps |= CapSetParameter
	}
	if v, ok := c.(CompressedInitializer); ok {
		b.initializer = v
		b.caps |= CapInitCompressed
	}
	if v, ok := c.(CompressionSource); ok {
		b.source = v
		b.caps |= CapCompressionID
	}
	if v, ok := c.(CompressedWriteChecker); ok {
		b.checker = v
		b.caps |= CapWritesCompressed
	}
	if v, ok := c.(io.Closer); ok {
		b.closer = v
		b.caps |= CapClose
	}
	return b
}

// Name returns the codec name, "none" when unbound.
func (b *Binding) Name() string {
	if b.codec == nil {
		return "none"
	}
	return b.codec.Name()
}

// Codec returns the bound codec.
func (b *Binding) Codec() Codec {
	return b.codec
}

// Capabilities returns the capability set.
func (b *Binding) Capabilities() Capabilities {
	return b.caps
}

// Has reports if the codec has flag.
func (b *Binding) Has(flag Capabilities) bool {
	return b.caps.Has(flag)
}

// The methods below must only be called
// after checking the matching capability.

// ReadPacket calls the codec's ReadPacket.
func (b *Binding) ReadPacket(p *packet.Packet) error {
	return b.reader.ReadPacket(p)
}

// WritePacket calls the codec's WritePacket.
func (b *Binding) WritePacket(p *packet.Packet) error {
	return b.writer.WritePacket(p)
}

// SetParameter calls the codec's SetParameter.
func (b *Binding) SetParameter(key, value string) error {
	return b.setter.SetParameter(key, value)
}

// InitCompressed calls the codec's InitCompressed.
func (b *Binding) InitCompressed(d *compression.Descriptor) error {
	return b.initializer.InitCompressed(d)
}

// Close closes the codec if it has CapClose.
func (b *Binding) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// WritesCompressed reports if the bound codec can write
// packets compressed as d into ct without re-encoding.
func (b *Binding) WritesCompressed(ct container.Type, d *compression.Descriptor) bool {
	if !b.Has(CapCompressionID) || d == nil {
		return false
	}
	if b.source.CompressionID() != d.ID {
		return false
	}
	if !b.Has(CapWritesCompressed) {
		return true
	}
	return b.checker.WritesCompressed(ct, d)
}

// WritesCompressed reports if candidate can write packets
// compressed as d into ct without re-encoding.
func WritesCompressed(ct container.Type, d *compression.Descriptor, candidate Codec) bool {
	return Bind(candidate).WritesCompressed(ct, d)
}

// FindCompressedWriter returns the first candidate that can
// write packets compressed as d into ct.
func FindCompressedWriter(ct container.Type, d *compression.Descriptor, candidates []Codec) (Codec, bool) {
	for _, c := range candidates {
		if WritesCompressed(ct, d, c) {
			return c, true
		}
	}
	return nil, false
}
