// Package packet defines the reusable compressed packet buffer
// that flows between the engine and the container layer.
package packet

// Flags packet flags.
type Flags uint32

// Packet flags.
const (
	FlagKeyframe Flags = 1 << 0
)

// Has reports whether all bits in flag are set.
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// Extra bytes allocated on growth so that a stream of slightly
// increasing packet sizes does not reallocate on every call.
const slack = 1024

// Packet is a compressed audio or video packet.
//
// The underlying storage is owned by the packet and reused for
// every packet of a track. It is filled with SetData or Append.
type Packet struct {
	data   []byte // len(data) is the capacity.
	length int    // Bytes in use.

	Timestamp int64 // Presentation time in track timescale units.
	Duration  int64 // Track timescale units.
	Flags     Flags
}

// Capacity returns the number of allocated bytes.
func (p *Packet) Capacity() int {
	return len(p.data)
}

// EnsureCapacity grows the buffer to hold at least n bytes.
// The buffer is never shrunk and the bytes in use are preserved.
func (p *Packet) EnsureCapacity(n int) {
	if len(p.data) >= n {
		return
	}
	buf := make([]byte, n+slack)
	copy(buf, p.data[:p.length])
	p.data = buf
}

// Len returns the number of bytes in use.
func (p *Packet) Len() int {
	return p.length
}

// Bytes returns the bytes in use.
func (p *Packet) Bytes() []byte {
	return p.data[:p.length]
}

// SetData copies b into the packet.
func (p *Packet) SetData(b []byte) {
	p.EnsureCapacity(len(b))
	p.length = copy(p.data, b)
}

// Append appends b to the bytes in use.
func (p *Packet) Append(b []byte) {
	p.EnsureCapacity(p.length + len(b))
	p.length += copy(p.data[p.length:], b)
}

// Truncate limits the bytes in use to n.
func (p *Packet) Truncate(n int) {
	if n < p.length {
		p.length = n
	}
}

// IsKeyframe reports if the keyframe flag is set.
func (p *Packet) IsKeyframe() bool {
	return p.Flags.Has(FlagKeyframe)
}

// Reset clears length, timing and flags but keeps the storage.
func (p *Packet) Reset() {
	p.length = 0
	p.Timestamp = 0
	p.Duration = 0
	p.Flags = 0
}

// Release frees the underlying storage.
// It is safe to call on a packet that never allocated.
func (p *Packet) Release() {
	p.data = nil
	p.Reset()
}
