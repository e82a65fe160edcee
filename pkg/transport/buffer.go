package transport

// buffer accumulates raw link bytes between frame drains. It keeps an
// explicit consumed-offset cursor so draining a frame does not reallocate,
// and compacts lazily once the consumed prefix dominates the backing array.
// A buffer belongs to exactly one link session and is never shared.
type buffer struct {
	data []byte
	off  int
}

// append adds a received chunk.
func (b *buffer) append(chunk []byte) {
	if b.off > 0 && (b.off >= len(b.data) || b.off > cap(b.data)/2) {
		n := copy(b.data, b.data[b.off:])
		b.data = b.data[:n]
		b.off = 0
	}
	b.data = append(b.data, chunk...)
}

// bytes returns the unconsumed portion.
func (b *buffer) bytes() []byte {
	return b.data[b.off:]
}

// consumeTo advances the cursor so that rest is what remains. rest must be
// a tail of the slice last returned by bytes.
func (b *buffer) consumeTo(rest []byte) {
	b.off = len(b.data) - len(rest)
}

// reset discards everything, for reuse across a reconnect.
func (b *buffer) reset() {
	b.data = b.data[:0]
	b.off = 0
}

// len returns the number of unconsumed bytes.
func (b *buffer) len() int {
	return len(b.data) - b.off
}
