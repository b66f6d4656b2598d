package audio

// ThresholdBytes converts a buffer duration in seconds to a μ-law byte
// count at the given sample rate. 8-bit μ-law carries one byte per sample,
// so at the telephony rate of 8 kHz one second of audio is 8000 bytes.
func ThresholdBytes(bufferSeconds float64, sampleRate int) int {
	return int(bufferSeconds * float64(sampleRate))
}

// Buffer accumulates raw μ-law bytes for one stream and reports readiness
// against a byte threshold. It is not safe for concurrent use; callers hold
// their own per-stream lock (create one Buffer per stream).
type Buffer struct {
	data      []byte
	threshold int
}

// NewBuffer creates a Buffer that reports ready once thresholdBytes have
// accumulated.
func NewBuffer(thresholdBytes int) *Buffer {
	return &Buffer{threshold: thresholdBytes}
}

// Append adds a chunk to the buffer.
func (b *Buffer) Append(chunk []byte) {
	b.data = append(b.data, chunk...)
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// DrainIfReady returns the entire buffered content and empties the buffer
// when at least the threshold has accumulated. Otherwise it returns
// (nil, false) and leaves the buffer untouched.
func (b *Buffer) DrainIfReady() ([]byte, bool) {
	if len(b.data) < b.threshold {
		return nil, false
	}
	return b.DrainForce(), true
}

// DrainForce returns all buffered content unconditionally and empties the
// buffer. The returned slice may be empty.
func (b *Buffer) DrainForce() []byte {
	out := b.data
	b.data = nil
	return out
}
