// Package audio provides the telephony audio primitives for Callsight:
// the G.711 μ-law codec, WAV container framing, silence detection, and
// per-stream buffering.
//
// All PCM data in this package is 16-bit signed little-endian mono, the
// format carrier media arrives in after μ-law expansion and the format the
// transcription service consumes.
package audio

import "github.com/zaf/g711"

// DecodeMuLaw expands 8-bit G.711 μ-law samples into 16-bit signed
// little-endian linear PCM. The output carries two bytes per input sample.
func DecodeMuLaw(samples []byte) []byte {
	return g711.DecodeUlaw(samples)
}

// DecodeMuLawSample expands a single μ-law byte to its linear PCM value.
func DecodeMuLawSample(b byte) int16 {
	return g711.DecodeUlawFrame(b)
}

// EncodeMuLawSample compands a linear PCM sample to a single μ-law byte.
// Note that μ-law has two codes for zero (0xFF and 0x7F); the canonical
// encoding of silence is 0xFF.
func EncodeMuLawSample(s int16) byte {
	return g711.EncodeUlawFrame(s)
}
