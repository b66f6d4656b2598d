package audio

import "encoding/binary"

// bitsPerSample is fixed at 16 for the signed little-endian PCM produced by
// μ-law expansion.
const bitsPerSample = 16

// wavHeaderSize is the byte length of a canonical RIFF/WAV header with a
// single PCM fmt sub-chunk.
const wavHeaderSize = 44

// MuLawToWAV expands 8-bit μ-law samples to linear PCM and wraps them in a
// mono 16-bit WAV container at the given sample rate. The result is suitable
// for direct inclusion in a multipart file upload.
func MuLawToWAV(samples []byte, sampleRate int) []byte {
	return EncodeWAV(DecodeMuLaw(samples), sampleRate)
}

// EncodeWAV wraps raw 16-bit signed little-endian mono PCM data in a
// standard RIFF/WAV container. No external dependencies are required.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	byteRate := sampleRate * bitsPerSample / 8
	blockAlign := bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, wavHeaderSize+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1)                  // num channels: mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)      // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
