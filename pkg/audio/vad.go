package audio

// G.711 μ-law zero-level codes. A carrier sending comfort silence emits runs
// of these two byte values (0xFF is positive zero, 0x7F negative zero).
const (
	muLawSilencePos = 0xFF
	muLawSilenceNeg = 0x7F
)

// SilenceDetector classifies raw μ-law chunks as silent when the fraction of
// zero-level samples meets the configured threshold. It assumes unsigned
// μ-law per G.711; signed input would under-fire.
type SilenceDetector struct {
	// Threshold is the minimum fraction of silent samples, in [0.0, 1.0],
	// for the whole chunk to classify as silence. At 1.0 a single non-silent
	// sample defeats the classification; at 0.0 everything is silent.
	Threshold float64
}

// IsSilent reports whether the μ-law chunk is silence. An empty chunk is
// silent.
func (d SilenceDetector) IsSilent(samples []byte) bool {
	if len(samples) == 0 {
		return true
	}
	silent := 0
	for _, b := range samples {
		if b == muLawSilencePos || b == muLawSilenceNeg {
			silent++
		}
	}
	return float64(silent)/float64(len(samples)) >= d.Threshold
}
