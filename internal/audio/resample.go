package audio

import "encoding/binary"

// Resample converts 16-bit little-endian mono PCM from srcRate to dstRate
// using linear interpolation. Invalid input (odd byte count, non-positive
// rates) yields an empty slice; callers treat an empty result as "skip this
// frame", never as stream termination.
func Resample(pcm []byte, srcRate, dstRate int) []byte {
	if len(pcm) == 0 || len(pcm)%2 != 0 || srcRate <= 0 || dstRate <= 0 {
		return nil
	}
	if srcRate == dstRate {
		out := make([]byte, len(pcm))
		copy(out, pcm)
		return out
	}

	samples := len(pcm) / 2
	outSamples := samples * dstRate / srcRate
	if outSamples == 0 {
		return nil
	}

	out := make([]byte, outSamples*2)
	ratio := float64(srcRate) / float64(dstRate)
	for i := 0; i < outSamples; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= samples-1 {
			idx = samples - 1
			copySample(out, i, sampleAt(pcm, idx))
			continue
		}
		frac := pos - float64(idx)
		a := float64(sampleAt(pcm, idx))
		b := float64(sampleAt(pcm, idx+1))
		copySample(out, i, int16(a+(b-a)*frac))
	}
	return out
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(pcm[i*2:]))
}

func copySample(out []byte, i int, v int16) {
	binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
}
