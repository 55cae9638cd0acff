package audio

// Resample converts samples from srcRate to dstRate by linear interpolation.
// The result never aliases the input.
func Resample(samples []float64, srcRate, dstRate int) []float64 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 {
		out := make([]float64, len(samples))
		copy(out, samples)

		return out
	}

	ratio := float64(srcRate) / float64(dstRate)
	resampled := make([]float64, resampledLength(len(samples), srcRate, dstRate))

	for i := range resampled {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		switch {
		case srcIdx+1 < len(samples):
			resampled[i] = samples[srcIdx]*(1-frac) + samples[srcIdx+1]*frac
		case srcIdx < len(samples):
			resampled[i] = samples[srcIdx]
		}
	}

	return resampled
}

func resampledLength(n, srcRate, dstRate int) int {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 {
		return n
	}

	return int(int64(n) * int64(dstRate) / int64(srcRate))
}

// downmix averages interleaved channels into mono.
func downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	mono := make([]float64, frames)

	for i := range mono {
		var sum float64
		for ch := range channels {
			sum += interleaved[i*channels+ch]
		}

		mono[i] = sum / float64(channels)
	}

	return mono
}
