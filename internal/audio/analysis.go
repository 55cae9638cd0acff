package audio

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	analysisFrameSize = 2048
	analysisHopSize   = 512
	analysisBands     = 13
	rolloffFraction   = 0.85
	logFloor          = 1e-10
	hzPerKHz          = 1000.0
)

// Similarity rating thresholds.
const (
	RATING_EXCELLENT_THRESHOLD = 0.8
	RATING_GOOD_THRESHOLD      = 0.6
)

// Rating labels.
const (
	RatingExcellent        = "Excellent"
	RatingGood             = "Good"
	RatingNeedsImprovement = "Needs improvement"
)

// Stats summarizes a waveform.
type Stats struct {
	Mean             float64 `json:"mean"`
	Std              float64 `json:"std"`
	Min              float64 `json:"min"`
	Max              float64 `json:"max"`
	RMS              float64 `json:"rms"`
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`
	DurationSeconds  float64 `json:"duration_seconds"`
	SampleRate       int     `json:"sample_rate"`
}

// Analyze computes summary statistics of the waveform.
func Analyze(waveform Waveform) (Stats, error) {
	samples := waveform.Samples
	if len(samples) == 0 {
		return Stats{}, ErrEmptyAudio
	}

	stats := Stats{
		Mean:             stat.Mean(samples, nil),
		Min:              floats.Min(samples),
		Max:              floats.Max(samples),
		RMS:              RMS(samples),
		ZeroCrossingRate: zeroCrossingRate(samples),
		DurationSeconds:  waveform.Seconds(),
		SampleRate:       waveform.SampleRate,
	}

	if len(samples) > 1 {
		_, stats.Std = stat.PopMeanStdDev(samples, nil)
	}

	return stats, nil
}

// zeroCrossingRate is mean(|diff(sign(x))|) / 2.
func zeroCrossingRate(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}

	var total float64
	for i := 1; i < len(samples); i++ {
		total += math.Abs(sign(samples[i]) - sign(samples[i-1]))
	}

	return total / float64(len(samples)-1) / 2
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// SpectralFeatures returns 13 log mel-band energies followed by the mean
// spectral centroid and rolloff in kHz.
func SpectralFeatures(waveform Waveform) ([]float64, error) {
	if len(waveform.Samples) == 0 || waveform.SampleRate <= 0 {
		return nil, ErrEmptyAudio
	}

	samples := waveform.Samples
	if len(samples) < analysisFrameSize {
		padded := make([]float64, analysisFrameSize)
		copy(padded, samples)
		samples = padded
	}

	fft := fourier.NewFFT(analysisFrameSize)
	window := hannWindow(analysisFrameSize)
	edges := melBandEdges(analysisBands, analysisFrameSize, waveform.SampleRate)
	binHz := float64(waveform.SampleRate) / analysisFrameSize

	bands := make([]float64, analysisBands)
	frame := make([]float64, analysisFrameSize)
	power := make([]float64, analysisFrameSize/2+1)

	var (
		coeffs      []complex128
		centroidSum float64
		rolloffSum  float64
		frames      int
	)

	for start := 0; start+analysisFrameSize <= len(samples); start += analysisHopSize {
		for i := range frame {
			frame[i] = samples[start+i] * window[i]
		}

		coeffs = fft.Coefficients(coeffs, frame)

		var magSum, weighted float64
		for i, c := range coeffs {
			mag := math.Hypot(real(c), imag(c))
			power[i] = mag * mag
			magSum += mag
			weighted += float64(i) * binHz * mag
		}

		if magSum > 0 {
			centroidSum += weighted / magSum
		}

		rolloffSum += rolloffFrequency(power, binHz)

		for b := range bands {
			bands[b] += floats.Sum(power[edges[b]:edges[b+1]])
		}

		frames++
	}

	features := make([]float64, 0, analysisBands+2)
	for _, energy := range bands {
		features = append(features, math.Log10(energy/float64(frames)+logFloor))
	}

	features = append(features,
		centroidSum/float64(frames)/hzPerKHz,
		rolloffSum/float64(frames)/hzPerKHz,
	)

	return features, nil
}

func rolloffFrequency(power []float64, binHz float64) float64 {
	total := floats.Sum(power)
	if total == 0 {
		return 0
	}

	threshold := rolloffFraction * total

	var cumulative float64
	for i, p := range power {
		cumulative += p
		if cumulative >= threshold {
			return float64(i) * binHz
		}
	}

	return float64(len(power)-1) * binHz
}

func hannWindow(size int) []float64 {
	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}

	return window
}

// melBandEdges returns bands+1 strictly increasing FFT bin indices spaced
// evenly on the mel scale between 0 Hz and Nyquist.
func melBandEdges(bands, frameSize, sampleRate int) []int {
	bins := frameSize/2 + 1
	maxMel := hzToMel(float64(sampleRate) / 2)
	edges := make([]int, bands+1)

	for i := range edges {
		hz := melToHz(maxMel * float64(i) / float64(bands))
		edges[i] = int(math.Round(hz * float64(frameSize) / float64(sampleRate)))

		if i > 0 && edges[i] <= edges[i-1] {
			edges[i] = edges[i-1] + 1
		}
	}

	edges[bands] = bins
	if edges[bands] <= edges[bands-1] {
		edges[bands-1] = edges[bands] - 1
	}

	return edges
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector is zero or the lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)

	if normA == 0 || normB == 0 {
		return 0
	}

	return floats.Dot(a, b) / (normA * normB)
}

// Similarity compares the spectral features of two recordings. The candidate
// is resampled to the reference rate first.
func Similarity(reference, candidate Waveform) (float64, error) {
	aligned := Waveform{
		Samples:    Resample(candidate.Samples, candidate.SampleRate, reference.SampleRate),
		SampleRate: reference.SampleRate,
	}

	refFeatures, err := SpectralFeatures(reference)
	if err != nil {
		return 0, err
	}

	candFeatures, err := SpectralFeatures(aligned)
	if err != nil {
		return 0, err
	}

	return CosineSimilarity(refFeatures, candFeatures), nil
}

// Rate maps a similarity score to a quality label.
func Rate(similarity float64) string {
	switch {
	case similarity > RATING_EXCELLENT_THRESHOLD:
		return RatingExcellent
	case similarity > RATING_GOOD_THRESHOLD:
		return RatingGood
	default:
		return RatingNeedsImprovement
	}
}
