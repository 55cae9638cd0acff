package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	shine "github.com/braheezy/shine-mp3/pkg/mp3"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/book-expert/voiceprep/internal/core"
)

const (
	outputBitDepth   = 16
	floatBitDepth    = 32
	pcm16Scale       = 32767.0
	pcm16Full        = 32768.0
	pcm8Midpoint     = 128.0
	goMP3Channels    = 2
	goMP3BytesPerPCM = 2
	dirPermissions   = 0o750
)

// WAV format tags.
const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

// Samples per channel in one shine pass: two granules for MPEG-1 rates and
// one for MPEG-2.
const (
	mpeg1PassSamples = 1152
	mpeg2PassSamples = 576
)

// ErrUnsupportedSampleRate is returned when MP3 output is requested at a rate
// the encoder does not support.
var ErrUnsupportedSampleRate = errors.New("unsupported MP3 sample rate")

// Decode reads an audio file into a mono waveform at its native rate.
func Decode(path string) (Waveform, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Waveform{}, core.MissingPrecondition(path, "")
		}

		return Waveform{}, fmt.Errorf("failed to open audio file %s: %w", path, err)
	}
	defer file.Close()

	switch FormatOf(path) {
	case FORMAT_WAV:
		return decodeWAV(file, path)
	case FORMAT_MP3:
		return decodeMP3(file, path)
	default:
		unsupported := fmt.Errorf(ERR_FMT_UNSUPPORTED_FORMAT, ErrUnsupportedFormat, filepath.Ext(path))

		return Waveform{}, fmt.Errorf("%w: %w", core.ErrDecode, unsupported)
	}
}

func decodeWAV(file *os.File, path string) (Waveform, error) {
	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return Waveform{}, fmt.Errorf("%w: %s is not a valid WAV file", core.ErrDecode, path)
	}

	bitDepth := int(decoder.BitDepth)
	isFloat := decoder.WavAudioFormat == wavFormatIEEEFloat

	switch {
	case isFloat && bitDepth == floatBitDepth:
	case decoder.WavAudioFormat == wavFormatPCM, decoder.WavAudioFormat == wavFormatExtensible:
		if bitDepth != 8 && bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
			return Waveform{}, fmt.Errorf("%w: %s: unsupported bit depth %d", core.ErrDecode, path, bitDepth)
		}
	default:
		unsupported := fmt.Errorf("%w: WAV format %d with %d-bit samples",
			ErrUnsupportedFormat, decoder.WavAudioFormat, bitDepth)

		return Waveform{}, fmt.Errorf("%w: %s: %w", core.ErrDecode, path, unsupported)
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		return Waveform{}, fmt.Errorf("%w: %s: no channels", core.ErrDecode, path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %s: %w", core.ErrDecode, path, err)
	}

	return Waveform{
		Samples:    downmix(pcmToFloat(buf.Data, bitDepth, isFloat), channels),
		SampleRate: int(decoder.SampleRate),
	}, nil
}

// pcmToFloat scales decoded samples into [-1, 1]. go-audio hands 32-bit
// samples over as the raw bits in an int32, which is how IEEE floats are
// recovered.
func pcmToFloat(data []int, bitDepth int, isFloat bool) []float64 {
	out := make([]float64, len(data))

	if isFloat {
		for i, v := range data {
			out[i] = float64(math.Float32frombits(uint32(int32(v))))
		}

		return out
	}

	offset := 0.0
	if bitDepth == 8 {
		// 8-bit WAV is unsigned.
		offset = pcm8Midpoint
	}

	scale := math.Exp2(float64(bitDepth - 1))
	for i, v := range data {
		out[i] = (float64(v) - offset) / scale
	}

	return out
}

// decodeMP3 relies on go-mp3 always producing 16-bit little-endian stereo.
func decodeMP3(file *os.File, path string) (Waveform, error) {
	decoder, err := gomp3.NewDecoder(file)
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %s: %w", core.ErrDecode, path, err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Waveform{}, fmt.Errorf("%w: %s: %w", core.ErrDecode, path, err)
	}

	count := len(pcm) / goMP3BytesPerPCM
	interleaved := make([]float64, count)

	for i := range interleaved {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*goMP3BytesPerPCM:]))
		interleaved[i] = float64(sample) / pcm16Full
	}

	return Waveform{
		Samples:    downmix(interleaved, goMP3Channels),
		SampleRate: decoder.SampleRate(),
	}, nil
}

// Encode writes the waveform as 16-bit mono in the container implied by path.
// MP3 output is padded with silence to a whole encoder pass, so it can run up
// to one pass (1152 samples at 32 kHz and above, 576 below) longer than the
// waveform.
func Encode(path string, waveform Waveform) error {
	format := FormatOf(path)
	if format != FORMAT_WAV && format != FORMAT_MP3 {
		return fmt.Errorf(ERR_FMT_UNSUPPORTED_FORMAT, ErrUnsupportedFormat, filepath.Ext(path))
	}

	if format == FORMAT_MP3 && mp3PassSamples(waveform.SampleRate) == 0 {
		return fmt.Errorf("%w: %d Hz", ErrUnsupportedSampleRate, waveform.SampleRate)
	}

	err := os.MkdirAll(filepath.Dir(path), dirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create audio file %s: %w", path, err)
	}

	if format == FORMAT_MP3 {
		err = encodeMP3(file, waveform)
	} else {
		err = encodeWAV(file, waveform)
	}

	closeErr := file.Close()
	if err != nil {
		return err
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close audio file %s: %w", path, closeErr)
	}

	return nil
}

func encodeWAV(file *os.File, waveform Waveform) error {
	data := make([]int, len(waveform.Samples))
	for i, s := range waveform.Samples {
		data[i] = int(toPCM16(s))
	}

	encoder := wav.NewEncoder(file, waveform.SampleRate, outputBitDepth, 1, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: waveform.SampleRate, NumChannels: 1},
		SourceBitDepth: outputBitDepth,
	}

	err := encoder.Write(buf)
	if err != nil {
		return fmt.Errorf("failed to encode WAV: %w", err)
	}

	err = encoder.Close()
	if err != nil {
		return fmt.Errorf("failed to finalize WAV: %w", err)
	}

	return nil
}

// mp3PassSamples returns the samples per shine pass at rate, or 0 when the
// encoder does not support the rate. MPEG-2.5 rates are excluded because shine
// always encodes at 128 kbps, which that version cannot signal.
func mp3PassSamples(rate int) int {
	switch rate {
	case 32000, 44100, 48000:
		return mpeg1PassSamples
	case 16000, 22050, 24000:
		return mpeg2PassSamples
	default:
		return 0
	}
}

// encodeMP3 feeds shine one pass at a time. In mono mode its Write encodes only
// the first pass of the slice it is given.
func encodeMP3(file *os.File, waveform Waveform) error {
	passSamples := mp3PassSamples(waveform.SampleRate)
	passes := (len(waveform.Samples) + passSamples - 1) / passSamples

	pcm := make([]int16, passes*passSamples)
	for i, s := range waveform.Samples {
		pcm[i] = toPCM16(s)
	}

	encoder := shine.NewEncoder(waveform.SampleRate, 1)

	for start := 0; start < len(pcm); start += passSamples {
		err := encoder.Write(file, pcm[start:start+passSamples])
		if err != nil {
			return fmt.Errorf("failed to encode MP3: %w", err)
		}
	}

	return nil
}

func toPCM16(sample float64) int16 {
	clamped := math.Max(-1.0, math.Min(1.0, sample))

	return int16(clamped * pcm16Scale)
}
