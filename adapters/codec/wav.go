package codec

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/JaymarM28/kari-transcriptor/domain"
	"github.com/JaymarM28/kari-transcriptor/internal/audio"
)

const (
	outputBitDepth = 16
	wavFormatPCM   = 1
	monoChannels   = 1
)

// Load decodes a PCM WAV file, down-mixing to mono and requantizing to 16 bits.
func (c *Codec) Load(path string) (*audio.Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ConversionError{Stage: "loading", Message: "failed to open audio", Err: err}
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, &domain.ConversionError{Stage: "loading", Message: "not a valid PCM WAV file"}
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, &domain.ConversionError{Stage: "loading", Message: "failed to decode WAV", Err: err}
	}

	channels := int(decoder.NumChans)
	if channels <= 0 {
		return nil, &domain.ConversionError{Stage: "loading", Message: "WAV file declares no channels"}
	}

	samples := downmix(buf.Data, channels, int(decoder.BitDepth))
	return audio.NewWaveform(samples, int(decoder.SampleRate), outputBitDepth), nil
}

// Export writes the waveform as mono 16-bit PCM WAV at path.
func (c *Codec) Export(w *audio.Waveform, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create segment file: %w", err)
	}

	encoder := wav.NewEncoder(f, w.SampleRate, outputBitDepth, monoChannels, wavFormatPCM)
	data := make([]int, len(w.Samples))
	shift := w.BitDepth - outputBitDepth
	for i, s := range w.Samples {
		data[i] = int(requantize(int64(s), shift))
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: monoChannels, SampleRate: w.SampleRate},
		Data:           data,
		SourceBitDepth: outputBitDepth,
	}
	if err := encoder.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode segment: %w", err)
	}
	if err := encoder.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finalize segment: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close segment file: %w", err)
	}
	return nil
}

// downmix averages interleaved frames into one channel at 16-bit resolution.
func downmix(data []int, channels, bitDepth int) []int32 {
	frames := len(data) / channels
	out := make([]int32, frames)
	shift := bitDepth - outputBitDepth
	for i := 0; i < frames; i++ {
		var sum int64
		for ch := 0; ch < channels; ch++ {
			v := int64(data[i*channels+ch])
			if bitDepth == 8 {
				// 8-bit PCM is unsigned
				v -= 128
			}
			sum += v
		}
		out[i] = int32(requantize(sum/int64(channels), shift))
	}
	return out
}

// requantize moves a sample by shift bits toward the 16-bit range.
func requantize(v int64, shift int) int64 {
	switch {
	case shift > 0:
		return v >> uint(shift)
	case shift < 0:
		return v << uint(-shift)
	default:
		return v
	}
}
