// Package audio holds the in-memory waveform and the loudness and silence analysis run on it.
package audio

import (
	"math"
	"time"
)

// Waveform is a decoded mono PCM signal.
type Waveform struct {
	Samples    []int32
	SampleRate int
	BitDepth   int
}

// NewWaveform returns a waveform over samples.
func NewWaveform(samples []int32, sampleRate, bitDepth int) *Waveform {
	return &Waveform{
		Samples:    samples,
		SampleRate: sampleRate,
		BitDepth:   bitDepth,
	}
}

// Frames returns the number of samples.
func (w *Waveform) Frames() int {
	return len(w.Samples)
}

// DurationMs returns the length in whole milliseconds, rounded to nearest.
func (w *Waveform) DurationMs() int {
	if w.SampleRate <= 0 {
		return 0
	}
	return int(math.Round(1000 * float64(len(w.Samples)) / float64(w.SampleRate)))
}

// Duration returns the length as a time.Duration at millisecond resolution.
func (w *Waveform) Duration() time.Duration {
	return time.Duration(w.DurationMs()) * time.Millisecond
}

// MaxAmplitude returns the largest magnitude a sample can hold at the analysis resolution.
func (w *Waveform) MaxAmplitude() float64 {
	return float64(int64(1) << (analysisBits(w.BitDepth) - 1))
}

// RMS returns the root mean square of the whole signal at the analysis resolution.
func (w *Waveform) RMS() float64 {
	if len(w.Samples) == 0 {
		return 0
	}
	shift := analysisShift(w.BitDepth)
	var sum uint64
	for _, s := range w.Samples {
		v := int64(s) >> shift
		sum += uint64(v * v)
	}
	return math.Sqrt(float64(sum) / float64(len(w.Samples)))
}

// DBFS returns the loudness relative to full scale. Silence is -Inf.
func (w *Waveform) DBFS() float64 {
	rms := w.RMS()
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/w.MaxAmplitude())
}

// frameAt converts a millisecond offset to a sample index, clamped to the signal.
func (w *Waveform) frameAt(ms int) int {
	if ms <= 0 {
		return 0
	}
	frame := int(int64(ms) * int64(w.SampleRate) / 1000)
	if frame > len(w.Samples) {
		return len(w.Samples)
	}
	return frame
}

// Slice returns the part of the signal between start and end. The samples are shared.
func (w *Waveform) Slice(start, end time.Duration) *Waveform {
	from := w.frameAt(int(start.Milliseconds()))
	to := w.frameAt(int(end.Milliseconds()))
	if to < from {
		to = from
	}
	return NewWaveform(w.Samples[from:to], w.SampleRate, w.BitDepth)
}

// DBToRatio converts a decibel value to an amplitude ratio.
func DBToRatio(db float64) float64 {
	return math.Pow(10, db/20)
}

// Energy sums are accumulated in uint64, so samples wider than 16 bits are
// reduced to 16-bit resolution before squaring.
func analysisBits(bitDepth int) int {
	if bitDepth <= 0 || bitDepth > 16 {
		return 16
	}
	return bitDepth
}

func analysisShift(bitDepth int) uint {
	if bitDepth <= 16 {
		return 0
	}
	return uint(bitDepth - 16)
}
