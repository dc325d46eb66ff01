package audio

// Range is a half-open span of a waveform in milliseconds.
type Range struct {
	Start int
	End   int
}

// SilenceOptions configures silence detection.
type SilenceOptions struct {
	// MinSilenceMs is the shortest run of quiet audio counted as silence.
	MinSilenceMs int
	// ThresholdDBFS is the level at or below which a window is quiet.
	ThresholdDBFS float64
	// KeepSilenceMs is the padding kept on each side of a split.
	KeepSilenceMs int
	// SeekStepMs is the stride of the sliding window.
	SeekStepMs int
}

// energyIndex holds cumulative squared amplitudes per millisecond so the
// energy of any millisecond-aligned window is two lookups away.
type energyIndex struct {
	energy []uint64
	frames []int
}

func newEnergyIndex(w *Waveform, lengthMs int) energyIndex {
	shift := analysisShift(w.BitDepth)
	idx := energyIndex{
		energy: make([]uint64, lengthMs+1),
		frames: make([]int, lengthMs+1),
	}
	var sum uint64
	frame := 0
	for ms := 1; ms <= lengthMs; ms++ {
		next := w.frameAt(ms)
		for ; frame < next; frame++ {
			v := int64(w.Samples[frame]) >> shift
			sum += uint64(v * v)
		}
		idx.energy[ms] = sum
		idx.frames[ms] = next
	}
	return idx
}

// quiet reports whether the window [from, to) has an RMS at or below threshold.
func (idx energyIndex) quiet(from, to int, threshold float64) bool {
	count := idx.frames[to] - idx.frames[from]
	if count == 0 {
		return true
	}
	meanSquare := float64(idx.energy[to]-idx.energy[from]) / float64(count)
	return meanSquare <= threshold*threshold
}

// DetectSilence returns the silent ranges of w.
func DetectSilence(w *Waveform, opts SilenceOptions) []Range {
	length := w.DurationMs()
	minSilence := opts.MinSilenceMs
	step := opts.SeekStepMs
	if step <= 0 {
		step = 1
	}
	if minSilence <= 0 || length < minSilence {
		return nil
	}

	threshold := DBToRatio(opts.ThresholdDBFS) * w.MaxAmplitude()
	idx := newEnergyIndex(w, length)

	lastStart := length - minSilence
	var starts []int
	for i := 0; i <= lastStart; i += step {
		if idx.quiet(i, i+minSilence, threshold) {
			starts = append(starts, i)
		}
	}
	if lastStart%step != 0 && idx.quiet(lastStart, length, threshold) {
		starts = append(starts, lastStart)
	}
	if len(starts) == 0 {
		return nil
	}

	var ranges []Range
	prev := starts[0]
	current := prev
	for _, start := range starts[1:] {
		continuous := start == prev+step
		hasGap := start > prev+minSilence
		if !continuous && hasGap {
			ranges = append(ranges, Range{Start: current, End: prev + minSilence})
			current = start
		}
		prev = start
	}
	ranges = append(ranges, Range{Start: current, End: prev + minSilence})
	return ranges
}

// DetectNonSilent returns the complement of DetectSilence over the waveform.
func DetectNonSilent(w *Waveform, opts SilenceOptions) []Range {
	length := w.DurationMs()
	silent := DetectSilence(w, opts)
	if len(silent) == 0 {
		return []Range{{Start: 0, End: length}}
	}
	if silent[0].Start == 0 && silent[0].End == length {
		return nil
	}

	var ranges []Range
	prevEnd := 0
	for _, r := range silent {
		ranges = append(ranges, Range{Start: prevEnd, End: r.Start})
		prevEnd = r.End
	}
	if silent[len(silent)-1].End != length {
		ranges = append(ranges, Range{Start: prevEnd, End: length})
	}
	if ranges[0].Start == 0 && ranges[0].End == 0 {
		ranges = ranges[1:]
	}
	return ranges
}

// SplitOnSilence returns the non-silent ranges of w padded by KeepSilenceMs.
// Padding never crosses the waveform bounds and overlapping neighbours meet at their midpoint.
func SplitOnSilence(w *Waveform, opts SilenceOptions) []Range {
	length := w.DurationMs()
	nonSilent := DetectNonSilent(w, opts)

	out := make([]Range, len(nonSilent))
	for i, r := range nonSilent {
		out[i] = Range{Start: r.Start - opts.KeepSilenceMs, End: r.End + opts.KeepSilenceMs}
	}
	for i := 0; i+1 < len(out); i++ {
		if out[i+1].Start < out[i].End {
			mid := floorDiv(out[i].End+out[i+1].Start, 2)
			out[i].End = mid
			out[i+1].Start = mid
		}
	}
	for i := range out {
		out[i].Start = max(out[i].Start, 0)
		out[i].End = min(out[i].End, length)
	}
	return out
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
