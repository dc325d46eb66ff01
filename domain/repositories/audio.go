package repositories

import (
	"context"

	"github.com/JaymarM28/kari-transcriptor/internal/audio"
)

// AudioCodec converts, decodes and encodes audio files
type AudioCodec interface {
	// Convert transcodes src into the canonical WAV format at dst.
	Convert(ctx context.Context, src, dst string) error
	// Load decodes a canonical WAV file into a mono waveform.
	Load(path string) (*audio.Waveform, error)
	// Export encodes the waveform as WAV at path.
	Export(w *audio.Waveform, path string) error
}
