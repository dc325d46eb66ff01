// Package codec converts uploaded media to the canonical WAV format and moves
// waveforms in and out of WAV files.
package codec

import (
	"os"

	"go.uber.org/zap"

	"github.com/JaymarM28/kari-transcriptor/domain/repositories"
)

var _ repositories.AudioCodec = (*Codec)(nil)

// Codec implements repositories.AudioCodec with ffmpeg for conversion and go-audio for WAV.
type Codec struct {
	ffmpegPath string
	runner     commandRunner
	stat       func(name string) (os.FileInfo, error)
	logger     *zap.Logger
}

// NewCodec creates a codec that shells out to the ffmpeg binary at ffmpegPath.
func NewCodec(ffmpegPath string, logger *zap.Logger) *Codec {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Codec{
		ffmpegPath: ffmpegPath,
		runner:     &execRunner{},
		stat:       statFile,
		logger:     logger,
	}
}
