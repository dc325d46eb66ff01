package stt

import (
	"context"

	"go.uber.org/zap"

	"github.com/JaymarM28/kari-transcriptor/domain"
	"github.com/JaymarM28/kari-transcriptor/domain/repositories"
)

// minSpeechBytes is roughly 30 ms of 16 kHz 16-bit audio plus the WAV header.
const minSpeechBytes = 1000

// MockSpeechToText is a deterministic recognizer for local development
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	s.logger.Info("Processing speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Mock transcription based on audio size
	switch {
	case len(audioData) > 500000:
		return "Hola, esta es una transcripción de prueba de un fragmento largo.", nil
	case len(audioData) > 100000:
		return "Gracias por escuchar.", nil
	case len(audioData) > minSpeechBytes:
		return "Hola.", nil
	default:
		return "", domain.ErrNoSpeechDetected
	}
}
