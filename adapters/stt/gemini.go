package stt

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/JaymarM28/kari-transcriptor/domain"
	"github.com/JaymarM28/kari-transcriptor/domain/repositories"
)

const (
	geminiService      = "gemini"
	defaultGeminiModel = "gemini-2.0-flash"
	noSpeechMarker     = "[NO_SPEECH]"
)

// contentGenerator is satisfied by genai's Models service.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiSpeechToText transcribes audio clips by prompting a Gemini model with the audio inline
type GeminiSpeechToText struct {
	models contentGenerator
	model  string
	logger *zap.Logger
}

// NewGeminiSpeechToText creates a new Gemini-backed recognizer
func NewGeminiSpeechToText(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiSpeechToText, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiSpeechToText{
		models: client.Models,
		model:  model,
		logger: logger,
	}, nil
}

// TranscribeAudio implements repositories.SpeechToText
func (g *GeminiSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(transcriptionPrompt(config.Language)),
			genai.NewPartFromBytes(audioData, mimeTypeFor(config.Encoding)),
		}, genai.RoleUser),
	}

	response, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		g.logger.Warn("Gemini transcription request failed", zap.Error(err))
		return "", &domain.ServiceError{Service: geminiService, Err: err}
	}

	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", &domain.ServiceError{Service: geminiService, Err: fmt.Errorf("no candidates in response")}
	}

	var responseText string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			responseText += part.Text
		}
	}

	text := strings.TrimSpace(responseText)
	if text == "" || strings.Contains(text, noSpeechMarker) {
		return "", domain.ErrNoSpeechDetected
	}
	return text, nil
}

func transcriptionPrompt(language string) string {
	return fmt.Sprintf("Transcribe the speech in this audio verbatim. The expected language is %s. "+
		"Reply with the transcription only, without timestamps or commentary. "+
		"If the audio contains no intelligible speech, reply with exactly %s.", language, noSpeechMarker)
}

func mimeTypeFor(encoding string) string {
	switch encoding {
	case "FLAC":
		return "audio/flac"
	case "OGG_OPUS":
		return "audio/ogg"
	default:
		return "audio/wav"
	}
}
