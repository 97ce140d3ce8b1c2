package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// MaxInputRunes is the longest input the speech endpoint accepts.
const MaxInputRunes = 4096

const defaultVoice = "alloy"

// OpenAISynthesizer calls OpenAI's Audio Speech API and returns MP3 audio.
type OpenAISynthesizer struct {
	client openai.Client
	voice  string
}

func NewOpenAISynthesizer(apiKey, voice string, opts ...option.RequestOption) *OpenAISynthesizer {
	voice = strings.TrimSpace(voice)
	if voice == "" {
		voice = defaultVoice
	}

	return &OpenAISynthesizer{
		client: openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
		voice:  voice,
	}
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("input is empty")
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModelGPT4oMiniTTS,
		Voice:          openai.AudioSpeechNewParamsVoiceUnion{OfString: openai.String(s.voice)},
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	if len(audio) == 0 {
		return nil, errors.New("audio is empty")
	}

	return audio, nil
}
