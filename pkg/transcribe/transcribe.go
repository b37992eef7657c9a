package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"wallebot/pkg/config"
)

const defaultTranscribeModel = "whisper-1"

// ErrTranscriptionFailed marks a decode error or empty model output. Callers
// treat it as an empty transcription rather than aborting the whole turn.
var ErrTranscriptionFailed = errors.New("transcription failed")

// Transcriber converts voice payloads to text through the OpenAI speech API.
//
// Containers the model cannot take directly are re-encoded to mono 16 kHz
// WAV first; ogg/opus streams are forwarded as-is since the hosted model
// accepts them natively.
type Transcriber struct {
	client         osdk.Client
	model          string
	requestTimeout time.Duration
	log            *slog.Logger
}

func New(cfg config.OpenAIConfig, log *slog.Logger) (*Transcriber, error) {
	apiKey := resolveAPIKey(cfg)
	if apiKey == "" {
		return nil, errors.New("openai.api_key_env is required or OPENAI_API_KEY must be set")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	requestTimeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(requestTimeout))
	}

	model := strings.TrimSpace(cfg.TranscribeModel)
	if model == "" {
		model = defaultTranscribeModel
	}

	if log == nil {
		log = slog.Default()
	}

	return &Transcriber{
		client:         osdk.NewClient(opts...),
		model:          model,
		requestTimeout: requestTimeout,
		log:            log.With("component", "transcribe"),
	}, nil
}

// Transcribe converts one audio payload to trimmed text.
//
// Pure from the caller's perspective: no state survives the call, including
// any temporary decoded artifact.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, formatHint string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio payload", ErrTranscriptionFailed)
	}

	log := t.log.With("operation", "transcribe")
	startedAt := time.Now()
	log.Debug("transcription started", "bytes", len(audio), "hint", formatHint)

	payload, filename, err := t.prepare(audio, formatHint)
	if err != nil {
		log.Debug("transcription failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	transcription, err := t.client.Audio.Transcriptions.New(ctx, osdk.AudioTranscriptionNewParams{
		Model: osdk.AudioModel(t.model),
		File:  osdk.File(bytes.NewReader(payload), filename, contentTypeFor(filename)),
	})
	if err != nil {
		log.Debug("transcription failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}

	text := strings.TrimSpace(transcription.Text)
	if text == "" {
		log.Debug("transcription failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "empty model output")
		return "", fmt.Errorf("%w: model returned no text", ErrTranscriptionFailed)
	}

	log.Debug("transcription completed", "duration_ms", time.Since(startedAt).Milliseconds(), "text_length", len(text))
	return text, nil
}

// prepare normalizes the payload for the speech model. Vorbis, mp3 and wav
// streams are decoded and re-encoded to mono 16 kHz WAV deterministically;
// an ogg stream that is not vorbis (Telegram sends opus) is passed through
// untouched because the model accepts the container directly.
func (t *Transcriber) prepare(audio []byte, formatHint string) ([]byte, string, error) {
	samples, err := decodeToPCM16k(audio, formatHint)
	if err != nil {
		if normalizeHint(audio, formatHint) == "ogg" {
			t.log.Debug("forwarding non-vorbis ogg stream without re-encode", "error", err)
			return audio, "voice.ogg", nil
		}
		return nil, "", err
	}

	wavBytes, err := encodeWAV(samples)
	if err != nil {
		return nil, "", err
	}

	return wavBytes, "voice.wav", nil
}

func contentTypeFor(filename string) string {
	if strings.HasSuffix(filename, ".ogg") {
		return "audio/ogg"
	}
	return "audio/wav"
}

func (t *Transcriber) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.requestTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, t.requestTimeout)
}

func resolveAPIKey(cfg config.OpenAIConfig) string {
	if apiKeyEnv := strings.TrimSpace(cfg.APIKeyEnv); apiKeyEnv != "" {
		if apiKey := strings.TrimSpace(os.Getenv(apiKeyEnv)); apiKey != "" {
			return apiKey
		}
	}

	return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
}
