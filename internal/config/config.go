package config

import (
	"errors"
	"strings"
	"time"

	cenv "github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr           string
	HFBaseURL            string
	HFAPIToken           string
	ElevenLabsBaseURL    string
	ElevenLabsAPIKey     string
	SummarizationModel   string
	TextGenModel         string
	TranscriptionModel   string
	GenerationTimeout    time.Duration
	TranscriptionTimeout time.Duration
	MaxUploadBytes       int64
	LogLevel             string
}

type envConfig struct {
	ListenAddr                  string `env:"LISTEN_ADDR" envDefault:":8080"`
	HFBaseURL                   string `env:"HF_BASE_URL" envDefault:"https://api-inference.huggingface.co/models"`
	HFAPIToken                  string `env:"HF_API_TOKEN"`
	ElevenLabsBaseURL           string `env:"ELEVENLABS_BASE_URL" envDefault:"https://api.elevenlabs.io/v1"`
	ElevenLabsAPIKey            string `env:"ELEVENLABS_API_KEY"`
	SummarizationModel          string `env:"SUMMARIZATION_MODEL" envDefault:"facebook/bart-large-cnn"`
	TextGenModel                string `env:"TEXTGEN_MODEL" envDefault:"google/flan-t5-large"`
	TranscriptionModel          string `env:"TRANSCRIPTION_MODEL" envDefault:"scribe_v1"`
	GenerationTimeoutSeconds    int    `env:"GENERATION_TIMEOUT_SECONDS" envDefault:"90"`
	TranscriptionTimeoutSeconds int    `env:"TRANSCRIPTION_TIMEOUT_SECONDS" envDefault:"120"`
	MaxUploadBytes              int64  `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`
	LogLevel                    string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (Config, error) {
	var raw envConfig
	if err := cenv.Parse(&raw); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:           strings.TrimSpace(raw.ListenAddr),
		HFBaseURL:            strings.TrimRight(strings.TrimSpace(raw.HFBaseURL), "/"),
		HFAPIToken:           strings.TrimSpace(raw.HFAPIToken),
		ElevenLabsBaseURL:    strings.TrimRight(strings.TrimSpace(raw.ElevenLabsBaseURL), "/"),
		ElevenLabsAPIKey:     strings.TrimSpace(raw.ElevenLabsAPIKey),
		SummarizationModel:   strings.TrimSpace(raw.SummarizationModel),
		TextGenModel:         strings.TrimSpace(raw.TextGenModel),
		TranscriptionModel:   strings.TrimSpace(raw.TranscriptionModel),
		GenerationTimeout:    time.Duration(raw.GenerationTimeoutSeconds) * time.Second,
		TranscriptionTimeout: time.Duration(raw.TranscriptionTimeoutSeconds) * time.Second,
		MaxUploadBytes:       raw.MaxUploadBytes,
		LogLevel:             strings.ToLower(strings.TrimSpace(raw.LogLevel)),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("LISTEN_ADDR must not be empty")
	}
	if c.HFBaseURL == "" {
		return errors.New("HF_BASE_URL must not be empty")
	}
	if c.ElevenLabsBaseURL == "" {
		return errors.New("ELEVENLABS_BASE_URL must not be empty")
	}
	if c.SummarizationModel == "" {
		return errors.New("SUMMARIZATION_MODEL must not be empty")
	}
	if c.TextGenModel == "" {
		return errors.New("TEXTGEN_MODEL must not be empty")
	}
	if c.TranscriptionModel == "" {
		return errors.New("TRANSCRIPTION_MODEL must not be empty")
	}
	if c.GenerationTimeout <= 0 {
		return errors.New("GENERATION_TIMEOUT_SECONDS must be > 0")
	}
	if c.TranscriptionTimeout <= 0 {
		return errors.New("TRANSCRIPTION_TIMEOUT_SECONDS must be > 0")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	return nil
}

// RemoteGenerationConfigured reports whether the notes pipeline may call the
// inference backend at all. Without a token every request is served by the
// local extractor.
func (c Config) RemoteGenerationConfigured() bool {
	return c.HFAPIToken != ""
}
