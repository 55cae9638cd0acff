// Package config provides the configuration structure for voiceprep.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"

	"github.com/book-expert/voiceprep/internal/audio"
)

const dirPermissions = 0o750

// AudioConfig holds the normalization settings shared by every audio path.
type AudioConfig struct {
	SampleRate         int     `toml:"sample_rate"`
	MaxDurationSeconds float64 `toml:"max_duration_seconds"`
	TargetRMS          float64 `toml:"target_rms"`
	RemoveDCOffset     bool    `toml:"remove_dc_offset"`
}

// PathsConfig holds the conventional filesystem layout.
type PathsConfig struct {
	VoiceSamplesDir    string `toml:"voice_samples_dir"`
	ProcessedDir       string `toml:"processed_dir"`
	TranscriptsDir     string `toml:"transcripts_dir"`
	MetadataPath       string `toml:"metadata_path"`
	TrainingConfigPath string `toml:"training_config_path"`
	FinetunedModelDir  string `toml:"finetuned_model_dir"`
	OutputsDir         string `toml:"outputs_dir"`
	ReferenceDir       string `toml:"reference_dir"`
	BaseLogsDir        string `toml:"base_logs_dir"`
}

// ModelConfig describes how to reach the external voice model.
type ModelConfig struct {
	PretrainedName string  `toml:"pretrained_name"`
	ZeroShotName   string  `toml:"zero_shot_name"`
	ServiceURL     string  `toml:"service_url"`
	FinetunedURL   string  `toml:"finetuned_service_url"`
	BinaryPath     string  `toml:"binary_path"`
	ModelPath      string  `toml:"model_path"`
	SnacModelPath  string  `toml:"snac_model_path"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// WhisperConfig holds the transcription API settings. The key is read from the
// OPENAI_API_KEY environment variable when empty.
type WhisperConfig struct {
	BaseURL  string `toml:"base_url"`
	Model    string `toml:"model"`
	Language string `toml:"language"`
	APIKey   string `toml:"api_key"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                      string `toml:"url"`
	SynthesisSubject         string `toml:"synthesis_subject"`
	DatasetBuiltSubject      string `toml:"dataset_built_subject"`
	TextObjectStoreBucket    string `toml:"text_object_store_bucket"`
	AudioObjectStoreBucket   string `toml:"audio_object_store_bucket"`
	DatasetObjectStoreBucket string `toml:"dataset_object_store_bucket"`
}

// Config is the root configuration structure.
type Config struct {
	Audio   AudioConfig   `toml:"audio"`
	Paths   PathsConfig   `toml:"paths"`
	Model   ModelConfig   `toml:"model"`
	Whisper WhisperConfig `toml:"whisper"`
	NATS    NATSConfig    `toml:"nats"`
}

// Default returns the conventional layout and the 24 kHz / 15 s / 0.1 RMS settings.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:         audio.DEFAULT_SAMPLE_RATE,
			MaxDurationSeconds: audio.DEFAULT_MAX_DURATION_SECONDS,
			TargetRMS:          audio.DEFAULT_TARGET_RMS,
			RemoveDCOffset:     true,
		},
		Paths: PathsConfig{
			VoiceSamplesDir:    "voice_samples",
			ProcessedDir:       "processed_samples",
			TranscriptsDir:     "transcripts",
			MetadataPath:       "dataset_metadata.json",
			TrainingConfigPath: filepath.Join("configs", "training_config.yaml"),
			FinetunedModelDir:  filepath.Join("models", "finetuned_orpheus"),
			OutputsDir:         "outputs",
			ReferenceDir:       "processed_samples",
			BaseLogsDir:        "logs",
		},
		Model: ModelConfig{
			PretrainedName: "canopylabs/orpheus-3b-0.1-pretrained",
			ZeroShotName:   "canopylabs/orpheus-3b-0.1-ft",
			ServiceURL:     "http://127.0.0.1:8000",
			BinaryPath:     "chatllm",
			Temperature:    0.7,
			TimeoutSeconds: 300,
		},
		Whisper: WhisperConfig{
			BaseURL: "https://api.openai.com/v1/audio/transcriptions",
			Model:   "whisper-1",
		},
		NATS: NATSConfig{
			URL:                      "nats://127.0.0.1:4222",
			SynthesisSubject:         "voice.synthesis.requested",
			DatasetBuiltSubject:      "voice.dataset.built",
			TextObjectStoreBucket:    "TEXT_FILES",
			AudioObjectStoreBucket:   "AUDIO_FILES",
			DatasetObjectStoreBucket: "VOICE_DATASETS",
		},
	}
}

// Load loads the configuration through the central configurator, on top of Default.
func Load(log *logger.Logger) (*Config, error) {
	cfg := Default()

	err := configurator.Load(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return cfg, nil
}

// LoadFile reads a TOML file on top of Default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes TOML data on top of Default. Keys absent from data keep their
// default values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	err := toml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// AudioSettings converts the audio section into normalizer settings.
func (c *Config) AudioSettings() audio.Settings {
	return audio.Settings{
		SampleRate:     c.Audio.SampleRate,
		MaxDuration:    time.Duration(c.Audio.MaxDurationSeconds * float64(time.Second)),
		TargetRMS:      c.Audio.TargetRMS,
		RemoveDCOffset: c.Audio.RemoveDCOffset,
	}
}

// ModelTimeout returns the per-request timeout for the voice model.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutSeconds) * time.Second
}

// EnsureDirectories creates the output directories the commands write into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.ProcessedDir,
		c.Paths.TranscriptsDir,
		c.Paths.OutputsDir,
		c.Paths.BaseLogsDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}

		err := os.MkdirAll(dir, dirPermissions)
		if err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
