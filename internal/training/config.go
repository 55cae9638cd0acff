// Package training assembles the fine-tuning configuration handed to the
// external training loop.
package training

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/book-expert/voiceprep/internal/core"
	"github.com/book-expert/voiceprep/internal/dataset"
)

const (
	smallDatasetThreshold = 20
	smallDatasetEpochs    = 10
	largeDatasetEpochs    = 5
	maxWarmupSteps        = 100
	warmupStepsPerSample  = 2
	minCheckpointInterval = 50

	defaultMaxModelLen       = 8192
	defaultDevice            = "cuda"
	defaultBatchSize         = 1
	defaultGradAccumSteps    = 8
	defaultLearningRate      = 5e-5
	defaultLoggingSteps      = 10
	defaultSeed              = 42
	defaultMaxNewTokens      = 125
	defaultTemperature       = 0.7
	defaultTopK              = 50
	defaultRepetitionPenalty = 1.1

	yamlIndent      = 2
	dirPermissions  = 0o750
	filePermissions = 0o600
)

// ModelSection names the pretrained model to fine-tune.
type ModelSection struct {
	Name        string `yaml:"name"`
	MaxModelLen int    `yaml:"max_model_len"`
	Device      string `yaml:"device"`
}

// DatasetSection locates the prepared dataset.
type DatasetSection struct {
	ProcessedAudioDir string `yaml:"processed_audio_dir"`
	TranscriptDir     string `yaml:"transcript_dir"`
	SampleRate        int    `yaml:"sample_rate"`
	TotalSamples      int    `yaml:"total_samples"`
}

// TrainingSection holds the optimizer schedule.
type TrainingSection struct {
	OutputDir                 string  `yaml:"output_dir"`
	NumTrainEpochs            int     `yaml:"num_train_epochs"`
	PerDeviceTrainBatchSize   int     `yaml:"per_device_train_batch_size"`
	GradientAccumulationSteps int     `yaml:"gradient_accumulation_steps"`
	LearningRate              float64 `yaml:"learning_rate"`
	WarmupSteps               int     `yaml:"warmup_steps"`
	LoggingSteps              int     `yaml:"logging_steps"`
	SaveSteps                 int     `yaml:"save_steps"`
	EvalSteps                 int     `yaml:"eval_steps"`
	FP16                      bool    `yaml:"fp16"`
	Seed                      int     `yaml:"seed"`
}

// GenerationSection holds the default sampling parameters.
type GenerationSection struct {
	MaxNewTokens      int     `yaml:"max_new_tokens"`
	Temperature       float64 `yaml:"temperature"`
	TopK              int     `yaml:"top_k"`
	RepetitionPenalty float64 `yaml:"repetition_penalty"`
}

// Config is the training_config.yaml document.
type Config struct {
	Model      ModelSection      `yaml:"model"`
	Dataset    DatasetSection    `yaml:"dataset"`
	Training   TrainingSection   `yaml:"training"`
	Generation GenerationSection `yaml:"generation"`
}

// Options carries the values that come from the project configuration.
type Options struct {
	ModelName      string
	ProcessedDir   string
	TranscriptsDir string
	OutputDir      string
	SampleRate     int
}

// Epochs is 10 for datasets under 20 samples and 5 otherwise.
func Epochs(sampleCount int) int {
	if sampleCount >= smallDatasetThreshold {
		return largeDatasetEpochs
	}

	return smallDatasetEpochs
}

// WarmupSteps is two steps per sample, capped at 100.
func WarmupSteps(sampleCount int) int {
	return min(maxWarmupSteps, warmupStepsPerSample*sampleCount)
}

// CheckpointInterval is the save and eval interval: the sample count, at least 50.
func CheckpointInterval(sampleCount int) int {
	return max(minCheckpointInterval, sampleCount)
}

// Assemble derives the training configuration for a dataset of sampleCount samples.
func Assemble(sampleCount int, opts Options) *Config {
	interval := CheckpointInterval(sampleCount)

	return &Config{
		Model: ModelSection{
			Name:        opts.ModelName,
			MaxModelLen: defaultMaxModelLen,
			Device:      defaultDevice,
		},
		Dataset: DatasetSection{
			ProcessedAudioDir: opts.ProcessedDir,
			TranscriptDir:     opts.TranscriptsDir,
			SampleRate:        opts.SampleRate,
			TotalSamples:      sampleCount,
		},
		Training: TrainingSection{
			OutputDir:                 opts.OutputDir,
			NumTrainEpochs:            Epochs(sampleCount),
			PerDeviceTrainBatchSize:   defaultBatchSize,
			GradientAccumulationSteps: defaultGradAccumSteps,
			LearningRate:              defaultLearningRate,
			WarmupSteps:               WarmupSteps(sampleCount),
			LoggingSteps:              defaultLoggingSteps,
			SaveSteps:                 interval,
			EvalSteps:                 interval,
			FP16:                      true,
			Seed:                      defaultSeed,
		},
		Generation: GenerationSection{
			MaxNewTokens:      defaultMaxNewTokens,
			Temperature:       defaultTemperature,
			TopK:              defaultTopK,
			RepetitionPenalty: defaultRepetitionPenalty,
		},
	}
}

// FromMetadata reads the dataset metadata and assembles the configuration for
// its sample count. A missing metadata file is a missing precondition.
func FromMetadata(metadataPath string, opts Options) (*Config, error) {
	metadata, err := dataset.LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}

	return Assemble(metadata.TotalSamples, opts), nil
}

// Write stores the configuration as YAML, creating the parent directory.
func Write(path string, cfg *Config) error {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(yamlIndent)

	err = encoder.Encode(cfg)
	if err != nil {
		_ = file.Close()

		return fmt.Errorf("failed to encode training config: %w", err)
	}

	err = encoder.Close()
	if err != nil {
		_ = file.Close()

		return fmt.Errorf("failed to flush training config: %w", err)
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	return nil
}

// Load reads a configuration written by Write.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.MissingPrecondition(path, "run configure first")
		}

		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg Config

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse training config %s: %w", path, err)
	}

	return &cfg, nil
}
