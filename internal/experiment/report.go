package experiment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/book-expert/voiceprep/internal/audio"
	"github.com/book-expert/voiceprep/internal/core"
)

// ReportFile is the conventional name of the evaluation report.
const ReportFile = "evaluation_report.json"

const (
	notesConservative   = "Conservative settings work best"
	notesBySimilarity   = "Selected by spectral similarity to the reference recording"
	notesNotEvaluated   = "No zero-shot sample was evaluated"
	notesExcellentMatch = "Voice closely matches the reference"
	notesGoodMatch      = "Good voice similarity, some robotic qualities"
	notesPoorMatch      = "Voice differs noticeably from the reference"
)

// Score is the similarity of a generated recording to the reference.
type Score struct {
	Similarity float64 `json:"similarity"`
	Rating     string  `json:"rating"`
}

// ZeroShotResult summarizes the zero-shot cloning test.
type ZeroShotResult struct {
	Success      bool    `json:"success"`
	QualityScore float64 `json:"quality_score"`
	Notes        string  `json:"notes"`
}

// ParameterOptimization holds the best sampling parameters found.
type ParameterOptimization struct {
	BestTemperature       float64 `json:"best_temperature"`
	BestTopK              int     `json:"best_top_k"`
	BestRepetitionPenalty float64 `json:"best_repetition_penalty"`
	Notes                 string  `json:"notes"`
}

// TestResults groups the evaluated tests.
type TestResults struct {
	ZeroShotCloning       ZeroShotResult        `json:"zero_shot_cloning"`
	ParameterOptimization ParameterOptimization `json:"parameter_optimization"`
}

// Report is the evaluation_report.json document.
type Report struct {
	Timestamp    time.Time   `json:"timestamp"`
	ModelVersion string      `json:"model_version"`
	TestResults  TestResults `json:"test_results"`
	NextSteps    []string    `json:"next_steps"`
}

// ScoreFiles decodes both recordings and rates their similarity.
func ScoreFiles(referencePath, generatedPath string) (Score, error) {
	reference, err := audio.Decode(referencePath)
	if err != nil {
		return Score{}, err
	}

	return scoreAgainst(reference, generatedPath)
}

func scoreAgainst(reference audio.Waveform, generatedPath string) (Score, error) {
	generated, err := audio.Decode(generatedPath)
	if err != nil {
		return Score{}, err
	}

	similarity, err := audio.Similarity(reference, generated)
	if err != nil {
		return Score{}, err
	}

	return Score{Similarity: similarity, Rating: audio.Rate(similarity)}, nil
}

// BestParameters scores every successful sweep point against the reference and
// keeps, per swept variable, the value whose output sounds closest. Variables
// without a scored point keep the Conservative preset value.
func BestParameters(reference audio.Waveform, sweeps []Sweep, results SweepResults) ParameterOptimization {
	best := ParameterOptimization{
		BestTemperature:       0.7,
		BestTopK:              50,
		BestRepetitionPenalty: 1.1,
		Notes:                 notesConservative,
	}

	for _, sweep := range sweeps {
		bestScore := -1.0

		for _, point := range results[sweep.Name] {
			if !point.Success {
				continue
			}

			score, err := scoreAgainst(reference, point.OutputFile)
			if err != nil || score.Similarity <= bestScore {
				continue
			}

			bestScore = score.Similarity
			best.Notes = notesBySimilarity

			switch sweep.Variable {
			case VariableTemperature:
				best.BestTemperature = point.Parameters.Temperature
			case VariableTopK:
				best.BestTopK = point.Parameters.TopK
			case VariableRepetitionPenalty:
				best.BestRepetitionPenalty = point.Parameters.RepetitionPenalty
			}
		}
	}

	return best
}

// NewReport assembles the evaluation report. zeroShot may be nil when no
// generated sample was scored.
func NewReport(modelVersion string, zeroShot *Score, best ParameterOptimization) *Report {
	result := ZeroShotResult{Notes: notesNotEvaluated}

	if zeroShot != nil {
		result = ZeroShotResult{
			Success:      true,
			QualityScore: zeroShot.Similarity,
			Notes:        ratingNotes(zeroShot.Rating),
		}
	}

	return &Report{
		Timestamp:    time.Now(),
		ModelVersion: modelVersion,
		TestResults: TestResults{
			ZeroShotCloning:       result,
			ParameterOptimization: best,
		},
		NextSteps: []string{
			"Collect 30+ diverse voice samples",
			"Fine-tune model on personal dataset",
			"Compare fine-tuned vs zero-shot results",
			"Optimize for specific use cases",
		},
	}
}

func ratingNotes(rating string) string {
	switch rating {
	case audio.RatingExcellent:
		return notesExcellentMatch
	case audio.RatingGood:
		return notesGoodMatch
	default:
		return notesPoorMatch
	}
}

// WriteReport stores the report as indented JSON.
func WriteReport(path string, report *Report) error {
	return writeJSON(path, report)
}

// LoadSweepResults reads a parameter_experiments.json document.
func LoadSweepResults(path string) (SweepResults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.MissingPrecondition(path, "run experiment first")
		}

		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var results SweepResults

	err = json.Unmarshal(data, &results)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return results, nil
}
