package experiment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/book-expert/voiceprep/internal/core"
)

// Sweep variables.
const (
	VariableTemperature       = "temperature"
	VariableTopK              = "top_k"
	VariableTopP              = "top_p"
	VariableRepetitionPenalty = "repetition_penalty"
)

const (
	// SweepResultsFile is written into the output directory by RunSweeps.
	SweepResultsFile = "parameter_experiments.json"
	// DefaultSweepText is synthesized at every sweep point.
	DefaultSweepText = "This is a parameter testing experiment for voice cloning."
)

// ErrUnknownVariable is returned for a sweep over a parameter the model does not take.
var ErrUnknownVariable = errors.New("unknown sweep variable")

// Sweep varies one sampling parameter while holding the others at Base.
type Sweep struct {
	Name     string
	Variable string
	Base     core.SamplingParams
	Values   []float64
}

// SweepResults maps sweep names to their points, in sweep order.
type SweepResults map[string][]Generation

// DefaultSweeps returns the temperature, top_k and repetition penalty sweeps.
func DefaultSweeps() []Sweep {
	return []Sweep{
		{
			Name:     "temperature_test",
			Variable: VariableTemperature,
			Base:     core.SamplingParams{TopK: 50, RepetitionPenalty: 1.1},
			Values:   []float64{0.3, 0.5, 0.7, 0.9, 1.1},
		},
		{
			Name:     "top_k_test",
			Variable: VariableTopK,
			Base:     core.SamplingParams{Temperature: 0.7, RepetitionPenalty: 1.1},
			Values:   []float64{10, 25, 50, 75, 100},
		},
		{
			Name:     "repetition_penalty_test",
			Variable: VariableRepetitionPenalty,
			Base:     core.SamplingParams{Temperature: 0.7, TopK: 50},
			Values:   []float64{1.0, 1.05, 1.1, 1.15, 1.2},
		},
	}
}

// Params returns Base with the sweep variable set to value.
func (s Sweep) Params(value float64) (core.SamplingParams, error) {
	params := s.Base

	switch s.Variable {
	case VariableTemperature:
		params.Temperature = value
	case VariableTopK:
		params.TopK = int(value)
	case VariableTopP:
		params.TopP = value
	case VariableRepetitionPenalty:
		params.RepetitionPenalty = value
	default:
		return params, fmt.Errorf("%w: %s", ErrUnknownVariable, s.Variable)
	}

	return params, params.Validate()
}

// FileName returns experiment_<name>_<variable>_<value>.wav.
func (s Sweep) FileName(value float64) string {
	return fmt.Sprintf("experiment_%s_%s_%s.wav", s.Name, s.Variable, formatValue(s.Variable, value))
}

// formatValue prints integer parameters bare and keeps a decimal point on the others.
func formatValue(variable string, value float64) string {
	if variable == VariableTopK {
		return strconv.Itoa(int(value))
	}

	text := strconv.FormatFloat(value, 'f', -1, 64)
	if !strings.Contains(text, ".") {
		text += ".0"
	}

	return text
}

// RunSweeps synthesizes text once per sweep point, sequentially, and writes
// the results to parameter_experiments.json. Point failures are recorded and
// the run continues; invalid sweeps and cancellation abort it.
func (r *Runner) RunSweeps(ctx context.Context, text string, sweeps []Sweep) (SweepResults, error) {
	err := r.ensureOutputDir()
	if err != nil {
		return nil, err
	}

	results := make(SweepResults, len(sweeps))

	for _, sweep := range sweeps {
		r.log.Info("Running %s", sweep.Name)

		points := make([]Generation, 0, len(sweep.Values))

		for _, value := range sweep.Values {
			params, paramsErr := sweep.Params(value)
			if paramsErr != nil {
				return nil, fmt.Errorf("sweep %s: %w", sweep.Name, paramsErr)
			}

			point, genErr := r.generate(ctx, core.SynthesisRequest{Text: text, Params: params}, sweep.FileName(value))
			if genErr != nil {
				return nil, genErr
			}

			points = append(points, point)
		}

		results[sweep.Name] = points
	}

	err = writeJSON(filepath.Join(r.outputDir, SweepResultsFile), results)
	if err != nil {
		return nil, err
	}

	return results, nil
}
