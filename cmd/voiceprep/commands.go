package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/book-expert/voiceprep/internal/audio"
	"github.com/book-expert/voiceprep/internal/core"
	"github.com/book-expert/voiceprep/internal/dataset"
	"github.com/book-expert/voiceprep/internal/experiment"
	"github.com/book-expert/voiceprep/internal/fsutil"
	"github.com/book-expert/voiceprep/internal/objectstore"
	"github.com/book-expert/voiceprep/internal/textnorm"
	"github.com/book-expert/voiceprep/internal/training"
	"github.com/book-expert/voiceprep/internal/transcript"
	"github.com/book-expert/voiceprep/internal/voice"
)

// Console messages.
const (
	msgProcessed        = "Processed %s -> %s (%s, %d Hz, %s)\n"
	msgBuildSummary     = "Processed %d of %d recordings, metadata: %s\n"
	msgItemFailed       = "  failed: %v\n"
	msgPublished        = "Published %d samples as %s to bucket %s (workflow %s, %d objects stored)\n"
	msgConfigWritten    = "Training config saved: %s (%d samples, %d epochs)\n"
	msgTrainingPrepared = "Training %s: %d samples, %d epochs, %d warmup steps, output: %s\n"
	msgNeedsWork        = "  %s: needs transcription\n"
	msgTranscriptsValid = "Valid transcripts: %d/%d (%.0f%%)\n"
	msgReady            = "Transcripts ready for training"
	msgNotReady         = "Complete transcriptions first"
	msgTranscribed      = "Transcribed %d, kept %d, failed %d\n"
	msgLayoutCreated    = "Dataset layout ready at %s (%d samples)\n"
	msgHealthy          = "Voice service at %s is healthy\n"
	msgGenerated        = "Generated: %s\n"
	msgPointFailed      = "  %s failed: %s\n"
	msgResultsSaved     = "Results saved to %s\n"
	msgComparison       = "Zero-shot outputs: %d, fine-tuned outputs: %d\n"
	msgSimilarity       = "Voice similarity score: %.3f\nQuality rating: %s\n"
	msgReportSaved      = "Evaluation report saved: %s\n"
)

const (
	flagInput      = "input"
	flagOutput     = "output"
	flagRemoveDC   = "remove-dc"
	flagPublish    = "publish"
	flagName       = "name"
	flagRoot       = "root"
	flagImport     = "import"
	flagText       = "text"
	flagChunks     = "chunks"
	flagReference  = "reference"
	flagVoice      = "voice"
	flagPreset     = "preset"
	flagGenerated  = "generated"
	flagResults    = "experiments"
	defaultDataset = "voice_dataset"
	defaultPreset  = "Conservative"
	speakFileName  = "output.wav"
)

var (
	errInputRequired     = errors.New("--input is required")
	errTextOrChunks      = errors.New("either --text or --chunks must be provided")
	errTextAndChunks     = errors.New("cannot specify both --text and --chunks")
	errUnknownPreset     = errors.New("unknown preset")
	errFileArgRequired   = errors.New("an audio file argument is required")
	errReferenceRequired = errors.New("--reference is required")
)

func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	return nil
}

func runPreprocess(_ context.Context, a *app, args []string) error {
	fs := a.newFlagSet("preprocess")
	input := fs.String(flagInput, "", "Recording to normalize")
	output := fs.String(flagOutput, "", "Output path (defaults to processed_<input> next to the input)")
	removeDC := fs.Bool(flagRemoveDC, false, "Subtract the mean before level normalization")

	err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	if *input == "" {
		return fmt.Errorf("%w: %w", ErrUsage, errInputRequired)
	}

	outputPath := *output
	if outputPath == "" {
		outputPath = filepath.Join(filepath.Dir(*input), "processed_"+filepath.Base(*input))
	}

	settings := a.cfg.AudioSettings()
	settings.RemoveDCOffset = *removeDC

	normalizer, err := audio.NewNormalizer(settings, a.log)
	if err != nil {
		return err
	}

	waveform, err := normalizer.ProcessFile(*input, outputPath)
	if err != nil {
		return err
	}

	size := "unknown size"

	info, err := os.Stat(outputPath)
	if err == nil {
		size = fsutil.FormatFileSize(info.Size())
	}

	a.printf(msgProcessed, *input, outputPath, fsutil.FormatDuration(waveform.Seconds()), waveform.SampleRate, size)

	return nil
}

func (a *app) datasetPaths() dataset.Paths {
	return dataset.Paths{
		InputDir:       a.cfg.Paths.VoiceSamplesDir,
		ProcessedDir:   a.cfg.Paths.ProcessedDir,
		TranscriptsDir: a.cfg.Paths.TranscriptsDir,
		MetadataPath:   a.cfg.Paths.MetadataPath,
	}
}

func runBuildDataset(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("build-dataset")
	publish := fs.Bool(flagPublish, false, "Upload the dataset to the NATS object store and announce it")
	name := fs.String(flagName, defaultDataset, "Dataset name used as the object key prefix")

	err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	normalizer, err := audio.NewNormalizer(a.cfg.AudioSettings(), a.log)
	if err != nil {
		return err
	}

	paths := a.datasetPaths()

	result, err := dataset.NewBuilder(paths, normalizer, a.log).Build(ctx)
	if err != nil {
		return err
	}

	for _, failure := range result.Failures {
		a.printf(msgItemFailed, failure)
	}

	total := result.Metadata.TotalSamples + len(result.Failures)
	a.printf(msgBuildSummary, result.Metadata.TotalSamples, total, paths.MetadataPath)

	if !*publish {
		return nil
	}

	return a.publishDataset(ctx, fsutil.SanitizeFilename(*name), result.Metadata, paths)
}

func (a *app) publishDataset(ctx context.Context, name string, metadata *dataset.Metadata, paths dataset.Paths) error {
	natsConnection, err := nats.Connect(a.cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("%w: failed to connect to NATS at %s: %w", core.ErrExternalDependency, a.cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	store, err := objectstore.New(ctx, natsConnection, a.cfg.NATS.DatasetObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrExternalDependency, err)
	}

	publisher := dataset.NewPublisher(store, natsConnection, a.cfg.NATS.DatasetBuiltSubject, a.log)

	event, err := publisher.Publish(ctx, name, metadata, paths)
	if err != nil {
		return err
	}

	err = natsConnection.FlushWithContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to flush NATS connection: %w", core.ErrExternalDependency, err)
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrExternalDependency, err)
	}

	a.printf(msgPublished, event.TotalSamples, name, store.Bucket(), event.Header.WorkflowID, len(keys))

	return nil
}

func runConfigure(_ context.Context, a *app, args []string) error {
	err := parseFlags(a.newFlagSet("configure"), args)
	if err != nil {
		return err
	}

	cfg, err := training.FromMetadata(a.cfg.Paths.MetadataPath, training.Options{
		ModelName:      a.cfg.Model.PretrainedName,
		ProcessedDir:   a.cfg.Paths.ProcessedDir,
		TranscriptsDir: a.cfg.Paths.TranscriptsDir,
		OutputDir:      a.cfg.Paths.FinetunedModelDir,
		SampleRate:     a.cfg.Audio.SampleRate,
	})
	if err != nil {
		return err
	}

	err = training.Write(a.cfg.Paths.TrainingConfigPath, cfg)
	if err != nil {
		return err
	}

	a.printf(msgConfigWritten, a.cfg.Paths.TrainingConfigPath, cfg.Dataset.TotalSamples, cfg.Training.NumTrainEpochs)

	return a.reportTranscripts()
}

// runPrepareTraining checks the saved training config and creates its output
// directory. The training loop itself runs in the model service.
func runPrepareTraining(_ context.Context, a *app, args []string) error {
	err := parseFlags(a.newFlagSet("prepare-training"), args)
	if err != nil {
		return err
	}

	cfg, err := training.Load(a.cfg.Paths.TrainingConfigPath)
	if err != nil {
		return err
	}

	err = fsutil.EnsureDir(cfg.Training.OutputDir)
	if err != nil {
		return err
	}

	a.printf(msgTrainingPrepared, cfg.Model.Name, cfg.Dataset.TotalSamples, cfg.Training.NumTrainEpochs,
		cfg.Training.WarmupSteps, cfg.Training.OutputDir)

	return nil
}

func runCheckTranscripts(_ context.Context, a *app, args []string) error {
	err := parseFlags(a.newFlagSet("check-transcripts"), args)
	if err != nil {
		return err
	}

	return a.reportTranscripts()
}

// reportTranscripts prints the readiness report. Not being ready is an
// outcome, not an error.
func (a *app) reportTranscripts() error {
	report, err := transcript.Check(a.cfg.Paths.TranscriptsDir)
	if err != nil {
		return err
	}

	for _, name := range report.NeedsTranscription {
		a.printf(msgNeedsWork, name)
	}

	a.printf(msgTranscriptsValid, report.Valid, report.Total, report.Fraction()*100)

	if report.Ready() {
		a.printf("%s\n", msgReady)
	} else {
		a.log.Warn("%d transcripts need work", len(report.NeedsTranscription))
		a.printf("%s\n", msgNotReady)
	}

	return nil
}

func runTranscribe(ctx context.Context, a *app, args []string) error {
	err := parseFlags(a.newFlagSet("transcribe"), args)
	if err != nil {
		return err
	}

	client, err := transcript.NewWhisperClient(transcript.WhisperOptions{
		APIKey:   a.cfg.Whisper.APIKey,
		BaseURL:  a.cfg.Whisper.BaseURL,
		Model:    a.cfg.Whisper.Model,
		Language: a.cfg.Whisper.Language,
		Timeout:  a.cfg.ModelTimeout(),
	})
	if err != nil {
		return err
	}

	filler := transcript.NewFiller(client, a.cfg.Paths.ProcessedDir, a.cfg.Paths.TranscriptsDir, a.log)

	result, err := filler.Fill(ctx)
	if err != nil {
		return err
	}

	for _, failure := range result.Failures {
		a.printf(msgItemFailed, failure)
	}

	a.printf(msgTranscribed, len(result.Filled), len(result.Kept), len(result.Failures))

	return nil
}

func runLayout(_ context.Context, a *app, args []string) error {
	fs := a.newFlagSet("layout")
	root := fs.String(flagRoot, defaultDataset, "Root of the dataset layout")
	importBatch := fs.Bool(flagImport, false, "Copy the processed samples and transcripts into the layout")

	err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	layout := dataset.NewLayout(*root)

	err = layout.Create()
	if err != nil {
		return err
	}

	if *importBatch {
		metadata, loadErr := dataset.LoadMetadata(a.cfg.Paths.MetadataPath)
		if loadErr != nil {
			return loadErr
		}

		err = layout.Import(metadata, a.cfg.Paths.ProcessedDir, a.cfg.Paths.TranscriptsDir)
		if err != nil {
			return err
		}
	}

	manifest, err := layout.WriteManifest(a.cfg.Audio.SampleRate)
	if err != nil {
		return err
	}

	a.printf(msgLayoutCreated, layout.Root, manifest.DatasetInfo.TotalSamples)

	return nil
}

func runHealth(ctx context.Context, a *app, args []string) error {
	err := parseFlags(a.newFlagSet("health"), args)
	if err != nil {
		return err
	}

	err = voice.NewHTTPClient(a.cfg.Model.ServiceURL, a.cfg.ModelTimeout()).HealthCheck(ctx)
	if err != nil {
		return err
	}

	a.printf(msgHealthy, a.cfg.Model.ServiceURL)

	return nil
}

// synthesizer returns the HTTP client when a service URL is configured and
// the model binary otherwise.
func (a *app) synthesizer(serviceURL string) (core.Synthesizer, error) {
	if serviceURL != "" {
		return voice.NewHTTPClient(serviceURL, a.cfg.ModelTimeout()), nil
	}

	return voice.NewCommandSynthesizer(voice.CommandOptions{
		BinaryPath:    a.cfg.Model.BinaryPath,
		ModelPath:     a.cfg.Model.ModelPath,
		SnacModelPath: a.cfg.Model.SnacModelPath,
	}, a.log)
}

func (a *app) runner() (*experiment.Runner, error) {
	synth, err := a.synthesizer(a.cfg.Model.ServiceURL)
	if err != nil {
		return nil, err
	}

	return experiment.NewRunner(synth, a.cfg.Paths.OutputsDir, a.log), nil
}

func presetParams(name string) (core.SamplingParams, error) {
	preset, ok := experiment.FindPreset(name)
	if !ok {
		return core.SamplingParams{}, fmt.Errorf("%w: %s", errUnknownPreset, name)
	}

	return preset.Params, nil
}

func runSpeak(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("speak")
	text := fs.String(flagText, "", "Text to convert to speech")
	chunks := fs.String(flagChunks, "", "JSON file containing text chunks to process")
	output := fs.String(flagOutput, speakFileName, "Output file name under the outputs directory")
	reference := fs.String(flagReference, "", "Reference recording to clone")
	voiceName := fs.String(flagVoice, "", "Model voice name")
	preset := fs.String(flagPreset, defaultPreset, "Sampling preset")

	err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	if *text == "" && *chunks == "" {
		return fmt.Errorf("%w: %w", ErrUsage, errTextOrChunks)
	}

	if *text != "" && *chunks != "" {
		return fmt.Errorf("%w: %w", ErrUsage, errTextAndChunks)
	}

	params, err := presetParams(*preset)
	if err != nil {
		return err
	}

	runner, err := a.runner()
	if err != nil {
		return err
	}

	req := core.SynthesisRequest{ReferenceAudio: *reference, Voice: *voiceName, Params: params}

	if *text != "" {
		req.Text = textnorm.Normalize(*text)

		generation, speakErr := runner.Speak(ctx, req, *output)
		if speakErr != nil {
			return speakErr
		}

		a.printf(msgGenerated, generation.OutputFile)

		return nil
	}

	texts, err := experiment.ReadChunks(*chunks)
	if err != nil {
		return err
	}

	for i, chunk := range texts {
		texts[i] = textnorm.Normalize(chunk)
	}

	results, err := runner.SpeakChunks(ctx, texts, req)
	if err != nil {
		return err
	}

	a.printGenerations(results)

	return nil
}

func (a *app) printGenerations(results []experiment.Generation) {
	for _, result := range results {
		if result.Success {
			a.printf(msgGenerated, result.OutputFile)

			continue
		}

		a.printf(msgPointFailed, result.Text, result.Error)
	}
}

func runExperiment(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("experiment")
	text := fs.String(flagText, experiment.DefaultSweepText, "Text synthesized at every sweep point")

	err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	runner, err := a.runner()
	if err != nil {
		return err
	}

	sweeps := experiment.DefaultSweeps()

	results, err := runner.RunSweeps(ctx, *text, sweeps)
	if err != nil {
		return err
	}

	for _, sweep := range sweeps {
		for i, point := range results[sweep.Name] {
			if !point.Success {
				a.printf(msgPointFailed, sweep.FileName(sweep.Values[i]), point.Error)
			}
		}
	}

	a.printf(msgResultsSaved, filepath.Join(runner.OutputDir(), experiment.SweepResultsFile))

	return nil
}

func runPresets(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("presets")
	reference := fs.String(flagReference, "", "Reference recording to clone")
	only := fs.String(flagPreset, "", "Run a single preset")

	err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	presets := experiment.DefaultPresets()

	if *only != "" {
		preset, ok := experiment.FindPreset(*only)
		if !ok {
			return fmt.Errorf("%w: %s", errUnknownPreset, *only)
		}

		presets = []experiment.Preset{preset}
	}

	runner, err := a.runner()
	if err != nil {
		return err
	}

	results, err := runner.RunPresets(ctx, *reference, presets, experiment.DefaultPresetTexts())
	if err != nil {
		return err
	}

	for _, result := range results {
		a.printGenerations([]experiment.Generation{result.Generation})
	}

	return nil
}

func runCompare(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("compare")
	reference := fs.String(flagReference, "", "Reference recording passed to both models and used for scoring")
	preset := fs.String(flagPreset, defaultPreset, "Sampling preset")

	err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	params, err := presetParams(*preset)
	if err != nil {
		return err
	}

	zeroShot, err := a.runner()
	if err != nil {
		return err
	}

	var finetuned *experiment.Runner

	switch {
	case !fsutil.IsDir(a.cfg.Paths.FinetunedModelDir):
		a.log.Warn("Fine-tuned model not found at %s", a.cfg.Paths.FinetunedModelDir)
	case a.cfg.Model.FinetunedURL == "":
		a.log.Warn("No fine-tuned service URL configured, skipping fine-tuned model")
	default:
		synth, synthErr := a.synthesizer(a.cfg.Model.FinetunedURL)
		if synthErr != nil {
			return synthErr
		}

		finetuned = experiment.NewRunner(synth, a.cfg.Paths.OutputsDir, a.log)
	}

	comparison, err := experiment.Compare(ctx, zeroShot, finetuned, experiment.CompareOptions{
		Texts:          experiment.DefaultComparisonTexts(),
		Params:         params,
		ReferenceAudio: *reference,
	})
	if err != nil {
		return err
	}

	a.printf(msgComparison, len(comparison.ZeroShotResults), len(comparison.FinetunedResults))
	a.printf(msgResultsSaved, filepath.Join(a.cfg.Paths.OutputsDir, experiment.ComparisonResultsFile))

	return nil
}

func runEvaluate(_ context.Context, a *app, args []string) error {
	fs := a.newFlagSet("evaluate")
	reference := fs.String(flagReference, "", "Original recording")
	generated := fs.String(flagGenerated, "", "Generated recording to score")
	results := fs.String(flagResults, "", "parameter_experiments.json to pick the best parameters from")
	output := fs.String(flagOutput, experiment.ReportFile, "Report path")

	err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	if *reference == "" {
		return fmt.Errorf("%w: %w", ErrUsage, errReferenceRequired)
	}

	referenceWave, err := audio.Decode(*reference)
	if err != nil {
		return err
	}

	var score *experiment.Score

	if *generated != "" {
		scored, scoreErr := experiment.ScoreFiles(*reference, *generated)
		if scoreErr != nil {
			return scoreErr
		}

		score = &scored
		a.printf(msgSimilarity, scored.Similarity, scored.Rating)
	}

	best := experiment.BestParameters(referenceWave, nil, nil)

	if *results != "" {
		sweepResults, loadErr := experiment.LoadSweepResults(*results)
		if loadErr != nil {
			return loadErr
		}

		best = experiment.BestParameters(referenceWave, experiment.DefaultSweeps(), sweepResults)
	}

	report := experiment.NewReport(a.cfg.Model.ZeroShotName, score, best)

	err = experiment.WriteReport(*output, report)
	if err != nil {
		return err
	}

	a.printf(msgReportSaved, *output)

	return nil
}

func runAnalyze(_ context.Context, a *app, args []string) error {
	fs := a.newFlagSet("analyze")

	err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	if fs.NArg() == 0 {
		return fmt.Errorf("%w: %w", ErrUsage, errFileArgRequired)
	}

	for _, path := range fs.Args() {
		waveform, decodeErr := audio.Decode(path)
		if decodeErr != nil {
			return decodeErr
		}

		stats, analyzeErr := audio.Analyze(waveform)
		if analyzeErr != nil {
			return fmt.Errorf("%s: %w", path, analyzeErr)
		}

		data, marshalErr := json.MarshalIndent(stats, "", "  ")
		if marshalErr != nil {
			return fmt.Errorf("failed to marshal statistics: %w", marshalErr)
		}

		a.printf("%s\n%s\n", path, strings.TrimSpace(string(data)))
	}

	return nil
}
