// Command voiceprep prepares voice-cloning datasets and drives parameter
// experiments against an external voice model.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/book-expert/logger"

	"github.com/book-expert/voiceprep/internal/config"
	"github.com/book-expert/voiceprep/internal/fsutil"
)

// Flag names and descriptions.
const (
	flagConfig     = "config"
	flagConfigDesc = "Path to a TOML configuration file (defaults to the conventional layout)"
	logFileName    = "voiceprep.log"
)

// Error and usage messages.
const (
	errFmtUnknownCommand   = "unknown command %q"
	errFailedToLoadConfig  = "failed to load configuration: %w"
	errFailedToInitLogger  = "failed to initialize logger: %w"
	usageHeader            = "Usage: voiceprep [--config file] <command> [flags]\n\nCommands:\n"
	usageCommandLineFormat = "  %-18s %s\n"
)

// ErrUsage is returned when the command line cannot be interpreted.
var ErrUsage = errors.New("invalid usage")

// app carries what every command needs.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	stdout io.Writer
}

type command struct {
	name        string
	description string
	run         func(ctx context.Context, a *app, args []string) error
}

func commands() []command {
	return []command{
		{"preprocess", "Normalize a single recording", runPreprocess},
		{"build-dataset", "Normalize every recording and write dataset metadata", runBuildDataset},
		{"configure", "Write the training configuration from the dataset metadata", runConfigure},
		{"prepare-training", "Load the training config and create its output directory", runPrepareTraining},
		{"check-transcripts", "Report which transcripts still need work", runCheckTranscripts},
		{"transcribe", "Fill placeholder transcripts with Whisper transcriptions", runTranscribe},
		{"layout", "Create the voice_dataset directory layout", runLayout},
		{"health", "Check that the voice model service is up", runHealth},
		{"speak", "Synthesize a text or a JSON file of chunks", runSpeak},
		{"experiment", "Run the temperature, top_k and repetition penalty sweeps", runExperiment},
		{"presets", "Clone the reference voice with every sampling preset", runPresets},
		{"compare", "Compare the zero-shot and fine-tuned models", runCompare},
		{"evaluate", "Score generated audio and write the evaluation report", runEvaluate},
		{"analyze", "Print statistics of a recording", runAnalyze},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Args[1:], os.Stdout)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses the global flags, loads configuration and dispatches to a command.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	global := flag.NewFlagSet("voiceprep", flag.ContinueOnError)
	global.SetOutput(stdout)
	configPath := global.String(flagConfig, "", flagConfigDesc)
	global.Usage = func() { printUsage(stdout) }

	err := global.Parse(args)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	if global.NArg() == 0 {
		printUsage(stdout)

		return fmt.Errorf("%w: no command given", ErrUsage)
	}

	name := global.Arg(0)

	index := slices.IndexFunc(commands(), func(c command) bool { return c.name == name })
	if index < 0 {
		printUsage(stdout)

		return fmt.Errorf("%w: "+errFmtUnknownCommand, ErrUsage, name)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf(errFailedToLoadConfig, err)
	}

	err = fsutil.EnsureDir(cfg.Paths.BaseLogsDir)
	if err != nil {
		return fmt.Errorf(errFailedToInitLogger, err)
	}

	log, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return fmt.Errorf(errFailedToInitLogger, err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	log.Info("Running %s", name)

	cmdErr := commands()[index].run(ctx, &app{cfg: cfg, log: log, stdout: stdout}, global.Args()[1:])
	if cmdErr != nil {
		log.Error("%s failed: %v", name, cmdErr)
	}

	return cmdErr
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}

	return config.LoadFile(path)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, usageHeader)

	for _, c := range commands() {
		fmt.Fprintf(w, usageCommandLineFormat, c.name, c.description)
	}
}

// newFlagSet returns a per-command flag set that reports errors instead of exiting.
func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stdout)

	return fs
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout, format, args...)
}
