package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robottwo/neurodx/internal/config"
	"github.com/robottwo/neurodx/internal/core"
	"github.com/robottwo/neurodx/internal/history"
	"github.com/robottwo/neurodx/internal/predict"
	"github.com/robottwo/neurodx/internal/session"
	"github.com/robottwo/neurodx/internal/styles"
	"github.com/robottwo/neurodx/internal/tui"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var BUILD_VERSION = "dev"

var symptoms = flag.String("symptoms", "", "predict a disease from symptom text and exit")
var image = flag.String("image", "", "predict a disease from a chest X-ray image file and exit")
var historyLimit = flag.Int("history", 0, "print the `N` most recent predictions and exit")
var historyKind = flag.String("history-kind", "", "restrict -history to `KIND` (symptoms or image)")
var historyDelete = flag.Uint("history-delete", 0, "remove prediction log entry `ID` and exit")
var clearHistory = flag.Bool("clear-history", false, "remove every prediction log entry and exit")
var check = flag.Bool("check", false, "check that the prediction service is reachable and exit")
var configFile = flag.String("config", "", "use a custom config file instead of ~/.config/neurodx/config.yaml")
var serviceURL = flag.String("service-url", "", "base `URL` of the prediction service")
var writeConfig = flag.Bool("write-config", false, "save the effective configuration to the config file and exit")
var cleanLogs = flag.Bool("clean-logs", false, "remove all log files before starting")

var helpFlag bool
var versionFlag bool

// errPredictionFailed marks a one-shot run whose outcome was an error. The
// message has already been printed.
var errPredictionFailed = errors.New("prediction failed")

func init() {
	flag.BoolVar(&helpFlag, "h", false, "display help information")
	flag.BoolVar(&helpFlag, "help", false, "display help information")

	flag.BoolVar(&versionFlag, "v", false, "display build version")
	flag.BoolVar(&versionFlag, "version", false, "display build version")

	if err := zap.RegisterSink("zstd", newCompressedSink); err != nil {
		panic(fmt.Sprintf("failed to register zstd sink: %v", err))
	}
}

// main wires configuration, logging, the prediction client and the optional
// prediction log, then hands off to run.
//
// Modes:
//  1. neurodx -v / -h
//  2. neurodx -symptoms "fever, cough" or -image xray.png: one prediction
//  3. neurodx -history 20 [-history-kind image], -history-delete ID, -clear-history
//  4. neurodx -check: service health
//  5. neurodx: interactive view (symptoms read from stdin when not a terminal)
func main() {
	flag.Parse()

	if versionFlag {
		fmt.Println(BUILD_VERSION)
		return
	}

	if helpFlag {
		printUsage()
		return
	}

	cfg, err := initializeConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, styles.ERROR(err.Error()))
		os.Exit(2)
	}

	configPath := configFilePath()
	if *writeConfig {
		if err := config.Save(configPath, cfg); err != nil {
			fmt.Fprintln(os.Stderr, styles.ERROR(err.Error()))
			os.Exit(1)
		}
		fmt.Println("Configuration saved to " + configPath)
		return
	}

	if *cleanLogs {
		if err := core.CleanLogFiles(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to clean log files: %v\n", err)
		}
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("-------- new neurodx session --------",
		zap.Any("args", os.Args),
		zap.String("service_url", cfg.ServiceURL),
	)

	client := predict.NewHTTPClient(
		cfg.ServiceURL,
		logger,
		predict.WithVersion(BUILD_VERSION),
		predict.WithTimeout(cfg.RequestTimeout),
	)

	var historyManager *history.HistoryManager
	if cfg.History || usesHistory() {
		historyManager, err = initializeHistoryManager()
		if err != nil {
			logger.Warn("failed to initialize prediction log", zap.Error(err))
			historyManager = nil
		} else {
			defer func() {
				if err := historyManager.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "failed to close prediction log: %v\n", err)
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, client, historyManager, logger)
	if errors.Is(err, errPredictionFailed) {
		_ = logger.Sync()
		os.Exit(1)
	}
	if err != nil {
		logger.Error("unhandled error", zap.Error(err))
		fmt.Fprintln(os.Stderr, styles.ERROR(err.Error()))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	cfg config.Config,
	client *predict.HTTPClient,
	historyManager *history.HistoryManager,
	logger *zap.Logger,
) error {
	if usesHistory() {
		if historyManager == nil {
			return errors.New("prediction log is unavailable")
		}
		return runHistory(os.Stdout, historyManager, historyRequestFromFlags())
	}

	// neurodx -check
	if *check {
		if err := client.Health(ctx); err != nil {
			return err
		}
		fmt.Println("Prediction service at " + client.BaseURL() + " is reachable.")
		return nil
	}

	var opts []session.Option
	if cfg.History && historyManager != nil {
		opts = append(opts, session.WithRecorder(historyManager))
	}
	ctrl := session.NewController(client, logger, opts...)
	defer ctrl.Close()

	set := setFlags()

	// neurodx -symptoms "fever, cough"
	if set["symptoms"] {
		ctrl.SetSymptoms(*symptoms)
		return report(os.Stdout, os.Stderr, ctrl.SubmitSymptoms(ctx))
	}

	// neurodx -image xray.png
	if set["image"] {
		if *image != "" {
			file, err := predict.LoadImageFile(*image)
			if err != nil {
				return err
			}
			ctrl.SetImageFile(file)
		}
		if err := ctrl.SelectTab(session.TabImage); err != nil {
			return err
		}
		return report(os.Stdout, os.Stderr, ctrl.SubmitImage(ctx))
	}

	// neurodx
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return tui.Run(ctx, ctrl, logger)
	}

	// echo "fever, cough" | neurodx
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to read symptoms from stdin: %w", err)
	}
	ctrl.SetSymptoms(strings.TrimSpace(string(input)))
	return report(os.Stdout, os.Stderr, ctrl.SubmitSymptoms(ctx))
}

// setFlags returns the names of flags given on the command line, so that an
// explicitly empty -symptoms "" still runs (and fails validation).
func setFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// report prints the outcome of a one-shot prediction. It returns
// errPredictionFailed when the state holds an error or a failed prediction.
func report(stdout, stderr io.Writer, state session.ViewState) error {
	if msg := state.ErrorMessage(); msg != "" {
		fmt.Fprintln(stderr, styles.ERROR(msg))
		return errPredictionFailed
	}
	if state.Label == "" {
		fmt.Fprintln(stderr, styles.ERROR(state.Result()))
		return errPredictionFailed
	}
	fmt.Fprintln(stdout, styles.RESULT(state.Label))
	return nil
}

func printUsage() {
	fmt.Println(styles.HEADING("Usage:") + " neurodx [flags]")
	fmt.Println("\nPredict diseases from symptom descriptions or chest X-ray images.")
	fmt.Println()

	fmt.Println(styles.HEADING("Options:"))

	// group aliases like -h and -help by their shared usage string
	printed := make(map[string]bool)

	flag.VisitAll(func(f *flag.Flag) {
		if printed[f.Name] {
			return
		}

		aliases := []string{f.Name}
		flag.VisitAll(func(p *flag.Flag) {
			if p.Name != f.Name && p.Usage == f.Usage {
				aliases = append(aliases, p.Name)
				printed[p.Name] = true
			}
		})
		printed[f.Name] = true

		var shortFlags, longFlags []string
		for _, name := range aliases {
			if len(name) == 1 {
				shortFlags = append(shortFlags, "-"+name)
			} else {
				longFlags = append(longFlags, "-"+name)
			}
		}
		flagStr := strings.Join(append(shortFlags, longFlags...), ", ")

		argName, usage := flag.UnquoteUsage(f)
		if argName != "" {
			flagStr += " <" + argName + ">"
		}

		fmt.Printf("  %-28s %s\n", flagStr, usage)
	})

	fmt.Println()
	fmt.Println(styles.HEADING("Environment:"))
	fmt.Printf("  %-28s %s\n", config.EnvServiceURL, "Prediction service base URL")
	fmt.Printf("  %-28s %s\n", config.EnvLogLevel, "Log level (debug, info, warn, error)")
	fmt.Printf("  %-28s %s\n", config.EnvRequestTimeout, "Per-request timeout, e.g. 30s (0 disables)")
	fmt.Printf("  %-28s %s\n", config.EnvHistory, "Record predictions in the local log (true/false)")

	fmt.Println()
	fmt.Println(styles.HEADING("Interactive Keys:"))
	fmt.Printf("  %-28s %s\n", "Tab / Shift+Tab", "Switch between Symptoms, X-ray Analysis and Patient Data")
	fmt.Printf("  %-28s %s\n", "Enter", "Predict")
	fmt.Printf("  %-28s %s\n", "Esc", "Cancel a pending prediction")
	fmt.Printf("  %-28s %s\n", "Ctrl+Y", "Copy the predicted disease")
	fmt.Println(styles.HINT("\nLogs and the prediction log are kept in ~/.local/share/neurodx."))
}

func configFilePath() string {
	if *configFile != "" {
		return *configFile
	}
	return core.ConfigFile()
}

func initializeConfig() (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(configFilePath())
	if err != nil {
		return config.Config{}, err
	}

	if *serviceURL != "" {
		cfg.ServiceURL = *serviceURL
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}

	return cfg, nil
}

func initializeLogger(cfg config.Config) (*zap.Logger, error) {
	logLevel, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	if BUILD_VERSION == "dev" {
		logLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	if err := core.RotateLogFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to rotate log files: %v\n", err)
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = logLevel
	loggerConfig.OutputPaths = []string{
		"zstd://" + core.LogFile(),
	}
	return loggerConfig.Build()
}

func initializeHistoryManager() (*history.HistoryManager, error) {
	historyManager, err := history.NewHistoryManager(core.HistoryFile())
	if err != nil {
		return nil, err
	}

	return historyManager, nil
}
