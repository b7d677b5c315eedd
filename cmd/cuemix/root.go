package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Resonate-Protocol/cuemix/internal/config"
	"github.com/Resonate-Protocol/cuemix/internal/version"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
		logFile    string
		backend    string
		sampleRate int
		channels   int
		bufferMs   int
	}
	logger  *slog.Logger
	logSink io.Closer
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cuemix",
	Short: "Sample-accurate sound cue mixer",
	Long: `cuemix mixes short sounds and streamed buffers onto one stereo output
at caller-specified times.

Running cuemix without a subcommand starts the interactive demo.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyFlagOverrides(cmd)
		if err := config.Validate(cfg); err != nil {
			return err
		}
		return setupLogger()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logSink != nil {
			return logSink.Close()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/cuemix/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.logFile, "log-file", "",
		"Log file path (default: stderr)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.backend, "backend", "",
		"Audio backend: oto, malgo, portaudio or headless")
	rootCmd.PersistentFlags().IntVar(&globalOpts.sampleRate, "sample-rate", 0,
		"Output sample rate in Hz")
	rootCmd.PersistentFlags().IntVar(&globalOpts.channels, "channels", 0,
		"Channels per set")
	rootCmd.PersistentFlags().IntVar(&globalOpts.bufferMs, "buffer-ms", 0,
		"Device buffer length in milliseconds")

	addDemoFlags(rootCmd)
}

// applyFlagOverrides copies explicitly set flags over file values
func applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Audio.Backend = globalOpts.backend
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate = globalOpts.sampleRate
	}
	if flags.Changed("channels") {
		cfg.Audio.Channels = globalOpts.channels
	}
	if flags.Changed("buffer-ms") {
		cfg.Audio.BufferMs = globalOpts.bufferMs
	}
	if flags.Changed("log-file") {
		cfg.Log.File = globalOpts.logFile
	}
	if globalOpts.verbose {
		cfg.Log.Level = "debug"
	}
}

// setupLogger configures the global slog logger.
func setupLogger() error {
	var w io.Writer = os.Stderr
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("error opening log file: %w", err)
		}
		w = f
		logSink = f
	}

	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)
	return nil
}
