// Package cmd implements the lurchfeed command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/lurchfeed/internal/config"
	"github.com/zjrosen/lurchfeed/internal/consumer"
	"github.com/zjrosen/lurchfeed/internal/flags"
	"github.com/zjrosen/lurchfeed/internal/history"
	"github.com/zjrosen/lurchfeed/internal/log"
	"github.com/zjrosen/lurchfeed/internal/lurch"
	"github.com/zjrosen/lurchfeed/internal/process"
	"github.com/zjrosen/lurchfeed/internal/tracing"
)

func init() {
	// Query the terminal background before Bubble Tea owns stdin so the
	// OSC 11 reply does not leak into the input loop.
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var (
	version   = "dev"
	cfgFile   string
	cfg       config.Config
	debugFlag bool
	logFile   string
	exitCode  int
)

var rootCmd = &cobra.Command{
	Use:   "lurchfeed [url]",
	Short: "Download a stream through lurch-dl's JSON event feed",
	Long: `lurchfeed runs lurch-dl with --json-data, reads the events it writes on
stdout and stderr, and rebuilds the video file from the base64 chunks.

Title, progress and diagnostics are printed as they arrive. lurchfeed exits
with lurch-dl's exit code.

Examples:
  lurchfeed https://gronkh.tv/streams/777 -o stream.ts
  lurchfeed --url https://gronkh.tv/streams/777 --start 1h --stop 1h30m -o part.ts
  lurchfeed https://gronkh.tv/streams/777 -o stream.ts --ui tui`,
	Version:      version,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runRoot,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/lurchfeed/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"enable debug logging (also LURCHFEED_DEBUG)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "lurchfeed.log",
		"debug log destination")

	f := rootCmd.Flags()
	f.String("tool", "", "lurch-dl executable")
	f.String("url", "", "stream URL")
	f.String("start", "", "start offset, e.g. 1h5m")
	f.String("stop", "", "stop offset, e.g. 1h30m")
	f.StringP("output", "o", "", "output file")
	f.Int("chapter", 0, "chapter to download, 0 for the whole stream")
	f.String("format", "", "video format, auto lets lurch-dl choose")
	f.Float64("max-rate", 0, "download rate limit in MB/s")
	f.String("stream-order", "", "interleaved or primary-first")
	f.String("on-malformed", "", "skip or abort on a line that is not a valid event")
	f.Bool("overwrite", true, "replace an existing output file")
	f.Duration("timeout", 0, "kill lurch-dl after this long")
	f.String("ui", "", "plain or tui")
	f.Bool("trace", false, "enable tracing for this run")

	bind := map[string]string{
		"tool":            "tool",
		"url":             "url",
		"start":           "start",
		"stop":            "stop",
		"output":          "output",
		"chapter":         "chapter",
		"format":          "format",
		"max_rate":        "max-rate",
		"stream_order":    "stream-order",
		"on_malformed":    "on-malformed",
		"overwrite":       "overwrite",
		"timeout":         "timeout",
		"ui":              "ui",
		"tracing.enabled": "trace",
	}
	for key, flag := range bind {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("tool", defaults.Tool)
	viper.SetDefault("format", defaults.Format)
	viper.SetDefault("stream_order", defaults.StreamOrder)
	viper.SetDefault("on_malformed", defaults.OnMalformed)
	viper.SetDefault("overwrite", defaults.Overwrite)
	viper.SetDefault("ui", defaults.UI)
	viper.SetDefault("history.enabled", defaults.History.Enabled)
	viper.SetDefault("history.path", defaults.History.Path)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("flags", defaults.Flags)

	viper.SetEnvPrefix("LURCHFEED")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .lurchfeed/config.yaml (current directory)
		// 2. ~/.config/lurchfeed/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "lurchfeed"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	// A missing config file means defaults apply.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "lurchfeed: reading config: %v\n", err)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

const localConfigPath = ".lurchfeed/config.yaml"

// initLogging enables the debug log when --debug or LURCHFEED_DEBUG is set.
// The returned cleanup is never nil.
func initLogging(tui bool) (func(), error) {
	if !debugFlag && os.Getenv("LURCHFEED_DEBUG") == "" {
		return func() {}, nil
	}

	var (
		cleanup func()
		err     error
	)
	if tui {
		cleanup, err = log.InitWithTeaLog(logFile, "lurchfeed")
	} else {
		cleanup, err = log.Init(logFile)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	log.Info(log.CatConfig, "lurchfeed starting", "version", version, "config", viper.ConfigFileUsed())
	return func() {
		log.Reset()
		cleanup()
	}, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg.URL = args[0]
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cleanupLog, err := initLogging(cfg.UI == config.UITUI)
	if err != nil {
		return err
	}
	defer cleanupLog()

	registry := flags.New(cfg.Flags)
	req, err := buildRequest(cfg, registry)
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	repo, closeHistory, err := openHistory(cfg, registry)
	if err != nil {
		return err
	}
	defer closeHistory()

	provider, err := tracing.NewProvider(tracingConfig(cfg.Tracing))
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		if shutdownErr := provider.Shutdown(context.Background()); shutdownErr != nil {
			log.ErrorErr(log.CatTrace, "tracing shutdown failed", shutdownErr)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []consumer.RunOption{consumer.WithTracer(provider.Tracer())}
	if repo != nil {
		opts = append(opts, consumer.WithHistory(repo))
	}

	var res consumer.Result
	if cfg.UI == config.UITUI {
		res, err = runTUI(ctx, req, opts...)
	} else {
		res, err = runPlain(ctx, req, cmd.OutOrStdout(), opts...)
	}
	if err != nil {
		return err
	}
	exitCode = res.ExitCode
	return nil
}

func runPlain(ctx context.Context, req consumer.Request, stdout io.Writer, opts ...consumer.RunOption) (consumer.Result, error) {
	opts = append(opts, consumer.WithStatusWriter(stdout))
	return consumer.Run(ctx, req, opts...)
}

// buildRequest maps configuration onto a consumer request.
func buildRequest(c config.Config, registry *flags.Registry) (consumer.Request, error) {
	order, err := process.ParseStreamOrder(c.StreamOrder)
	if err != nil {
		return consumer.Request{}, err
	}
	policy, err := consumer.ParseMalformedPolicy(c.OnMalformed)
	if err != nil {
		return consumer.Request{}, err
	}
	return consumer.Request{
		Tool: c.Tool,
		Args: lurch.Args{
			URL:     c.URL,
			Start:   c.Start,
			Stop:    c.Stop,
			Chapter: c.Chapter,
			Format:  c.Format,
			MaxRate: c.MaxRate,
		},
		Output:         c.Output,
		Overwrite:      c.Overwrite,
		StreamOrder:    order,
		OnMalformed:    policy,
		Timeout:        c.Timeout,
		SanitizeTitles: registry.Enabled(flags.FlagStripTitleANSI),
	}, nil
}

// openHistory returns the configured run store, or nil when history is off.
// The cleanup function is never nil.
func openHistory(c config.Config, registry *flags.Registry) (history.Repository, func(), error) {
	if !c.History.Enabled {
		return nil, func() {}, nil
	}
	if !registry.Enabled(flags.FlagHistoryPersistence) {
		repo := history.NewMemoryRepository()
		return repo, func() { _ = repo.Close() }, nil
	}
	if c.History.Path == "" {
		return nil, nil, errors.New("history.path is not set and no home directory was found")
	}
	db, err := history.NewDB(c.History.Path)
	if err != nil {
		return nil, nil, err
	}
	return db.Runs(), func() {
		if closeErr := db.Close(); closeErr != nil {
			log.ErrorErr(log.CatHistory, "closing history database", closeErr)
		}
	}, nil
}

func tracingConfig(tc config.TracingConfig) tracing.Config {
	out := tracing.DefaultConfig()
	out.Enabled = tc.Enabled
	out.Exporter = tc.Exporter
	out.FilePath = tc.FilePath
	out.OTLPEndpoint = tc.OTLPEndpoint
	out.SampleRate = tc.SampleRate
	return out
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode is the exit code of the last lurch-dl run, 0 if none ran.
func ExitCode() int {
	return exitCode
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
