package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"live-quiz-service/internal/config"
)

type rootOptions struct {
	configPath string
	logFormat  string
	verbose    bool
}

// Execute runs the CLI.
func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		slog.Error("quiz-service: command failed", "error", err)
	}
	return err
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "quiz-service",
		Short: "Host live multi-player quizzes over TCP and WebSocket",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(opts)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pfs := cmd.PersistentFlags()
	pfs.StringVar(&opts.configPath, "config", "config/config.yaml", "path to YAML config (env: QUIZ_CONFIG)")
	pfs.StringVar(&opts.logFormat, "log-format", "text", "log output format, text or json (env: QUIZ_LOG_FORMAT)")
	pfs.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level (env: QUIZ_VERBOSE)")

	cmd.AddCommand(
		NewStartCmd(opts),
		NewMigrateCmd(opts),
		NewImportCmd(opts),
		NewShuffleCmd(),
		NewTemplateCmd(),
	)

	bindEnv(pfs)
	for _, sub := range cmd.Commands() {
		bindEnv(sub.Flags())
	}

	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

// bindEnv lets QUIZ_* environment variables fill flags the user did not set.
func bindEnv(flags *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix("QUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = flags.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func setupLogging(opts *rootOptions) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch opts.logFormat {
	case "text", "":
		h = slog.NewTextHandler(os.Stderr, hopts)
	case "json":
		h = slog.NewJSONHandler(os.Stderr, hopts)
	default:
		return fmt.Errorf("unknown log format %q", opts.logFormat)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// loadConfig reads the config file. A missing file leaves every setting at
// its default so the service can run from flags alone.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config: file not found, using defaults", "path", path)
		return config.Config{}, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: load %s: %w", path, err)
	}
	return cfg, nil
}
