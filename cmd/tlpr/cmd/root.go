package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/tlpr/internal/config"
	"github.com/MeKo-Tech/tlpr/internal/models"
	"github.com/MeKo-Tech/tlpr/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// Global configuration, loaded before every command runs.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
	// Log destination; stdout is reserved for command output.
	logOutput io.Writer = os.Stderr
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tlpr",
	Short: "Thai license plate recognition",
	Long: `tlpr reads Thai vehicle license plates from photographs.

A YOLO detector finds the plate number and province regions, each region is
normalized and read by a transformer OCR model, and the province text is
snapped to the nearest official province name.

Examples:
  tlpr image car.jpg
  tlpr image https://example.com/car.jpg --format text
  tlpr serve --port 8080
  tlpr province match "กรงเทพ"`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		globalConfig = cfg
		setupLogging(cfg)
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is tlpr.yaml in ., $XDG_CONFIG_HOME/tlpr, $HOME/.config/tlpr, /etc/tlpr)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("models-dir", models.DefaultModelsDir,
		"directory containing ONNX models (can also be set via "+models.EnvModelsDir+")")
	pf.String("library-path", "", "path to the ONNX Runtime shared library")
	pf.Bool("gpu", false, "run inference with the CUDA execution provider")

	mustBind("verbose", pf.Lookup("verbose"))
	mustBind("log_level", pf.Lookup("log-level"))
	mustBind("models_dir", pf.Lookup("models-dir"))
	mustBind("library_path", pf.Lookup("library-path"))
	mustBind("gpu.enabled", pf.Lookup("gpu"))
}

// loadConfig resolves the configuration including bound flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader().LoadWithFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// GetConfig returns the configuration loaded for the running command.
func GetConfig() *config.Config {
	if globalConfig == nil {
		cfg, err := loadConfig()
		if err != nil {
			slog.Warn("Falling back to default configuration", "error", err)
			d := config.DefaultConfig()
			return &d
		}
		globalConfig = cfg
	}
	return globalConfig
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{Level: level})))
}

func mustBind(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}
