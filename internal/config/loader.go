package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "tlpr"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "TLPR"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader over the global viper instance so that flags
// bound by the root command take part in resolution.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader over v.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load resolves defaults, the first config file found on the search path,
// environment variables and bound flags, then validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithoutValidation is Load without the final Validate call.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.LoadWithFileWithoutValidation("")
}

// LoadWithFile loads configuration from configFile, or from the search path
// when configFile is empty.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation loads configuration without validating it.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file on the search path: defaults and env only
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) any {
	return l.v.Get(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key with viper. AutomaticEnv only resolves
// keys viper knows about, so each leaf needs a default.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("models_dir", d.ModelsDir)
	l.v.SetDefault("library_path", d.LibraryPath)
	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("detector.model_path", d.Detector.ModelPath)
	l.v.SetDefault("detector.input_size", d.Detector.InputSize)
	l.v.SetDefault("detector.score_floor", d.Detector.ScoreFloor)
	l.v.SetDefault("detector.iou_threshold", d.Detector.IoUThreshold)
	l.v.SetDefault("detector.num_threads", d.Detector.NumThreads)

	l.v.SetDefault("recognizer.encoder_path", d.Recognizer.EncoderPath)
	l.v.SetDefault("recognizer.decoder_path", d.Recognizer.DecoderPath)
	l.v.SetDefault("recognizer.vocab_path", d.Recognizer.VocabPath)
	l.v.SetDefault("recognizer.image_size", d.Recognizer.ImageSize)
	l.v.SetDefault("recognizer.max_length", d.Recognizer.MaxLength)
	l.v.SetDefault("recognizer.num_threads", d.Recognizer.NumThreads)
	l.v.SetDefault("recognizer.tokens.decoder_start", d.Recognizer.Tokens.DecoderStart)
	l.v.SetDefault("recognizer.tokens.bos", d.Recognizer.Tokens.BOS)
	l.v.SetDefault("recognizer.tokens.pad", d.Recognizer.Tokens.PAD)
	l.v.SetDefault("recognizer.tokens.eos", d.Recognizer.Tokens.EOS)
	l.v.SetDefault("recognizer.tokens.unk", d.Recognizer.Tokens.UNK)

	l.v.SetDefault("preprocess.threshold", d.Preprocess.Threshold)
	l.v.SetDefault("preprocess.width", d.Preprocess.Width)
	l.v.SetDefault("preprocess.height", d.Preprocess.Height)

	l.v.SetDefault("pipeline.min_confidence", d.Pipeline.MinConfidence)
	l.v.SetDefault("pipeline.provinces", d.Pipeline.Provinces)

	l.v.SetDefault("fetch.timeout_sec", d.Fetch.TimeoutSec)
	l.v.SetDefault("fetch.max_bytes", d.Fetch.MaxBytes)
	l.v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.pretty", d.Output.Pretty)

	l.v.SetDefault("batch.workers", d.Batch.Workers)
	l.v.SetDefault("batch.recursive", d.Batch.Recursive)
	l.v.SetDefault("batch.include", d.Batch.Include)
	l.v.SetDefault("batch.exclude", d.Batch.Exclude)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.strict_status", d.Server.StrictStatus)
	l.v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)
	l.v.SetDefault("server.rate_limit.requests_per_hour", d.Server.RateLimit.RequestsPerHour)
	l.v.SetDefault("server.rate_limit.max_requests_per_day", d.Server.RateLimit.MaxRequestsPerDay)
	l.v.SetDefault("server.rate_limit.max_data_per_day", d.Server.RateLimit.MaxDataPerDay)

	l.v.SetDefault("gpu.enabled", d.GPU.UseGPU)
	l.v.SetDefault("gpu.device_id", d.GPU.DeviceID)
	l.v.SetDefault("gpu.mem_limit", d.GPU.MemLimit)
	l.v.SetDefault("gpu.arena_extend_strategy", d.GPU.ArenaExtendStrategy)
	l.v.SetDefault("gpu.cudnn_conv_algo_search", d.GPU.CUDNNConvAlgoSearch)
}

// GetConfigSearchPaths returns the directories searched for tlpr.yaml, in order.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && configDir != "" {
		paths = append(paths, filepath.Join(configDir, "tlpr"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "tlpr"))
	}

	return append(paths, "/etc/tlpr")
}

// MarshalYAML renders cfg as YAML, the format of tlpr.yaml.
func MarshalYAML(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}

// GenerateDefaultConfigFile writes the default configuration to filename.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	cfg := DefaultConfig()
	out, err := MarshalYAML(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, out, 0o600)
}
