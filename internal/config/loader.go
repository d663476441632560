package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "cardscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "CARDSCAN"
)

// Loader handles loading configuration from files and the environment.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flag
// bindings made by the CLI take effect.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// Load reads configuration from the search paths and the environment,
// applies defaults, and validates the result.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env vars still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFile reads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "cardscan"))
		l.v.AddConfigPath(home)
	}
	l.v.AddConfigPath("/etc/cardscan")
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// The scan budget is commonly set directly in deployment environments.
	_ = l.v.BindEnv("ocr.time_budget", "CARDSCAN_OCR_TIME_BUDGET", "OCR_TIME_BUDGET_SECONDS")
}

func (l *Loader) setDefaults() {
	def := DefaultConfig()

	l.v.SetDefault("models_dir", def.ModelsDir)
	l.v.SetDefault("log_level", def.LogLevel)
	l.v.SetDefault("verbose", def.Verbose)

	l.v.SetDefault("ocr.time_budget", def.OCR.TimeBudget)
	l.v.SetDefault("ocr.languages", def.OCR.Languages)
	l.v.SetDefault("ocr.dpi", def.OCR.DPI)
	l.v.SetDefault("ocr.max_variants", def.OCR.MaxVariants)
	l.v.SetDefault("ocr.num_threads", def.OCR.NumThreads)
	l.v.SetDefault("ocr.lines_model_path", def.OCR.LinesModelPath)
	l.v.SetDefault("ocr.boxes_model_path", def.OCR.BoxesModelPath)
	l.v.SetDefault("ocr.dict_path", def.OCR.DictPath)

	l.v.SetDefault("normalize.min_width", def.Normalize.MinWidth)
	l.v.SetDefault("normalize.max_width", def.Normalize.MaxWidth)
	l.v.SetDefault("normalize.card_crop", def.Normalize.CardCrop)
	l.v.SetDefault("normalize.min_card_area_ratio", def.Normalize.MinCardAreaRatio)
	l.v.SetDefault("normalize.border_px", def.Normalize.BorderPx)
	l.v.SetDefault("normalize.orientation_model_path", def.Normalize.OrientationModelPath)
	l.v.SetDefault("normalize.orientation_confidence", def.Normalize.OrientationConfidence)

	l.v.SetDefault("thresholds.early_exit_score", def.Thresholds.EarlyExitScore)
	l.v.SetDefault("thresholds.candidate_floor", def.Thresholds.CandidateFloor)
	l.v.SetDefault("thresholds.merge_window", def.Thresholds.MergeWindow)
	l.v.SetDefault("thresholds.secondary_pass_below", def.Thresholds.SecondaryPassBelow)
	l.v.SetDefault("thresholds.rescue_below", def.Thresholds.RescueBelow)
	l.v.SetDefault("thresholds.fast_accept_score", def.Thresholds.FastAcceptScore)
	l.v.SetDefault("thresholds.fast_accept_with_email", def.Thresholds.FastAcceptWithEmail)
	l.v.SetDefault("thresholds.neural_first_accept", def.Thresholds.NeuralFirstAccept)
	l.v.SetDefault("thresholds.aggressive_below_chars", def.Thresholds.AggressiveBelowChars)
	l.v.SetDefault("thresholds.word_confidence_keep", def.Thresholds.WordConfidenceKeep)
	l.v.SetDefault("thresholds.line_confidence_keep", def.Thresholds.LineConfidenceKeep)
	l.v.SetDefault("thresholds.box_confidence_floor", def.Thresholds.BoxConfidenceFloor)

	l.v.SetDefault("server.host", def.Server.Host)
	l.v.SetDefault("server.port", def.Server.Port)
	l.v.SetDefault("server.read_timeout", def.Server.ReadTimeout)
	l.v.SetDefault("server.write_timeout", def.Server.WriteTimeout)
	l.v.SetDefault("server.max_upload_size", def.Server.MaxUploadSize)
	l.v.SetDefault("server.enable_metrics", def.Server.EnableMetrics)
	l.v.SetDefault("server.cors_enabled", def.Server.CORSEnabled)
}

// ResolveModelPath resolves a model path against ModelsDir unless absolute.
func (c *Config) ResolveModelPath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.ModelsDir, path)
}
