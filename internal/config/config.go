// Package config defines the application configuration and its loading from
// files, environment variables, and defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the complete configuration for the card scanning service.
type Config struct {
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	OCR        OCRConfig        `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Normalize  NormalizeConfig  `mapstructure:"normalize" yaml:"normalize" json:"normalize"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds" yaml:"thresholds" json:"thresholds"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server" json:"server"`
}

// OCRConfig controls the recognition engines and the scan loop.
type OCRConfig struct {
	// TimeBudget bounds the wall-clock time a single scan may consume.
	TimeBudget time.Duration `mapstructure:"time_budget" yaml:"time_budget" json:"time_budget"`

	// Languages passed to the primary engine, e.g. "eng".
	Languages string `mapstructure:"languages" yaml:"languages" json:"languages"`

	// DPI hint for the primary engine.
	DPI int `mapstructure:"dpi" yaml:"dpi" json:"dpi"`

	// MaxVariants caps how many image variants the heavy pipeline reads.
	MaxVariants int `mapstructure:"max_variants" yaml:"max_variants" json:"max_variants"`

	// NumThreads for neural engine sessions. 0 selects the runtime default.
	NumThreads int `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`

	// LinesModelPath and BoxesModelPath locate the ONNX recognition models.
	// Relative paths resolve against ModelsDir.
	LinesModelPath string `mapstructure:"lines_model_path" yaml:"lines_model_path" json:"lines_model_path"`
	BoxesModelPath string `mapstructure:"boxes_model_path" yaml:"boxes_model_path" json:"boxes_model_path"`
	DictPath       string `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
}

// NormalizeConfig controls image normalization before OCR.
type NormalizeConfig struct {
	// MinWidth and MaxWidth bound the working width band. Images outside the
	// band are resampled into it.
	MinWidth int `mapstructure:"min_width" yaml:"min_width" json:"min_width"`
	MaxWidth int `mapstructure:"max_width" yaml:"max_width" json:"max_width"`

	// CardCrop enables contour-based card isolation with perspective correction.
	CardCrop bool `mapstructure:"card_crop" yaml:"card_crop" json:"card_crop"`

	// MinCardAreaRatio is the smallest fraction of the frame a candidate
	// card contour may cover.
	MinCardAreaRatio float64 `mapstructure:"min_card_area_ratio" yaml:"min_card_area_ratio" json:"min_card_area_ratio"`

	// BorderPx is the white margin added around a cropped card.
	BorderPx int `mapstructure:"border_px" yaml:"border_px" json:"border_px"`

	// OrientationModelPath locates an optional ONNX orientation classifier.
	// Relative paths resolve against ModelsDir; the transition heuristic is
	// used when the model is absent.
	OrientationModelPath string `mapstructure:"orientation_model_path" yaml:"orientation_model_path" json:"orientation_model_path"`

	// OrientationConfidence is the minimum classifier probability to act on;
	// predictions below it keep the image as-is.
	OrientationConfidence float64 `mapstructure:"orientation_confidence" yaml:"orientation_confidence" json:"orientation_confidence"`
}

// ThresholdsConfig holds the score thresholds that steer the scan loop.
// The zero value is not usable; use DefaultConfig.
type ThresholdsConfig struct {
	// EarlyExitScore with an email match ends the scan immediately.
	EarlyExitScore float64 `mapstructure:"early_exit_score" yaml:"early_exit_score" json:"early_exit_score"`

	// CandidateFloor is the minimum score for a result to count as a candidate.
	CandidateFloor float64 `mapstructure:"candidate_floor" yaml:"candidate_floor" json:"candidate_floor"`

	// MergeWindow is how far below the best score a candidate may sit and
	// still be merged into the final text.
	MergeWindow float64 `mapstructure:"merge_window" yaml:"merge_window" json:"merge_window"`

	// SecondaryPassBelow triggers the sparse-text secondary pass when the
	// best primary score is under it.
	SecondaryPassBelow float64 `mapstructure:"secondary_pass_below" yaml:"secondary_pass_below" json:"secondary_pass_below"`

	// RescueBelow triggers the neural rescue passes.
	RescueBelow float64 `mapstructure:"rescue_below" yaml:"rescue_below" json:"rescue_below"`

	// FastAcceptScore accepts the rotational fast path outright.
	FastAcceptScore float64 `mapstructure:"fast_accept_score" yaml:"fast_accept_score" json:"fast_accept_score"`

	// FastAcceptWithEmail accepts the fast path at a lower score when an
	// email address is present.
	FastAcceptWithEmail float64 `mapstructure:"fast_accept_with_email" yaml:"fast_accept_with_email" json:"fast_accept_with_email"`

	// NeuralFirstAccept accepts an early neural pass that found an email.
	NeuralFirstAccept float64 `mapstructure:"neural_first_accept" yaml:"neural_first_accept" json:"neural_first_accept"`

	// AggressiveBelowChars switches variant generation to the aggressive set
	// when the combined text is shorter than this.
	AggressiveBelowChars int `mapstructure:"aggressive_below_chars" yaml:"aggressive_below_chars" json:"aggressive_below_chars"`

	// WordConfidenceKeep is the per-word confidence floor in word mode.
	WordConfidenceKeep float64 `mapstructure:"word_confidence_keep" yaml:"word_confidence_keep" json:"word_confidence_keep"`

	// LineConfidenceKeep rescues a line failing validity by average confidence.
	LineConfidenceKeep float64 `mapstructure:"line_confidence_keep" yaml:"line_confidence_keep" json:"line_confidence_keep"`

	// BoxConfidenceFloor drops low-confidence lines from the neural box engine.
	BoxConfidenceFloor float64 `mapstructure:"box_confidence_floor" yaml:"box_confidence_floor" json:"box_confidence_floor"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host          string        `mapstructure:"host" yaml:"host" json:"host"`
	Port          int           `mapstructure:"port" yaml:"port" json:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	MaxUploadSize int64         `mapstructure:"max_upload_size" yaml:"max_upload_size" json:"max_upload_size"`
	EnableMetrics bool          `mapstructure:"enable_metrics" yaml:"enable_metrics" json:"enable_metrics"`
	CORSEnabled   bool          `mapstructure:"cors_enabled" yaml:"cors_enabled" json:"cors_enabled"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		ModelsDir: "models",
		LogLevel:  "info",
		OCR: OCRConfig{
			TimeBudget:     24 * time.Second,
			Languages:      "eng",
			DPI:            300,
			MaxVariants:    5,
			LinesModelPath: "rec_mobile.onnx",
			BoxesModelPath: "rec_server.onnx",
			DictPath:       "dict_en.txt",
		},
		Normalize: NormalizeConfig{
			MinWidth:              1200,
			MaxWidth:              2000,
			CardCrop:              true,
			MinCardAreaRatio:      0.10,
			BorderPx:              20,
			OrientationModelPath:  "orientation.onnx",
			OrientationConfidence: 0.7,
		},
		Thresholds: ThresholdsConfig{
			EarlyExitScore:       0.9,
			CandidateFloor:       0.2,
			MergeWindow:          0.18,
			SecondaryPassBelow:   0.6,
			RescueBelow:          0.5,
			FastAcceptScore:      0.75,
			FastAcceptWithEmail:  0.45,
			NeuralFirstAccept:    0.55,
			AggressiveBelowChars: 120,
			WordConfidenceKeep:   55,
			LineConfidenceKeep:   70,
			BoxConfidenceFloor:   0.45,
		},
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			ReadTimeout:   60 * time.Second,
			WriteTimeout:  60 * time.Second,
			MaxUploadSize: 32 << 20,
			EnableMetrics: true,
			CORSEnabled:   true,
		},
	}
}

// Validate checks the configuration for values the pipeline cannot work with.
func (c *Config) Validate() error {
	if c.OCR.TimeBudget <= 0 {
		return fmt.Errorf("ocr.time_budget must be positive, got %v", c.OCR.TimeBudget)
	}
	if c.OCR.MaxVariants < 1 {
		return fmt.Errorf("ocr.max_variants must be at least 1, got %d", c.OCR.MaxVariants)
	}
	if c.Normalize.MinWidth <= 0 || c.Normalize.MaxWidth < c.Normalize.MinWidth {
		return fmt.Errorf("normalize width band [%d, %d] is invalid",
			c.Normalize.MinWidth, c.Normalize.MaxWidth)
	}
	if c.Normalize.OrientationConfidence < 0 || c.Normalize.OrientationConfidence > 1 {
		return fmt.Errorf("normalize.orientation_confidence %f out of range [0, 1]",
			c.Normalize.OrientationConfidence)
	}
	if c.Thresholds.MergeWindow < 0 {
		return fmt.Errorf("thresholds.merge_window must not be negative, got %f", c.Thresholds.MergeWindow)
	}
	if c.Thresholds.EarlyExitScore < c.Thresholds.CandidateFloor {
		return fmt.Errorf("thresholds.early_exit_score %f below candidate floor %f",
			c.Thresholds.EarlyExitScore, c.Thresholds.CandidateFloor)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}
