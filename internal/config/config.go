package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"

	"breed-detector/internal/presenter"
	"breed-detector/internal/upload"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port                   int     `env:"PORT" envDefault:"8080"`
	PredictionURL          string  `env:"PREDICTION_URL" envDefault:"http://127.0.0.1:5000/predict"`
	PredictionField        string  `env:"PREDICTION_FIELD" envDefault:"file"`
	AutoSubmitOnSelect     bool    `env:"AUTO_SUBMIT_ON_SELECT" envDefault:"true"`
	MaxUploadBytes         int64   `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	Layout                 string  `env:"LAYOUT" envDefault:"side-by-side"`
	BreedCatalog           string  `env:"BREED_CATALOG"`
	LowConfidenceThreshold float64 `env:"LOW_CONFIDENCE_THRESHOLD" envDefault:"0"`
	PreviewSize            int     `env:"PREVIEW_SIZE" envDefault:"512"`
	MaxSessions            int     `env:"MAX_SESSIONS" envDefault:"1000"`
	AllowedOrigins         string  `env:"ALLOWED_ORIGINS" envDefault:"*"` // Comma-separated
	AssetsDir              string  `env:"ASSETS_DIR"`
}

// LoadEnvFile loads variables from path into the environment. An empty path
// means the environment is used as is.
func LoadEnvFile(path string) error {
	if path == "" {
		log.Printf("no env file specified, using os.Environ only")
		return nil
	}

	log.Printf("loading env from file %s", path)
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading .env file '%s': %w", path, err)
	}
	return nil
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	u, err := url.Parse(c.PredictionURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid PREDICTION_URL '%s': must be an absolute http(s) url", c.PredictionURL)
	}
	if strings.TrimSpace(c.PredictionField) == "" {
		return fmt.Errorf("PREDICTION_FIELD must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if _, err := presenter.ParseLayout(c.Layout); err != nil {
		return fmt.Errorf("invalid LAYOUT: %w", err)
	}
	if c.LowConfidenceThreshold < 0 || c.LowConfidenceThreshold > 1 {
		return fmt.Errorf("LOW_CONFIDENCE_THRESHOLD must be between 0 and 1, got %v", c.LowConfidenceThreshold)
	}
	return nil
}

func (c Config) UploadOptions() upload.Options {
	return upload.Options{
		MaxBytes:               c.MaxUploadBytes,
		AutoSubmit:             c.AutoSubmitOnSelect,
		LowConfidenceThreshold: c.LowConfidenceThreshold,
	}
}

func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
