package cmd

import (
	"flag"
	"log"
	"log/slog"

	"breed-detector/internal/breeds"
	"breed-detector/internal/config"
	"breed-detector/internal/prediction"
)

// LoadEnvFile registers the -env flag, parses flags, and loads the file if one
// was given. Binaries must define their own flags before calling it.
func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if err := config.LoadEnvFile(configPath); err != nil {
		log.Fatalf("%v", err)
	}
}

func LoadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	return cfg
}

// LoadCatalog loads the breed catalog. Reference images are only kept when
// ASSETS_DIR is set, since nothing else serves them.
func LoadCatalog(cfg config.Config) *breeds.Catalog {
	catalog, err := breeds.Load(cfg.BreedCatalog)
	if err != nil {
		log.Fatalf("error loading breed catalog: %v", err)
	}
	if cfg.AssetsDir == "" {
		slog.Info("ASSETS_DIR not set, reference images disabled")
		catalog = catalog.WithoutImages()
	}
	slog.Info("loaded breed catalog", "path", cfg.BreedCatalog, "breeds", catalog.Len(), "fallback", catalog.Fallback().Label)
	return catalog
}

func NewPredictionClient(cfg config.Config) *prediction.Client {
	client := prediction.NewClient(cfg.PredictionURL, prediction.WithField(cfg.PredictionField))
	slog.Info("using prediction service", "endpoint", client.Endpoint(), "field", client.Field())
	return client
}
