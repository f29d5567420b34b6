package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"breed-detector/cmd"
	"breed-detector/internal/batch"
	"breed-detector/internal/presenter"
	"breed-detector/pkg/api"

	"github.com/schollz/progressbar/v3"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".heic": true,
}

// expandPaths replaces each directory with the image files directly inside it.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("error listing '%s': %w", arg, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				paths = append(paths, filepath.Join(arg, entry.Name()))
			}
		}
	}
	return paths, nil
}

type jsonOutcome struct {
	Path   string      `json:"path"`
	Result *api.Result `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func printText(outcomes []batch.Outcome) {
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Printf("%s\n  error: %v\n\n", o.Path, o.Err)
			continue
		}

		view := presenter.PresentResult(o.Result, presenter.LayoutCompact)
		fmt.Printf("%s\n  %s", o.Path, view.Breed.Name)
		if view.Confidence != "" {
			fmt.Printf(" (%s)", view.Confidence)
		}
		if !view.Matched {
			fmt.Printf(" [predicted '%s', not in catalog]", view.Label)
		}
		if view.Uncertain {
			fmt.Printf(" [low confidence]")
		}
		fmt.Println()
		for _, card := range view.Breed.Cards {
			fmt.Printf("  %s %s: %s\n", card.Icon, card.Label, card.Value)
		}
		fmt.Printf("  Key strengths: %s\n\n", strings.Join(view.Breed.Strengths, ", "))
	}
}

func printJSON(outcomes []batch.Outcome) error {
	out := make([]jsonOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		entry := jsonOutcome{Path: o.Path}
		if o.Err != nil {
			entry.Error = o.Err.Error()
		} else {
			entry.Result = presenter.Result(o.Result)
		}
		out = append(out, entry)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func main() {
	workers := flag.Int("workers", batch.DefaultWorkers, "number of files classified concurrently")
	asJSON := flag.Bool("json", false, "print results as JSON")

	cmd.LoadEnvFile()
	cfg := cmd.LoadConfig()

	paths, err := expandPaths(flag.Args())
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(paths) == 0 {
		log.Fatalf("usage: classify [-env file] [-workers n] [-json] <image or directory>...")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	classifier := batch.NewClassifier(cmd.NewPredictionClient(cfg), cmd.LoadCatalog(cfg), cfg.UploadOptions(), *workers)

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("⏳ classifying"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
	outcomes := classifier.Classify(ctx, paths, func(batch.Outcome) {
		_ = bar.Add(1)
	})
	_ = bar.Finish()

	if *asJSON {
		if err := printJSON(outcomes); err != nil {
			log.Fatalf("error writing results: %v", err)
		}
	} else {
		printText(outcomes)
	}

	for _, o := range outcomes {
		if o.Err != nil {
			os.Exit(1)
		}
	}
}
