package batch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"breed-detector/internal/breeds"
	"breed-detector/internal/upload"
)

const DefaultWorkers = 4

// Outcome is the classification of one file. Exactly one of Result and Err is set.
type Outcome struct {
	Path   string
	Result *upload.Result
	Err    error
}

type Classifier struct {
	predictor upload.Predictor
	catalog   *breeds.Catalog
	opts      upload.Options
	workers   int
}

func NewClassifier(predictor upload.Predictor, catalog *breeds.Catalog, opts upload.Options, workers int) *Classifier {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = upload.DefaultMaxBytes
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Classifier{predictor: predictor, catalog: catalog, opts: opts, workers: workers}
}

// ClassifyFile applies the same checks as an interactive selection before
// sending the file to the prediction service.
func (c *Classifier) ClassifyFile(ctx context.Context, path string) (*upload.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error reading '%s': %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("'%s' is a directory", path)
	}
	if verr := upload.CheckSize(info.Size(), c.opts.MaxBytes); verr != nil {
		return nil, upload.Reject(verr)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading '%s': %w", path, err)
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return nil, upload.Reject(upload.NotImage())
	}

	res, err := c.predictor.Predict(ctx, filepath.Base(path), data)
	if err != nil {
		return nil, err
	}

	return upload.Resolve(c.catalog, res, c.opts.LowConfidenceThreshold), nil
}

// Classify runs ClassifyFile over paths in a worker pool. Outcomes are returned
// in the order of paths; onDone, if set, is called as each file finishes.
func (c *Classifier) Classify(ctx context.Context, paths []string, onDone func(Outcome)) []Outcome {
	queue := make(chan int, len(paths))
	for i := range paths {
		queue <- i
	}
	close(queue)

	completed := make(chan CompletedTask[int, *upload.Result], len(paths))
	RunInPool(func(i int) (*upload.Result, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return c.ClassifyFile(ctx, paths[i])
	}, queue, completed, c.workers)

	outcomes := make([]Outcome, len(paths))
	for task := range completed {
		outcome := Outcome{Path: paths[task.Input], Result: task.Result, Err: task.Error}
		if outcome.Err != nil {
			outcome.Result = nil
			slog.Error("error classifying file", "path", outcome.Path, "error", outcome.Err)
		}
		outcomes[task.Input] = outcome
		if onDone != nil {
			onDone(outcome)
		}
	}

	return outcomes
}
