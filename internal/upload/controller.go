package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"breed-detector/internal/breeds"
	"breed-detector/internal/metrics"
	"breed-detector/internal/prediction"
	"breed-detector/internal/preview"
)

const DefaultMaxBytes = 10 << 20

type State int

const (
	Idle State = iota
	PreviewOnly
	Analyzing
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PreviewOnly:
		return "preview_only"
	case Analyzing:
		return "analyzing"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

func (i Image) Size() int64 {
	return int64(len(i.Data))
}

type Predictor interface {
	Predict(ctx context.Context, filename string, data []byte) (prediction.Result, error)
}

type PreviewStore interface {
	Create(data []byte, declaredType string) (preview.Ref, error)
	Release(id string)
}

type Result struct {
	Label      string // as returned by the prediction service
	Confidence *float64
	Uncertain  bool
	Matched    bool // false when Breed is the fallback record
	Breed      breeds.Record
}

type Options struct {
	MaxBytes   int64
	AutoSubmit bool
	// Results with a confidence below this are flagged uncertain. 0 disables.
	LowConfidenceThreshold float64
}

type Snapshot struct {
	State       State
	Generation  uint64
	FileName    string
	FileSize    int64
	ContentType string
	Preview     preview.Ref
	Result      *Result
	Err         error
	AutoSubmit  bool
}

// Controller owns one user's selected image and drives it through the
// Idle -> PreviewOnly -> Analyzing -> Resolved/Failed cycle.
//
// Every selection and reset starts a new generation. A prediction carries the
// generation it was issued in and its result is dropped if the generation has
// moved on by the time it completes.
type Controller struct {
	mu        sync.Mutex
	predictor Predictor
	previews  PreviewStore
	catalog   *breeds.Catalog
	opts      Options

	state      State
	image      *Image
	preview    preview.Ref
	result     *Result
	err        error
	generation uint64
	settled    chan struct{}
}

func NewController(predictor Predictor, previews PreviewStore, catalog *breeds.Catalog, opts Options) *Controller {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &Controller{
		predictor: predictor,
		previews:  previews,
		catalog:   catalog,
		opts:      opts,
		state:     Idle,
	}
}

// Reject records a rejected selection and returns it as an error.
func Reject(err *ValidationError) error {
	metrics.RejectedUploadsTotal.WithLabelValues(err.Reason).Inc()
	slog.Warn("image selection rejected", "reason", err.Reason)
	return err
}

// SelectFile validates img and makes it the current selection. Rejected
// selections leave the controller untouched.
func (c *Controller) SelectFile(img Image) error {
	if verr := CheckSize(img.Size(), c.opts.MaxBytes); verr != nil {
		return Reject(verr)
	}

	ref, err := c.previews.Create(img.Data, img.ContentType)
	if err != nil {
		if errors.Is(err, preview.ErrNotImage) {
			return Reject(NotImage())
		}
		return fmt.Errorf("error creating preview: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLocked()
	c.image = &img
	c.preview = ref
	c.state = PreviewOnly

	slog.Info("image selected", "file", img.Name, "size", img.Size(), "generation", c.generation)

	if c.opts.AutoSubmit {
		c.startLocked()
	}

	return nil
}

// Submit starts analysis of the current selection.
func (c *Controller) Submit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.image == nil {
		return Reject(MissingImage())
	}
	if c.state != PreviewOnly {
		return fmt.Errorf("%w: cannot submit while %s", ErrInvalidTransition, c.state)
	}

	c.startLocked()
	return nil
}

// Reset returns to Idle from any state. It is idempotent.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLocked()
	c.state = Idle
}

func (c *Controller) Retry() {
	c.Reset()
}

func (c *Controller) clearLocked() {
	c.previews.Release(c.preview.ID)
	c.image = nil
	c.preview = preview.Ref{}
	c.result = nil
	c.err = nil
	c.generation++

	if c.settled != nil {
		close(c.settled)
		c.settled = nil
	}
}

func (c *Controller) startLocked() {
	c.state = Analyzing
	c.settled = make(chan struct{})

	go c.analyze(c.generation, *c.image)
}

func (c *Controller) analyze(generation uint64, img Image) {
	res, err := c.predictor.Predict(context.Background(), img.Name, img.Data)
	c.complete(generation, res, err)
}

func (c *Controller) complete(generation uint64, res prediction.Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation || c.state != Analyzing {
		metrics.StaleResultsTotal.Inc()
		slog.Info("discarding stale prediction result", "generation", generation, "current_generation", c.generation)
		return
	}

	if err != nil {
		slog.Error("image analysis failed", "kind", prediction.Kind(err), "file", c.image.Name, "error", err)
		c.state = Failed
		c.err = err
	} else {
		c.result = c.resolve(res)
		c.state = Resolved
		slog.Info("breed detected", "label", res.Breed, "breed", c.result.Breed.Name, "matched", c.result.Matched)
	}

	close(c.settled)
	c.settled = nil
}

func (c *Controller) resolve(res prediction.Result) *Result {
	return Resolve(c.catalog, res, c.opts.LowConfidenceThreshold)
}

// CheckSize rejects empty selections and those at or above maxBytes.
func CheckSize(size, maxBytes int64) *ValidationError {
	if size == 0 {
		return MissingImage()
	}
	if size >= maxBytes {
		return TooLarge(maxBytes)
	}
	return nil
}

// Resolve maps a prediction onto its catalog record, using the fallback for
// unknown labels. A threshold of 0 never flags a result as uncertain.
func Resolve(catalog *breeds.Catalog, res prediction.Result, threshold float64) *Result {
	record, matched := catalog.Resolve(res.Breed)
	if !matched {
		metrics.UnknownLabelsTotal.Inc()
		slog.Warn("unknown breed label, using fallback", "label", res.Breed, "fallback", record.Label)
	}

	return &Result{
		Label:      res.Breed,
		Confidence: res.Confidence,
		Uncertain:  threshold > 0 && res.Confidence != nil && *res.Confidence < threshold,
		Matched:    matched,
		Breed:      record,
	}
}

// Await blocks until the analysis running at call time settles, is superseded,
// or ctx is done. It returns immediately when nothing is running.
func (c *Controller) Await(ctx context.Context) error {
	c.mu.Lock()
	settled := c.settled
	c.mu.Unlock()

	if settled == nil {
		return nil
	}

	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:      c.state,
		Generation: c.generation,
		Preview:    c.preview,
		Err:        c.err,
		AutoSubmit: c.opts.AutoSubmit,
	}
	if c.image != nil {
		snap.FileName = c.image.Name
		snap.FileSize = c.image.Size()
		snap.ContentType = c.image.ContentType
	}
	if c.result != nil {
		r := *c.result
		r.Breed.Strengths = append([]string(nil), r.Breed.Strengths...)
		snap.Result = &r
	}
	return snap
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) MaxBytes() int64 {
	return c.opts.MaxBytes
}
