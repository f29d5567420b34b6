package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"breed-detector/internal/metrics"

	"github.com/go-resty/resty/v2"
)

const DefaultField = "file"

type Result struct {
	Breed      string   `json:"breed"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Client calls the external prediction service. It never retries and sets no
// timeout of its own; a request runs until the service answers or ctx ends.
type Client struct {
	client   *resty.Client
	endpoint string
	field    string
}

type Option func(*Client)

// WithField sets the multipart field the image is attached under.
func WithField(field string) Option {
	return func(c *Client) {
		if field != "" {
			c.field = field
		}
	}
}

func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		client:   resty.New(),
		endpoint: endpoint,
		field:    DefaultField,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) Field() string {
	return c.field
}

func (c *Client) Predict(ctx context.Context, filename string, data []byte) (Result, error) {
	start := time.Now()
	res, err := c.predict(ctx, filename, data)
	metrics.PredictionDuration.Observe(time.Since(start).Seconds())
	metrics.PredictionsTotal.WithLabelValues(Kind(err)).Inc()
	return res, err
}

func (c *Client) predict(ctx context.Context, filename string, data []byte) (Result, error) {
	contentType := http.DetectContentType(data)

	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetMultipartField(c.field, filename, contentType, bytes.NewReader(data)).
		Post(c.endpoint)
	if err != nil {
		slog.Error("unable to reach prediction service", "endpoint", c.endpoint, "error", err)
		return Result{}, &TransportError{Err: err}
	}

	if !res.IsSuccess() {
		slog.Error("prediction service returned error", "endpoint", c.endpoint, "status_code", res.StatusCode(), "body", res.String())
		return Result{}, &TransportError{StatusCode: res.StatusCode()}
	}

	body := res.Body()

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		slog.Error("error parsing response from prediction service", "endpoint", c.endpoint, "error", err)
		return Result{}, &ParseError{Body: body, Err: err}
	}

	if result.Confidence != nil {
		slog.Info("prediction received", "breed", result.Breed, "confidence", *result.Confidence)
	} else {
		slog.Info("prediction received", "breed", result.Breed)
	}
	return result, nil
}
