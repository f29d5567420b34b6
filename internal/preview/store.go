package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"breed-detector/internal/metrics"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
)

const (
	DefaultMaxEdge = 512
	jpegQuality    = 85
)

var ErrNotImage = errors.New("file is not a supported image")

type Preview struct {
	ID          string
	ContentType string
	Data        []byte
	Width       int // 0 when the image could not be decoded and is kept as uploaded
	Height      int
}

type Ref struct {
	ID  string
	URL string
}

// Store keeps preview images in memory until they are released. Every Create
// must be paired with a Release once the preview is superseded.
type Store struct {
	mu        sync.RWMutex
	previews  map[string]*Preview
	maxEdge   uint
	urlPrefix string
}

func NewStore(maxEdge int, urlPrefix string) *Store {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	return &Store{
		previews:  make(map[string]*Preview),
		maxEdge:   uint(maxEdge),
		urlPrefix: strings.TrimSuffix(urlPrefix, "/") + "/",
	}
}

func isImageType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

// Create stores a downscaled copy of data. declaredType is the content type the
// client claimed and is only used when sniffing is inconclusive.
func (s *Store) Create(data []byte, declaredType string) (Ref, error) {
	contentType := http.DetectContentType(data)
	if !isImageType(contentType) {
		if !isImageType(declaredType) {
			return Ref{}, fmt.Errorf("%w: detected content type %s", ErrNotImage, contentType)
		}
		contentType = declaredType
	}

	p, err := s.render(data, contentType)
	if err != nil {
		return Ref{}, err
	}
	p.ID = uuid.New().String()

	s.mu.Lock()
	s.previews[p.ID] = p
	metrics.PreviewsStored.Set(float64(len(s.previews)))
	s.mu.Unlock()

	return Ref{ID: p.ID, URL: s.urlPrefix + p.ID}, nil
}

func (s *Store) render(data []byte, contentType string) (*Preview, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// Formats without a registered decoder are shown as uploaded.
		slog.Debug("preview kept as uploaded", "content_type", contentType, "error", err)
		return &Preview{ContentType: contentType, Data: bytes.Clone(data)}, nil
	}

	thumb := resize.Thumbnail(s.maxEdge, s.maxEdge, img, resize.Lanczos3)

	var buf bytes.Buffer
	switch format {
	case "png", "gif":
		err = png.Encode(&buf, thumb)
		contentType = "image/png"
	default:
		err = jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: jpegQuality})
		contentType = "image/jpeg"
	}
	if err != nil {
		return nil, fmt.Errorf("error encoding preview: %w", err)
	}

	bounds := thumb.Bounds()
	return &Preview{
		ContentType: contentType,
		Data:        buf.Bytes(),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

func (s *Store) Get(id string) (Preview, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.previews[id]
	if !ok {
		return Preview{}, false
	}
	return *p, true
}

// Release drops a preview. Releasing an unknown or empty id is a no-op.
func (s *Store) Release(id string) {
	if id == "" {
		return
	}

	s.mu.Lock()
	delete(s.previews, id)
	metrics.PreviewsStored.Set(float64(len(s.previews)))
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.previews)
}

// ServeHTTP serves the preview named by the last path segment.
func (s *Store) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	p, ok := s.Get(id)
	if !ok {
		http.Error(w, "preview not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", p.ContentType)
	w.Header().Set("Cache-Control", "private, no-store")
	w.Write(p.Data)
}
