package api

import (
	"log/slog"
	"net/http"

	"breed-detector/internal/breeds"
	"breed-detector/internal/presenter"
	"breed-detector/internal/upload"
	"breed-detector/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type DetectorService struct {
	sessions *upload.SessionCache
	catalog  *breeds.Catalog
	layout   presenter.Layout
	maxBytes int64
}

func NewDetectorService(sessions *upload.SessionCache, catalog *breeds.Catalog, layout presenter.Layout, maxBytes int64) *DetectorService {
	return &DetectorService{
		sessions: sessions,
		catalog:  catalog,
		layout:   layout,
		maxBytes: maxBytes,
	}
}

func (s *DetectorService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) {
		return map[string]string{"status": "ok"}, nil
	}))
	r.Route("/breeds", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListBreeds))
		r.Get("/{label}", RestHandler(s.ResolveBreed))
	})
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", RestHandler(s.StartSession))
		r.Get("/{session_id}", RestHandler(s.GetSession))
		r.Post("/{session_id}/image", UploadHandler(s.SelectImage))
		r.Post("/{session_id}/submit", RestHandler(s.Submit))
		r.Post("/{session_id}/reset", RestHandler(s.Reset))
	})
}

func (s *DetectorService) ListBreeds(r *http.Request) (any, error) {
	records := s.catalog.Records()

	resp := api.ListBreedsResponse{
		Breeds:   make([]api.Breed, 0, len(records)),
		Fallback: s.catalog.Fallback().Label,
	}
	for _, record := range records {
		resp.Breeds = append(resp.Breeds, presenter.Breed(record))
	}

	return resp, nil
}

// ResolveBreed always succeeds: unknown labels resolve to the fallback breed.
func (s *DetectorService) ResolveBreed(r *http.Request) (any, error) {
	label := chi.URLParam(r, "label")

	record, matched := s.catalog.Resolve(label)

	return api.ResolveBreedResponse{
		Label:   label,
		Matched: matched,
		Breed:   presenter.Breed(record),
	}, nil
}

func (s *DetectorService) StartSession(r *http.Request) (any, error) {
	sessionID, _ := s.sessions.Create()
	slog.Info("started upload session", "session_id", sessionID)
	return api.StartSessionResponse{SessionID: sessionID.String()}, nil
}

func (s *DetectorService) session(r *http.Request) (uuid.UUID, *upload.Controller, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return uuid.Nil, nil, err
	}

	controller, ok := s.sessions.Get(sessionID)
	if !ok {
		return uuid.Nil, nil, CodedErrorf(http.StatusNotFound, "session '%s' not found", sessionID)
	}

	return sessionID, controller, nil
}

func (s *DetectorService) view(sessionID uuid.UUID, controller *upload.Controller, layout presenter.Layout) api.Session {
	return presenter.Session(sessionID.String(), controller.Snapshot(), layout)
}

func (s *DetectorService) GetSession(r *http.Request) (any, error) {
	sessionID, controller, err := s.session(r)
	if err != nil {
		return nil, err
	}

	params, err := ParseRequestQueryParams[api.SessionQuery](r)
	if err != nil {
		return nil, err
	}

	layout := s.layout
	if params.Layout != "" {
		if layout, err = presenter.ParseLayout(params.Layout); err != nil {
			return nil, CodedError(http.StatusBadRequest, err)
		}
	}

	if params.Wait {
		if err := controller.Await(r.Context()); err != nil {
			return nil, CodedErrorf(http.StatusGatewayTimeout, "analysis still running: %w", err)
		}
	}

	return s.view(sessionID, controller, layout), nil
}

func (s *DetectorService) SelectImage(w http.ResponseWriter, r *http.Request) (any, error) {
	sessionID, controller, err := s.session(r)
	if err != nil {
		return nil, err
	}

	img, err := upload.ReadImage(w, r, s.maxBytes)
	if err != nil {
		return nil, CodedError(http.StatusBadRequest, err)
	}

	if err := controller.SelectFile(img); err != nil {
		return nil, controllerError(err)
	}

	return s.view(sessionID, controller, s.layout), nil
}

func (s *DetectorService) Submit(r *http.Request) (any, error) {
	sessionID, controller, err := s.session(r)
	if err != nil {
		return nil, err
	}

	if err := controller.Submit(); err != nil {
		return nil, controllerError(err)
	}

	return s.view(sessionID, controller, s.layout), nil
}

func (s *DetectorService) Reset(r *http.Request) (any, error) {
	sessionID, controller, err := s.session(r)
	if err != nil {
		return nil, err
	}

	controller.Reset()

	return s.view(sessionID, controller, s.layout), nil
}
