package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"breed-detector/internal/presenter"
	"breed-detector/internal/preview"
	"breed-detector/internal/upload"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/schema"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

const (
	SessionCookie  = "breed_detector_session"
	refreshSeconds = 2
)

type pageQuery struct {
	Layout string `schema:"layout"`
	Error  string `schema:"error"`
}

type pageData struct {
	presenter.View
	Flash          string
	MaxUpload      string
	RefreshSeconds int
	FailureMessage string
}

// Page serves the server-rendered upload page. Each browser gets its own
// upload.Controller, keyed by a session cookie.
type Page struct {
	sessions  *upload.SessionCache
	previews  *preview.Store
	layout    presenter.Layout
	maxBytes  int64
	assetsDir string
	decoder   *schema.Decoder
}

func NewPage(sessions *upload.SessionCache, previews *preview.Store, layout presenter.Layout, maxBytes int64, assetsDir string) *Page {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	return &Page{
		sessions:  sessions,
		previews:  previews,
		layout:    layout,
		maxBytes:  maxBytes,
		assetsDir: assetsDir,
		decoder:   decoder,
	}
}

func (p *Page) AddRoutes(r chi.Router) {
	r.Get("/", p.Index)
	r.Post("/upload", p.Upload)
	r.Post("/submit", p.Submit)
	r.Post("/reset", p.Reset)
	r.Get("/previews/{preview_id}", p.previews.ServeHTTP)

	if p.assetsDir != "" {
		r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.Dir(p.assetsDir))))
	}
}

func (p *Page) controller(w http.ResponseWriter, r *http.Request) *upload.Controller {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return p.sessions.GetOrCreate(id)
		}
	}

	id, controller := p.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id.String(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((24 * time.Hour).Seconds()),
	})
	return controller
}

// layoutFor returns the layout requested by the page or form, or the
// configured default when none or an unknown one is given.
func (p *Page) layoutFor(requested string) presenter.Layout {
	if requested == "" {
		return p.layout
	}
	layout, err := presenter.ParseLayout(requested)
	if err != nil {
		return p.layout
	}
	return layout
}

func (p *Page) Index(w http.ResponseWriter, r *http.Request) {
	var query pageQuery
	if err := p.decoder.Decode(&query, r.URL.Query()); err != nil {
		http.Error(w, "unable to parse query params", http.StatusBadRequest)
		return
	}

	controller := p.controller(w, r)

	data := pageData{
		View:           presenter.Present(controller.Snapshot(), p.layoutFor(query.Layout)),
		Flash:          query.Error,
		MaxUpload:      upload.FormatLimit(p.maxBytes),
		RefreshSeconds: refreshSeconds,
		FailureMessage: presenter.FailureMessage,
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		slog.Error("error rendering page", "error", err)
		http.Error(w, "error rendering page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (p *Page) Upload(w http.ResponseWriter, r *http.Request) {
	controller := p.controller(w, r)

	img, err := upload.ReadImage(w, r, p.maxBytes)
	if err == nil {
		err = controller.SelectFile(img)
	}
	p.redirect(w, r, err)
}

func (p *Page) Submit(w http.ResponseWriter, r *http.Request) {
	err := p.controller(w, r).Submit()
	if errors.Is(err, upload.ErrInvalidTransition) {
		// A repeated click while analyzing just shows the current state.
		err = nil
	}
	p.redirect(w, r, err)
}

func (p *Page) Reset(w http.ResponseWriter, r *http.Request) {
	p.controller(w, r).Reset()
	p.redirect(w, r, nil)
}

func (p *Page) redirect(w http.ResponseWriter, r *http.Request, err error) {
	query := url.Values{}
	if layout := r.PostFormValue("layout"); layout != "" {
		query.Set("layout", string(p.layoutFor(layout)))
	}

	if err != nil {
		var verr *upload.ValidationError
		if errors.As(err, &verr) {
			query.Set("error", verr.Message)
		} else {
			slog.Error("error handling page action", "path", r.URL.Path, "error", err)
			query.Set("error", "Could not read the uploaded image. Please try again.")
		}
	}

	target := "/"
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
