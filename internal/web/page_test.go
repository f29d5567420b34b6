package web_test

import (
	"bytes"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"breed-detector/internal/breeds"
	"breed-detector/internal/prediction"
	"breed-detector/internal/presenter"
	"breed-detector/internal/preview"
	"breed-detector/internal/upload"
	"breed-detector/internal/web"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maxBytes = 64 << 10

type fixture struct {
	router   chi.Router
	previews *preview.Store
	cookie   *http.Cookie
}

func newFixture(t *testing.T, predictionBody string, autoSubmit bool, assetsDir string) *fixture {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if predictionBody == "" {
			http.Error(w, "model unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(predictionBody))
	}))
	t.Cleanup(srv.Close)

	catalog, err := breeds.Default()
	require.NoError(t, err)
	if assetsDir == "" {
		catalog = catalog.WithoutImages()
	}

	client := prediction.NewClient(srv.URL + "/predict")
	previews := preview.NewStore(64, "/previews")
	sessions := upload.NewSessionCache(10, func() *upload.Controller {
		return upload.NewController(client, previews, catalog, upload.Options{MaxBytes: maxBytes, AutoSubmit: autoSubmit})
	})

	router := chi.NewRouter()
	web.NewPage(sessions, previews, presenter.LayoutSideBySide, maxBytes, assetsDir).AddRoutes(router)

	return &fixture{router: router, previews: previews}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	if f.cookie != nil {
		req.AddCookie(f.cookie)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == web.SessionCookie {
			f.cookie = c
		}
	}
	return rec
}

func (f *fixture) page(t *testing.T, target string) string {
	rec := f.do(t, httptest.NewRequest(http.MethodGet, target, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	return rec.Body.String()
}

// settled reloads the page until analysis finishes.
func (f *fixture) settled(t *testing.T) string {
	var body string
	require.Eventually(t, func() bool {
		body = f.page(t, "/")
		return !strings.Contains(body, "Analyzing...")
	}, 2*time.Second, 10*time.Millisecond)
	return body
}

func (f *fixture) upload(t *testing.T, data []byte, layout string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if layout != "" {
		require.NoError(t, mw.WriteField("layout", layout))
	}
	if data != nil {
		fw, err := mw.CreateFormFile("image", "cow.png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return f.do(t, req)
}

func (f *fixture) post(t *testing.T, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(t, req)
}

// referenceAssets returns an assets dir holding the catalog's reference image.
func referenceAssets(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gir-cow-reference.jpg"), []byte("jpeg"), 0o644))
	return dir
}

func pngBytes(t *testing.T) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16))))
	return buf.Bytes()
}

func previewURL(t *testing.T, body string) string {
	const marker = `<img src="/previews/`
	i := strings.Index(body, marker)
	require.GreaterOrEqual(t, i, 0, "page has no preview image")
	rest := body[i+len(`<img src="`):]
	return rest[:strings.Index(rest, `"`)]
}

func TestIdlePage(t *testing.T) {
	f := newFixture(t, `{"breed":"Gir"}`, true, "")

	body := f.page(t, "/")
	require.NotNil(t, f.cookie, "a session cookie is issued on first visit")
	assert.True(t, f.cookie.HttpOnly)
	assert.Contains(t, body, `accept="image/*"`)
	assert.Contains(t, body, `capture="environment"`)
	assert.NotContains(t, body, "required", "either file input may be left empty")
	assert.Contains(t, body, "Max size: 65536 bytes")
	assert.NotContains(t, body, "Analyzing...")
	assert.NotContains(t, body, "Upload Another Image")
}

func TestUploadResolvesAndResets(t *testing.T) {
	f := newFixture(t, `{"breed":"Murrah","confidence":0.91}`, true, referenceAssets(t))

	rec := f.upload(t, pngBytes(t), "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	body := f.settled(t)
	assert.Contains(t, body, "Murrah Buffalo")
	assert.Contains(t, body, "20-25 liters/day")
	assert.Contains(t, body, "15-20 years")
	assert.Contains(t, body, "Population in India")
	assert.Contains(t, body, "Confidence: 91%")
	assert.Contains(t, body, `<img src="/assets/gir-cow-reference.jpg" alt="Reference image">`)
	assert.Contains(t, body, "Upload Another Image")
	assert.NotContains(t, body, `type="file"`)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/assets/gir-cow-reference.jpg", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "the reference image is served")

	preview := previewURL(t, body)
	rec = f.do(t, httptest.NewRequest(http.MethodGet, preview, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = f.post(t, "/reset")
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	body = f.page(t, "/")
	assert.Contains(t, body, `type="file"`)
	assert.NotContains(t, body, "Murrah Buffalo")
	assert.Zero(t, f.previews.Len())

	rec = f.do(t, httptest.NewRequest(http.MethodGet, preview, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "reset releases the preview")
}

func TestCompactLayoutHidesReferenceImage(t *testing.T) {
	f := newFixture(t, `{"breed":"Gir"}`, true, referenceAssets(t))

	rec := f.upload(t, pngBytes(t), "compact")
	assert.Equal(t, "/?layout=compact", rec.Header().Get("Location"))

	require.Eventually(t, func() bool {
		return strings.Contains(f.page(t, "/?layout=compact"), "Gir Cow")
	}, 2*time.Second, 10*time.Millisecond)

	body := f.page(t, "/?layout=compact")
	assert.NotContains(t, body, "Reference image")
	assert.Contains(t, f.page(t, "/?layout=side-by-side"), "Reference image")
	assert.Contains(t, f.page(t, "/?layout=nonsense"), "Reference image", "unknown layouts use the default")
}

func TestFailureShowsRetry(t *testing.T) {
	f := newFixture(t, "", true, "")

	f.upload(t, pngBytes(t), "")
	body := f.settled(t)
	assert.Contains(t, body, presenter.FailureMessage)
	assert.Contains(t, body, "Try Again")

	f.post(t, "/reset")
	body = f.page(t, "/")
	assert.NotContains(t, body, presenter.FailureMessage)
	assert.Contains(t, body, `type="file"`)
}

func TestExplicitSubmit(t *testing.T) {
	f := newFixture(t, `{"breed":"Jaffarabadi"}`, false, "")

	rec := f.post(t, "/submit")
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "Please upload an image first!", loc.Query().Get("error"))
	assert.Contains(t, f.page(t, rec.Header().Get("Location")), "Please upload an image first!")

	f.upload(t, pngBytes(t), "")
	body := f.page(t, "/")
	assert.Contains(t, body, "Detect Breed")
	assert.NotContains(t, body, "Analyzing...")

	rec = f.post(t, "/submit")
	assert.Equal(t, "/", rec.Header().Get("Location"))

	body = f.settled(t)
	assert.Contains(t, body, "Jaffarabadi Buffalo")

	rec = f.post(t, "/submit")
	assert.Equal(t, "/", rec.Header().Get("Location"), "a repeated submit is not reported as an error")
}

func TestUploadValidationFlash(t *testing.T) {
	f := newFixture(t, `{"breed":"Gir"}`, true, "")

	for name, data := range map[string][]byte{
		"missing":   nil,
		"too large": append(pngBytes(t), make([]byte, maxBytes)...),
		"not image": []byte("plain text is not an image"),
	} {
		t.Run(name, func(t *testing.T) {
			rec := f.upload(t, data, "")
			require.Equal(t, http.StatusSeeOther, rec.Code)

			loc, err := url.Parse(rec.Header().Get("Location"))
			require.NoError(t, err)
			flash := loc.Query().Get("error")
			assert.NotEmpty(t, flash)

			body := f.page(t, loc.String())
			assert.Contains(t, body, `role="alert"`)
			assert.Contains(t, body, `type="file"`, "the session stays idle")
		})
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	f := newFixture(t, `{"breed":"Murrah"}`, true, "")
	f.upload(t, pngBytes(t), "")
	assert.Contains(t, f.settled(t), "Murrah Buffalo")

	other := &fixture{router: f.router, previews: f.previews}
	body := other.page(t, "/")
	assert.Contains(t, body, `type="file"`)
	assert.NotContains(t, body, "Murrah Buffalo")
	require.NotNil(t, other.cookie)
	assert.NotEqual(t, f.cookie.Value, other.cookie.Value)
}

func TestAssetsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gir-cow-reference.jpg"), []byte("jpeg"), 0o644))

	f := newFixture(t, `{"breed":"Gir"}`, true, dir)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/assets/gir-cow-reference.jpg", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg", rec.Body.String())
}

func TestNoAssetsHidesReferenceImage(t *testing.T) {
	f := newFixture(t, `{"breed":"Murrah"}`, true, "")

	f.upload(t, pngBytes(t), "side-by-side")
	body := f.settled(t)
	assert.Contains(t, body, "Murrah Buffalo")
	assert.NotContains(t, body, "Reference image")
	assert.NotContains(t, body, "/assets/")
}

func TestCameraInputWithEmptyUploadInput(t *testing.T) {
	f := newFixture(t, `{"breed":"Murrah"}`, true, "")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	// What a browser sends for an untouched file input.
	untouched := make(textproto.MIMEHeader)
	untouched.Set("Content-Disposition", `form-data; name="image"; filename=""`)
	untouched.Set("Content-Type", "application/octet-stream")
	_, err := mw.CreatePart(untouched)
	require.NoError(t, err)

	_, err = mw.CreateFormFile("image", "blank.png")
	require.NoError(t, err)

	fw, err := mw.CreateFormFile("image", "camera.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBytes(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := f.do(t, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"), "no validation error")

	page := f.settled(t)
	assert.Contains(t, page, "Murrah Buffalo")
	assert.Contains(t, page, "camera.png")
}
