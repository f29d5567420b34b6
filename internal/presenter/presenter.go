package presenter

import (
	"fmt"
	"math"

	"breed-detector/internal/breeds"
	"breed-detector/internal/upload"
	"breed-detector/pkg/api"
)

// Layout only changes what is shown, never how a result is produced.
type Layout string

const (
	// LayoutCompact shows the uploaded image alone.
	LayoutCompact Layout = "compact"
	// LayoutSideBySide shows the uploaded image next to the breed's reference image.
	LayoutSideBySide Layout = "side-by-side"

	DefaultLayout = LayoutSideBySide
)

func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case "":
		return DefaultLayout, nil
	case LayoutCompact, LayoutSideBySide:
		return Layout(s), nil
	default:
		return "", fmt.Errorf("unknown layout '%s': must be '%s' or '%s'", s, LayoutCompact, LayoutSideBySide)
	}
}

type InfoCard struct {
	Icon  string
	Label string
	Value string
}

type BreedView struct {
	Name           string
	ReferenceImage string // empty in the compact layout or when the catalog has no images
	Cards          []InfoCard
	Strengths      []string
}

type ResultView struct {
	Breed      BreedView
	Label      string
	Matched    bool
	Uncertain  bool
	Confidence string // empty when the service sent none
}

type View struct {
	State      upload.State
	Layout     Layout
	AutoSubmit bool
	FileName   string
	PreviewURL string
	Result     *ResultView
}

func (v View) ShowUpload() bool {
	return v.State == upload.Idle
}

func (v View) ShowPreview() bool {
	return v.State == upload.PreviewOnly
}

// ShowSubmit is true when a selection waits for an explicit submit.
func (v View) ShowSubmit() bool {
	return v.State == upload.PreviewOnly && !v.AutoSubmit
}

func (v View) ShowAnalyzing() bool {
	return v.State == upload.Analyzing
}

func (v View) ShowFailure() bool {
	return v.State == upload.Failed
}

func (v View) ShowResult() bool {
	return v.State == upload.Resolved && v.Result != nil
}

func FormatConfidence(c *float64) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%d%%", int(math.Round(*c*100)))
}

func PresentBreed(r breeds.Record, layout Layout) BreedView {
	v := BreedView{
		Name: r.Name,
		Cards: []InfoCard{
			{Icon: "🌍", Label: "Population in India", Value: r.Population},
			{Icon: "🥛", Label: "Average Milk Production", Value: r.MilkProduction},
			{Icon: "⏳", Label: "Lifespan", Value: r.Lifespan},
		},
		Strengths: append([]string(nil), r.Strengths...),
	}
	if layout == LayoutSideBySide {
		v.ReferenceImage = r.Image
	}
	return v
}

func PresentResult(r *upload.Result, layout Layout) *ResultView {
	if r == nil {
		return nil
	}
	return &ResultView{
		Breed:      PresentBreed(r.Breed, layout),
		Label:      r.Label,
		Matched:    r.Matched,
		Uncertain:  r.Uncertain,
		Confidence: FormatConfidence(r.Confidence),
	}
}

func Present(snap upload.Snapshot, layout Layout) View {
	return View{
		State:      snap.State,
		Layout:     layout,
		AutoSubmit: snap.AutoSubmit,
		FileName:   snap.FileName,
		PreviewURL: snap.Preview.URL,
		Result:     PresentResult(snap.Result, layout),
	}
}

func Breed(r breeds.Record) api.Breed {
	return api.Breed{
		Label:          r.Label,
		Name:           r.Name,
		Population:     r.Population,
		MilkProduction: r.MilkProduction,
		Lifespan:       r.Lifespan,
		Strengths:      append([]string(nil), r.Strengths...),
		Image:          r.Image,
	}
}

func Result(r *upload.Result) *api.Result {
	if r == nil {
		return nil
	}
	return &api.Result{
		Label:      r.Label,
		Confidence: r.Confidence,
		Uncertain:  r.Uncertain,
		Breed:      Breed(r.Breed),
	}
}

func Session(sessionID string, snap upload.Snapshot, layout Layout) api.Session {
	s := api.Session{
		SessionID:  sessionID,
		State:      snap.State.String(),
		Generation: snap.Generation,
		FileName:   snap.FileName,
		FileSize:   snap.FileSize,
		PreviewURL: snap.Preview.URL,
		Analyzing:  snap.State == upload.Analyzing,
		AutoSubmit: snap.AutoSubmit,
		Layout:     string(layout),
	}

	if snap.Result != nil {
		s.Result = Result(snap.Result)
		if layout == LayoutSideBySide {
			s.ReferenceImage = snap.Result.Breed.Image
		}
	}

	if snap.State == upload.Failed {
		s.Error = FailureMessage
	}

	return s
}

const FailureMessage = "Failed to analyze image. Please try again."
