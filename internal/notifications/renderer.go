// Package notifications turns a completed evaluation cycle into rider-facing
// output: a template-backed recommendation renderer, the email delivery
// channel, and the rotating fun-fact footer.
package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	texttemplate "text/template"

	"ridecast/internal/types"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// TemplateRenderer renders day reports into email-ready prose using embedded
// HTML and plaintext templates. It implements types.RecommendationRenderer;
// callers depend on that interface, so a generative renderer could replace
// this one without touching the evaluation pipeline.
type TemplateRenderer struct {
	html *template.Template
	text *texttemplate.Template
}

// NewTemplateRenderer parses the embedded templates. Returns an error if any
// template fails to parse, which only happens with a build defect.
func NewTemplateRenderer() (*TemplateRenderer, error) {
	htmlContent, err := templateFS.ReadFile("templates/recommendation.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read recommendation.html: %w", err)
	}
	htmlTmpl, err := template.New("recommendation").Parse(string(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse recommendation.html: %w", err)
	}

	textContent, err := templateFS.ReadFile("templates/recommendation.txt")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read recommendation.txt: %w", err)
	}
	textTmpl, err := texttemplate.New("recommendation").Parse(string(textContent))
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse recommendation.txt: %w", err)
	}

	return &TemplateRenderer{html: htmlTmpl, text: textTmpl}, nil
}

// templateData is the struct passed into both templates.
type templateData struct {
	RiderName     string
	FormattedDate string
	Verdict       string
	ShouldRide    bool
	OverallRisk   string
	PrimaryConcern string
	Morning       legData
	Evening       legData
	FunFact       string
	FunFactCategory string
}

// legData is one commute leg's share of the template data. Display units are
// imperial; the canonical record stays metric.
type legData struct {
	Title         string
	Window        string
	Rows          []forecastRow
	Factors       []string
	FailedSources []string
	HasData       bool
}

// forecastRow is one provider sample formatted for display.
type forecastRow struct {
	Source       string
	Location     string
	TemperatureF string
	WindMPH      string
	RainPct      string
	Fallback     string
}

// Render implements types.RecommendationRenderer.
func (t *TemplateRenderer) Render(report *types.DayReport) (*types.Recommendation, error) {
	if report == nil || report.Rider == nil {
		return nil, fmt.Errorf("renderer: report and rider must not be nil")
	}

	data := buildTemplateData(report)

	var htmlBuf bytes.Buffer
	if err := t.html.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("renderer: failed to render HTML: %w", err)
	}

	var textBuf bytes.Buffer
	if err := t.text.Execute(&textBuf, data); err != nil {
		return nil, fmt.Errorf("renderer: failed to render text: %w", err)
	}

	return &types.Recommendation{
		Subject:  subjectLine(report),
		BodyHTML: htmlBuf.String(),
		BodyText: textBuf.String(),
	}, nil
}

// subjectLine summarizes the verdict for the inbox list view.
func subjectLine(report *types.DayReport) string {
	date := report.Date.In(report.Rider.TimezoneLocation()).Format("Mon, Jan 2")
	if report.Decision.ShouldRide {
		return fmt.Sprintf("RideCast for %s: Good to ride", date)
	}
	if report.Decision.PrimaryConcern != "" {
		return fmt.Sprintf("RideCast for %s: Skip the ride (%s)", date, report.Decision.PrimaryConcern)
	}
	return fmt.Sprintf("RideCast for %s: Skip the ride", date)
}

func buildTemplateData(report *types.DayReport) templateData {
	rider := report.Rider

	name := rider.DisplayName
	if name == "" {
		name = rider.Name
	}

	verdict := "Leave the bike home today"
	if report.Decision.ShouldRide {
		verdict = "Good day to ride"
	}

	data := templateData{
		RiderName:      name,
		FormattedDate:  report.Date.In(rider.TimezoneLocation()).Format("Monday, January 2, 2006"),
		Verdict:        verdict,
		ShouldRide:     report.Decision.ShouldRide,
		OverallRisk:    string(report.Decision.OverallRisk),
		PrimaryConcern: report.Decision.PrimaryConcern,
		Morning:        buildLegData("Ride In", report.Morning),
		Evening:        buildLegData("Ride Back", report.Evening),
	}

	if report.FunFact != nil {
		data.FunFact = report.FunFact.Content
		data.FunFactCategory = factCategoryLabel(report.FunFact.Category)
	}

	return data
}

func buildLegData(title string, leg types.LegReport) legData {
	ld := legData{
		Title:   title,
		Window:  fmt.Sprintf("%02d:00-%02d:59", leg.Window.StartHour, leg.Window.EndHour),
		HasData: leg.Collection.HasData(),
	}

	for _, lf := range leg.Collection.Forecasts {
		fc := lf.Forecast
		row := forecastRow{
			Source:       string(fc.Source),
			Location:     lf.LocationName,
			TemperatureF: fmt.Sprintf("%.0f°F", fc.TemperatureF()),
			WindMPH:      fmt.Sprintf("%.0f mph", fc.WindSpeedMPH()),
			RainPct:      fmt.Sprintf("%.0f%%", fc.RainProbability),
		}
		if fc.UsedFallback && fc.FallbackOffsetHours != nil {
			row.Fallback = fmt.Sprintf("%+dh off window", *fc.FallbackOffsetHours)
		}
		ld.Rows = append(ld.Rows, row)
	}

	for _, f := range leg.Assessment.Factors {
		ld.Factors = append(ld.Factors, f.Description)
	}
	for _, id := range leg.Collection.Failed {
		ld.FailedSources = append(ld.FailedSources, string(id))
	}

	return ld
}

// factCategoryLabel renders a category identifier as footer prose.
func factCategoryLabel(c types.FactCategory) string {
	switch c {
	case types.FactQuotes:
		return "Quote of the day"
	case types.FactSafetyTips:
		return "Safety tip"
	case types.FactHistory:
		return "Motorcycle history"
	case types.FactTechnical:
		return "Tech corner"
	case types.FactRidingTips:
		return "Riding tip"
	case types.FactInspiration:
		return "Inspiration"
	default:
		return "Did you know"
	}
}

// Compile-time assertion that TemplateRenderer implements the capability.
var _ types.RecommendationRenderer = (*TemplateRenderer)(nil)
