// Package article writes marketing articles for movies and series. Generation goes
// through a chat-completion model with a per-item writing style; whenever the model is
// unavailable or returns nothing usable a templated article is produced instead, so
// Generate never fails.
package article

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"reelpress/internal/model"
	"reelpress/internal/openai"
)

// Completer is the chat model a Generator calls.
type Completer interface {
	Complete(ctx context.Context, r openai.ChatRequest) (string, error)
}

const (
	minTemperature   = 0.85
	temperatureRange = 0.19
)

// Generator produces articles.
type Generator struct {
	llm  Completer
	log  *slog.Logger
	now  func() time.Time
	rand func() float64
}

// New creates a Generator. A nil llm always uses the fallback template.
func New(llm Completer, log *slog.Logger) *Generator {
	return &Generator{
		llm:  llm,
		log:  log.With("component", "article"),
		now:  time.Now,
		rand: rand.Float64,
	}
}

// Style returns the style the generator would pick for meta right now.
func (g *Generator) Style(meta model.Metadata) model.Style {
	return SelectStyle(StableHash(meta), TimeBucket(g.now()))
}

// Temperature draws a creativity value in [0.85, 1.04].
func (g *Generator) Temperature() float64 {
	t := minTemperature + g.rand()*temperatureRange
	return math.Round(t*100) / 100
}

// Generate returns an article for meta.
func (g *Generator) Generate(ctx context.Context, meta model.Metadata) model.Article {
	style := g.Style(meta)

	if g.llm != nil {
		title := RenderTitle(style.TitleTemplate, meta)
		raw, err := g.llm.Complete(ctx, openai.ChatRequest{
			Messages:    buildMessages(meta, style, title),
			Temperature: g.Temperature(),
		})
		if err == nil {
			if body := Sanitize(raw); body != "" {
				heading := ExtractTitle(body)
				if heading == "" {
					heading = title
				}
				return model.Article{Title: heading, Body: body, Style: style}
			}
			g.log.Warn("model returned no usable content, using fallback",
				"source_id", meta.SourceID, "title", meta.Title)
		} else {
			g.log.Warn("generation failed, using fallback",
				"source_id", meta.SourceID, "title", meta.Title, "error", err)
		}
	}

	return model.Article{
		Title:    FallbackTitle(meta),
		Body:     Fallback(meta),
		Style:    style,
		Fallback: true,
	}
}
