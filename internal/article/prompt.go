package article

import (
	"fmt"
	"strings"

	"reelpress/internal/model"
	"reelpress/internal/openai"
)

const systemPrompt = `You are an entertainment writer for a streaming guide website.
Write original, engaging articles about movies and TV series.
Output rules:
- Respond with HTML only. No markdown, no code fences, no <html>, <head> or <body> tags.
- Start with a single <h1> containing the exact title you are given.
- Use <h2> for section headings and <p> for paragraphs. <ul>/<li> and <strong> are allowed.
- Do not invent cast names, awards or box office numbers that are not in the data.
- Avoid spoilers beyond the premise.`

func kindLabel(k model.Kind) string {
	if k == model.KindSeries {
		return "TV series"
	}
	return "movie"
}

func buildMessages(meta model.Metadata, style model.Style, title string) []openai.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an article of 600 to 900 words about the %s below.\n\n", kindLabel(meta.Kind))
	fmt.Fprintf(&b, "Use exactly this title for the <h1>, word for word: %s\n\n", title)
	fmt.Fprintf(&b, "Angle: %s.\n", style.Angle)
	fmt.Fprintf(&b, "Structure: %s.\n", style.Structure)
	fmt.Fprintf(&b, "Tone: %s.\n\n", style.Tone)

	b.WriteString("Data:\n")
	fmt.Fprintf(&b, "- Title: %s\n", meta.Title)
	if meta.Year > 0 {
		fmt.Fprintf(&b, "- Year: %d\n", meta.Year)
	}
	fmt.Fprintf(&b, "- Type: %s\n", kindLabel(meta.Kind))
	if len(meta.Genres) > 0 {
		fmt.Fprintf(&b, "- Genres: %s\n", strings.Join(meta.Genres, ", "))
	}
	if meta.Runtime > 0 {
		fmt.Fprintf(&b, "- Runtime: %d minutes\n", meta.Runtime)
	}
	if meta.Rating != "" {
		fmt.Fprintf(&b, "- Rating: %s\n", meta.Rating)
	}
	if meta.Synopsis != "" {
		fmt.Fprintf(&b, "- Synopsis: %s\n", meta.Synopsis)
	}

	return []openai.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}
