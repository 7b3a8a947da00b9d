package article

import (
	"fmt"
	"html"
	"strings"

	"reelpress/internal/model"
)

// FallbackTitle is "Title (Year)", or just the title when the year is unknown.
func FallbackTitle(meta model.Metadata) string {
	if meta.Year > 0 {
		return fmt.Sprintf("%s (%d)", meta.Title, meta.Year)
	}
	return meta.Title
}

// Fallback builds a templated article from the metadata alone. The output depends only
// on its input.
func Fallback(meta model.Metadata) string {
	title := html.EscapeString(meta.Title)
	kind := kindLabel(meta.Kind)

	intro := fmt.Sprintf("%s is a %s worth knowing about.", title, kind)
	if meta.Year > 0 {
		intro = fmt.Sprintf("%s is a %d %s worth knowing about.", title, meta.Year, kind)
	}
	if len(meta.Genres) > 0 {
		intro += fmt.Sprintf(" It blends %s into an experience that stands out from the crowd.",
			html.EscapeString(strings.ToLower(joinList(meta.Genres))))
	}

	synopsis := "Details about the story are still under wraps, which makes it all the more intriguing."
	if s := strings.TrimSpace(meta.Synopsis); s != "" {
		synopsis = html.EscapeString(s)
	}

	var why []string
	if len(meta.Genres) > 0 {
		why = append(why, fmt.Sprintf("Fans of %s will find plenty to enjoy here.",
			html.EscapeString(joinList(meta.Genres))))
	}
	if meta.Runtime > 0 {
		if meta.Kind == model.KindSeries {
			why = append(why, fmt.Sprintf("Episodes run about %d minutes, ideal for an evening binge.", meta.Runtime))
		} else {
			why = append(why, fmt.Sprintf("At %d minutes, it makes for a satisfying single sitting.", meta.Runtime))
		}
	}
	if meta.Rating != "" {
		why = append(why, fmt.Sprintf("It is rated %s, so plan your viewing accordingly.", html.EscapeString(meta.Rating)))
	}
	if len(why) == 0 {
		why = append(why, fmt.Sprintf("It is the kind of %s that rewards viewers who go in with an open mind.", kind))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(FallbackTitle(meta)))
	fmt.Fprintf(&b, "<p>%s</p>\n", intro)
	b.WriteString("<h2>Overview</h2>\n")
	fmt.Fprintf(&b, "<p>%s</p>\n", synopsis)
	b.WriteString("<h2>Why It Is Worth Watching</h2>\n")
	fmt.Fprintf(&b, "<p>%s</p>\n", strings.Join(why, " "))
	b.WriteString("<h2>Final Thoughts</h2>\n")
	fmt.Fprintf(&b, "<p>Whether you are discovering %s for the first time or coming back for another look, "+
		"this %s deserves a place on your watchlist.</p>", title, kind)
	return b.String()
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
