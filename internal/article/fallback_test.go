package article

import (
	"strings"
	"testing"

	"reelpress/internal/model"
)

func TestFallback(t *testing.T) {
	tests := []struct {
		name     string
		meta     model.Metadata
		contains []string
	}{
		{
			name: "full movie",
			meta: matrix,
			contains: []string{
				"<h1>The Matrix (1999)</h1>",
				"is a 1999 movie",
				"action and science fiction",
				"A hacker learns the truth about reality.",
				"At 136 minutes",
				"rated R",
			},
		},
		{
			name: "series without details",
			meta: model.Metadata{Kind: model.KindSeries, Title: "Mystery Show"},
			contains: []string{
				"<h1>Mystery Show</h1>",
				"is a TV series worth knowing about",
				"still under wraps",
			},
		},
		{
			name: "markup is escaped",
			meta: model.Metadata{Kind: model.KindMovie, Title: "<b>Bold</b> & Co", Year: 2020, Synopsis: "a < b"},
			contains: []string{
				"<h1>&lt;b&gt;Bold&lt;/b&gt; &amp; Co (2020)</h1>",
				"a &lt; b",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := Fallback(tt.meta)
			for _, want := range tt.contains {
				if !strings.Contains(body, want) {
					t.Errorf("Fallback() missing %q in:\n%s", want, body)
				}
			}
			assertBalanced(t, body)
			if Fallback(tt.meta) != body {
				t.Error("Fallback() is not deterministic")
			}
		})
	}
}
