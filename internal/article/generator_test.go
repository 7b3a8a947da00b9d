package article

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"reelpress/internal/model"
	"reelpress/internal/openai"
)

type fakeCompleter struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []openai.ChatRequest
}

func (f *fakeCompleter) Complete(_ context.Context, r openai.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)
	return f.reply, f.err
}

func newTestGenerator(llm Completer) *Generator {
	g := New(llm, slog.New(slog.NewTextHandler(io.Discard, nil)))
	g.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	g.rand = func() float64 { return 0.75 }
	return g
}

func countTag(body, tag string) (open, closed int) {
	return strings.Count(body, "<"+tag+">") + strings.Count(body, "<"+tag+" "), strings.Count(body, "</"+tag+">")
}

func assertBalanced(t *testing.T, body string) {
	t.Helper()
	for _, tag := range []string{"h1", "h2", "p", "ul", "li"} {
		open, closed := countTag(body, tag)
		if open != closed {
			t.Errorf("tag %s: %d opened, %d closed in %q", tag, open, closed, body)
		}
	}
}

func TestGenerateUsesModel(t *testing.T) {
	llm := &fakeCompleter{reply: "```html\n<h1>The Matrix (1999): Is It Worth Watching?</h1><p>Yes.<p>Really.\n```"}
	g := newTestGenerator(llm)

	got := g.Generate(context.Background(), matrix)

	want := model.Article{
		Title: "The Matrix (1999): Is It Worth Watching?",
		Body:  "<h1>The Matrix (1999): Is It Worth Watching?</h1><p>Yes.</p><p>Really.</p>",
		Style: g.Style(matrix),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Generate() mismatch (-want +got):\n%s", diff)
	}

	if len(llm.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(llm.requests))
	}
	req := llm.requests[0]
	if req.Temperature != 0.99 {
		t.Errorf("Temperature = %v, want 0.99", req.Temperature)
	}
	user := req.Messages[1].Content
	title := RenderTitle(want.Style.TitleTemplate, matrix)
	for _, fragment := range []string{title, want.Style.Angle, want.Style.Tone, want.Style.Structure,
		"Genres: Action, Science Fiction", "Synopsis: A hacker learns the truth about reality."} {
		if !strings.Contains(user, fragment) {
			t.Errorf("prompt missing %q", fragment)
		}
	}
}

func TestGenerateFallback(t *testing.T) {
	tests := []struct {
		name string
		llm  Completer
	}{
		{name: "no model", llm: nil},
		{name: "not configured", llm: &fakeCompleter{err: openai.ErrNotConfigured}},
		{name: "timeout", llm: &fakeCompleter{err: context.DeadlineExceeded}},
		{name: "api error", llm: &fakeCompleter{err: &openai.APIError{StatusCode: 500, Message: "boom"}}},
		{name: "empty content", llm: &fakeCompleter{err: openai.ErrEmptyResponse}},
		{name: "unusable content", llm: &fakeCompleter{reply: "<script>x</script>"}},
		{name: "other error", llm: &fakeCompleter{err: errors.New("connection reset")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerator(tt.llm)
			got := g.Generate(context.Background(), matrix)

			if !got.Fallback {
				t.Error("expected fallback article")
			}
			if got.Title != "The Matrix (1999)" {
				t.Errorf("Title = %q", got.Title)
			}
			if diff := cmp.Diff(Fallback(matrix), got.Body); diff != "" {
				t.Errorf("Body mismatch (-want +got):\n%s", diff)
			}
			assertBalanced(t, got.Body)
		})
	}
}

func TestTemperatureBounds(t *testing.T) {
	g := newTestGenerator(nil)
	for _, r := range []float64{0, 0.25, 0.999999} {
		g.rand = func() float64 { return r }
		temp := g.Temperature()
		if temp < 0.85 || temp > 1.04 {
			t.Errorf("Temperature() = %v for rand %v, out of [0.85, 1.04]", temp, r)
		}
	}
}
