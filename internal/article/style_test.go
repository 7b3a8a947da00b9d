package article

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"reelpress/internal/model"
)

var matrix = model.Metadata{
	SourceID: 603,
	Kind:     model.KindMovie,
	Title:    "The Matrix",
	Year:     1999,
	Genres:   []string{"Action", "Science Fiction"},
	Synopsis: "A hacker learns the truth about reality.",
	Runtime:  136,
	Rating:   "R",
}

func TestStableHash(t *testing.T) {
	same := matrix
	same.Synopsis = "different synopsis does not matter"
	same.SourceID = 1
	if StableHash(matrix) != StableHash(same) {
		t.Error("hash should depend only on title, year and genres")
	}

	other := matrix
	other.Year = 2003
	if StableHash(matrix) == StableHash(other) {
		t.Error("hash should change with the year")
	}
}

func TestSelectStyleDeterministic(t *testing.T) {
	h := StableHash(matrix)
	a := SelectStyle(h, 20000)
	b := SelectStyle(h, 20000)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("SelectStyle not deterministic (-first +second):\n%s", diff)
	}
}

func TestSelectStyleModulo(t *testing.T) {
	got := SelectStyle(0, 0)
	want := model.Style{
		Angle:         angles[0],
		Structure:     structures[0],
		Tone:          tones[0],
		TitleTemplate: titleTemplates[0],
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SelectStyle(0, 0) mismatch (-want +got):\n%s", diff)
	}

	got = SelectStyle(3, 4)
	want = model.Style{
		Angle:         angles[7%len(angles)],
		Structure:     structures[7%len(structures)],
		Tone:          tones[7%len(tones)],
		TitleTemplate: titleTemplates[7%len(titleTemplates)],
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SelectStyle(3, 4) mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectStyleCoversSpaceAndNeverRepeatsConsecutively(t *testing.T) {
	h := StableHash(matrix)
	seen := map[string]bool{}
	prev := SelectStyle(h, 0)
	for bucket := int64(1); bucket < 1000; bucket++ {
		s := SelectStyle(h, bucket)
		if s == prev {
			t.Fatalf("bucket %d repeated the previous style", bucket)
		}
		seen[s.TitleTemplate] = true
		seen[s.Angle] = true
		seen[s.Tone] = true
		seen[s.Structure] = true
		prev = s
	}
	want := len(angles) + len(structures) + len(tones) + len(titleTemplates)
	if len(seen) != want {
		t.Errorf("covered %d style values, want %d", len(seen), want)
	}
}

func TestTimeBucket(t *testing.T) {
	morning := time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)
	nextDay := time.Date(2024, 5, 2, 0, 0, 1, 0, time.UTC)

	if TimeBucket(morning) != TimeBucket(evening) {
		t.Error("same UTC day should share a bucket")
	}
	if TimeBucket(nextDay) != TimeBucket(morning)+1 {
		t.Error("next day should be the next bucket")
	}
}

func TestRenderTitle(t *testing.T) {
	tests := []struct {
		name     string
		template string
		meta     model.Metadata
		want     string
	}{
		{
			name:     "with year",
			template: "Why {title} ({year}) Belongs on Your Watchlist",
			meta:     matrix,
			want:     "Why The Matrix (1999) Belongs on Your Watchlist",
		},
		{
			name:     "without year",
			template: "{title} ({year}): A Spoiler-Free Guide",
			meta:     model.Metadata{Title: "Untitled Project"},
			want:     "Untitled Project: A Spoiler-Free Guide",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, RenderTitle(tt.template, tt.meta)); diff != "" {
				t.Errorf("RenderTitle() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
