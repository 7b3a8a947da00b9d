package article

import (
	"hash/crc32"
	"strconv"
	"strings"
	"time"

	"reelpress/internal/model"
)

var angles = []string{
	"Focus on why this title is worth a viewer's evening and who will enjoy it most",
	"Focus on the performances and what the cast brings to the story",
	"Focus on the themes and the questions the story leaves the viewer with",
	"Focus on the craft: direction, cinematography, score and pacing",
	"Focus on how it compares to similar titles in its genre",
	"Focus on its cultural impact and the conversation around it",
	"Focus on the emotional journey and the moments that land hardest",
}

var structures = []string{
	"an introduction, three themed sections with subheadings, and a verdict",
	"a hook paragraph, a spoiler-free story setup, a 'what works' section, a 'who it is for' section, and a conclusion",
	"a short introduction followed by five numbered reasons to watch, each under its own subheading",
	"a review-style piece: premise, strengths, weaknesses, and a final rating in words",
	"a viewing guide: what to expect, the standout elements, viewing tips, and a closing recommendation",
}

var tones = []string{
	"enthusiastic and conversational",
	"thoughtful and analytical",
	"warm and personal, like a recommendation from a friend",
	"crisp and journalistic",
	"playful and witty without being flippant",
	"cinematic and evocative",
}

var titleTemplates = []string{
	"{title} ({year}): Is It Worth Watching?",
	"Why {title} ({year}) Belongs on Your Watchlist",
	"{title} ({year}) Review: What to Expect Before You Press Play",
	"Everything You Need to Know About {title} ({year})",
	"{title} ({year}): A Spoiler-Free Guide",
	"Should You Stream {title} ({year})? Our Take",
	"{title} ({year}) Explained: Story, Cast and Why It Works",
	"Watching {title} ({year}) Tonight? Read This First",
}

// StableHash hashes the identity of a title so style selection is stable for the same item.
func StableHash(meta model.Metadata) uint32 {
	key := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(meta.Title)),
		strconv.Itoa(meta.Year),
		strings.ToLower(strings.Join(meta.Genres, ",")),
	}, "|")
	return crc32.ChecksumIEEE([]byte(key))
}

// TimeBucket is the volatile part of the style seed: it changes once per UTC day.
func TimeBucket(t time.Time) int64 {
	return t.UTC().Unix() / 86400
}

// SelectStyle picks one value from every style dimension using seed modulo the
// dimension's size, where seed is the stable hash shifted by the time bucket.
func SelectStyle(hash uint32, bucket int64) model.Style {
	seed := uint64(hash) + uint64(bucket)
	pick := func(values []string) string {
		return values[seed%uint64(len(values))]
	}
	return model.Style{
		Angle:         pick(angles),
		Structure:     pick(structures),
		Tone:          pick(tones),
		TitleTemplate: pick(titleTemplates),
	}
}

// RenderTitle fills a title template with the title and year. A missing year drops
// the parenthesized year from the template.
func RenderTitle(template string, meta model.Metadata) string {
	out := template
	if meta.Year > 0 {
		out = strings.ReplaceAll(out, "{year}", strconv.Itoa(meta.Year))
	} else {
		out = strings.ReplaceAll(out, " ({year})", "")
		out = strings.ReplaceAll(out, "{year}", "")
	}
	return strings.TrimSpace(strings.ReplaceAll(out, "{title}", meta.Title))
}
