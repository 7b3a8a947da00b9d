package bot

import (
	"fmt"
	"strings"

	"reelpress/internal/batch"
	"reelpress/internal/model"
)

const timeFormat = "2006-01-02 15:04 UTC"

// FormatSubmitted formats the confirmation of a queued batch.
func FormatSubmitted(job *model.BatchJob) string {
	return fmt.Sprintf("Batch queued: %d item(s) for %s (%s).\nToken: %s\nUse /status %s to follow it.",
		job.Total, job.Platform, job.Kind, job.Token, job.Token)
}

// FormatJob formats a batch snapshot for display.
func FormatJob(job *model.BatchJob) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Batch %s [%s] %d%%\n", job.Token, job.Status, job.Progress)
	fmt.Fprintf(&b, "Platform: %s\n", job.Platform)
	fmt.Fprintf(&b, "%d of %d processed: %s\n", job.Processed(), job.Total, batch.Summary(job))
	if job.Status == model.BatchProcessing && job.Current != 0 {
		fmt.Fprintf(&b, "Working on: %d\n", job.Current)
	}
	if len(job.Skipped) > 0 {
		fmt.Fprintf(&b, "Skipped (already published): %s\n", joinIDs(job.Skipped))
	}
	for _, f := range job.Failed {
		fmt.Fprintf(&b, "Failed %d: %s\n", f.SourceID, f.Reason)
	}
	fmt.Fprintf(&b, "Started: %s\n", job.StartedAt.UTC().Format(timeFormat))
	if job.FinishedAt != nil {
		fmt.Fprintf(&b, "Finished: %s\n", job.FinishedAt.UTC().Format(timeFormat))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatItem formats a content item for display.
func FormatItem(item *model.ContentItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s [%s]\n", item.ID, item.Title, item.Status)
	fmt.Fprintf(&b, "Source: %s %d\n", item.Kind, item.SourceID)
	fmt.Fprintf(&b, "Slug: %s\n", item.Slug)
	if item.Platform != "" {
		fmt.Fprintf(&b, "Platform: %s\n", item.Platform)
	}
	if len(item.Categories) > 0 {
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(item.Categories, ", "))
	}
	if len(item.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(item.Tags, ", "))
	}
	if item.FeaturedAssetID == 0 {
		b.WriteString("No featured image\n")
	}
	fmt.Fprintf(&b, "Created: %s", item.CreatedAt.UTC().Format(timeFormat))
	return b.String()
}

// FormatCandidates formats discovery results with ready-to-send batch commands.
func FormatCandidates(cs []model.Candidate) string {
	if len(cs) == 0 {
		return "No new titles found in the discovery feeds."
	}
	var b strings.Builder
	b.WriteString("Discovered titles:\n")
	var fresh []string
	for _, c := range cs {
		status := "new"
		if c.Exists {
			status = "published"
		} else {
			fresh = append(fresh, fmt.Sprintf("%d", c.SourceID))
		}
		fmt.Fprintf(&b, "\n%d %s", c.SourceID, c.Title)
		if c.Year > 0 {
			fmt.Fprintf(&b, " (%d)", c.Year)
		}
		fmt.Fprintf(&b, " [%s, %s]", c.Kind, status)
	}
	if len(fresh) > 0 {
		if len(fresh) > batch.MaxItems {
			fresh = fresh[:batch.MaxItems]
		}
		fmt.Fprintf(&b, "\n\nTo publish: /batch %s <platform>", strings.Join(fresh, " "))
	}
	return b.String()
}

// FormatPlatforms formats the suggested platform names.
func FormatPlatforms(names []string) string {
	return "Suggested platforms:\n" + strings.Join(names, "\n") + "\n\nAny other name works too."
}

func joinIDs(ids []int64) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(s, ", ")
}
