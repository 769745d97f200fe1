// Package transcript renders a story as a plain-text export.
package transcript

import (
	"fmt"
	"strings"
	"time"

	"github.com/jwebster45206/story-weaver/pkg/story"
)

const (
	Title     = "Interactive Story Weaver Export"
	rule      = "-----------------------------------"
	timeStamp = "2006-01-02 15:04:05"
)

// Export formats the config header followed by every turn. A nil loc
// renders timestamps in local time.
func Export(cfg story.Config, history []story.Turn, chapter string, stage story.ArcStage, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	var sb strings.Builder
	sb.WriteString(Title + "\n")
	sb.WriteString(rule + "\n")
	fmt.Fprintf(&sb, "Genre: %s\n", cfg.Genre)
	fmt.Fprintf(&sb, "Setting: %s\n", cfg.Setting)
	fmt.Fprintf(&sb, "Protagonist: %s\n", cfg.Protagonist)
	fmt.Fprintf(&sb, "Story Length: %s\n", cfg.Length)
	fmt.Fprintf(&sb, "Image Generation Enabled: %t\n", cfg.EnableImages)
	if chapter != "" {
		fmt.Fprintf(&sb, "Current Chapter: %s\n", chapter)
	}
	if stage != "" {
		fmt.Fprintf(&sb, "Current Story Arc Stage: %s\n", stage)
	}
	sb.WriteString(rule + "\n\n")

	for _, t := range history {
		fmt.Fprintf(&sb, "[%s] %s:\n", t.Timestamp.In(loc).Format(timeStamp), speakerLabel(t))
		sb.WriteString(t.Text + "\n")
		if t.ImageURL != "" {
			sb.WriteString("(Image was present for this segment - not included in text export)\n")
		}
		if t.ImagePrompt != "" {
			fmt.Fprintf(&sb, "(Image prompt used: %s)\n", t.ImagePrompt)
		}
		if len(t.Choices) > 0 {
			quoted := make([]string, 0, len(t.Choices))
			for _, c := range t.Choices {
				quoted = append(quoted, `"`+c.Text+`"`)
			}
			fmt.Fprintf(&sb, "Choices offered: %s\n", strings.Join(quoted, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func speakerLabel(t story.Turn) string {
	if t.Speaker == story.SpeakerSystem && strings.HasPrefix(t.Text, story.MemoryPrefix) {
		return "Memory"
	}
	return string(t.Speaker)
}

// FileName is the suggested export file name for a story of the given genre.
func FileName(genre story.Genre, now time.Time) string {
	now = now.UTC()
	ts := fmt.Sprintf("%s-%03dZ", now.Format("2006-01-02T15-04-05"), now.Nanosecond()/int(time.Millisecond))
	name := strings.NewReplacer("/", "-", " ", "_").Replace(string(genre))
	return fmt.Sprintf("StoryWeaver-%s-%s.txt", name, ts)
}
