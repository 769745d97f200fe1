// Package seed turns pasted story text into speaker-attributed turns so an
// existing story can be continued.
package seed

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/jwebster45206/story-weaver/pkg/story"
)

const (
	memoryLinePrefix = "add_memory:"
	memoryLineLabel  = "Memory added: "
	noSourceMarker   = "[No source_id provided]"
)

// A speaker marker is "User:" or "User (timestamp)" with an optional colon.
var (
	userMarker      = regexp.MustCompile(`(?i)^user\b\s*(?:\(([\dTZ:.,\s+-]+)\)\s*:?|:)\s*`)
	assistantMarker = regexp.MustCompile(`(?i)^assistant\b\s*(?:\(([\dTZ:.,\s+-]+)\)\s*:?|:)\s*`)
	lineSplit       = regexp.MustCompile(`\r?\n+`)
	leadingMemory   = regexp.MustCompile(`(?i)^add_memory:\s*`)
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Segment splits raw text into turns, timestamping unmarked turns with the
// current time.
func Segment(raw string) []story.Turn {
	return SegmentAt(raw, time.Now)
}

// SegmentAt is Segment with an injectable clock. Lines before the first
// speaker marker are dropped; if no marker appears at all the whole text
// becomes one User turn.
func SegmentAt(raw string, now func() time.Time) []story.Turn {
	var (
		turns   []story.Turn
		buf     []string
		speaker story.Speaker
		stamp   time.Time
	)

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		if speaker == "" || text == "" {
			return
		}
		text = leadingMemory.ReplaceAllString(text, memoryLineLabel)
		turns = append(turns, story.NewTurn(speaker, text, stamp))
	}

	for _, line := range lineSplit.Split(raw, -1) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if s, ts, rest, ok := matchSpeaker(line); ok {
			flush()
			speaker = s
			stamp = parseTimestamp(ts, now)
			buf = buf[:0]
			if rest != "" {
				buf = append(buf, rest)
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, noSourceMarker):
		case len(line) >= len(memoryLinePrefix) && strings.EqualFold(line[:len(memoryLinePrefix)], memoryLinePrefix):
			buf = append(buf, memoryLineLabel+strings.TrimSpace(line[len(memoryLinePrefix):]))
		default:
			// prose and lettered options ("A) ...") both join the current turn
			buf = append(buf, line)
		}
	}
	flush()

	if len(turns) == 0 {
		if text := strings.TrimSpace(raw); text != "" {
			turns = append(turns, story.NewTurn(story.SpeakerUser, text, now()))
		}
	}
	return turns
}

func matchSpeaker(line string) (story.Speaker, string, string, bool) {
	for _, m := range []struct {
		re      *regexp.Regexp
		speaker story.Speaker
	}{
		{userMarker, story.SpeakerUser},
		{assistantMarker, story.SpeakerAssistant},
	} {
		if loc := m.re.FindStringSubmatchIndex(line); loc != nil {
			ts := ""
			if loc[2] >= 0 {
				ts = line[loc[2]:loc[3]]
			}
			return m.speaker, ts, strings.TrimSpace(line[loc[1]:]), true
		}
	}
	return "", "", "", false
}

func parseTimestamp(ts string, now func() time.Time) time.Time {
	ts = strings.Join(strings.Fields(strings.ReplaceAll(ts, ",", " ")), " ")
	if ts == "" {
		return now()
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return now()
}

var folder = cases.Fold()

// InferGenre returns the first known genre whose name appears in the text,
// ignoring case. Fantasy is the default.
func InferGenre(raw string) story.Genre {
	text := folder.String(raw)
	for _, g := range story.Genres {
		if strings.Contains(text, folder.String(string(g))) {
			return g
		}
	}
	return story.GenreFantasy
}

// Config builds the config for a seeded story. Fields the text cannot
// supply are marked unknown.
func Config(raw string, enableImages bool) story.Config {
	return story.Config{
		Genre:        InferGenre(raw),
		Setting:      story.Unknown,
		Protagonist:  story.Unknown,
		Length:       story.ShortStory,
		EnableImages: enableImages,
	}
}
