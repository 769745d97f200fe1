package directive

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// chapterPattern matches a chapter announcement at the start of the text, at
// the start of a line, or right after a sentence. Group 1 is the span removed
// from the narrative; group 2 is the "chapter N" label.
var chapterPattern = regexp.MustCompile(
	`(?im)(?:^|[.!?]["']?[ \t]+)` +
		`((?:(?:end\s+of\s+chapter\s+\d+|chapter\s+\d+\s+ends)\s*\.\s*)?` +
		`(chapter[ \t]+\d+)` +
		`(?:[ \t]*:|[ \t]+(?:begins|starts))?\.?)` +
		`(?:\s|$)`,
)

var titleCaser = cases.Title(language.English)

// ExtractChapter finds the first chapter announcement in text and removes it.
// When there is no announcement the input is returned unchanged and chapter
// is empty. Later announcements in the same text stay in the narrative.
func ExtractChapter(text string) (cleaned string, chapter string) {
	loc := chapterPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, ""
	}

	label := strings.Join(strings.Fields(text[loc[4]:loc[5]]), " ")
	chapter = titleCaser.String(strings.ToLower(label))

	before := strings.TrimRight(text[:loc[2]], " \t")
	after := strings.TrimLeft(text[loc[3]:], " \t")
	switch {
	case before == "" || strings.HasSuffix(before, "\n"):
		// the announcement had its own line; drop the line break it leaves behind
		after = strings.TrimPrefix(strings.TrimPrefix(after, "\r"), "\n")
	case after != "" && !strings.HasPrefix(after, "\n"):
		before += " "
	}
	return strings.TrimSpace(before + after), chapter
}
