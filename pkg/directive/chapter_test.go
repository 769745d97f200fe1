package directive

import "testing"

func TestExtractChapter(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		cleaned string
		chapter string
	}{
		{
			name:    "chapter at start",
			input:   "Chapter 2\nThe village burned.",
			cleaned: "The village burned.",
			chapter: "Chapter 2",
		},
		{
			name:    "no announcement",
			input:   "Nothing special happens.",
			cleaned: "Nothing special happens.",
			chapter: "",
		},
		{
			name:    "end of previous chapter and begins",
			input:   "End of Chapter 1. Chapter 2 begins.\nThe road north was quiet.",
			cleaned: "The road north was quiet.",
			chapter: "Chapter 2",
		},
		{
			name:    "trailing colon",
			input:   "Chapter 4: The road was long.",
			cleaned: "The road was long.",
			chapter: "Chapter 4",
		},
		{
			name:    "starts suffix and lower case",
			input:   "chapter 3 starts\nDawn.",
			cleaned: "Dawn.",
			chapter: "Chapter 3",
		},
		{
			name:    "extra whitespace is normalized",
			input:   "CHAPTER   5\nRain.",
			cleaned: "Rain.",
			chapter: "Chapter 5",
		},
		{
			name:    "announcement on its own line mid text",
			input:   "She slept.\nChapter 3\nMorning came.",
			cleaned: "She slept.\nMorning came.",
			chapter: "Chapter 3",
		},
		{
			name:    "announcement after a sentence",
			input:   "The door closed. Chapter 6 begins. Silence followed.",
			cleaned: "The door closed. Silence followed.",
			chapter: "Chapter 6",
		},
		{
			name:    "chapter ends form",
			input:   "Chapter 1 ends. Chapter 2\nA storm.",
			cleaned: "A storm.",
			chapter: "Chapter 2",
		},
		{
			name:    "only first announcement honored",
			input:   "Chapter 2\nThe fight.\nChapter 3\nThe escape.",
			cleaned: "The fight.\nChapter 3\nThe escape.",
			chapter: "Chapter 2",
		},
		{
			name:    "mention inside a clause is narrative",
			input:   "As told in chapter 3 of the legend, the king fell.",
			cleaned: "As told in chapter 3 of the legend, the king fell.",
			chapter: "",
		},
		{
			name:    "empty",
			input:   "",
			cleaned: "",
			chapter: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaned, chapter := ExtractChapter(tt.input)
			if cleaned != tt.cleaned {
				t.Errorf("Expected cleaned %q, got %q", tt.cleaned, cleaned)
			}
			if chapter != tt.chapter {
				t.Errorf("Expected chapter %q, got %q", tt.chapter, chapter)
			}
		})
	}
}
