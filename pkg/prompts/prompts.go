package prompts

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/story-weaver/pkg/story"
)

// ChoicesExample is the sample directive line shown to the model.
const ChoicesExample = `CHOICES: ["Enter the portal", "Look for another path", "Set up camp"]`

const chapterAnnouncementRule = `When you reach a natural breaking point that signifies the end of a chapter and the beginning of a new one, clearly announce it in the story text by starting a new paragraph with ONLY the chapter announcement. For example: "Chapter 2" or "End of Chapter 1. Chapter 2 begins." This announcement will be used by the system to track chapters and will be hidden from the user, so the story text following it should flow naturally as if the announcement wasn't visible.`

const seedChapterRule = `As you continue the narrative, be mindful of natural chapter breaks. If a chapter transition feels appropriate, announce it by starting a new paragraph with ONLY the chapter announcement (e.g., "Chapter 2" or "End of Chapter 1. Chapter 2 begins."). This announcement is for system use and will be hidden from the player. Ensure the chapter announcement is concise and clear.`

// ArcStageRule asks the model to report the story arc stage on every turn.
var ArcStageRule = fmt.Sprintf(
	`Always include the current story arc stage on a new line: "STORY_ARC_STAGE: [StageName]". Example: "STORY_ARC_STAGE: Climax". If the stage hasn't changed from the previous turn, report the current one. Valid stages are %s.`,
	joinStages(),
)

func joinStages() string {
	names := make([]string, 0, len(story.ArcStages))
	for _, s := range story.ArcStages {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func turnInstructions(enableImages bool) []string {
	lines := []string{
		"When the user makes a choice or provides input:",
		"1. Continue the story in a compelling way. Describe the scene, events, and character reactions.",
	}
	choicesRule := fmt.Sprintf(`provide 2-4 distinct choices for the player as a JSON array of strings, prefixed with "CHOICES:". For example: "%s". Ensure the CHOICES: prefix and its JSON value are on the same line.`, ChoicesExample)
	if enableImages {
		return append(lines,
			`2. If the current part of the story would benefit from an image, provide a concise image prompt on a new line, prefixed with "IMAGE_PROMPT:". For example: "IMAGE_PROMPT: A dark forest with a glowing portal." Ensure the IMAGE_PROMPT: prefix and its value are on the same line.`,
			"3. Then, on a new line, "+choicesRule,
		)
	}
	return append(lines,
		"2. Do NOT include any 'IMAGE_PROMPT:' lines in your responses, as image generation is disabled.",
		"3. On a new line, "+choicesRule,
	)
}

func commandInstructions() []string {
	return []string{
		"",
		"Special System Commands:",
		fmt.Sprintf(`If you receive input starting with "%s %s <text>", this is the player adding a key memory. Acknowledge this addition very briefly (e.g., "Memory noted." or "Understood, memory added.") WITHOUT providing any choices or an IMAGE_PROMPT. The actual memory content will be available in the chat history prefixed with "%s".`,
			story.CommandPrefix, story.AddMemoryDirective, story.MemoryPrefix),
		fmt.Sprintf(`If you receive input "%s", provide a concise summary (1-2 paragraphs) of the story so far, based on the chat history. Begin it with "Recap of the story so far:". Do NOT provide choices or an IMAGE_PROMPT for this recap.`,
			story.RecapCommand()),
		fmt.Sprintf(`Treat any lines in the chat history that start with "%s" as important context for future story generation and plot development.`, story.MemoryPrefix),
	}
}

// NewStory is the system instruction for a story created from a Config.
func NewStory(cfg story.Config) string {
	lines := []string{
		"You are a 'Choose Your Own Adventure' (CYOA) game master.",
		"Your goal is to create an engaging narrative based on user choices.",
		fmt.Sprintf("The current story settings are: Genre: %s, Setting: %s, Protagonist: %s. Target Story Length: %s. Image Generation: %s.",
			cfg.Genre, cfg.Setting, cfg.Protagonist, cfg.Length, enabled(cfg.EnableImages)),
	}
	if cfg.HasChapters() {
		lines = append(lines,
			`Structure the narrative into approximately the number of chapters indicated by "Target Story Length".`,
			chapterAnnouncementRule,
		)
	}
	lines = append(lines, turnInstructions(cfg.EnableImages)...)
	lines = append(lines,
		`4. If the story reaches a natural conclusion (e.g., the final chapter ends according to the "Target Story Length"), you can indicate this in the story text.`,
		ArcStageRule,
		"",
		"Keep the story segments to a reasonable length (1-3 paragraphs).",
		"Make the choices meaningful and lead to different outcomes.",
	)
	lines = append(lines, commandInstructions()...)
	return strings.Join(lines, "\n")
}

// SeedStory is the system instruction for continuing pasted story text.
func SeedStory(enableImages bool) string {
	lines := []string{
		"You are a 'Choose Your Own Adventure' (CYOA) game master continuing an existing story.",
		fmt.Sprintf("The story so far has been provided in the history. Image Generation: %s.", enabled(enableImages)),
		seedChapterRule,
	}
	lines = append(lines, turnInstructions(enableImages)...)
	lines = append(lines,
		ArcStageRule,
		"Keep story segments to 1-3 paragraphs. Make choices meaningful.",
	)
	lines = append(lines, commandInstructions()...)
	return strings.Join(lines, "\n")
}

// ForConfig picks the system instruction for a story. Stories that began
// from a Config (an initial prompt or a story-start announcement) use
// NewStory; seeded stories use SeedStory.
func ForConfig(cfg story.Config, history []story.Turn) string {
	if cfg.InitialPrompt != "" {
		return NewStory(cfg)
	}
	for _, t := range history {
		if t.IsStoryStart() {
			return NewStory(cfg)
		}
	}
	return SeedStory(cfg.EnableImages)
}

func enabled(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}
