package story

import (
	"fmt"
	"strings"
)

type Genre string

const (
	GenreSciFi       Genre = "Sci-Fi"
	GenreFantasy     Genre = "Fantasy"
	GenreMystery     Genre = "Mystery"
	GenreHorror      Genre = "Horror"
	GenreAdventure   Genre = "Adventure"
	GenreCyberpunk   Genre = "Cyberpunk"
	GenreRomance     Genre = "Romance"
	GenreThriller    Genre = "Thriller"
	GenreHistorical  Genre = "Historical Fiction"
	GenreSliceOfLife Genre = "Slice of Life"
	GenreDystopian   Genre = "Dystopian"
	GenrePostApoc    Genre = "Post-Apocalyptic"
	GenreMythology   Genre = "Mythological"
)

var Genres = []Genre{
	GenreSciFi, GenreFantasy, GenreMystery, GenreHorror, GenreAdventure, GenreCyberpunk,
	GenreRomance, GenreThriller, GenreHistorical, GenreSliceOfLife, GenreDystopian,
	GenrePostApoc, GenreMythology,
}

var Settings = []string{
	"Futuristic Megacity", "Enchanted Forest", "Victorian London", "Haunted Mansion",
	"Lost Temple", "Space Station", "Ancient Ruins", "Desert Oasis", "Volcanic Lair",
	"Floating Sky Islands", "Underground City", "Steampunk Metropolis", "Digital Realm",
	"Rural Village",
}

var Protagonists = []string{
	"Brave Knight", "Cunning Detective", "Lone Explorer", "Rogue AI", "Young Mage",
	"Street Samurai", "Seasoned Spy", "Reluctant Hero", "Mad Scientist",
	"Ambitious Politician", "Wise Mentor", "Charming Rogue", "Rebel with a Cause",
	"Alien Ambassador",
}

// ShortStory is the only length without chapters.
const ShortStory = "Short Story (No Chapters)"

var Lengths = []string{
	ShortStory, "2 Chapters", "3 Chapters", "4 Chapters", "5 Chapters", "6 Chapters",
	"7 Chapters", "10 Chapters", "Epic (10+ Chapters)",
}

// Unknown is used for config fields a seeded story cannot supply.
const Unknown = "Unknown (from seed)"

// Config is fixed at story creation. A new story gets a new Config.
type Config struct {
	Genre         Genre  `json:"genre"`
	Setting       string `json:"setting"`
	Protagonist   string `json:"protagonist"`
	Length        string `json:"story_length"`
	EnableImages  bool   `json:"enable_image_generation"`
	InitialPrompt string `json:"initial_prompt,omitempty"` // empty for seeded stories
}

// HasChapters reports whether the story is structured into chapters.
func (c Config) HasChapters() bool {
	return c.Length != ShortStory
}

// DefaultInitialPrompt is the opening used when the player gives none.
func (c Config) DefaultInitialPrompt() string {
	short := ""
	if !c.HasChapters() {
		short = "short "
	}
	return fmt.Sprintf("Begin a %s%s story set in a %s, featuring a %s. Describe the opening scene.",
		short, c.Genre, c.Setting, c.Protagonist)
}

func (c Config) Validate() error {
	if strings.TrimSpace(string(c.Genre)) == "" {
		return fmt.Errorf("genre cannot be empty")
	}
	if strings.TrimSpace(c.Setting) == "" {
		return fmt.Errorf("setting cannot be empty")
	}
	if strings.TrimSpace(c.Protagonist) == "" {
		return fmt.Errorf("protagonist cannot be empty")
	}
	if strings.TrimSpace(c.Length) == "" {
		return fmt.Errorf("story length cannot be empty")
	}
	return nil
}

// Theme names, matching the console palettes.
const (
	ThemeDefault = "Default"
	ThemeSciFi   = "Sci-Fi"
	ThemeHorror  = "Horror"
)

// ThemeForGenre picks the palette for a genre.
func ThemeForGenre(g Genre) string {
	switch g {
	case GenreSciFi, GenreCyberpunk:
		return ThemeSciFi
	case GenreHorror:
		return ThemeHorror
	default:
		return ThemeDefault
	}
}

// ResolveTheme restores a saved theme name, falling back to the genre's theme.
func ResolveTheme(name string, g Genre) string {
	switch name {
	case ThemeSciFi, ThemeHorror:
		return name
	}
	return ThemeForGenre(g)
}
