package main

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const maxSeedImageBytes = 8 << 20

// readSeedInput returns pasted seed text, or the contents of the file named
// after a leading "@".
func readSeedInput(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "@") {
		return input, nil
	}
	path := strings.TrimSpace(strings.TrimPrefix(trimmed, "@"))
	if path == "" {
		return "", fmt.Errorf("no file named after @")
	}
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return "", fmt.Errorf("failed to read seed file: %w", err)
	}
	return string(data), nil
}

// readImageDataURI loads an image file as a data URI. An empty path yields "".
func readImageDataURI(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return "", fmt.Errorf("failed to read seed image: %w", err)
	}
	if len(data) > maxSeedImageBytes {
		return "", fmt.Errorf("seed image is too large (%d bytes, max %d)", len(data), maxSeedImageBytes)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("seed image is not an image (detected %s)", mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// writeExport writes a transcript into dir and returns the file path.
func writeExport(dir, name, content string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// imageCommand is a parsed "/image [n] [prompt]".
type imageCommand struct {
	Turn   int // 1-based transcript number, 0 for the latest
	Prompt string
}

func parseImageCommand(args string) imageCommand {
	args = strings.TrimSpace(args)
	if args == "" {
		return imageCommand{}
	}
	first, rest, _ := strings.Cut(args, " ")
	if n, err := strconv.Atoi(first); err == nil && n > 0 {
		return imageCommand{Turn: n, Prompt: strings.TrimSpace(rest)}
	}
	return imageCommand{Prompt: args}
}
