package subtitle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PlainTextLines drops index and timing lines and keeps cue text. A run of
// blank lines between two text lines becomes a single empty line.
func PlainTextLines(content string) []string {
	var lines []string
	pendingBlank := false
	for _, raw := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		stripped := strings.TrimSpace(raw)
		if stripped == "" {
			pendingBlank = true
			continue
		}
		if isIndexLine(stripped) || strings.Contains(stripped, "-->") {
			pendingBlank = false
			continue
		}
		if pendingBlank && len(lines) > 0 {
			lines = append(lines, "")
		}
		pendingBlank = false
		lines = append(lines, stripped)
	}
	return lines
}

func isIndexLine(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ConvertSRTToText reads an SRT file of any supported encoding and writes its
// text content to outPath as UTF-8.
func ConvertSRTToText(inPath, outPath string) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	text, _ := DecodeBytes(data)
	return writeLines(outPath, PlainTextLines(text))
}

// BilibiliJSONLines extracts body[].content from a Bilibili AI subtitle JSON
// document. A bare array of entries is accepted as well.
func BilibiliJSONLines(data []byte) ([]string, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid subtitle json: %w", err)
	}

	var body []any
	switch v := doc.(type) {
	case map[string]any:
		body, _ = v["body"].([]any)
	case []any:
		body = v
	}

	lines := make([]string, 0, len(body))
	for _, item := range body {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		content, ok := entry["content"]
		if !ok || content == nil {
			continue
		}
		var line string
		if s, ok := content.(string); ok {
			line = s
		} else {
			line = fmt.Sprint(content)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// ConvertBilibiliJSONToText converts one JSON file, returning the line count.
func ConvertBilibiliJSONToText(inPath, outPath string) (int, error) {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return 0, err
	}
	lines, err := BilibiliJSONLines(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", inPath, err)
	}
	return len(lines), writeLines(outPath, lines)
}

func writeLines(outPath string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	content := strings.TrimRight(strings.Join(lines, "\n"), " \t\r\n")
	if len(lines) > 0 {
		content += "\n"
	}
	return os.WriteFile(outPath, []byte(content), 0o644)
}
