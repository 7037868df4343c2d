package subtitle

import (
	"regexp"
	"strings"
	"time"
)

var codeFencePattern = regexp.MustCompile("(?is)```[ \\t]*(?:srt)?\\s*(.*?)```")

// timestampLinePattern matches a whole SRT timing line, nothing else.
var timestampLinePattern = regexp.MustCompile(
	`^(\d{2}):(\d{2}):(\d{2}),(\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2}),(\d{3})$`)

// StripCodeFence returns the trimmed interior of the first fenced block, or
// the trimmed text when there is none. Models like to wrap SRT in ```srt fences.
func StripCodeFence(text string) string {
	if m := codeFencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// FixShortClipHours zeroes the hour field of every timing line when the
// audio is known to be shorter than an hour but some cue claims a non-zero
// hour. Transcription models do this on short clips. Unknown or long
// durations leave the text untouched.
func FixShortClipHours(text string, duration time.Duration, known bool) string {
	if !known || duration >= time.Hour {
		return text
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	hasHour := false
	for _, line := range lines {
		m := timestampLinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if m != nil && (m[1] != "00" || m[5] != "00") {
			hasHour = true
			break
		}
	}
	if !hasHour {
		return text
	}

	for i, line := range lines {
		m := timestampLinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		lines[i] = "00:" + m[2] + ":" + m[3] + "," + m[4] + " --> 00:" + m[6] + ":" + m[7] + "," + m[8]
	}
	return strings.Join(lines, "\n")
}

// RepairResult is the outcome of Repair.
type RepairResult struct {
	Text       string
	Encoding   string
	HoursFixed bool
}

// Repair decodes raw transcription output, strips any code fence and fixes
// hallucinated hours. duration/known describe the source audio length.
func Repair(raw []byte, duration time.Duration, known bool) RepairResult {
	text, enc := DecodeBytes(raw)
	stripped := StripCodeFence(text)
	fixed := FixShortClipHours(stripped, duration, known)
	return RepairResult{
		Text:       fixed,
		Encoding:   enc,
		HoursFixed: fixed != stripped,
	}
}

// Normalize returns the canonical UTF-8 bytes written back to disk.
// Repair(Normalize(text)) yields text again, so rewriting is idempotent.
func Normalize(text string) []byte {
	text = strings.TrimRight(text, "\r\n\t ")
	if text == "" {
		return []byte{}
	}
	return []byte(text + "\n")
}
