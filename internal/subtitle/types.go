package subtitle

import (
	"time"

	"golang.org/x/text/language"
)

// Line is a single SRT cue
type Line struct {
	Index     int           // cue index as written in the file
	StartTime time.Duration // start time, millisecond precision
	EndTime   time.Duration // end time, millisecond precision
	Text      string        // one or more text lines joined by "\n"
}

// File is a parsed subtitle document. Cues keep the order they were read in.
type File struct {
	Lines    []Line
	Language language.Tag
	Format   string // always "SRT" for now
	Encoding string // name of the decoder that produced the text
	Path     string
}
