package media

import (
	"context"
	"errors"
	"time"
)

// ErrOutputExists is returned by BurnIn when the output is present and
// overwriting was not requested.
var ErrOutputExists = errors.New("output already exists")

// DurationProber reports the length of a media file. ok is false when the
// length cannot be determined; callers treat that as "unknown", not an error.
type DurationProber interface {
	Duration(ctx context.Context, path string) (d time.Duration, ok bool)
}

// BurnOptions describes one subtitle burn-in run
type BurnOptions struct {
	Video  string
	SRT    string
	Out    string
	CRF    int
	Preset string
	Force  bool
}

// ExtractOptions describes one audio extraction run
type ExtractOptions struct {
	Input        string
	OutputDir    string
	ProcessedDir string // the source video is moved here after extraction
	Force        bool
}

// Operator is the set of ffmpeg-backed operations the collaborator
// commands are built on.
type Operator interface {
	DurationProber
	ExtractAudio(ctx context.Context, opts ExtractOptions) (string, error)
	BurnIn(ctx context.Context, opts BurnOptions) error
}

func NewOperator(ffmpegCmd, ffprobeCmd string) Operator {
	return NewFfmpeg(ffmpegCmd, ffprobeCmd)
}
