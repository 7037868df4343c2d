package service

import (
	"fmt"
	"path/filepath"

	"github.com/MimeLyc/hardsub-pipeline/internal/config"
	"github.com/MimeLyc/hardsub-pipeline/internal/media"
	"github.com/MimeLyc/hardsub-pipeline/pkg/file"
)

// ArchiveDirName is the subdirectory that marks an artifact as done.
const ArchiveDirName = "已处理"

// Step names used in logs and PipelineError.Stage
const (
	StepExtract    = "audio-extraction"
	StepTranscribe = "transcription"
	StepBurn       = "burn-in"
	StepCheckpoint = "checkpoint"
)

// Stage is how far an item got. Stages only move forward; Failed is terminal.
type Stage int

const (
	StageNotStarted Stage = iota
	StageAudioExtracted
	StageTranscribed
	StageBurnedIn
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageNotStarted:
		return "NotStarted"
	case StageAudioExtracted:
		return "AudioExtracted"
	case StageTranscribed:
		return "Transcribed"
	case StageBurnedIn:
		return "BurnedIn"
	case StageFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// WorkItem is one source video moving through the pipeline. It is owned by
// a single worker for its whole lifetime.
type WorkItem struct {
	Index int // 1-based position in the batch
	Total int

	Stem               string
	SourcePath         string
	AudioPath          string
	SubtitlePath       string
	ArchivedSourcePath string // where the extractor relocates SourcePath
	BurnPath           string

	Stage Stage
	Err   error
}

// NewWorkItem derives every per-stage path from the source file name.
func NewWorkItem(source string, dirs config.DirsConfig, index, total int) *WorkItem {
	stem := file.Stem(source)
	name := filepath.Base(source)
	return &WorkItem{
		Index:              index,
		Total:              total,
		Stem:               stem,
		SourcePath:         source,
		AudioPath:          filepath.Join(dirs.Audio, stem+media.AudioExt),
		SubtitlePath:       file.ReplaceExt(filepath.Join(dirs.SRT, name), ".srt"),
		ArchivedSourcePath: filepath.Join(dirs.Input, ArchiveDirName, name),
		BurnPath:           filepath.Join(dirs.Burn, stem+"_hardsub"+filepath.Ext(name)),
		Stage:              StageNotStarted,
	}
}

// ID names the item in pool results
func (w *WorkItem) ID() string {
	return filepath.Base(w.SourcePath)
}

// Prefix is the "[i/N]" tag on every log line of this item
func (w *WorkItem) Prefix() string {
	return fmt.Sprintf("[%d/%d]", w.Index, w.Total)
}

func (w *WorkItem) advance(to Stage) {
	if w.Stage == StageFailed || to <= w.Stage {
		return
	}
	w.Stage = to
}

func (w *WorkItem) fail(err error) error {
	w.Stage = StageFailed
	w.Err = err
	return err
}
