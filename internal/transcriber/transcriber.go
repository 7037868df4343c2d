package transcriber

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MimeLyc/hardsub-pipeline/internal/library"
	"github.com/MimeLyc/hardsub-pipeline/internal/media"
	"github.com/MimeLyc/hardsub-pipeline/internal/subtitle"
	"github.com/MimeLyc/hardsub-pipeline/pkg/file"
	"github.com/MimeLyc/hardsub-pipeline/pkg/log"
)

// AudioTranscriber turns one audio file into raw model output.
// *llm.Client satisfies it.
type AudioTranscriber interface {
	TranscribeAudio(ctx context.Context, prompt, audioPath string) (string, error)
}

// Options selects what to transcribe. InputFile wins over InputDir.
type Options struct {
	InputDir  string
	InputFile string
	OutputDir string
	Force     bool
}

// Summary counts the outcome of a Run
type Summary struct {
	Written int
	Skipped int
	Failed  int
}

type Transcriber struct {
	client AudioTranscriber
	prober media.DurationProber
	prompt string
}

func New(client AudioTranscriber, prober media.DurationProber, prompt string) *Transcriber {
	return &Transcriber{
		client: client,
		prober: prober,
		prompt: prompt,
	}
}

// Run transcribes a single file or every audio file of a directory.
// In directory mode a failing file is logged and the rest continue; in
// single file mode the failure is returned so the caller exits non-zero.
func (t *Transcriber) Run(ctx context.Context, opts Options) (Summary, error) {
	var summary Summary

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return summary, fmt.Errorf("create output directory: %w", err)
	}

	if opts.InputFile != "" {
		if !file.Exists(opts.InputFile) {
			return summary, fmt.Errorf("input file not found: %s", opts.InputFile)
		}
		if !library.IsMatch(opts.InputFile, library.AudioExts) {
			return summary, fmt.Errorf("not an audio file: %s", opts.InputFile)
		}
		written, err := t.TranscribeFile(ctx, opts.InputFile, opts.OutputDir, opts.Force)
		switch {
		case err != nil:
			summary.Failed++
			return summary, err
		case written:
			summary.Written++
		default:
			summary.Skipped++
		}
		return summary, nil
	}

	audioFiles, err := library.Scan(opts.InputDir, library.AudioExts)
	if err != nil {
		return summary, err
	}
	if len(audioFiles) == 0 {
		log.Info("No audio files found in: %s", opts.InputDir)
		return summary, nil
	}

	for _, audioPath := range audioFiles {
		written, err := t.TranscribeFile(ctx, audioPath, opts.OutputDir, opts.Force)
		switch {
		case err != nil:
			summary.Failed++
			log.Error("Failed: %s (%v)", audioPath, err)
		case written:
			summary.Written++
		default:
			summary.Skipped++
		}
	}
	return summary, nil
}

// TranscribeFile writes <outputDir>/<stem>.srt for audioPath. It reports
// false without calling the model when the subtitle exists and force is off.
func (t *Transcriber) TranscribeFile(ctx context.Context, audioPath, outputDir string, force bool) (bool, error) {
	outPath := file.ReplaceExt(filepath.Join(outputDir, filepath.Base(audioPath)), ".srt")
	if file.Exists(outPath) && !force {
		log.Info("Skipping existing: %s", outPath)
		return false, nil
	}

	log.Info("Transcribing: %s", audioPath)
	content, err := t.client.TranscribeAudio(ctx, t.prompt, audioPath)
	if err != nil {
		return false, err
	}

	duration, known := t.prober.Duration(ctx, audioPath)
	repaired := subtitle.Repair([]byte(content), duration, known)
	if repaired.HoursFixed {
		log.Warn("Zeroed hallucinated hours in %s (audio %s)", outPath, duration)
	}

	if err := subtitle.WriteText(outPath, repaired.Text); err != nil {
		return false, fmt.Errorf("write %s: %w", outPath, err)
	}

	if parsed, err := subtitle.ParseSRT(repaired.Text); err == nil {
		log.Info("Wrote: %s (%d cues, language %s)", outPath, len(parsed.Lines), parsed.Language)
	} else {
		log.Info("Wrote: %s", outPath)
	}
	return true, nil
}
