package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/MimeLyc/hardsub-pipeline/internal/config"
	"github.com/MimeLyc/hardsub-pipeline/internal/media"
	"github.com/MimeLyc/hardsub-pipeline/internal/subtitle"
	"github.com/MimeLyc/hardsub-pipeline/pkg/file"
	"github.com/MimeLyc/hardsub-pipeline/pkg/log"
)

// Pipeline drives one WorkItem through extraction, transcription and
// burn-in by invoking the collaborator commands, then checkpoints it.
// A Pipeline holds no per-item state and is shared by all workers.
type Pipeline struct {
	cfg    config.Config
	runner Runner
	prober media.DurationProber
}

func NewPipeline(cfg config.Config, runner Runner, prober media.DurationProber) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		runner: runner,
		prober: prober,
	}
}

// Run executes the stages in order and stops at the first failure. The
// returned error is a *PipelineError and is also stored in item.Err.
// Stopping after transcription on request is not a failure.
func (p *Pipeline) Run(ctx context.Context, item *WorkItem) error {
	log.Info("%s Start: %s", item.Prefix(), filepath.Base(item.SourcePath))

	log.Info("%s 1/3 Extracting audio", item.Prefix())
	if err := p.extract(ctx, item); err != nil {
		return item.fail(err)
	}
	item.advance(StageAudioExtracted)

	log.Info("%s 2/3 Transcribing", item.Prefix())
	if err := p.transcribe(ctx, item); err != nil {
		return item.fail(err)
	}
	item.advance(StageTranscribed)

	if p.cfg.Pipeline.StopAfterSRT {
		log.Info("%s Subtitle ready, stopping after transcription as requested", item.Prefix())
		return nil
	}

	log.Info("%s 3/3 Burning subtitles", item.Prefix())
	if err := p.burn(ctx, item); err != nil {
		return item.fail(err)
	}
	item.advance(StageBurnedIn)

	if _, err := archiveArtifacts(item); err != nil {
		return item.fail(newStageError(ErrCheckpoint, item, StepCheckpoint, "archive artifacts").WithCause(err))
	}

	log.Info("%s Done: %s -> %s", item.Prefix(), filepath.Base(item.SourcePath), item.BurnPath)
	return nil
}

func (p *Pipeline) extract(ctx context.Context, item *WorkItem) error {
	argv := append(clone(p.cfg.Tools.ExtractCmd),
		"--input-file", item.SourcePath,
		"--output-dir", p.cfg.Dirs.Audio,
		"--processed-dir", filepath.Dir(item.ArchivedSourcePath),
	)
	if p.cfg.Pipeline.Force {
		argv = append(argv, "--force")
	}

	if err := p.invoke(ctx, item, StepExtract, argv, nil); err != nil {
		return err
	}
	if !file.Exists(item.AudioPath) {
		return newStageError(ErrMissingArtifact, item, StepExtract, "audio not found: "+item.AudioPath)
	}
	return nil
}

func (p *Pipeline) transcribe(ctx context.Context, item *WorkItem) error {
	argv := append(clone(p.cfg.Tools.TranscribeCmd),
		"--input-file", item.AudioPath,
		"--output-dir", p.cfg.Dirs.SRT,
		"--model", p.cfg.Transcribe.Model,
		"--prompt", p.cfg.Transcribe.Prompt,
	)
	if p.cfg.Transcribe.Insecure {
		argv = append(argv, "--insecure")
	}
	if p.cfg.Pipeline.Force {
		argv = append(argv, "--force")
	}

	if err := p.invoke(ctx, item, StepTranscribe, argv, p.cfg.ChildEnv()); err != nil {
		return err
	}
	if !file.Exists(item.SubtitlePath) {
		return newStageError(ErrMissingArtifact, item, StepTranscribe, "subtitle not found: "+item.SubtitlePath)
	}
	return p.repairSubtitle(ctx, item)
}

// repairSubtitle rewrites the collaborator's subtitle as clean UTF-8. The
// rewrite is skipped when the bytes are already canonical.
func (p *Pipeline) repairSubtitle(ctx context.Context, item *WorkItem) error {
	raw, err := os.ReadFile(item.SubtitlePath)
	if err != nil {
		return newStageError(ErrMissingArtifact, item, StepTranscribe, "read subtitle").WithCause(err)
	}

	duration, known := p.prober.Duration(ctx, item.AudioPath)
	repaired := subtitle.Repair(raw, duration, known)
	if repaired.Encoding != subtitle.EncodingUTF8 {
		log.Info("%s Subtitle decoded as %s", item.Prefix(), repaired.Encoding)
	}
	if repaired.HoursFixed {
		log.Warn("%s Zeroed hallucinated hours (audio %s)", item.Prefix(), duration)
	}

	if string(subtitle.Normalize(repaired.Text)) != string(raw) {
		if err := subtitle.WriteText(item.SubtitlePath, repaired.Text); err != nil {
			return newStageError(ErrStageProcessFailure, item, StepTranscribe, "rewrite subtitle").WithCause(err)
		}
	}

	// a subtitle that does not parse still gets burned, ffmpeg is more lenient
	parsed, err := subtitle.ReadFile(item.SubtitlePath)
	if err != nil {
		log.Warn("%s Subtitle does not parse as SRT: %v", item.Prefix(), err)
		return nil
	}
	log.Info("%s Subtitle has %d cues (%s)", item.Prefix(), len(parsed.Lines), parsed.Language)
	return nil
}

func (p *Pipeline) burn(ctx context.Context, item *WorkItem) error {
	if !file.Exists(item.ArchivedSourcePath) {
		return newStageError(ErrMissingArtifact, item, StepBurn, "processed video not found: "+item.ArchivedSourcePath)
	}

	argv := append(clone(p.cfg.Tools.BurnCmd),
		"--video", item.ArchivedSourcePath,
		"--srt", item.SubtitlePath,
		"--out", item.BurnPath,
		"--crf", strconv.Itoa(p.cfg.Tools.BurnCRF),
		"--preset", p.cfg.Tools.BurnPreset,
	)
	if p.cfg.Pipeline.Force {
		argv = append(argv, "--force")
	}

	return p.invoke(ctx, item, StepBurn, argv, nil)
}

// invoke runs one collaborator. Success is decided by exit code only.
func (p *Pipeline) invoke(ctx context.Context, item *WorkItem, step string, argv, env []string) error {
	log.Debug("%s Running: %v", item.Prefix(), argv)

	result, err := p.runner.Run(ctx, argv, env)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return newStageError(ErrCollaboratorUnavailable, item, step, fmt.Sprintf("cannot start %s", argv[0])).WithCause(err)
		}
		return newStageError(ErrStageProcessFailure, item, step, fmt.Sprintf("cannot run %s", argv[0])).WithCause(err)
	}

	if result.ExitCode != 0 {
		return newStageError(ErrStageProcessFailure, item, step, fmt.Sprintf("%s exited with code %d", filepath.Base(argv[0]), result.ExitCode)).
			WithDetail(result.Diagnostic())
	}
	return nil
}

func clone(argv []string) []string {
	return append([]string(nil), argv...)
}
