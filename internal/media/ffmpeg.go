package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/hardsub-pipeline/pkg/file"
	"github.com/MimeLyc/hardsub-pipeline/pkg/log"
)

// AudioExt is the extension of extracted audio
const AudioExt = ".mp3"

type ffmpeg struct {
	ffmpegCmd  string
	ffprobeCmd string
}

func NewFfmpeg(ffmpegCmd, ffprobeCmd string) ffmpeg {
	if ffmpegCmd == "" {
		ffmpegCmd = "ffmpeg"
	}
	if ffprobeCmd == "" {
		ffprobeCmd = "ffprobe"
	}
	return ffmpeg{
		ffmpegCmd:  ffmpegCmd,
		ffprobeCmd: ffprobeCmd,
	}
}

// Duration asks ffprobe for the container duration. Any failure (missing
// binary, non-zero exit, unparsable output) means unknown.
func (ff ffmpeg) Duration(ctx context.Context, path string) (time.Duration, bool) {
	cmdPath, err := exec.LookPath(ff.ffprobeCmd)
	if err != nil {
		log.Debug("ffprobe not available: %v", err)
		return 0, false
	}

	output, err := exec.CommandContext(ctx, cmdPath, ff.durationArgs(path)...).Output()
	if err != nil {
		log.Debug("ffprobe failed for %s: %v", path, err)
		return 0, false
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

// ExtractAudio writes <OutputDir>/<stem>.mp3 and then moves the source video
// into ProcessedDir. An existing mp3 is kept unless Force is set.
func (ff ffmpeg) ExtractAudio(ctx context.Context, opts ExtractOptions) (string, error) {
	if _, err := os.Stat(opts.Input); err != nil {
		return "", fmt.Errorf("input video not found: %w", err)
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create audio directory: %w", err)
	}

	output := filepath.Join(opts.OutputDir, file.Stem(opts.Input)+AudioExt)
	if file.Exists(output) && !opts.Force {
		log.Info("Skipping existing audio: %s", output)
	} else {
		cmdPath, err := exec.LookPath(ff.ffmpegCmd)
		if err != nil {
			return "", err
		}
		cmd := exec.CommandContext(ctx, cmdPath, ff.extractArgs(opts.Input, output)...)
		if out, err := cmd.CombinedOutput(); err != nil {
			return "", fmt.Errorf("ffmpeg extract failed: %w: %s", err, tail(string(out)))
		}
	}

	if opts.ProcessedDir != "" {
		if _, err := file.MoveInto(opts.Input, opts.ProcessedDir); err != nil {
			return output, fmt.Errorf("move source into %s: %w", opts.ProcessedDir, err)
		}
	}
	return output, nil
}

// BurnIn renders the subtitle file into the video with libx264.
func (ff ffmpeg) BurnIn(ctx context.Context, opts BurnOptions) error {
	if file.Exists(opts.Out) && !opts.Force {
		return fmt.Errorf("%w: %s (use --force to overwrite)", ErrOutputExists, opts.Out)
	}
	if err := os.MkdirAll(filepath.Dir(opts.Out), 0o755); err != nil {
		return err
	}

	cmdPath, err := exec.LookPath(ff.ffmpegCmd)
	if err != nil {
		return err
	}

	args := ff.burnArgs(opts)
	log.Info("Running: %s %s", ff.ffmpegCmd, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, cmdPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func (ffmpeg) durationArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
}

func (ffmpeg) extractArgs(input, output string) []string {
	return []string{
		"-hide_banner",
		"-y",
		"-i", input,
		"-vn",
		"-c:a", "libmp3lame",
		"-q:a", "2",
		output,
	}
}

func (ffmpeg) burnArgs(opts BurnOptions) []string {
	overwrite := "-n"
	if opts.Force {
		overwrite = "-y"
	}
	return []string{
		"-hide_banner",
		overwrite,
		"-i", opts.Video,
		"-vf", fmt.Sprintf("subtitles='%s':charenc=UTF-8", EscapeFilterPath(opts.SRT)),
		"-c:v", "libx264",
		"-crf", strconv.Itoa(opts.CRF),
		"-preset", opts.Preset,
		"-c:a", "aac",
		"-b:a", "192k",
		opts.Out,
	}
}

// EscapeFilterPath escapes a path for use inside an ffmpeg filter argument
// such as subtitles=... This targets ffmpeg's filter parser, not the shell.
func EscapeFilterPath(path string) string {
	return strings.NewReplacer(
		`\`, `\\`,
		`:`, `\:`,
		`'`, `\'`,
		`[`, `\[`,
		`]`, `\]`,
		`,`, `\,`,
	).Replace(path)
}

// DefaultBurnOutput is <dir of video>/<stem>_hardsub<ext>, .mp4 when the
// video has no extension.
func DefaultBurnOutput(video string) string {
	ext := filepath.Ext(video)
	if ext == "" {
		ext = ".mp4"
	}
	return filepath.Join(filepath.Dir(video), file.Stem(video)+"_hardsub"+ext)
}

// tail keeps the last lines of noisy ffmpeg output for error messages
func tail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}
