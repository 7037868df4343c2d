package main

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/hardsub-pipeline/internal/config"
	"github.com/MimeLyc/hardsub-pipeline/internal/library"
	"github.com/MimeLyc/hardsub-pipeline/internal/llm"
	"github.com/MimeLyc/hardsub-pipeline/internal/media"
	"github.com/MimeLyc/hardsub-pipeline/internal/service"
	"github.com/MimeLyc/hardsub-pipeline/internal/transcriber"
	"github.com/MimeLyc/hardsub-pipeline/pkg/file"
	"github.com/MimeLyc/hardsub-pipeline/pkg/log"
)

// Exit statuses of the subcommands
const (
	exitMissingInput = 2
	exitOutputExists = 3
	exitBusy         = 4
	exitNoFFmpeg     = 127
)

func newExtractAudioCommand(ctx *commandContext) *cobra.Command {
	var inputFile, outputDir, processedDir string
	var force bool

	cmd := &cobra.Command{
		Use:   "extract-audio",
		Short: "Extract mp3 audio from one video and move the video into the processed directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if _, err := exec.LookPath(cfg.Tools.FFmpeg); err != nil {
				return withExitCode(exitNoFFmpeg, fmt.Errorf("ffmpeg not found: %w", err))
			}
			if !file.Exists(inputFile) {
				return withExitCode(exitMissingInput, fmt.Errorf("video not found: %s", inputFile))
			}

			if outputDir == "" {
				outputDir = cfg.Dirs.Audio
			}
			if processedDir == "" {
				processedDir = filepath.Join(filepath.Dir(inputFile), service.ArchiveDirName)
			}

			operator := media.NewOperator(cfg.Tools.FFmpeg, cfg.Tools.FFprobe)
			out, err := operator.ExtractAudio(cmd.Context(), media.ExtractOptions{
				Input:        inputFile,
				OutputDir:    outputDir,
				ProcessedDir: processedDir,
				Force:        force,
			})
			if err != nil {
				return err
			}
			log.Info("Done: %s", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&inputFile, "input-file", "", "Video to extract audio from")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Audio output directory (default: AUDIO_DIR)")
	cmd.Flags().StringVar(&processedDir, "processed-dir", "", "Where the video is moved afterwards (default: <video dir>/已处理)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing audio")
	_ = cmd.MarkFlagRequired("input-file")

	return cmd
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var inputDir, inputFile, outputDir, model, prompt string
	var force, insecure bool

	cmd := &cobra.Command{
		Use:   "transcribe",
		Short: "Transcribe audio files to SRT subtitles via OpenRouter",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configWith(config.WithTranscription(model, prompt, insecure))
			if err != nil {
				return err
			}
			if err := cfg.ValidateTranscription(); err != nil {
				return withExitCode(exitMissingInput, err)
			}

			if inputFile != "" {
				if !file.Exists(inputFile) {
					return withExitCode(exitMissingInput, fmt.Errorf("input file not found: %s", inputFile))
				}
				if !library.IsMatch(inputFile, library.AudioExts) {
					return withExitCode(exitMissingInput, fmt.Errorf("not an audio file: %s", inputFile))
				}
			}
			if inputDir == "" {
				inputDir = cfg.Dirs.Audio
			}
			if outputDir == "" {
				outputDir = cfg.Dirs.SRT
			}

			client, err := llm.NewClient(&llm.Config{
				APIKey:   cfg.Transcribe.APIKey,
				APIURL:   cfg.Transcribe.APIURL,
				Model:    cfg.Transcribe.Model,
				Timeout:  cfg.Transcribe.Timeout,
				SiteURL:  llm.DefaultSiteURL,
				AppName:  llm.DefaultAppName,
				Insecure: cfg.Transcribe.Insecure,
			})
			if err != nil {
				return err
			}

			tr := transcriber.New(client,
				media.NewOperator(cfg.Tools.FFmpeg, cfg.Tools.FFprobe),
				cfg.Transcribe.Prompt)
			summary, err := tr.Run(cmd.Context(), transcriber.Options{
				InputDir:  inputDir,
				InputFile: inputFile,
				OutputDir: outputDir,
				Force:     force,
			})
			if err != nil {
				return err
			}
			log.Info("Transcription finished: %d written, %d skipped, %d failed",
				summary.Written, summary.Skipped, summary.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&inputDir, "input-dir", "", "Audio input directory (default: AUDIO_DIR)")
	cmd.Flags().StringVar(&inputFile, "input-file", "", "Single audio file to transcribe")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "SRT output directory (default: SRT_DIR)")
	cmd.Flags().StringVar(&model, "model", "", "OpenRouter model name (default: TRANSCRIBE_MODEL)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Prompt for transcription (default: TRANSCRIBE_PROMPT)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing SRT files")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "Disable SSL certificate verification")

	return cmd
}

func newBurnCommand(ctx *commandContext) *cobra.Command {
	var video, srt, out, preset string
	var crf int
	var force bool

	cmd := &cobra.Command{
		Use:   "burn",
		Short: "Burn SRT subtitles into a video with ffmpeg",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if _, err := exec.LookPath(cfg.Tools.FFmpeg); err != nil {
				return withExitCode(exitNoFFmpeg, fmt.Errorf("ffmpeg not found, please install ffmpeg and try again"))
			}
			if !file.Exists(video) {
				return withExitCode(exitMissingInput, fmt.Errorf("video not found: %s", video))
			}
			if !file.Exists(srt) {
				return withExitCode(exitMissingInput, fmt.Errorf("srt not found: %s", srt))
			}
			if !library.IsMatch(video, library.VideoExts) {
				log.Warn("Video extension looks uncommon: %s", filepath.Ext(video))
			}

			if out == "" {
				out = media.DefaultBurnOutput(video)
			}
			if !cmd.Flags().Changed("crf") {
				crf = cfg.Tools.BurnCRF
			}
			if preset == "" {
				preset = cfg.Tools.BurnPreset
			}

			operator := media.NewOperator(cfg.Tools.FFmpeg, cfg.Tools.FFprobe)
			err = operator.BurnIn(cmd.Context(), media.BurnOptions{
				Video:  video,
				SRT:    srt,
				Out:    out,
				CRF:    crf,
				Preset: preset,
				Force:  force,
			})
			var exitErr *exec.ExitError
			switch {
			case err == nil:
				log.Info("Done: %s", out)
				return nil
			case errors.Is(err, media.ErrOutputExists):
				return withExitCode(exitOutputExists, err)
			case errors.As(err, &exitErr) && exitErr.ExitCode() > 0:
				return withExitCode(exitErr.ExitCode(), fmt.Errorf("ffmpeg failed with exit code %d", exitErr.ExitCode()))
			default:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&video, "video", "", "Path to input video file")
	cmd.Flags().StringVar(&srt, "srt", "", "Path to .srt subtitle file")
	cmd.Flags().StringVar(&out, "out", "", "Path to output video file (default: <video>_hardsub.<ext>)")
	cmd.Flags().IntVar(&crf, "crf", 18, "x264 CRF quality, lower is better (default: BURN_CRF)")
	cmd.Flags().StringVar(&preset, "preset", "", "x264 preset (default: BURN_PRESET)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite output if exists")
	_ = cmd.MarkFlagRequired("video")
	_ = cmd.MarkFlagRequired("srt")

	return cmd
}
