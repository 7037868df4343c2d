package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/hardsub-pipeline/internal/config"
	"github.com/MimeLyc/hardsub-pipeline/internal/media"
	"github.com/MimeLyc/hardsub-pipeline/internal/service"
	"github.com/MimeLyc/hardsub-pipeline/pkg/log"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var inputDir, audioDir, srtDir, burnDir string
	var force, stopAfterSRT, watch, insecure bool
	var jobs int
	var cronExpr, model, prompt string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the video -> mp3 -> SRT -> burn-in pipeline over the input directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobs < 0 {
				return fmt.Errorf("--jobs must not be negative")
			}
			cfg, err := ctx.configWith(
				config.WithDirs(inputDir, audioDir, srtDir, burnDir),
				config.WithWorkers(jobs),
				config.WithForce(force),
				config.WithStopAfterSRT(stopAfterSRT),
				config.WithWatchCron(cronExpr),
				config.WithTranscription(model, prompt, insecure),
			)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			// collaborators get absolute paths regardless of their working directory
			cfg.ResolveDirs(wd)

			lock, err := acquireRunLock(cfg.Dirs.Input)
			if err != nil {
				return err
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					log.Warn("Failed to release run lock: %v", err)
				}
			}()

			pipeline := service.NewPipeline(*cfg,
				service.NewExecRunner(wd),
				media.NewOperator(cfg.Tools.FFmpeg, cfg.Tools.FFprobe))
			svc := service.NewBatchService(*cfg, pipeline)

			// running items are never cancelled; a signal only ends watch mode
			batchCtx := context.WithoutCancel(cmd.Context())
			report, err := svc.RunBatch(batchCtx)
			if err != nil {
				service.NewDefaultErrorHandler().Handle(err)
				return err
			}
			if summary := renderBatchReport(report, shouldColorize(cmd.OutOrStdout())); summary != "" {
				fmt.Fprint(cmd.OutOrStdout(), summary)
			}
			if !watch {
				return nil
			}

			signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c := cron.New()
			if err := svc.Schedule(batchCtx, c); err != nil {
				return err
			}
			c.Start()

			watchDone := make(chan struct{})
			go func() {
				defer close(watchDone)
				if err := svc.WatchInput(signalCtx, batchCtx); err != nil {
					log.Warn("Filesystem events unavailable, relying on the schedule: %v", err)
				}
			}()
			<-signalCtx.Done()

			log.Info("Stopping watch mode, waiting for the running batch")
			<-c.Stop().Done()
			<-watchDone
			return nil
		},
	}

	cmd.Flags().StringVar(&inputDir, "input-dir", "", "Input video directory (default: input_video)")
	cmd.Flags().StringVar(&audioDir, "audio-dir", "", "Output audio directory (default: output_audio)")
	cmd.Flags().StringVar(&srtDir, "srt-dir", "", "Output SRT directory (default: ai_srt)")
	cmd.Flags().StringVar(&burnDir, "burn-dir", "", "Output burn-in video directory (default: burn_video)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing SRT/burn outputs")
	cmd.Flags().BoolVar(&stopAfterSRT, "stop-after-srt", false, "Stop after SRT generation")
	cmd.Flags().IntVar(&jobs, "jobs", 0, "Max parallel tasks (default: auto)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and process new videos as they arrive and on a schedule")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Watch schedule (default: WATCH_CRON or */10 * * * *)")
	cmd.Flags().StringVar(&model, "model", "", "Transcription model passed to the transcriber")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Transcription prompt passed to the transcriber")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "Let the transcriber skip TLS certificate verification")

	return cmd
}
