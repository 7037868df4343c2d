package service

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/hardsub-pipeline/internal/config"
	"github.com/MimeLyc/hardsub-pipeline/internal/jobs"
	"github.com/MimeLyc/hardsub-pipeline/internal/library"
	"github.com/MimeLyc/hardsub-pipeline/pkg/icron"
	"github.com/MimeLyc/hardsub-pipeline/pkg/log"
)

// BatchReport summarizes one RunBatch call
type BatchReport struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Items     []*WorkItem
	Duration  time.Duration
}

type BatchService struct {
	cfg      config.Config
	pipeline *Pipeline
	pool     *jobs.Pool
	flight   *singleflight.Group

	errHandler ErrorHandler
}

func NewBatchService(cfg config.Config, pipeline *Pipeline) *BatchService {
	return &BatchService{
		cfg:      cfg,
		pipeline: pipeline,
		pool:     jobs.NewPool(cfg.Pipeline.Workers),
		flight:   &singleflight.Group{},

		errHandler: NewDefaultErrorHandler(),
	}
}

// RunBatch processes every video currently in the input directory. Only
// setup or discovery problems are returned; item failures are logged and
// counted in the report.
func (s *BatchService) RunBatch(ctx context.Context) (BatchReport, error) {
	started := time.Now()
	report := BatchReport{RunID: uuid.NewString()}

	if err := s.prepareDirs(); err != nil {
		return report, err
	}

	videos, err := library.Scan(s.cfg.Dirs.Input, library.VideoExts)
	if err != nil {
		return report, WrapError(err, ErrSetup, "discover input videos").WithContext("dir", s.cfg.Dirs.Input)
	}
	if len(videos) == 0 {
		empty := NewError(ErrEmptyDiscovery, "no video files found").WithContext("dir", s.cfg.Dirs.Input)
		log.Info("%v (%s)", empty, s.errHandler.GetAdvice(empty))
		return report, nil
	}

	total := len(videos)
	items := make([]*WorkItem, total)
	tasks := make([]jobs.Task, total)
	for i, video := range videos {
		item := NewWorkItem(video, s.cfg.Dirs, i+1, total)
		items[i] = item
		tasks[i] = jobs.TaskFunc{
			Name: item.ID(),
			Fn: func(ctx context.Context) error {
				return SafeExecute(func() error {
					return s.pipeline.Run(ctx, item)
				})
			},
		}
	}

	log.Info("Run %s: found %d video files, processing with %d workers", report.RunID, total, s.pool.Workers())
	summary := s.pool.Run(ctx, tasks)

	report.Total = summary.Total
	report.Succeeded = summary.Succeeded
	report.Failed = summary.Failed
	report.Items = items
	report.Duration = time.Since(started)

	log.Info("Run %s finished in %s: %d succeeded, %d failed",
		report.RunID, report.Duration.Round(time.Second), report.Succeeded, report.Failed)
	return report, nil
}

// prepareDirs creates the directories every batch needs up front. The input
// archive directory is left to the extraction collaborator.
func (s *BatchService) prepareDirs() error {
	dirs := []string{
		s.cfg.Dirs.Burn,
		filepath.Join(s.cfg.Dirs.SRT, ArchiveDirName),
		filepath.Join(s.cfg.Dirs.Audio, ArchiveDirName),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return WrapError(err, ErrSetup, "create directory").WithContext("dir", dir)
		}
	}
	return nil
}

// Schedule registers RunBatch on c with the configured cron expression.
func (s *BatchService) Schedule(ctx context.Context, c *cron.Cron) error {
	expr := s.cfg.Pipeline.WatchCron
	if _, err := icron.Parse(expr); err != nil {
		return WrapError(err, ErrConfig, "invalid WATCH_CRON").WithContext("expr", expr)
	}

	runFunc := func() {
		s.trigger(ctx, "schedule")
		s.logNextTrigger(expr)
	}

	if _, err := c.AddFunc(expr, runFunc); err != nil {
		return WrapError(err, ErrConfig, "schedule batch").WithContext("expr", expr)
	}
	log.Info("Watching %s with schedule %q", s.cfg.Dirs.Input, expr)
	s.logNextTrigger(expr)
	return nil
}

// trigger runs one batch. Triggers that fire while a batch is running join
// it instead of starting a second one.
func (s *BatchService) trigger(ctx context.Context, reason string) {
	_, _, shared := s.flight.Do("batch", func() (any, error) {
		log.Debug("Batch triggered by %s", reason)
		if _, err := s.RunBatch(ctx); err != nil {
			log.Error("Batch failed: %v", err)
		}
		return nil, nil
	})
	if shared {
		log.Debug("Trigger (%s) joined a running batch", reason)
	}
}

func (s *BatchService) logNextTrigger(expr string) {
	info, err := icron.GetTriggerInfo(expr, time.Now())
	if err != nil {
		return
	}
	log.Info("Next batch at %s (in %s)", info.Next.Format(time.DateTime), info.TimeUntilNext.Round(time.Second))
}
