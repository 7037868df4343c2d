package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rjeczalik/notify"

	"github.com/MimeLyc/hardsub-pipeline/internal/library"
	"github.com/MimeLyc/hardsub-pipeline/pkg/log"
)

// WatchInput triggers a batch whenever a video appears in the input
// directory. Events are coalesced: the batch starts once no new video has
// shown up for the configured settle period, so files that are still being
// copied in are not picked up half written. Videos that land while a batch
// is running are left to the next trigger. WatchInput blocks until ctx is
// cancelled and the batch it started has finished; batches run on batchCtx.
func (s *BatchService) WatchInput(ctx, batchCtx context.Context) error {
	dir := s.cfg.Dirs.Input
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return WrapError(err, ErrSetup, "create input directory").WithContext("dir", dir)
	}

	// notify drops events when the receiver is slow, the buffer absorbs bursts
	events := make(chan notify.EventInfo, 64)
	if err := notify.Watch(dir, events, notify.Create, notify.Rename); err != nil {
		return WrapError(err, ErrSetup, "watch input directory").WithContext("dir", dir)
	}
	defer notify.Stop(events)

	settle := s.cfg.Pipeline.WatchSettle
	var pending <-chan time.Time
	var wg sync.WaitGroup
	defer wg.Wait()

	log.Info("Watching %s for new videos (settle %s)", dir, settle)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if !s.isNewVideo(ev.Path()) {
				continue
			}
			log.Debug("Input event %s on %s", ev.Event(), filepath.Base(ev.Path()))
			pending = time.After(settle)
		case <-pending:
			pending = nil
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.trigger(batchCtx, "new input")
			}()
		}
	}
}

// isNewVideo filters events down to videos still sitting directly in the
// input directory; the archive move out of it reports a rename too.
func (s *BatchService) isNewVideo(path string) bool {
	if !library.IsMatch(path, library.VideoExts) {
		return false
	}
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(s.inputDirReal()) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// inputDirReal resolves symlinks because notify reports resolved paths.
func (s *BatchService) inputDirReal() string {
	abs, err := filepath.Abs(s.cfg.Dirs.Input)
	if err != nil {
		return s.cfg.Dirs.Input
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
