package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/MimeLyc/hardsub-pipeline/internal/config"
	"github.com/MimeLyc/hardsub-pipeline/pkg/log"
)

const sampleSRT = "1\n00:00:01,000 --> 00:00:02,000\nhello\n"

type call struct {
	tool string
	argv []string
}

// spyRunner records every invocation and, unless overridden, behaves like
// well-mannered collaborators: the extractor writes the mp3 and relocates
// the source, the transcriber writes the srt, the burner writes the output.
type spyRunner struct {
	mu    sync.Mutex
	calls []call

	override func(tool string, argv []string) (CommandResult, bool, error)
	srtBody  []byte
	delay    time.Duration

	active atomic.Int32
	peak   atomic.Int32
}

func (r *spyRunner) Run(_ context.Context, argv []string, _ []string) (CommandResult, error) {
	tool := argv[0]
	r.mu.Lock()
	r.calls = append(r.calls, call{tool: tool, argv: argv})
	r.mu.Unlock()

	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	if r.override != nil {
		if res, handled, err := r.override(tool, argv); handled {
			return res, err
		}
	}
	return r.behave(tool, argv)
}

func (r *spyRunner) behave(tool string, argv []string) (CommandResult, error) {
	switch tool {
	case "extract":
		src := argValue(argv, "--input-file")
		out := filepath.Join(argValue(argv, "--output-dir"), stemOf(src)+".mp3")
		if err := os.WriteFile(out, []byte("mp3"), 0o644); err != nil {
			return CommandResult{ExitCode: 1, Stderr: err.Error()}, nil
		}
		processed := argValue(argv, "--processed-dir")
		if err := os.MkdirAll(processed, 0o755); err != nil {
			return CommandResult{ExitCode: 1, Stderr: err.Error()}, nil
		}
		if err := os.Rename(src, filepath.Join(processed, filepath.Base(src))); err != nil {
			return CommandResult{ExitCode: 1, Stderr: err.Error()}, nil
		}
	case "transcribe":
		audio := argValue(argv, "--input-file")
		body := r.srtBody
		if body == nil {
			body = []byte(sampleSRT)
		}
		out := filepath.Join(argValue(argv, "--output-dir"), stemOf(audio)+".srt")
		if err := os.WriteFile(out, body, 0o644); err != nil {
			return CommandResult{ExitCode: 1, Stderr: err.Error()}, nil
		}
	case "burn":
		if err := os.WriteFile(argValue(argv, "--out"), []byte("video"), 0o644); err != nil {
			return CommandResult{ExitCode: 1, Stderr: err.Error()}, nil
		}
	}
	return CommandResult{Stdout: "ok"}, nil
}

func (r *spyRunner) tools() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]string, len(r.calls))
	for i, c := range r.calls {
		ret[i] = c.tool
	}
	return ret
}

func (r *spyRunner) count(tool string) int {
	n := 0
	for _, t := range r.tools() {
		if t == tool {
			n++
		}
	}
	return n
}

func argValue(argv []string, flag string) string {
	for i := 0; i < len(argv)-1; i++ {
		if argv[i] == flag {
			return argv[i+1]
		}
	}
	return ""
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type fakeProber struct {
	d  time.Duration
	ok bool
}

func (p fakeProber) Duration(context.Context, string) (time.Duration, bool) { return p.d, p.ok }

func testConfig(root string, workers int) config.Config {
	return config.Config{
		Dirs: config.DirsConfig{
			Input: filepath.Join(root, "input_video"),
			Audio: filepath.Join(root, "output_audio"),
			SRT:   filepath.Join(root, "ai_srt"),
			Burn:  filepath.Join(root, "burn_video"),
		},
		Pipeline: config.PipelineConfig{Workers: workers},
		Tools: config.ToolsConfig{
			ExtractCmd:    []string{"extract"},
			TranscribeCmd: []string{"transcribe"},
			BurnCmd:       []string{"burn"},
			BurnCRF:       18,
			BurnPreset:    "medium",
		},
		Transcribe: config.TranscribeConfig{Model: "test-model", Prompt: "prompt", Timeout: 60},
	}
}

func addVideos(t *testing.T, cfg config.Config, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(cfg.Dirs.Input, 0o755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.Dirs.Input, name), []byte("video"), 0o644))
	}
}

// captureLogs routes the global logger into a buffer for the test
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := log.GetLogger()
	var buf bytes.Buffer
	log.SetLogger(log.NewWriterLogger(&buf, log.LevelInfo))
	t.Cleanup(func() { log.SetLogger(prev) })
	return &buf
}

func runBatch(t *testing.T, cfg config.Config, runner Runner, prober fakeProber) BatchReport {
	t.Helper()
	svc := NewBatchService(cfg, NewPipeline(cfg, runner, prober))
	report, err := svc.RunBatch(context.Background())
	require.NoError(t, err)
	return report
}

func TestRunBatch_HappyPath(t *testing.T) {
	cfg := testConfig(t.TempDir(), 2)
	addVideos(t, cfg, "b.mkv", "a.mp4", "notes.txt")
	runner := &spyRunner{}

	report := runBatch(t, cfg, runner, fakeProber{})

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Items, 2)
	assert.Equal(t, "a", report.Items[0].Stem)
	assert.Equal(t, "b", report.Items[1].Stem)

	for _, item := range report.Items {
		assert.Equal(t, StageBurnedIn, item.Stage)
		assert.NoError(t, item.Err)
	}

	assert.FileExists(t, filepath.Join(cfg.Dirs.Burn, "a_hardsub.mp4"))
	assert.FileExists(t, filepath.Join(cfg.Dirs.Burn, "b_hardsub.mkv"))
	assert.FileExists(t, filepath.Join(cfg.Dirs.Input, ArchiveDirName, "a.mp4"))
	assert.FileExists(t, filepath.Join(cfg.Dirs.Audio, ArchiveDirName, "a.mp3"))
	assert.FileExists(t, filepath.Join(cfg.Dirs.SRT, ArchiveDirName, "b.srt"))
	assert.NoFileExists(t, filepath.Join(cfg.Dirs.Audio, "a.mp3"))
	assert.NoFileExists(t, filepath.Join(cfg.Dirs.SRT, "b.srt"))
	assert.FileExists(t, filepath.Join(cfg.Dirs.Input, "notes.txt"))

	assert.Equal(t, 2, runner.count("extract"))
	assert.Equal(t, 2, runner.count("transcribe"))
	assert.Equal(t, 2, runner.count("burn"))
}

func TestRunBatch_SecondRunFindsNothing(t *testing.T) {
	cfg := testConfig(t.TempDir(), 1)
	addVideos(t, cfg, "a.mp4")
	runner := &spyRunner{}

	first := runBatch(t, cfg, runner, fakeProber{})
	assert.Equal(t, 1, first.Succeeded)

	second := runBatch(t, cfg, runner, fakeProber{})
	assert.Equal(t, 0, second.Total)
	assert.Len(t, runner.tools(), 3)
}

func TestRunBatch_EmptyInput(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root, 0)
	require.NoError(t, os.MkdirAll(cfg.Dirs.Input, 0o755))
	runner := &spyRunner{}
	logs := captureLogs(t)

	report := runBatch(t, cfg, runner, fakeProber{})

	assert.Equal(t, 0, report.Total)
	assert.Empty(t, runner.tools())
	assert.Contains(t, logs.String(), "[EmptyDiscovery] no video files found")
	assert.Contains(t, logs.String(), "Put source videos into the input directory")
	assert.NotContains(t, logs.String(), "[ERROR]")
	assert.DirExists(t, cfg.Dirs.Burn)
	assert.DirExists(t, filepath.Join(cfg.Dirs.SRT, ArchiveDirName))
	assert.DirExists(t, filepath.Join(cfg.Dirs.Audio, ArchiveDirName))
	assert.NoDirExists(t, filepath.Join(cfg.Dirs.Input, ArchiveDirName))

	entries, err := os.ReadDir(cfg.Dirs.Burn)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunBatch_MissingInputDir(t *testing.T) {
	cfg := testConfig(t.TempDir(), 0)
	report := runBatch(t, cfg, &spyRunner{}, fakeProber{})
	assert.Equal(t, 0, report.Total)
}

func TestRunBatch_SetupFailure(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root, 0)
	// a regular file where the burn directory should go
	require.NoError(t, os.WriteFile(cfg.Dirs.Burn, []byte("x"), 0o644))

	svc := NewBatchService(cfg, NewPipeline(cfg, &spyRunner{}, fakeProber{}))
	_, err := svc.RunBatch(context.Background())
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrSetup))
}

func TestRunBatch_SingleExtractionFailure(t *testing.T) {
	cfg := testConfig(t.TempDir(), 0)
	addVideos(t, cfg, "broken.mp4")
	logs := captureLogs(t)

	runner := &spyRunner{
		override: func(tool string, argv []string) (CommandResult, bool, error) {
			if tool == "extract" {
				return CommandResult{ExitCode: 1, Stdout: "partial", Stderr: "  moov atom not found \n"}, true, nil
			}
			return CommandResult{}, false, nil
		},
	}

	report := runBatch(t, cfg, runner, fakeProber{})

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"extract"}, runner.tools())
	assert.Equal(t, 1, strings.Count(logs.String(), "[ERROR]"))
	assert.Contains(t, logs.String(), "moov atom not found")
	assert.NotContains(t, logs.String(), "partial")

	item := report.Items[0]
	assert.Equal(t, StageFailed, item.Stage)
	assert.True(t, IsErrorType(item.Err, ErrStageProcessFailure))
	assert.FileExists(t, filepath.Join(cfg.Dirs.Input, "broken.mp4"))
	entries, err := os.ReadDir(cfg.Dirs.Burn)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunBatch_FailureIsolation(t *testing.T) {
	cfg := testConfig(t.TempDir(), 3)
	addVideos(t, cfg, "a.mp4", "b.mp4", "c.mp4")

	runner := &spyRunner{
		override: func(tool string, argv []string) (CommandResult, bool, error) {
			if tool == "transcribe" && strings.HasSuffix(argValue(argv, "--input-file"), "b.mp3") {
				return CommandResult{ExitCode: 2, Stdout: "quota exceeded"}, true, nil
			}
			return CommandResult{}, false, nil
		},
	}

	report := runBatch(t, cfg, runner, fakeProber{})

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, StageFailed, report.Items[1].Stage)
	assert.Contains(t, report.Items[1].Err.Error(), "quota exceeded")
	assert.Equal(t, 2, runner.count("burn"))
	// the failed item keeps its intermediate audio for inspection
	assert.FileExists(t, filepath.Join(cfg.Dirs.Audio, "b.mp3"))
}

func TestPipeline_StageShortCircuit(t *testing.T) {
	tests := []struct {
		name      string
		failTool  string
		result    CommandResult
		err       error
		wantType  ErrorType
		wantTools []string
		wantStage string
	}{
		{
			name:      "extraction exits non-zero",
			failTool:  "extract",
			result:    CommandResult{ExitCode: 1},
			wantType:  ErrStageProcessFailure,
			wantTools: []string{"extract"},
			wantStage: StepExtract,
		},
		{
			name:      "extraction succeeds without audio",
			failTool:  "extract",
			result:    CommandResult{},
			wantType:  ErrMissingArtifact,
			wantTools: []string{"extract"},
			wantStage: StepExtract,
		},
		{
			name:      "transcriber missing",
			failTool:  "transcribe",
			err:       &exec.Error{Name: "transcribe", Err: exec.ErrNotFound},
			wantType:  ErrCollaboratorUnavailable,
			wantTools: []string{"extract", "transcribe"},
			wantStage: StepTranscribe,
		},
		{
			name:      "transcription succeeds without subtitle",
			failTool:  "transcribe",
			result:    CommandResult{},
			wantType:  ErrMissingArtifact,
			wantTools: []string{"extract", "transcribe"},
			wantStage: StepTranscribe,
		},
		{
			name:      "burn exits non-zero",
			failTool:  "burn",
			result:    CommandResult{ExitCode: 3, Stderr: "output exists"},
			wantType:  ErrStageProcessFailure,
			wantTools: []string{"extract", "transcribe", "burn"},
			wantStage: StepBurn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t.TempDir(), 1)
			addVideos(t, cfg, "ep.mp4")
			require.NoError(t, os.MkdirAll(cfg.Dirs.Audio, 0o755))
			require.NoError(t, os.MkdirAll(cfg.Dirs.SRT, 0o755))

			runner := &spyRunner{
				override: func(tool string, argv []string) (CommandResult, bool, error) {
					if tool == tt.failTool {
						return tt.result, true, tt.err
					}
					return CommandResult{}, false, nil
				},
			}
			pipeline := NewPipeline(cfg, runner, fakeProber{})
			item := NewWorkItem(filepath.Join(cfg.Dirs.Input, "ep.mp4"), cfg.Dirs, 1, 1)

			err := pipeline.Run(context.Background(), item)
			require.Error(t, err)
			assert.True(t, IsErrorType(err, tt.wantType), "got %v", err)
			assert.Equal(t, tt.wantTools, runner.tools())
			assert.Equal(t, StageFailed, item.Stage)
			assert.Equal(t, err, item.Err)

			var pErr *PipelineError
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, tt.wantStage, pErr.Stage)
			assert.Equal(t, "ep", pErr.Stem)

			assert.NoDirExists(t, filepath.Join(cfg.Dirs.Audio, ArchiveDirName))
		})
	}
}

func TestPipeline_MissingProcessedVideo(t *testing.T) {
	cfg := testConfig(t.TempDir(), 1)
	addVideos(t, cfg, "ep.mp4")
	require.NoError(t, os.MkdirAll(cfg.Dirs.Audio, 0o755))
	require.NoError(t, os.MkdirAll(cfg.Dirs.SRT, 0o755))

	// an extractor that writes audio but leaves the source where it was
	runner := &spyRunner{
		override: func(tool string, argv []string) (CommandResult, bool, error) {
			if tool != "extract" {
				return CommandResult{}, false, nil
			}
			out := filepath.Join(argValue(argv, "--output-dir"), "ep.mp3")
			require.NoError(t, os.WriteFile(out, []byte("mp3"), 0o644))
			return CommandResult{}, true, nil
		},
	}

	item := NewWorkItem(filepath.Join(cfg.Dirs.Input, "ep.mp4"), cfg.Dirs, 1, 1)
	err := NewPipeline(cfg, runner, fakeProber{}).Run(context.Background(), item)

	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrMissingArtifact))
	assert.Equal(t, 0, runner.count("burn"))
}

func TestPipeline_StopAfterSRT(t *testing.T) {
	cfg := testConfig(t.TempDir(), 1)
	cfg.Pipeline.StopAfterSRT = true
	addVideos(t, cfg, "ep.mp4")
	runner := &spyRunner{}

	report := runBatch(t, cfg, runner, fakeProber{})

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, StageTranscribed, report.Items[0].Stage)
	assert.Equal(t, []string{"extract", "transcribe"}, runner.tools())
	assert.FileExists(t, filepath.Join(cfg.Dirs.SRT, "ep.srt"))
	assert.FileExists(t, filepath.Join(cfg.Dirs.Audio, "ep.mp3"))
	assert.NoFileExists(t, filepath.Join(cfg.Dirs.SRT, ArchiveDirName, "ep.srt"))
}

func TestPipeline_RepairsSubtitle(t *testing.T) {
	cfg := testConfig(t.TempDir(), 1)
	cfg.Pipeline.StopAfterSRT = true
	addVideos(t, cfg, "ep.mp4")

	gbk, err := simplifiedchinese.GBK.NewEncoder().String("```srt\n1\n01:00:01,000 --> 01:00:02,000\n你好\n```")
	require.NoError(t, err)
	runner := &spyRunner{srtBody: []byte(gbk)}
	logs := captureLogs(t)

	runBatch(t, cfg, runner, fakeProber{d: 10 * time.Minute, ok: true})

	data, err := os.ReadFile(filepath.Join(cfg.Dirs.SRT, "ep.srt"))
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\n你好\n", string(data))
	assert.Contains(t, logs.String(), "[1/1] Subtitle has 1 cues")
}

func TestPipeline_CollaboratorArguments(t *testing.T) {
	cfg := testConfig(t.TempDir(), 1)
	cfg.Pipeline.Force = true
	cfg.Transcribe.Insecure = true
	cfg.Transcribe.APIKey = "secret"
	addVideos(t, cfg, "ep.mp4")

	var env []string
	runner := &envRunner{spyRunner: &spyRunner{}, env: &env}
	runBatch(t, cfg, runner, fakeProber{})

	calls := runner.calls
	require.Len(t, calls, 3)

	processed := filepath.Join(cfg.Dirs.Input, ArchiveDirName)
	assert.Equal(t, []string{
		"extract",
		"--input-file", filepath.Join(cfg.Dirs.Input, "ep.mp4"),
		"--output-dir", cfg.Dirs.Audio,
		"--processed-dir", processed,
		"--force",
	}, calls[0].argv)
	assert.Equal(t, []string{
		"transcribe",
		"--input-file", filepath.Join(cfg.Dirs.Audio, "ep.mp3"),
		"--output-dir", cfg.Dirs.SRT,
		"--model", "test-model",
		"--prompt", "prompt",
		"--insecure",
		"--force",
	}, calls[1].argv)
	assert.Equal(t, []string{
		"burn",
		"--video", filepath.Join(processed, "ep.mp4"),
		"--srt", filepath.Join(cfg.Dirs.SRT, "ep.srt"),
		"--out", filepath.Join(cfg.Dirs.Burn, "ep_hardsub.mp4"),
		"--crf", "18",
		"--preset", "medium",
		"--force",
	}, calls[2].argv)
	assert.Contains(t, env, config.APIKeyEnv+"=secret")
}

// envRunner captures the environment handed to the transcriber
type envRunner struct {
	*spyRunner
	env *[]string
}

func (r *envRunner) Run(ctx context.Context, argv []string, env []string) (CommandResult, error) {
	if argv[0] == "transcribe" {
		*r.env = env
	}
	return r.spyRunner.Run(ctx, argv, env)
}

func TestRunBatch_ConcurrencyBound(t *testing.T) {
	for _, workers := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			cfg := testConfig(t.TempDir(), workers)
			names := make([]string, 8)
			for i := range names {
				names[i] = fmt.Sprintf("v%02d.mp4", i)
			}
			addVideos(t, cfg, names...)

			runner := &spyRunner{delay: 5 * time.Millisecond}
			report := runBatch(t, cfg, runner, fakeProber{})

			assert.Equal(t, 8, report.Succeeded)
			assert.LessOrEqual(t, int(runner.peak.Load()), workers)
			assert.Equal(t, 8, runner.count("extract"))
			assert.Equal(t, 8, runner.count("burn"))
		})
	}
}

func TestSchedule(t *testing.T) {
	cfg := testConfig(t.TempDir(), 1)
	cfg.Pipeline.WatchCron = "*/5 * * * *"
	svc := NewBatchService(cfg, NewPipeline(cfg, &spyRunner{}, fakeProber{}))

	c := cron.New()
	require.NoError(t, svc.Schedule(context.Background(), c))
	assert.Len(t, c.Entries(), 1)

	cfg.Pipeline.WatchCron = "not a cron"
	bad := NewBatchService(cfg, NewPipeline(cfg, &spyRunner{}, fakeProber{}))
	err := bad.Schedule(context.Background(), cron.New())
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrConfig))
}
