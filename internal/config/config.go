package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/MimeLyc/hardsub-pipeline/pkg/icron"
)

// Config holds all application configuration. It is built once by Load and
// then passed by value; nothing below cmd reads the environment.
//
// Environment Variables (a .env settings file supplies missing ones):
// Pipeline:
// - INPUT_DIR: source video directory (default: input_video)
// - AUDIO_DIR: extracted audio directory (default: output_audio)
// - SRT_DIR: transcribed subtitle directory (default: ai_srt)
// - BURN_DIR: hardsub output directory (default: burn_video)
// - JOBS: worker count, 0 means auto (default: 0)
// - FORCE: overwrite existing outputs (default: false)
// - STOP_AFTER_SRT: stop items after transcription (default: false)
// - WATCH_CRON: cron expression for watch mode (default: */10 * * * *)
// - WATCH_SETTLE_SECONDS: quiet period after a new input file before a
//   watch mode batch starts (default: 30)
//
// Collaborators:
// - EXTRACT_CMD / TRANSCRIBE_CMD / BURN_CMD: command line of each stage,
//   split with shell quoting rules (default: this binary's extract-audio /
//   transcribe / burn subcommands)
// - FFMPEG_BIN / FFPROBE_BIN: binaries (default: ffmpeg / ffprobe)
// - BURN_CRF / BURN_PRESET: x264 quality settings (default: 18 / medium)
//
// Transcription:
// - OPENROUTER_API_KEY: API key (required by the transcribe command)
// - OPENROUTER_API_URL: API endpoint (default: https://openrouter.ai/api/v1)
// - TRANSCRIBE_MODEL: model name (default: google/gemini-3-pro-preview)
// - TRANSCRIBE_PROMPT: prompt text (default: Chinese SRT transcription prompt)
// - TRANSCRIBE_TIMEOUT: request timeout in seconds (default: 600)
// - TRANSCRIBE_INSECURE: skip TLS verification (default: false)
//
// System:
// - LOG_LEVEL: debug/info/warn/error (default: info)
// - LOG_FILE: also append log lines to this file (default: none)
// - SETTINGS_FILE: settings file path (default: .env)
type Config struct {
	Dirs       DirsConfig       `json:"dirs"`
	Pipeline   PipelineConfig   `json:"pipeline"`
	Tools      ToolsConfig      `json:"tools"`
	Transcribe TranscribeConfig `json:"transcribe"`
	System     SystemConfig     `json:"system"`
}

// DirsConfig holds the stage directories
type DirsConfig struct {
	Input string `json:"input"`
	Audio string `json:"audio"`
	SRT   string `json:"srt"`
	Burn  string `json:"burn"`
}

type PipelineConfig struct {
	Workers      int           `json:"workers"`
	Force        bool          `json:"force"`
	StopAfterSRT bool          `json:"stop_after_srt"`
	WatchCron    string        `json:"watch_cron"`
	WatchSettle  time.Duration `json:"watch_settle"`
}

// ToolsConfig describes how collaborators are invoked. Each *Cmd is an argv
// prefix; stage arguments are appended by the pipeline.
type ToolsConfig struct {
	ExtractCmd    []string `json:"extract_cmd"`
	TranscribeCmd []string `json:"transcribe_cmd"`
	BurnCmd       []string `json:"burn_cmd"`
	FFmpeg        string   `json:"ffmpeg"`
	FFprobe       string   `json:"ffprobe"`
	BurnCRF       int      `json:"burn_crf"`
	BurnPreset    string   `json:"burn_preset"`
}

type TranscribeConfig struct {
	APIKey   string `json:"-"`
	APIURL   string `json:"api_url"`
	Model    string `json:"model"`
	Prompt   string `json:"prompt"`
	Timeout  int    `json:"timeout"`
	Insecure bool   `json:"insecure"`
}

type SystemConfig struct {
	LogLevel     string `json:"log_level"`
	LogFile      string `json:"log_file"`
	SettingsFile string `json:"settings_file"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// Load builds the configuration from the process environment, falling back
// to the settings file for keys the environment does not set, then applies
// opts (typically command line overrides) and validates the result.
func Load(opts ...Option) (*Config, error) {
	settingsFile := os.Getenv("SETTINGS_FILE")
	if settingsFile == "" {
		settingsFile = DefaultSettingsFile
	}
	settings, err := LoadSettingsFile(settingsFile)
	if err != nil {
		return nil, err
	}
	return newConfig(envLookup(settings), settingsFile, opts...)
}

func newConfig(lookup lookupFunc, settingsFile string, opts ...Option) (*Config, error) {
	self := selfCommand()
	extractCmd, err := lookup.Command("EXTRACT_CMD", append(self, "extract-audio"))
	if err != nil {
		return nil, err
	}
	transcribeCmd, err := lookup.Command("TRANSCRIBE_CMD", append(self, "transcribe"))
	if err != nil {
		return nil, err
	}
	burnCmd, err := lookup.Command("BURN_CMD", append(self, "burn"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Dirs: DirsConfig{
			Input: lookup.String("INPUT_DIR", "input_video"),
			Audio: lookup.String("AUDIO_DIR", "output_audio"),
			SRT:   lookup.String("SRT_DIR", "ai_srt"),
			Burn:  lookup.String("BURN_DIR", "burn_video"),
		},
		Pipeline: PipelineConfig{
			Workers:      lookup.Int("JOBS", 0),
			Force:        lookup.Bool("FORCE", false),
			StopAfterSRT: lookup.Bool("STOP_AFTER_SRT", false),
			WatchCron:    lookup.String("WATCH_CRON", "*/10 * * * *"),
			WatchSettle:  time.Duration(lookup.Int("WATCH_SETTLE_SECONDS", 30)) * time.Second,
		},
		Tools: ToolsConfig{
			ExtractCmd:    extractCmd,
			TranscribeCmd: transcribeCmd,
			BurnCmd:       burnCmd,
			FFmpeg:        lookup.String("FFMPEG_BIN", "ffmpeg"),
			FFprobe:       lookup.String("FFPROBE_BIN", "ffprobe"),
			BurnCRF:       lookup.Int("BURN_CRF", 18),
			BurnPreset:    lookup.String("BURN_PRESET", "medium"),
		},
		Transcribe: TranscribeConfig{
			APIKey:   lookup.String(APIKeyEnv, ""),
			APIURL:   lookup.String("OPENROUTER_API_URL", "https://openrouter.ai/api/v1"),
			Model:    lookup.String("TRANSCRIBE_MODEL", DefaultModel),
			Prompt:   lookup.String("TRANSCRIBE_PROMPT", DefaultPrompt),
			Timeout:  lookup.Int("TRANSCRIBE_TIMEOUT", 600),
			Insecure: lookup.Bool("TRANSCRIBE_INSECURE", false),
		},
		System: SystemConfig{
			LogLevel:     lookup.String("LOG_LEVEL", "info"),
			LogFile:      lookup.String("LOG_FILE", ""),
			SettingsFile: settingsFile,
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// With returns a copy of c with opts applied, validated again.
func (c Config) With(opts ...Option) (*Config, error) {
	next := c
	next.Tools.ExtractCmd = append([]string(nil), c.Tools.ExtractCmd...)
	next.Tools.TranscribeCmd = append([]string(nil), c.Tools.TranscribeCmd...)
	next.Tools.BurnCmd = append([]string(nil), c.Tools.BurnCmd...)
	for _, opt := range opts {
		opt(&next)
	}
	if err := next.validate(); err != nil {
		return nil, err
	}
	return &next, nil
}

// validate checks the values every command relies on
func (c *Config) validate() error {
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("JOBS must not be negative")
	}
	if len(c.Tools.ExtractCmd) == 0 || len(c.Tools.TranscribeCmd) == 0 || len(c.Tools.BurnCmd) == 0 {
		return fmt.Errorf("collaborator commands must not be empty")
	}
	if c.Pipeline.WatchSettle < 0 {
		return fmt.Errorf("WATCH_SETTLE_SECONDS must not be negative")
	}
	if c.Tools.BurnCRF < 0 || c.Tools.BurnCRF > 51 {
		return fmt.Errorf("BURN_CRF must be between 0 and 51")
	}
	if c.Transcribe.Timeout < 1 {
		return fmt.Errorf("TRANSCRIBE_TIMEOUT must be greater than 0")
	}
	if strings.TrimSpace(c.Pipeline.WatchCron) != "" {
		if _, err := icron.Parse(c.Pipeline.WatchCron); err != nil {
			return fmt.Errorf("WATCH_CRON: %w", err)
		}
	}
	return nil
}

// ValidateTranscription checks the settings only the transcribe command needs.
func (c *Config) ValidateTranscription() error {
	if c.Transcribe.APIKey == "" {
		return fmt.Errorf("%s not found in environment or %s", APIKeyEnv, c.System.SettingsFile)
	}
	if c.Transcribe.Model == "" {
		return fmt.Errorf("TRANSCRIBE_MODEL is required")
	}
	return nil
}

// ResolveDirs makes every stage directory absolute against base.
func (c *Config) ResolveDirs(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Dirs.Input = resolve(c.Dirs.Input)
	c.Dirs.Audio = resolve(c.Dirs.Audio)
	c.Dirs.SRT = resolve(c.Dirs.SRT)
	c.Dirs.Burn = resolve(c.Dirs.Burn)
}

// ChildEnv returns the extra environment a collaborator child process needs.
func (c Config) ChildEnv() []string {
	if c.Transcribe.APIKey == "" {
		return nil
	}
	return []string{APIKeyEnv + "=" + c.Transcribe.APIKey}
}

type lookupFunc func(key string) (string, bool)

func envLookup(settings map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := settings[key]
		return v, ok && v != ""
	}
}

func (l lookupFunc) String(key, defaultValue string) string {
	if v, ok := l(key); ok {
		return v
	}
	return defaultValue
}

func (l lookupFunc) Int(key string, defaultValue int) int {
	if v, ok := l(key); ok {
		if intValue, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (l lookupFunc) Bool(key string, defaultValue bool) bool {
	if v, ok := l(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return defaultValue
}

// Command splits a command line the way a POSIX shell would, so a path with
// spaces can be quoted: EXTRACT_CMD='"/opt/My Tools/extract.sh" --fast'.
func (l lookupFunc) Command(key string, defaultValue []string) ([]string, error) {
	v, ok := l(key)
	if !ok {
		return defaultValue, nil
	}
	fields, err := shlex.Split(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if len(fields) == 0 {
		return defaultValue, nil
	}
	return fields, nil
}

// selfCommand is the argv prefix that re-invokes the running binary.
func selfCommand() []string {
	exe, err := os.Executable()
	if err != nil {
		return []string{os.Args[0]}
	}
	return []string{exe}
}
