package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultSettingsFile = ".env"
	APIKeyEnv           = "OPENROUTER_API_KEY"

	DefaultModel  = "google/gemini-3-pro-preview"
	DefaultPrompt = "根据音频文件，生成转写的中文（要翻译源语言）字幕文件，用 SRT 文件格式。" +
		"所有情绪词、语气词、填充词、停顿表达都必须保留，包括但不限于：“嗯”“啊”“哦”“呃”“呵”“哈”。" +
		"仅输出 SRT 内容，不要额外说明。" +
		"时间戳必须严格为 HH:MM:SS,mmm（小时/分钟/秒/毫秒），" +
		"例如：00:00:12,345 --> 00:00:15,678。"
)

// LoadSettingsFile reads KEY=value pairs from path. Blank lines and lines
// starting with # are skipped, quotes are removed, and the first occurrence
// of a key wins. A missing file yields an empty map.
func LoadSettingsFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("open settings file: %w", err)
	}
	defer f.Close()

	settings := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || !strings.Contains(line, "=") {
			continue
		}
		// parse line by line so a later duplicate never overrides the first value
		pair, err := godotenv.Unmarshal(line)
		if err != nil {
			continue
		}
		for k, v := range pair {
			if _, seen := settings[k]; !seen {
				settings[k] = v
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	return settings, nil
}

// WithDirs overrides stage directories; empty values keep the current one.
func WithDirs(input, audio, srt, burn string) Option {
	return func(c *Config) {
		if input != "" {
			c.Dirs.Input = input
		}
		if audio != "" {
			c.Dirs.Audio = audio
		}
		if srt != "" {
			c.Dirs.SRT = srt
		}
		if burn != "" {
			c.Dirs.Burn = burn
		}
	}
}

// WithWorkers overrides the worker count when n is positive.
func WithWorkers(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Pipeline.Workers = n
		}
	}
}

// WithForce turns on overwriting when set.
func WithForce(force bool) Option {
	return func(c *Config) {
		if force {
			c.Pipeline.Force = true
		}
	}
}

// WithStopAfterSRT turns on stopping after transcription when set.
func WithStopAfterSRT(stop bool) Option {
	return func(c *Config) {
		if stop {
			c.Pipeline.StopAfterSRT = true
		}
	}
}

// WithWatchCron overrides the watch schedule.
func WithWatchCron(expr string) Option {
	return func(c *Config) {
		if strings.TrimSpace(expr) != "" {
			c.Pipeline.WatchCron = expr
		}
	}
}

// WithTranscription overrides model, prompt and TLS verification.
func WithTranscription(model, prompt string, insecure bool) Option {
	return func(c *Config) {
		if model != "" {
			c.Transcribe.Model = model
		}
		if prompt != "" {
			c.Transcribe.Prompt = prompt
		}
		if insecure {
			c.Transcribe.Insecure = true
		}
	}
}
