package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/hardsub-pipeline/internal/library"
	"github.com/MimeLyc/hardsub-pipeline/internal/subtitle"
	"github.com/MimeLyc/hardsub-pipeline/pkg/file"
	"github.com/MimeLyc/hardsub-pipeline/pkg/log"
)

func newSRTToTextCommand() *cobra.Command {
	var inDir, outDir, archiveDir string
	var keep bool

	cmd := &cobra.Command{
		Use:   "srt2txt [file.srt ...]",
		Short: "Convert SRT subtitles to plain text",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := collectInputs(args, inDir, library.SubtitleExts)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = filepath.Join(inDir, "converted_txt")
			}
			if archiveDir == "" {
				archiveDir = filepath.Join(inDir, "converted_srt")
			}

			for _, input := range inputs {
				output := file.ReplaceExt(filepath.Join(outDir, filepath.Base(input)), ".txt")
				if err := subtitle.ConvertSRTToText(input, output); err != nil {
					return fmt.Errorf("convert %s: %w", input, err)
				}
				if !keep {
					if _, err := file.MoveInto(input, archiveDir); err != nil {
						return fmt.Errorf("archive %s: %w", input, err)
					}
				}
				log.Info("Wrote %s", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inDir, "in-dir", "download_srt", "Directory containing input .srt files")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory for .txt files (default: <in-dir>/converted_txt)")
	cmd.Flags().StringVar(&archiveDir, "archive-dir", "", "Where converted .srt files are moved (default: <in-dir>/converted_srt)")
	cmd.Flags().BoolVar(&keep, "keep", false, "Leave converted .srt files in place")

	return cmd
}

func newJSONToTextCommand() *cobra.Command {
	var inDir, outDir, out string

	cmd := &cobra.Command{
		Use:   "json2txt [file.json ...]",
		Short: "Extract Bilibili AI subtitle JSON body[].content into .txt files",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := collectInputs(args, inDir, library.SubtitleJSONExts)
			if err != nil {
				return err
			}
			if out != "" && len(inputs) != 1 {
				return fmt.Errorf("--out can only be used with exactly 1 input file")
			}

			for _, input := range inputs {
				output := out
				if output == "" {
					output = file.ReplaceExt(filepath.Join(outDir, filepath.Base(input)), ".txt")
				}
				count, err := subtitle.ConvertBilibiliJSONToText(input, output)
				if err != nil {
					return err
				}
				log.Info("Wrote %s (%d lines)", output, count)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inDir, "in-dir", "bilibili_subtitle_json_downloaded", "Directory containing input .json files")
	cmd.Flags().StringVar(&outDir, "out-dir", "bilibili_json_subtitle_to_txt", "Directory to write output .txt files to")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output .txt path override (only valid with exactly 1 input)")

	return cmd
}

// collectInputs resolves explicit arguments (as given, else relative to
// inDir) or lists every matching file in inDir.
func collectInputs(args []string, inDir string, exts library.Extensions) ([]string, error) {
	if len(args) == 0 {
		if !file.Exists(inDir) {
			return nil, fmt.Errorf("input directory not found: %s", inDir)
		}
		inputs, err := library.Scan(inDir, exts)
		if err != nil {
			return nil, err
		}
		if len(inputs) == 0 {
			return nil, fmt.Errorf("no matching files found under: %s", inDir)
		}
		return inputs, nil
	}

	inputs := make([]string, 0, len(args))
	for _, raw := range args {
		path := raw
		if !file.Exists(path) && file.Exists(filepath.Join(inDir, raw)) {
			path = filepath.Join(inDir, raw)
		}
		if !file.Exists(path) {
			return nil, fmt.Errorf("input file not found: %s", path)
		}
		if !library.IsMatch(path, exts) {
			return nil, fmt.Errorf("unsupported input file: %s", path)
		}
		inputs = append(inputs, path)
	}
	return inputs, nil
}
