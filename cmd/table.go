package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/MimeLyc/hardsub-pipeline/internal/service"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderBatchReport lists every item of a batch with its outcome.
func renderBatchReport(report service.BatchReport, colorize bool) string {
	if len(report.Items) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		result, detail := itemOutcome(item)
		if colorize {
			result = resultColors(item).Sprint(result)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.Index),
			item.ID(),
			result,
			detail,
		})
	}
	out := renderTable(
		[]string{"#", "Video", "Result", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	)
	return fmt.Sprintf("%s\nRun %s: %d succeeded, %d failed\n", out, report.RunID, report.Succeeded, report.Failed)
}

func itemOutcome(item *service.WorkItem) (string, string) {
	switch item.Stage {
	case service.StageBurnedIn:
		return "ok", filepath.Base(item.BurnPath)
	case service.StageTranscribed:
		return "ok", "stopped after " + filepath.Base(item.SubtitlePath)
	case service.StageFailed:
		var pe *service.PipelineError
		if errors.As(item.Err, &pe) {
			return "failed", pe.Stage + ": " + pe.Message
		}
		if item.Err != nil {
			return "failed", item.Err.Error()
		}
		return "failed", ""
	default:
		return item.Stage.String(), ""
	}
}

func resultColors(item *service.WorkItem) text.Colors {
	switch item.Stage {
	case service.StageBurnedIn, service.StageTranscribed:
		return text.Colors{text.FgGreen}
	case service.StageFailed:
		return text.Colors{text.FgRed, text.Bold}
	default:
		return text.Colors{text.FgYellow}
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
