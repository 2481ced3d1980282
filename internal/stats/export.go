package stats

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	sheetPerformance = "Performance"
	sheetTrend       = "Trend"
	sheetWeekly      = "Weekly"
)

// WriteWorkbook renders reports as an XLSX workbook with one sheet each
// for performance, cumulative trend and weekly completions.
func WriteWorkbook(w io.Writer, reports []Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetPerformance); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetTrend, sheetWeekly} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	perf := [][]any{{"User", "Total", "Done", "Pending", "High", "Mid", "Low", "Completion %"}}
	trend := [][]any{{"User", "Date", "Created (cumulative)", "Done (cumulative)"}}
	weekly := [][]any{{"User", "Date", "Completed"}}
	for _, r := range reports {
		p := r.Performance
		perf = append(perf, []any{
			r.User, p.Total, p.Done, p.Pending,
			p.Priority["High"], p.Priority["Mid"], p.Priority["Low"],
			p.CompletionRate,
		})
		for _, pt := range r.Trend {
			trend = append(trend, []any{r.User, pt.Date, pt.Created, pt.Done})
		}
		for i, label := range r.Weekly.Labels {
			weekly = append(weekly, []any{r.User, label, r.Weekly.Counts[i]})
		}
	}

	for sheet, rows := range map[string][][]any{
		sheetPerformance: perf,
		sheetTrend:       trend,
		sheetWeekly:      weekly,
	} {
		if err := writeRows(f, sheet, rows); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
