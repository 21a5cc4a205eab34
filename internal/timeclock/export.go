package timeclock

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// ===== タイムシート出力 =====
//
// getTimeSheet の読み取り専用プロジェクション。
// xlsx は月次レポート用、CSV(cp932) は給与システム取り込み用。

const exportSheetName = "Timesheet"

// ExportTimesheetXLSX: 日別サマリを1行ずつシートに書き出す。
func (s *Service) ExportTimesheetXLSX(ctx context.Context, userID, from, to string) ([]byte, error) {
	ts, err := s.GetTimeSheet(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	name, err := s.dir.DisplayNameOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", exportSheetName)

	header := []any{"Date", "Work (min)", "Break (min)", "Overtime (min)", "Compliant", "Notes"}
	if err := f.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		return nil, err
	}
	_ = f.SetCellValue(exportSheetName, "H1", fmt.Sprintf("%s (%s)", name, userID))

	for i, day := range ts.Days {
		cell := fmt.Sprintf("A%d", i+2)
		row := []any{day.Date, 0, 0, 0, "", ""}
		if sum := day.Summary; sum != nil {
			row[1] = sum.TotalWorkMinutes
			row[2] = sum.TotalBreakMinutes
			row[3] = sum.OvertimeMinutes
			row[4] = strconv.FormatBool(sum.IsCompliant)
			row[5] = strings.Join(sum.ComplianceNotes, "; ")
		}
		if err := f.SetSheetRow(exportSheetName, cell, &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportTimesheetCSV: cp932 (Shift-JIS) のCSV。給与ソフトがANSI前提のため。
func (s *Service) ExportTimesheetCSV(ctx context.Context, userID, from, to string) ([]byte, error) {
	ts, err := s.GetTimeSheet(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	enc := japanese.ShiftJIS.NewEncoder()
	w := csv.NewWriter(transform.NewWriter(&b, enc))

	if err := w.Write([]string{"日付", "労働時間(分)", "休憩時間(分)", "残業時間(分)", "適合", "備考"}); err != nil {
		return nil, err
	}
	for _, day := range ts.Days {
		record := []string{day.Date, "0", "0", "0", "", ""}
		if sum := day.Summary; sum != nil {
			record[1] = strconv.Itoa(sum.TotalWorkMinutes)
			record[2] = strconv.Itoa(sum.TotalBreakMinutes)
			record[3] = strconv.Itoa(sum.OvertimeMinutes)
			record[4] = strconv.FormatBool(sum.IsCompliant)
			record[5] = strings.Join(sum.ComplianceNotes, " / ")
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
