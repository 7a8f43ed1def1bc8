package sheet

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/visit-planner/internal/model"
)

var scheduleHeader = []string{
	"date", "weekday", "slot", "reason", "anchor_id", "candidate_id", "name", "score", "distance_to_centroid_km",
}

// scheduleRows flattens a week into one row per occupied slot.
func scheduleRows(s model.WeekSchedule) [][]string {
	var rows [][]string
	for _, d := range s.Days {
		for _, slot := range d.Slots {
			if slot.Empty() {
				continue
			}
			score, dist := "", ""
			if slot.Score != 0 {
				score = strconv.FormatFloat(slot.Score, 'f', 2, 64)
			}
			if slot.DistanceToCentroidKM != nil {
				dist = strconv.FormatFloat(*slot.DistanceToCentroidKM, 'f', 2, 64)
			}
			rows = append(rows, []string{
				d.Key(),
				d.Date.Weekday().String(),
				strconv.Itoa(slot.Index + 1),
				string(slot.Reason),
				slot.AnchorID,
				slot.CandidateID,
				slot.Name,
				score,
				dist,
			})
		}
	}
	return rows
}

// WriteScheduleCSV writes the occupied slots of s as CSV with a header row.
func WriteScheduleCSV(w io.Writer, s model.WeekSchedule) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(scheduleHeader); err != nil {
		return eris.Wrap(err, "sheet: write csv header")
	}
	if err := cw.WriteAll(scheduleRows(s)); err != nil {
		return eris.Wrap(err, "sheet: write csv rows")
	}
	return nil
}

// WriteScheduleXLSX writes s to an .xlsx workbook at path with one sheet per
// week. Numeric columns are stored as numbers.
func WriteScheduleXLSX(path string, s model.WeekSchedule) error {
	f := xlsx.NewFile()
	name := "Week " + s.WeekStart.Format(model.DateLayout)
	sh, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrap(err, "sheet: add sheet")
	}

	header := sh.AddRow()
	for _, h := range scheduleHeader {
		header.AddCell().SetString(h)
	}

	for _, r := range scheduleRows(s) {
		row := sh.AddRow()
		for i, v := range r {
			cell := row.AddCell()
			switch {
			case v == "":
			case i == 2:
				n, _ := strconv.Atoi(v)
				cell.SetInt(n)
			case i >= 7:
				fv, _ := strconv.ParseFloat(v, 64)
				cell.SetFloat(fv)
			default:
				cell.SetString(v)
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "sheet: save xlsx")
	}
	return nil
}

// ExportFormat picks the writer from a file extension.
func ExportFormat(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		return "xlsx", nil
	case ".csv":
		return "csv", nil
	default:
		return "", eris.Errorf("sheet: unsupported export type %q", ext)
	}
}
