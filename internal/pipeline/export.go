package pipeline

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"

	"abundance/internal"
)

// ExportProjectsToXLSX writes the project collection as a workbook with
// the same columns as the CSV artifact.
func ExportProjectsToXLSX(records []internal.ProjectRecord, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, h := range csvColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, rec := range records {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, rec.ProjectID)
		set(2, rec.ProjectName)
		set(3, rec.Address)
		set(4, rec.Neighborhood)
		set(5, string(rec.Status))
		set(6, rec.UnitsTotal)
		set(7, rec.PermitCount)
		set(8, rec.ValuationTotal)
		set(9, rec.FirstDateReceived)
		set(10, rec.FirstDateIssued)
		set(11, rec.LastDateIssued)
		set(12, rec.LastFinalDate)
		set(13, derefFloat(rec.Longitude))
		set(14, derefFloat(rec.Latitude))
		set(15, derefString(rec.Developer))
		set(16, derefString(rec.PermitCaseID))
		set(17, strings.Join(rec.SourceURLs, ";"))
		set(18, string(rec.Origin))
		set(19, rec.Notes)
		set(20, rec.LastUpdated)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return err
	}
	return writeFileAtomic(outputPath, buf.Bytes())
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
