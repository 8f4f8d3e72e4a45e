package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"abundance/internal"
)

// Payload is the emitted document shape shared by all artifact formats.
type Payload struct {
	KPIs         internal.KPISet          `json:"kpis"`
	Developments []internal.ProjectRecord `json:"developments"`
}

var csvColumns = []string{
	"project_id", "project_name", "address", "neighborhood", "status",
	"units_total", "permit_count", "valuation_total",
	"first_date_received", "first_date_issued", "last_date_issued", "last_final_date",
	"longitude", "latitude", "developer", "permit_case_id",
	"source_urls", "source_type", "notes", "last_updated",
}

// Emit writes all artifact forms for one version: JSON and CSV under
// outputDir, the JS data module under siteDir, and an XLSX workbook for
// spreadsheet use. Every file is written atomically and the set shares
// one payload, so a rerun on identical input is byte-identical.
func Emit(payload Payload, version, outputDir, siteDir string) ([]string, error) {
	jsonPath := filepath.Join(outputDir, fmt.Sprintf("developments.%s.json", version))
	csvPath := filepath.Join(outputDir, fmt.Sprintf("developments.%s.csv", version))
	xlsxPath := filepath.Join(outputDir, fmt.Sprintf("developments.%s.xlsx", version))
	jsPath := filepath.Join(siteDir, fmt.Sprintf("data.%s.js", version))

	jsonBlob, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(jsonPath, append(jsonBlob, '\n')); err != nil {
		return nil, err
	}

	csvBlob, err := renderCSV(payload.Developments)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(csvPath, csvBlob); err != nil {
		return nil, err
	}

	jsBlob, err := renderJS(payload, version)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(jsPath, jsBlob); err != nil {
		return nil, err
	}

	if err := ExportProjectsToXLSX(payload.Developments, xlsxPath); err != nil {
		return nil, err
	}

	return []string{jsonPath, csvPath, jsPath, xlsxPath}, nil
}

func renderCSV(records []internal.ProjectRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvColumns); err != nil {
		return nil, err
	}
	for _, rec := range records {
		if err := w.Write(csvRow(rec)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func csvRow(rec internal.ProjectRecord) []string {
	return []string{
		rec.ProjectID,
		rec.ProjectName,
		rec.Address,
		rec.Neighborhood,
		string(rec.Status),
		strconv.Itoa(rec.UnitsTotal),
		strconv.Itoa(rec.PermitCount),
		formatFloat(rec.ValuationTotal),
		rec.FirstDateReceived,
		rec.FirstDateIssued,
		rec.LastDateIssued,
		rec.LastFinalDate,
		formatFloatPtr(rec.Longitude),
		formatFloatPtr(rec.Latitude),
		derefString(rec.Developer),
		derefString(rec.PermitCaseID),
		strings.Join(rec.SourceURLs, ";"),
		string(rec.Origin),
		rec.Notes,
		rec.LastUpdated,
	}
}

func renderJS(payload Payload, version string) ([]byte, error) {
	blob, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	global := fmt.Sprintf("window.DENVER_HOUSING_%s", strings.ToUpper(version))
	return []byte(global + " = " + string(blob) + ";\n"), nil
}

// writeFileAtomic renames a same-directory temp file into place so a
// failed run never leaves a partial artifact.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
