package pipeline

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"abundance/internal"
	"abundance/internal/util"
)

// LoadSupplemental reads the curated CSV of large proposed/approved
// projects. A missing file is not an error: v2 simply degrades to v1
// content. Rows under largeUnitsThreshold are outside the curation scope
// and skipped.
func LoadSupplemental(path string, largeUnitsThreshold int) ([]internal.SupplementalRow, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []internal.SupplementalRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		units := util.ParseIntLoose(field(record, "units_total"), 0)
		if units < largeUnitsThreshold {
			continue
		}

		status := internal.ProjectStatus(field(record, "status"))
		if status == "" {
			status = internal.StatusProposed
		}

		row := internal.SupplementalRow{
			ProjectID:    util.FirstNonEmpty(field(record, "project_id"), field(record, "address"), field(record, "project_name")),
			Name:         util.FirstNonEmpty(field(record, "project_name"), "Unnamed proposed project"),
			Address:      field(record, "address"),
			Neighborhood: field(record, "neighborhood"),
			Status:       status,
			Units:        units,
			SourceURL:    field(record, "source_url"),
			Longitude:    util.FloatPtrLoose(field(record, "longitude")),
			Latitude:     util.FloatPtrLoose(field(record, "latitude")),
			Notes:        field(record, "notes"),
			LastUpdated:  field(record, "last_updated"),
		}
		if row.ProjectID == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
