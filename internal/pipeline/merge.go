package pipeline

import (
	"abundance/internal"
	"abundance/internal/util"
)

// MergeResult carries the merged collection plus the count of
// supplemental rows that became standalone records.
type MergeResult struct {
	Records []internal.ProjectRecord
	Added   int
}

// sameProject is the identity-match heuristic between a supplemental row
// and a permit-derived record: normalized-address equality. Known
// imperfect; kept in one place so an authoritative cross-reference can
// replace it later without touching aggregation or emission.
func sameProject(supp internal.SupplementalRow, rec internal.ProjectRecord) bool {
	return util.SameAddress(supp.Address, rec.Address)
}

// Merge folds supplemental rows into the permit-derived collection in
// file order, first match wins. On a match the permit-derived aggregate
// wins: issued permits are ground truth, while the supplemental status
// reflects an earlier stage. The one exception is a permit-derived record
// whose permits captured no stage at all (status Other); there the
// supplemental status and unit estimate supersede. Later supplemental
// rows matching an already-claimed record are kept as separate records
// rather than dropped.
func Merge(permitDerived []internal.ProjectRecord, supplemental []internal.SupplementalRow, lastUpdated string) MergeResult {
	merged := make([]internal.ProjectRecord, len(permitDerived))
	copy(merged, permitDerived)

	claimed := make([]bool, len(merged))

	var added int
	for _, supp := range supplemental {
		idx := matchIndex(supp, merged)
		if idx >= 0 && !claimed[idx] {
			claimed[idx] = true
			absorb(&merged[idx], supp)
			continue
		}
		merged = append(merged, fromSupplemental(supp, lastUpdated))
		claimed = append(claimed, true)
		added++
	}

	SortProjects(merged)
	return MergeResult{Records: merged, Added: added}
}

func matchIndex(supp internal.SupplementalRow, records []internal.ProjectRecord) int {
	for i, rec := range records {
		if rec.Origin != internal.OriginPermitDerived {
			continue
		}
		if sameProject(supp, rec) {
			return i
		}
	}
	return -1
}

// absorb folds a matched supplemental row into a permit-derived record.
func absorb(rec *internal.ProjectRecord, supp internal.SupplementalRow) {
	if rec.Status == internal.StatusOther {
		rec.Status = supp.Status
		if supp.Units > rec.UnitsTotal {
			rec.UnitsTotal = supp.Units
		}
	}
	if rec.ProjectName == rec.Address && supp.Name != "" && supp.Name != "Unnamed proposed project" {
		rec.ProjectName = supp.Name
	}
	if supp.SourceURL != "" && !contains(rec.SourceURLs, supp.SourceURL) {
		rec.SourceURLs = append(rec.SourceURLs, supp.SourceURL)
	}
	if rec.Notes == "" {
		rec.Notes = supp.Notes
	}
}

func fromSupplemental(supp internal.SupplementalRow, lastUpdated string) internal.ProjectRecord {
	urls := []string{}
	if supp.SourceURL != "" {
		urls = append(urls, supp.SourceURL)
	}
	updated := supp.LastUpdated
	if updated == "" {
		updated = lastUpdated
	}
	return internal.ProjectRecord{
		ProjectID:    supp.ProjectID,
		ProjectName:  supp.Name,
		Address:      supp.Address,
		Neighborhood: supp.Neighborhood,
		Status:       supp.Status,
		UnitsTotal:   supp.Units,
		Longitude:    supp.Longitude,
		Latitude:     supp.Latitude,
		SourceURLs:   urls,
		Origin:       internal.OriginSupplemental,
		Notes:        supp.Notes,
		LastUpdated:  updated,
	}
}

func contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
