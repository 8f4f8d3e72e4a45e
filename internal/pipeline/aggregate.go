package pipeline

import (
	"fmt"
	"math"
	"sort"

	"abundance/internal"
	"abundance/internal/util"
)

// Aggregate reduces one project group to a single record. Pure and total:
// missing data degrades to defaults, it never fails.
func Aggregate(group internal.ProjectGroup, lastUpdated string) internal.ProjectRecord {
	rec := internal.ProjectRecord{
		ProjectID:    group.Key,
		Status:       internal.StatusOther,
		PermitCaseID: util.StringPtr(group.Key),
		Origin:       internal.OriginPermitDerived,
		SourceURLs:   []string{},
		LastUpdated:  lastUpdated,
	}

	seenURL := map[string]bool{}
	lonSum, latSum := 0.0, 0.0
	coordCount := 0

	for _, row := range group.Rows {
		rec.PermitCount++
		if row.Units > 0 {
			rec.UnitsTotal += row.Units
		}
		rec.ValuationTotal += row.Valuation

		if row.Status.MoreAdvanced(rec.Status) {
			rec.Status = row.Status
		}

		if rec.Address == "" && row.Address != "" {
			rec.Address = row.Address
		}
		if rec.Neighborhood == "" && row.Neighborhood != "" {
			rec.Neighborhood = row.Neighborhood
		}
		if rec.Developer == nil && row.Contractor != "" {
			rec.Developer = util.StringPtr(row.Contractor)
		}

		rec.FirstDateReceived = util.MinDate(rec.FirstDateReceived, row.DateReceived)
		rec.FirstDateIssued = util.MinDate(rec.FirstDateIssued, row.DateIssued)
		rec.LastDateIssued = util.MaxDate(rec.LastDateIssued, row.DateIssued)
		rec.LastFinalDate = util.MaxDate(rec.LastFinalDate, row.FinalDate)

		if row.SourceURL != "" && !seenURL[row.SourceURL] {
			seenURL[row.SourceURL] = true
			rec.SourceURLs = append(rec.SourceURLs, row.SourceURL)
		}

		if row.Longitude != nil && row.Latitude != nil {
			lonSum += *row.Longitude
			latSum += *row.Latitude
			coordCount++
		}
	}

	if coordCount > 0 {
		lon := roundCoord(lonSum / float64(coordCount))
		lat := roundCoord(latSum / float64(coordCount))
		rec.Longitude = &lon
		rec.Latitude = &lat
	}

	rec.ValuationTotal = math.Round(rec.ValuationTotal*100) / 100

	if rec.Address != "" {
		rec.ProjectName = rec.Address
	} else {
		rec.ProjectName = fmt.Sprintf("Residential project %s", group.Key)
	}

	return rec
}

// BuildProjects runs grouping and aggregation over the full row set.
// Groups that net zero units are dropped and counted; they are permit
// noise (fences, remodels) rather than housing production.
func BuildProjects(rows []internal.PermitRow, lastUpdated string, stats *internal.RunStats) []internal.ProjectRecord {
	groups := GroupRows(rows)
	records := make([]internal.ProjectRecord, 0, len(groups))
	for _, group := range groups {
		rec := Aggregate(group, lastUpdated)
		if rec.UnitsTotal <= 0 {
			if stats != nil {
				stats.ZeroUnitDropped++
			}
			continue
		}
		records = append(records, rec)
	}
	SortProjects(records)
	if stats != nil {
		stats.Projects = len(records)
	}
	return records
}

// SortProjects orders records most-progressed and largest first. The
// project-id tiebreak keeps repeated runs byte-identical.
func SortProjects(records []internal.ProjectRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Status.Rank() != b.Status.Rank() {
			return a.Status.Rank() > b.Status.Rank()
		}
		if a.UnitsTotal != b.UnitsTotal {
			return a.UnitsTotal > b.UnitsTotal
		}
		if a.PermitCount != b.PermitCount {
			return a.PermitCount > b.PermitCount
		}
		return a.ProjectID < b.ProjectID
	})
}

// ComputeKPIs summarizes a built collection. v2 adds supplemental counters.
func ComputeKPIs(records []internal.ProjectRecord, version, updatedAt, source string, supplementalAdded int) internal.KPISet {
	kpis := internal.KPISet{
		ProjectsTracked: len(records),
		UpdatedAt:       updatedAt,
		Source:          source,
	}
	proposedCount := 0
	proposedUnits := 0
	for _, rec := range records {
		if rec.UnitsTotal > 0 {
			kpis.PipelineUnits += rec.UnitsTotal
		}
		switch rec.Status {
		case internal.StatusDelivered:
			kpis.DeliveredUnits += rec.UnitsTotal
		case internal.StatusUnderConstruction:
			kpis.UnderConstructionUnits += rec.UnitsTotal
		case internal.StatusProposed, internal.StatusApproved:
			proposedCount++
			proposedUnits += rec.UnitsTotal
		}
	}

	switch version {
	case "v2":
		kpis.ProposedApprovedCount = util.IntPtr(proposedCount)
		kpis.ProposedApprovedUnits = util.IntPtr(proposedUnits)
		kpis.SupplementalAdded = util.IntPtr(supplementalAdded)
		kpis.Notes = []string{
			"v2 merges issued-permit rollups with a curated list of large proposed/approved projects.",
			"Supplemental rows matching a permit-derived address by normalized comparison are merged, not duplicated.",
			"Units are aggregated from permit rows grouped by log number with address fallback.",
			"This is a practical proxy for development pipeline, not a legal entitlement ledger.",
		}
	default:
		kpis.Notes = []string{
			"v1 infers project-level status from permit lifecycle fields.",
			"The source is issued residential construction permits, so v1 mostly represents under-construction and delivered stages.",
			"Units are aggregated from permit rows grouped by log number with address fallback.",
			"This is a practical proxy for development pipeline, not a legal entitlement ledger.",
		}
	}
	return kpis
}

func roundCoord(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
