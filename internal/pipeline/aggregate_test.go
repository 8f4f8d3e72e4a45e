package pipeline

import (
	"encoding/json"
	"strings"
	"testing"

	"abundance/internal"
)

func TestAggregateUnitsAndStatus(t *testing.T) {
	group := internal.ProjectGroup{Key: "LOG123", Rows: []internal.PermitRow{
		{PermitID: "P1", LogNum: "LOG123", Address: "100 Main St", Units: 10, Status: internal.StatusIssued, DateIssued: "2021-06-01", SourceURL: "https://src/a"},
		{PermitID: "P2", LogNum: "LOG123", Address: "100 Main St", Units: 15, Status: internal.StatusUnderConstruction, DateIssued: "2021-09-01", SourceURL: "https://src/a"},
	}}

	rec := Aggregate(group, "2026-08-28")
	if rec.UnitsTotal != 25 {
		t.Fatalf("units=%d", rec.UnitsTotal)
	}
	if rec.Status != internal.StatusUnderConstruction {
		t.Fatalf("status=%q", rec.Status)
	}
	if rec.ProjectID != "LOG123" {
		t.Fatalf("project id=%q", rec.ProjectID)
	}
	if rec.FirstDateIssued != "2021-06-01" || rec.LastDateIssued != "2021-09-01" {
		t.Fatalf("dates %q..%q", rec.FirstDateIssued, rec.LastDateIssued)
	}
	if len(rec.SourceURLs) != 1 || rec.SourceURLs[0] != "https://src/a" {
		t.Fatalf("source urls %v", rec.SourceURLs)
	}
	if rec.PermitCount != 2 {
		t.Fatalf("permit count=%d", rec.PermitCount)
	}
}

func TestAggregateDeliveredWins(t *testing.T) {
	// A delivered row outranks everything else in the group.
	statuses := []internal.ProjectStatus{
		internal.StatusIssued,
		internal.StatusDelivered,
		internal.StatusUnderConstruction,
		internal.StatusCancelled,
	}
	rows := make([]internal.PermitRow, 0, len(statuses))
	for i, s := range statuses {
		rows = append(rows, internal.PermitRow{PermitID: string(rune('A' + i)), Units: 1, Status: s})
	}

	rec := Aggregate(internal.ProjectGroup{Key: "K", Rows: rows}, "2026-08-28")
	if rec.Status != internal.StatusDelivered {
		t.Fatalf("status=%q", rec.Status)
	}
}

func TestAggregateEmptyishGroup(t *testing.T) {
	rec := Aggregate(internal.ProjectGroup{Key: "K", Rows: []internal.PermitRow{{PermitID: "P1"}}}, "2026-08-28")
	if rec.UnitsTotal != 0 {
		t.Fatalf("units=%d", rec.UnitsTotal)
	}
	if rec.Status != internal.StatusOther {
		t.Fatalf("status=%q", rec.Status)
	}
	if rec.ProjectName != "Residential project K" {
		t.Fatalf("name=%q", rec.ProjectName)
	}
}

func TestBuildProjectsDropsZeroUnitGroups(t *testing.T) {
	rows := []internal.PermitRow{
		{PermitID: "P1", LogNum: "LOG1", Address: "1 A St", Units: 5, Status: internal.StatusIssued},
		{PermitID: "P2", LogNum: "LOG2", Address: "2 B St", Units: 0, Status: internal.StatusIssued},
	}
	var stats internal.RunStats
	records := BuildProjects(rows, "2026-08-28", &stats)
	if len(records) != 1 {
		t.Fatalf("records=%d", len(records))
	}
	if stats.ZeroUnitDropped != 1 {
		t.Fatalf("dropped=%d", stats.ZeroUnitDropped)
	}
	if stats.Projects != 1 {
		t.Fatalf("projects=%d", stats.Projects)
	}
}

func TestSortProjectsDeterministic(t *testing.T) {
	records := []internal.ProjectRecord{
		{ProjectID: "b", Status: internal.StatusIssued, UnitsTotal: 10},
		{ProjectID: "a", Status: internal.StatusIssued, UnitsTotal: 10},
		{ProjectID: "c", Status: internal.StatusDelivered, UnitsTotal: 1},
	}
	SortProjects(records)
	if records[0].ProjectID != "c" {
		t.Fatalf("most progressed first, got %q", records[0].ProjectID)
	}
	if records[1].ProjectID != "a" || records[2].ProjectID != "b" {
		t.Fatalf("tiebreak by project id, got %q then %q", records[1].ProjectID, records[2].ProjectID)
	}
}

func TestComputeKPIs(t *testing.T) {
	records := []internal.ProjectRecord{
		{UnitsTotal: 100, Status: internal.StatusDelivered},
		{UnitsTotal: 50, Status: internal.StatusUnderConstruction},
		{UnitsTotal: 200, Status: internal.StatusProposed},
	}
	kpis := ComputeKPIs(records, "v2", "2026-08-28T00:00:00Z", "test", 1)
	if kpis.ProjectsTracked != 3 {
		t.Fatalf("tracked=%d", kpis.ProjectsTracked)
	}
	if kpis.PipelineUnits != 350 {
		t.Fatalf("pipeline units=%d", kpis.PipelineUnits)
	}
	if kpis.DeliveredUnits != 100 || kpis.UnderConstructionUnits != 50 {
		t.Fatalf("delivered=%d uc=%d", kpis.DeliveredUnits, kpis.UnderConstructionUnits)
	}
	if kpis.ProposedApprovedCount == nil || *kpis.ProposedApprovedCount != 1 {
		t.Fatalf("proposed count=%v", kpis.ProposedApprovedCount)
	}
	if kpis.ProposedApprovedUnits == nil || *kpis.ProposedApprovedUnits != 200 {
		t.Fatalf("proposed units=%v", kpis.ProposedApprovedUnits)
	}
	if kpis.SupplementalAdded == nil || *kpis.SupplementalAdded != 1 {
		t.Fatalf("added=%v", kpis.SupplementalAdded)
	}
}

func TestKPIJSONKeysStablePerVersion(t *testing.T) {
	// v2 keeps its counter keys even when every counter is zero, so
	// consumers see the same schema run over run; v1 never carries them.
	records := []internal.ProjectRecord{
		{UnitsTotal: 40, Status: internal.StatusUnderConstruction},
	}

	v2, err := json.Marshal(ComputeKPIs(records, "v2", "2026-08-28T00:00:00Z", "test", 0))
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{
		`"proposed_or_approved_projects":0`,
		`"proposed_or_approved_units":0`,
		`"v2_added_supplemental_projects":0`,
	} {
		if !strings.Contains(string(v2), key) {
			t.Fatalf("v2 kpis missing %s: %s", key, v2)
		}
	}

	v1, err := json.Marshal(ComputeKPIs(records, "v1", "2026-08-28T00:00:00Z", "test", 0))
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"proposed_or_approved", "v2_added_supplemental"} {
		if strings.Contains(string(v1), key) {
			t.Fatalf("v1 kpis carry %s: %s", key, v1)
		}
	}
}
