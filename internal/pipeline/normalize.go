package pipeline

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"abundance/internal"
	"abundance/internal/config"
	"abundance/internal/util"
)

// Lifecycle stage codes inferred from permit date/cancel fields. The
// permit layer has no status column; the dates are the status.
const (
	StageCancelled = "cancelled"
	StageFinaled   = "finaled"
	StageCOIssued  = "co_issued"
	StageIssued    = "issued"
	StageReceived  = "received"
	StageNone      = "none"
)

// defaultStageStatus is the stage-code to status lookup table. An issued
// permit means construction is underway; a finaled permit or an issued
// CO means the units were delivered.
var defaultStageStatus = map[string]internal.ProjectStatus{
	StageCancelled: internal.StatusCancelled,
	StageFinaled:   internal.StatusDelivered,
	StageCOIssued:  internal.StatusDelivered,
	StageIssued:    internal.StatusUnderConstruction,
	StageReceived:  internal.StatusApproved,
	StageNone:      internal.StatusProposed,
}

var knownStatuses = map[internal.ProjectStatus]bool{
	internal.StatusProposed:          true,
	internal.StatusApproved:          true,
	internal.StatusIssued:            true,
	internal.StatusUnderConstruction: true,
	internal.StatusDelivered:         true,
	internal.StatusCancelled:         true,
	internal.StatusOther:             true,
}

// Normalizer maps one raw feed feature to a PermitRow. Defective rows are
// skipped and counted; they never abort the run.
type Normalizer struct {
	sourceURL string
	stageMap  map[string]internal.ProjectStatus
	Stats     internal.RunStats
}

func NewNormalizer(cfg config.Config, sourceURL string) *Normalizer {
	stageMap := make(map[string]internal.ProjectStatus, len(defaultStageStatus))
	for code, status := range defaultStageStatus {
		stageMap[code] = status
	}
	if overrides, err := loadStageOverrides(cfg.StatusMapPath); err == nil {
		for code, status := range overrides {
			stageMap[code] = status
		}
	}
	return &Normalizer{sourceURL: sourceURL, stageMap: stageMap}
}

func (n *Normalizer) Normalize(feat internal.RawFeature) (internal.PermitRow, bool) {
	a := feat.Attributes
	if a == nil {
		n.Stats.SkippedRows++
		return internal.PermitRow{}, false
	}

	permitID := attrString(a, "PERMIT_NUM")
	address := attrString(a, "ADDRESS")
	if permitID == "" && address == "" {
		n.Stats.SkippedRows++
		return internal.PermitRow{}, false
	}
	if permitID == "" {
		if objectID := util.ParseIntLoose(a["OBJECTID"], 0); objectID > 0 {
			permitID = fmt.Sprintf("OBJ-%d", objectID)
		} else {
			n.Stats.SkippedRows++
			return internal.PermitRow{}, false
		}
	}

	row := internal.PermitRow{
		PermitID:     permitID,
		LogNum:       attrString(a, "LOG_NUM"),
		Address:      address,
		Neighborhood: attrString(a, "NEIGHBORHOOD"),
		Units:        util.ParseIntLoose(a["UNITS"], 0),
		DateReceived: util.EpochMsToDate(a["DATE_RECEIVED"]),
		DateIssued:   util.EpochMsToDate(a["DATE_ISSUED"]),
		FinalDate:    util.EpochMsToDate(a["FINAL_DATE"]),
		Valuation:    util.ParseFloatLoose(a["VALUATION"], 0),
		Contractor:   attrString(a, "CONTRACTOR_NAME"),
		SourceURL:    n.sourceURL,
	}
	if row.Units < 0 {
		row.Units = 0
	}

	row.StageCode = inferStage(a, row)
	row.Status = n.mapStage(row.StageCode)

	if feat.Geometry != nil {
		row.Longitude = feat.Geometry.X
		row.Latitude = feat.Geometry.Y
	}

	n.Stats.Normalized++
	return row, true
}

func (n *Normalizer) mapStage(code string) internal.ProjectStatus {
	status, ok := n.stageMap[code]
	if !ok || !knownStatuses[status] {
		n.Stats.UnmappedStatus++
		return internal.StatusOther
	}
	return status
}

// inferStage derives the lifecycle stage from permit fields, most
// progressed signal first.
func inferStage(a map[string]any, row internal.PermitRow) string {
	cancel := strings.ToUpper(attrString(a, "CANCEL"))
	switch cancel {
	case "Y", "YES", "TRUE", "1":
		return StageCancelled
	}
	if row.FinalDate != "" {
		return StageFinaled
	}
	if util.EpochMsToDate(a["DATE_CO_ISSUED"]) != "" || attrString(a, "DATE_CO_ISSUED") != "" {
		return StageCOIssued
	}
	if row.DateIssued != "" {
		return StageIssued
	}
	if row.DateReceived != "" {
		return StageReceived
	}
	return StageNone
}

func attrString(a map[string]any, key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// loadStageOverrides reads an optional YAML file remapping stage codes,
// e.g. `issued: Under Construction`. Absent path means no overrides.
func loadStageOverrides(path string) (map[string]internal.ProjectStatus, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := yaml.Unmarshal(blob, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]internal.ProjectStatus, len(raw))
	for code, status := range raw {
		out[strings.ToLower(strings.TrimSpace(code))] = internal.ProjectStatus(strings.TrimSpace(status))
	}
	return out, nil
}
