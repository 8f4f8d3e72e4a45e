package internal

// ProjectStatus is the lifecycle stage of a project or permit.
type ProjectStatus string

const (
	StatusProposed          ProjectStatus = "Proposed"
	StatusApproved          ProjectStatus = "Approved"
	StatusIssued            ProjectStatus = "Issued"
	StatusUnderConstruction ProjectStatus = "Under Construction"
	StatusDelivered         ProjectStatus = "Delivered"
	StatusCancelled         ProjectStatus = "Cancelled"
	StatusOther             ProjectStatus = "Other"
)

// statusRank orders statuses by pipeline progress. A project is as
// complete as its most-progressed permit, so aggregation takes the max.
var statusRank = map[ProjectStatus]int{
	StatusCancelled:         0,
	StatusOther:             1,
	StatusProposed:          2,
	StatusApproved:          3,
	StatusIssued:            4,
	StatusUnderConstruction: 5,
	StatusDelivered:         6,
}

func (s ProjectStatus) Rank() int {
	return statusRank[s]
}

// MoreAdvanced reports whether s is further along the pipeline than other.
func (s ProjectStatus) MoreAdvanced(other ProjectStatus) bool {
	return s.Rank() > other.Rank()
}

type Origin string

const (
	OriginPermitDerived Origin = "permit_issued"
	OriginSupplemental  Origin = "supplemental_proposed"
)

// PermitRow is one issued permit after normalization.
type PermitRow struct {
	PermitID     string
	LogNum       string // primary grouping key; may be empty
	Address      string
	Neighborhood string
	Units        int
	Status       ProjectStatus
	StageCode    string // raw inferred lifecycle stage, pre-mapping
	DateReceived string // ISO dates; empty when the feed had none
	DateIssued   string
	FinalDate    string
	Valuation    float64
	Contractor   string
	Longitude    *float64
	Latitude     *float64
	SourceURL    string
}

// ProjectGroup is the set of permit rows sharing an inferred project identity.
type ProjectGroup struct {
	Key  string
	Rows []PermitRow
}

// ProjectRecord is the aggregated, user-facing unit of output.
type ProjectRecord struct {
	ProjectID         string           `json:"project_id"`
	ProjectName       string           `json:"project_name"`
	Address           string           `json:"address"`
	Neighborhood      string           `json:"neighborhood"`
	Status            ProjectStatus    `json:"status"`
	UnitsTotal        int              `json:"units_total"`
	PermitCount       int              `json:"permit_count"`
	ValuationTotal    float64          `json:"valuation_total"`
	Developer         *string          `json:"developer"`
	PermitCaseID      *string          `json:"permit_case_id"`
	FirstDateReceived string           `json:"first_date_received"`
	FirstDateIssued   string           `json:"first_date_issued"`
	LastDateIssued    string           `json:"last_date_issued"`
	LastFinalDate     string           `json:"last_final_date"`
	Longitude         *float64         `json:"longitude"`
	Latitude          *float64         `json:"latitude"`
	SourceURLs        []string         `json:"source_urls"`
	Origin            Origin           `json:"source_type"`
	Notes             string           `json:"notes"`
	LastUpdated       string           `json:"last_updated"`
}

// SupplementalRow is one manually curated proposed/approved project.
type SupplementalRow struct {
	ProjectID    string
	Name         string
	Address      string
	Neighborhood string
	Status       ProjectStatus
	Units        int
	SourceURL    string
	Longitude    *float64
	Latitude     *float64
	Notes        string
	LastUpdated  string
}

// KPISet summarizes a built project collection.
type KPISet struct {
	ProjectsTracked        int `json:"projects_tracked"`
	PipelineUnits          int `json:"pipeline_units"`
	DeliveredUnits         int `json:"delivered_units"`
	UnderConstructionUnits int `json:"under_construction_units"`
	// The v2-only counters are pointers so v1 payloads omit the keys while
	// v2 still emits them at zero.
	ProposedApprovedCount *int     `json:"proposed_or_approved_projects,omitempty"`
	ProposedApprovedUnits *int     `json:"proposed_or_approved_units,omitempty"`
	SupplementalAdded     *int     `json:"v2_added_supplemental_projects,omitempty"`
	UpdatedAt             string   `json:"updated_at"`
	Source                string   `json:"source"`
	Notes                 []string `json:"notes"`
}

// SyncStats is the persisted summary of the most recent feed sync,
// carried through metadata so later builds report real skip counts.
type SyncStats struct {
	Fetched  int `json:"fetched"`
	Skipped  int `json:"skipped"`
	Unmapped int `json:"unmappedStatus"`
}

// RunStats counts row-level defects and pipeline output for one run.
// Defective rows are skipped and counted, never fatal.
type RunStats struct {
	Fetched         int
	Normalized      int
	SkippedRows     int
	UnmappedStatus  int
	ZeroUnitDropped int
	Projects        int
	SupplementalIn  int
}

// RawFeature is one untyped feature from the upstream feed.
type RawFeature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *RawGeometry   `json:"geometry"`
}

type RawGeometry struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}
