package pipeline

import (
	"sort"

	"abundance/internal"
	"abundance/internal/util"
)

// GroupingKey is the one heuristic rule deciding project identity: the
// permit log number when present, else the normalized address, else the
// permit id itself. Rows sharing a log number always group together;
// rows with different log numbers never merge on address alone.
func GroupingKey(row internal.PermitRow) string {
	if row.LogNum != "" {
		return row.LogNum
	}
	if addr := util.NormalizeAddress(row.Address); addr != "" {
		return addr
	}
	return row.PermitID
}

// GroupRows partitions permit rows into project groups. Rows are sorted
// by permit id first so membership and group order are identical for any
// permutation of the input.
func GroupRows(rows []internal.PermitRow) []internal.ProjectGroup {
	sorted := make([]internal.PermitRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PermitID < sorted[j].PermitID
	})

	byKey := map[string]int{}
	groups := make([]internal.ProjectGroup, 0)
	for _, row := range sorted {
		key := GroupingKey(row)
		idx, ok := byKey[key]
		if !ok {
			idx = len(groups)
			byKey[key] = idx
			groups = append(groups, internal.ProjectGroup{Key: key})
		}
		groups[idx].Rows = append(groups[idx].Rows, row)
	}
	return groups
}
