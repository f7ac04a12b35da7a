// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package align

import "sort"

// GroupRecord is one observation of a group in a sample.
// RTDev and Good are filled in by QualifyGroups.
type GroupRecord struct {
	Group  string  `csv:"group"`
	Sample string  `csv:"sample"`
	RT     float64 `csv:"rt"`
	RTDev  float64 `csv:"rt_dev"`
	Good   bool    `csv:"good_group"`
}

// ScanRecord is the retention time of one scan of a sample.
// RTCorrected is only set by Result.ScanRecords.
type ScanRecord struct {
	Sample      string  `csv:"sample"`
	Scan        int     `csv:"scan"`
	RT          float64 `csv:"rt"`
	RTCorrected float64 `csv:"rt_corrected"`
}

// BuildGroupRecords flattens the group structure into one record per
// (group, occurrence, sample). Nothing is dropped or merged, a sample that
// shows up in several occurrences of a group yields several records.
// Records are ordered by group id, then occurrence, then sample id.
func BuildGroupRecords(groups map[string][]Occurrence) []GroupRecord {
	n := 0
	for _, occs := range groups {
		for _, occ := range occs {
			n += len(occ)
		}
	}
	records := make([]GroupRecord, 0, n)
	for _, g := range sortedKeys(groups) {
		for _, occ := range groups[g] {
			for _, s := range sortedKeys(occ) {
				records = append(records, GroupRecord{
					Group:  g,
					Sample: s,
					RT:     occ[s],
				})
			}
		}
	}
	return records
}

// BuildScanRecords flattens the per-sample scan RTs, keeping scan order
func BuildScanRecords(rts map[string][]float64) []ScanRecord {
	n := 0
	for _, scans := range rts {
		n += len(scans)
	}
	records := make([]ScanRecord, 0, n)
	for _, s := range sortedKeys(rts) {
		for i, rt := range rts[s] {
			records = append(records, ScanRecord{Sample: s, Scan: i, RT: rt})
		}
	}
	return records
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
