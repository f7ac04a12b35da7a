// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package align

import (
	"github.com/montanaflynn/stats"
)

// QualifyGroups computes the deviation of every record from the median RT
// of its group and decides which groups are good enough to calibrate on.
// A group is good when at least minSample distinct samples contribute to
// it and no sample contributes more than extraPeaks+1 records.
// RTDev and Good are set in place; the set of good groups is returned.
func QualifyGroups(records []GroupRecord, minSample float64, extraPeaks int) map[string]bool {
	byGroup := make(map[string][]int)
	var order []string
	for i, r := range records {
		if _, ok := byGroup[r.Group]; !ok {
			order = append(order, r.Group)
		}
		byGroup[r.Group] = append(byGroup[r.Group], i)
	}

	good := make(map[string]bool, len(order))
	rts := make([]float64, 0, 16)
	for _, g := range order {
		idx := byGroup[g]
		rts = rts[:0]
		for _, i := range idx {
			rts = append(rts, records[i].RT)
		}
		// Can't fail, every group has at least one record
		median, _ := stats.Median(rts)

		perSample := make(map[string]int)
		for _, i := range idx {
			records[i].RTDev = records[i].RT - median
			perSample[records[i].Sample]++
		}

		ok := float64(len(perSample)) >= minSample
		if ok {
			for _, cnt := range perSample {
				if cnt > extraPeaks+1 {
					ok = false
					break
				}
			}
		}
		if ok {
			good[g] = true
		}
		for _, i := range idx {
			records[i].Good = ok
		}
	}
	return good
}
