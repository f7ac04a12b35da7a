// This file contains code to help debugging, and is
// separated in from the rest in order not to litter
// the main code with debugging stuff

package main

import (
	"fmt"
	"io"

	"github.com/524D/rtalign/internal/align"

	"github.com/k0kubun/pp"
)

// debugDumpDiagnostics prints what happened to each sample, followed by
// the groups that were rejected for calibration
func debugDumpDiagnostics(w io.Writer, res *align.Result) {
	fmt.Fprintf(w, "Min samples per calibration group: %.2f, good groups: %d\n",
		res.MinSample, res.GoodGroups)
	for _, d := range res.Diagnostics {
		pp.Fprintln(w, d)
	}

	rejected := make(map[string]bool)
	for _, r := range res.Records {
		if !r.Good {
			rejected[r.Group] = true
		}
	}
	if len(rejected) > 0 {
		fmt.Fprintf(w, "Groups not used for calibration: %d\n", len(rejected))
		for _, r := range res.Records {
			if rejected[r.Group] {
				fmt.Fprintf(w, "%s sample:%s rt:%f rtDev:%f\n", r.Group, r.Sample, r.RT, r.RTDev)
			}
		}
	}
}
