package mzml

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

func TestWriteRoundTrip(t *testing.T) {
	f := readTestFile(t)
	if err := f.SetRetentionTime(0, 153); err != nil {
		t.Fatalf("SetRetentionTime: error return %v", err)
	}
	if err := f.SetRetentionTime(1, 150.5); err != nil {
		t.Fatalf("SetRetentionTime: error return %v", err)
	}
	if err := f.SetRetentionTime(2, 1); err == nil {
		t.Errorf("SetRetentionTime: no error for spectrum without scan start time")
	}
	if err := f.SetRetentionTime(0, math.NaN()); err == nil {
		t.Errorf("SetRetentionTime: no error for NaN")
	}
	f.AppendSoftwareInfo("rtalign", "0.1.0")
	f.AppendDataProcessing(DataProcessing{
		ID: "rtalign_alignment",
		ProcessingMeth: []ProcessingMethod{{
			Order:       1,
			SoftwareRef: "rtalign",
			UserPar:     []UserParam{{Name: "retention time alignment"}},
		}},
	})

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: error return %v", err)
	}
	out := buf.String()
	// Minutes stay minutes
	if !strings.Contains(out, `value="2.55"`) {
		t.Errorf("corrected RT in minutes not found in output")
	}
	for _, s := range []string{
		`<binary>AAAAAAAAWUA=</binary>`,
		`<precursor spectrumRef="scan=1">`,
		`<scanWindowList count="1">`,
		`<software id="rtalign" version="0.1.0">`,
		`id="rtalign_alignment"`,
		`<softwareList count="2">`,
		`<dataProcessingList count="2">`,
	} {
		if !strings.Contains(out, s) {
			t.Errorf("output does not contain %s", s)
		}
	}
	if strings.Contains(out, "indexedmzML") {
		t.Errorf("output still contains the index wrapper")
	}

	g, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read written file: error return %v", err)
	}
	if g.NumSpecs() != 3 {
		t.Fatalf("NumSpecs: %d, should be 3", g.NumSpecs())
	}
	for i, want := range []float64{153, 150.5} {
		rt, err := g.RetentionTime(i)
		if err != nil {
			t.Errorf("RetentionTime(%d): error return %v", i, err)
		}
		if math.Abs(rt-want) > 1e-9 {
			t.Errorf("RetentionTime(%d): %v, should be %v", i, rt, want)
		}
	}
	msLevel, err := g.MSLevel(1)
	if err != nil || msLevel != 2 {
		t.Errorf("MSLevel(1): %d, %v", msLevel, err)
	}
}

func TestAppendToEmptyLists(t *testing.T) {
	var f MzML
	f.AppendSoftwareInfo("rtalign", "0.1.0")
	f.AppendDataProcessing(DataProcessing{ID: "dp"})
	if f.content.SoftwareList.Count != 1 || f.content.DataProcessingList.Count != 1 {
		t.Errorf("counts %d, %d, should be 1, 1",
			f.content.SoftwareList.Count, f.content.DataProcessingList.Count)
	}
}
