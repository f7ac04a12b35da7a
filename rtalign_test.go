package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/524D/rtalign/internal/config"
	"github.com/524D/rtalign/internal/mzml"

	"github.com/google/go-cmp/cmp"
)

const testPayload = `{
  "groups": {
    "g1": [{"s1": 10.0, "s2": 10.4}],
    "g2": [{"s1": 20.0, "s2": 20.4}],
    "g3": [{"s1": 30.0, "s2": 30.4}],
    "g4": [{"s1": 40.0, "s2": 40.4}],
    "g5": [{"s1": 50.0, "s2": 50.4}],
    "g6": [{"s1": 60.0}]
  },
  "rts": {
    "s1": [5.0, 25.0, 65.0],
    "s2": [5.4, 25.4]
  }
}`

const testExpected = `{
  "groups": {
    "s1": {"g1": 10.2, "g2": 20.2, "g3": 30.2, "g4": 40.2, "g5": 50.2, "g6": 60.2},
    "s2": {"g1": 10.2, "g2": 20.2, "g3": 30.2, "g4": 40.2, "g5": 50.2}
  },
  "samples": {
    "s1": [5.2, 25.2, 65.2],
    "s2": [5.2, 25.2]
  }
}`

// JSONCompare compares two JSON documents, allowing small differences
// between numbers
func JSONCompare(t testing.TB, expected, actual io.Reader) {
	alwaysEqual := cmp.Comparer(func(_, _ interface{}) bool { return true })

	opts := cmp.Options{
		// This option declares that a float64 comparison is equal only if
		// both inputs are NaN.
		cmp.FilterValues(func(x, y float64) bool {
			return math.IsNaN(x) && math.IsNaN(y)
		}, alwaysEqual),

		// This option declares approximate equality on float64s only if
		// both inputs are not NaN.
		cmp.FilterValues(func(x, y float64) bool {
			return !math.IsNaN(x) && !math.IsNaN(y)
		}, cmp.Comparer(func(x, y float64) bool {
			delta := math.Abs(x - y)
			mean := math.Abs(x+y) / 2.0
			return delta == 0 || delta/mean < 0.00001
		})),
	}

	var in1 map[string]any
	var in2 map[string]any

	dec := json.NewDecoder(expected)
	err := dec.Decode(&in1)
	if err != nil {
		t.Fatalf("Error decoding expected JSON: %v", err)
	}
	dec = json.NewDecoder(actual)
	err = dec.Decode(&in2)
	if err != nil {
		t.Fatalf("Error decoding actual JSON: %v", err)
	}

	if diff := cmp.Diff(in1, in2, opts); diff != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", diff)
	}
}

// run executes the command line in args, with stdin and captured output
func run(t testing.TB, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	_, err := cmd.ExecuteC()
	return stdout.String(), stderr.String(), err
}

func writeFile(t testing.TB, dir, name, data string) string {
	t.Helper()
	fileName := filepath.Join(dir, name)
	if err := os.WriteFile(fileName, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return fileName
}

func TestRootCmd(t *testing.T) {
	_, stderr, err := run(t, "", "nonexistent")
	if err == nil {
		t.Error("Expected an error for a nonexistent command, but got none")
	}
	expected := "unknown command \"nonexistent\" for \"rtalign\""
	if !strings.Contains(err.Error(), expected) {
		t.Errorf("Expected error to contain '%s', but got '%v' (stderr %q)", expected, err, stderr)
	}
}

func TestAlignCmd(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "payload.json", testPayload)
	out := filepath.Join(dir, "out.json")
	records := filepath.Join(dir, "records.csv")
	scanRecords := filepath.Join(dir, "scans.csv")

	_, _, err := run(t, "", "align", in, "-o", out, "--records", records,
		"--scan-records", scanRecords, "--quiet")
	if err != nil {
		t.Fatalf("align: error return %v", err)
	}
	actual, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer actual.Close()
	JSONCompare(t, strings.NewReader(testExpected), actual)

	csv, err := os.ReadFile(records)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	if lines[0] != "group,sample,rt,rt_dev,good_group" {
		t.Errorf("records header %q", lines[0])
	}
	if len(lines) != 12 {
		t.Errorf("%d record lines, expected 12", len(lines))
	}
	csv, err = os.ReadFile(scanRecords)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(string(csv)), "\n"); len(lines) != 6 {
		t.Errorf("%d scan record lines, expected 6", len(lines))
	}
}

func TestAlignCmdStdin(t *testing.T) {
	stdout, stderr, err := run(t, testPayload, "align", "--debug-samples")
	if err != nil {
		t.Fatalf("align: error return %v", err)
	}
	JSONCompare(t, strings.NewReader(testExpected), strings.NewReader(stdout))
	if !strings.Contains(stderr, "Aligned 2 samples, 5 of 6 groups") {
		t.Errorf("no summary in stderr %q", stderr)
	}
	if !strings.Contains(stderr, "Groups not used for calibration: 1") {
		t.Errorf("no diagnostics in stderr %q", stderr)
	}
}

func TestAlignCmdInvalid(t *testing.T) {
	if _, _, err := run(t, `{"groups": {}}`, "align", "-q"); err == nil {
		t.Errorf("expected error for payload without rts")
	}
	_, _, err := run(t, testPayload, "align", "--span", "0")
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestServeCmd(t *testing.T) {
	in := "start processing\n" + testPayload + "\nend processing\n" +
		"start processing\n{\"groups\": {}}\nend processing\n"
	stdout, _, err := run(t, in, "serve", "-q")
	if err != nil {
		t.Fatalf("serve: error return %v", err)
	}
	parts := strings.Split(stdout, "stop\n")
	if len(parts) != 3 || parts[2] != "" {
		t.Fatalf("unexpected serve output %q", stdout)
	}
	JSONCompare(t, strings.NewReader(testExpected), strings.NewReader(parts[0]))
	if !strings.Contains(parts[1], `"error"`) {
		t.Errorf("no error response for invalid payload: %q", parts[1])
	}
}

// testRunMzML has MS1 spectra at 60, 120 and 180 s and an MS2 spectrum at 90 s
const testRunMzML = `<?xml version="1.0" encoding="utf-8"?>
<mzML xmlns="http://psi.hupo.org/ms/mzml" version="1.1.0">
  <cvList count="1">
    <cv id="MS" fullName="Proteomics Standards Initiative Mass Spectrometry Ontology"/>
  </cvList>
  <fileDescription>
    <fileContent/>
  </fileDescription>
  <instrumentConfigurationList count="1">
    <instrumentConfiguration id="IC1"/>
  </instrumentConfigurationList>
  <run id="run1" defaultInstrumentConfigurationRef="IC1">
    <spectrumList count="4">
      <spectrum index="0" id="scan=1" defaultArrayLength="0">
        <cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="1"/>
        <scanList count="1"><scan><cvParam cvRef="MS" accession="MS:1000016" name="scan start time" value="60" unitCvRef="UO" unitAccession="UO:0000010" unitName="second"/></scan></scanList>
      </spectrum>
      <spectrum index="1" id="scan=2" defaultArrayLength="0">
        <cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="2"/>
        <scanList count="1"><scan><cvParam cvRef="MS" accession="MS:1000016" name="scan start time" value="90" unitCvRef="UO" unitAccession="UO:0000010" unitName="second"/></scan></scanList>
      </spectrum>
      <spectrum index="2" id="scan=3" defaultArrayLength="0">
        <cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="1"/>
        <scanList count="1"><scan><cvParam cvRef="MS" accession="MS:1000016" name="scan start time" value="120" unitCvRef="UO" unitAccession="UO:0000010" unitName="second"/></scan></scanList>
      </spectrum>
      <spectrum index="3" id="scan=4" defaultArrayLength="0">
        <cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="1"/>
        <scanList count="1"><scan><cvParam cvRef="MS" accession="MS:1000016" name="scan start time" value="180" unitCvRef="UO" unitAccession="UO:0000010" unitName="second"/></scan></scanList>
      </spectrum>
    </spectrumList>
  </run>
</mzML>
`

func TestScansCmd(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "run1.mzML", testRunMzML)
	stdout, _, err := run(t, "", "scans", "--minutes", "-q", file)
	if err != nil {
		t.Fatalf("scans: error return %v", err)
	}
	JSONCompare(t, strings.NewReader(`{"rts": {"run1": [1, 2, 3]}}`), strings.NewReader(stdout))

	stdout, _, err = run(t, "", "scans", "--mslevel", "0", "-q", file)
	if err != nil {
		t.Fatalf("scans: error return %v", err)
	}
	JSONCompare(t, strings.NewReader(`{"rts": {"run1": [60, 90, 120, 180]}}`), strings.NewReader(stdout))
}

func TestApplyCmd(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "run1.mzML", testRunMzML)
	result := writeFile(t, dir, "result.json",
		`{"groups": {}, "samples": {"run1": [1.5, 2.5, 3.5]}}`)
	out := filepath.Join(dir, "aligned.mzML")

	if _, _, err := run(t, "", "apply", "--result", result, "--minutes", "-o", out, "-q", file); err != nil {
		t.Fatalf("apply: error return %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	mzML, err := mzml.Read(f)
	if err != nil {
		t.Fatalf("mzml.Read: error return %v", err)
	}
	for i, want := range []float64{90, 120, 150, 210} {
		rt, err := mzML.RetentionTime(i)
		if err != nil {
			t.Errorf("RetentionTime(%d): error return %v", i, err)
		}
		if math.Abs(rt-want) > 1e-9 {
			t.Errorf("RetentionTime(%d): %v, should be %v", i, rt, want)
		}
	}
}

func TestApplyCmdErrors(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "run1.mzML", testRunMzML)
	result := writeFile(t, dir, "result.json", `{"groups": {}, "samples": {"run1": [1.5]}}`)
	out := filepath.Join(dir, "aligned.mzML")

	_, _, err := run(t, "", "apply", "--result", result, "-o", out, "-q", file)
	if !errors.Is(err, ErrArgs) {
		t.Errorf("length mismatch: expected ErrArgs, got %v", err)
	}
	_, _, err = run(t, "", "apply", "--result", result, "--sample", "other", "-o", out, "-q", file)
	if !errors.Is(err, ErrArgs) {
		t.Errorf("unknown sample: expected ErrArgs, got %v", err)
	}
	if _, _, err := run(t, "", "apply", "-o", out, file); err == nil {
		t.Errorf("expected error without --result")
	}
}

func TestScansCmdSelection(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "run1.mzML", testRunMzML)
	stdout, _, err := run(t, "", "scans", "--mslevel", "0", "--spectra", "1:2", "-q", file)
	if err != nil {
		t.Fatalf("scans: error return %v", err)
	}
	JSONCompare(t, strings.NewReader(`{"rts": {"run1": [90, 120]}}`), strings.NewReader(stdout))

	stdout, _, err = run(t, "", "scans", "--rt", "100:", "-q", file)
	if err != nil {
		t.Fatalf("scans: error return %v", err)
	}
	JSONCompare(t, strings.NewReader(`{"rts": {"run1": [120, 180]}}`), strings.NewReader(stdout))

	if _, _, err := run(t, "", "scans", "--rt", "x", "-q", file); !errors.Is(err, ErrRangeSpec) {
		t.Errorf("expected ErrRangeSpec, got %v", err)
	}
}
