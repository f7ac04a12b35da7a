package mzml

import (
	"encoding/xml"
	"io"
	"strconv"

	"golang.org/x/net/html/charset"
)

// Read reads mzML file from an io.Reader
func Read(reader io.Reader) (MzML, error) {
	var mzML MzML

	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel

	// We are only interested in mzML content, so skip over indexedmzML
	// and everything else
	found := false
	for !found {
		t, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return mzML, err
		}
		if t, ok := t.(xml.StartElement); ok && t.Name.Local == "mzML" {
			if err := d.DecodeElement(&mzML.content, &t); err != nil {
				return mzML, err
			}
			found = true
		}
	}
	if !found {
		return mzML, ErrNoMzML
	}
	mzML.stripNamespaces()
	return mzML, nil
}

// stripNamespaces clears the namespace that the decoder stores in the
// names of pass-through elements, otherwise every one of them would get
// its own xmlns attribute when written
func (f *MzML) stripNamespaces() {
	strip := func(els []rawElement) {
		for i := range els {
			els[i].XMLName.Space = ""
		}
	}
	strip(f.content.Run.Params)
	for i := range f.content.Run.SpectrumList.Spectrum {
		spec := &f.content.Run.SpectrumList.Spectrum[i]
		strip(spec.ParamGroupRef)
		strip(spec.Rest)
		if spec.ScanList == nil {
			continue
		}
		for j := range spec.ScanList.Scan {
			strip(spec.ScanList.Scan[j].ParamGroupRef)
			strip(spec.ScanList.Scan[j].Rest)
		}
	}
}

// NumSpecs returns the number of spectra
func (f *MzML) NumSpecs() int {
	return len(f.content.Run.SpectrumList.Spectrum)
}

// scanStartTime returns the scan start time CV term of a spectrum.
// Only the first scan of a spectrum is considered; mzML files with
// combined scans list the earliest one first.
func (f *MzML) scanStartTime(scanIndex int) (*CVParam, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return nil, ErrInvalidScanIndex
	}
	sl := f.content.Run.SpectrumList.Spectrum[scanIndex].ScanList
	if sl == nil {
		return nil, ErrNoRetentionTime
	}
	for i := range sl.Scan {
		for j := range sl.Scan[i].CvPar {
			if sl.Scan[i].CvPar[j].Accession == accScanStartTime {
				return &sl.Scan[i].CvPar[j], nil
			}
		}
	}
	return nil, ErrNoRetentionTime
}

// timeScale returns the number of seconds per unit of a time CV term
func timeScale(cvParam *CVParam) (float64, error) {
	switch cvParam.UnitAccession {
	case unitMinute, unitMinuteOld:
		return 60, nil
	case unitSecond, "":
		// Assume seconds when no unit is given
		return 1, nil
	}
	return 0, ErrUnknownUnit
}

// RetentionTime returns the retention time of a spectrum in seconds
func (f *MzML) RetentionTime(scanIndex int) (float64, error) {
	cvParam, err := f.scanStartTime(scanIndex)
	if err != nil {
		return 0.0, err
	}
	scale, err := timeScale(cvParam)
	if err != nil {
		return 0.0, err
	}
	retentionTime, err := strconv.ParseFloat(cvParam.Value, 64)
	if err != nil {
		return 0.0, err
	}
	return retentionTime * scale, nil
}

// MSLevel returns the MS level of a scan
func (f *MzML) MSLevel(scanIndex int) (int, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return 0, ErrInvalidScanIndex
	}

	for _, cvParam := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		if cvParam.Accession == accMSLevel {
			msLevel, err := strconv.ParseInt(cvParam.Value, 10, 64)
			return int(msLevel), err
		}
	}
	return 1, nil // If nothing else, guess it's MS1
}

// ScanID returns the id attribute of a spectrum
func (f *MzML) ScanID(scanIndex int) (string, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return "", ErrInvalidScanIndex
	}
	return f.content.Run.SpectrumList.Spectrum[scanIndex].ID, nil
}
