package mzml

import (
	"encoding/xml"
	"io"
	"math"
	"strconv"
)

func (f *MzML) Write(writer io.Writer) error {
	if _, err := io.WriteString(writer,
		`<?xml version="1.0" encoding="utf-8"?>
`); err != nil {
		return err
	}
	enc := xml.NewEncoder(writer)
	// Indent only works if the indent string is not empty,
	// resulting in a single space indent.
	enc.Indent(` `, `  `)
	var content mzMLContentWrite

	content.XMLName = f.content.XMLName
	content.Sl1 = "http://psi.hupo.org/ms/mzml http://psidev.info/files/ms/mzML/xsd/mzML1.1.0.xsd"
	content.Version = "1.1.0"
	content.Sl2 = "http://www.w3.org/2001/XMLSchema-instance"
	content.CvList = f.content.CvList
	content.FileDescription = f.content.FileDescription
	content.ReferenceableParamGroupList = f.content.ReferenceableParamGroupList
	content.SampleList = f.content.SampleList
	content.SoftwareList = f.content.SoftwareList
	content.ScanSettingsList = f.content.ScanSettingsList
	content.InstrumentConfigurationList = f.content.InstrumentConfigurationList
	content.DataProcessingList = f.content.DataProcessingList
	content.Run = f.content.Run

	if err := enc.Encode(&content); err != nil {
		return err
	}
	_, err := io.WriteString(writer, "\n")
	return err
}

// SetRetentionTime sets the retention time (in seconds) of a spectrum.
// The value is stored in the unit that the file uses for that spectrum.
func (f *MzML) SetRetentionTime(scanIndex int, seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return strconv.ErrRange
	}
	cvParam, err := f.scanStartTime(scanIndex)
	if err != nil {
		return err
	}
	scale, err := timeScale(cvParam)
	if err != nil {
		return err
	}
	cvParam.Value = strconv.FormatFloat(seconds/scale, 'f', -1, 64)
	return nil
}

// AppendSoftwareInfo adds info to the SoftwareList tag of the mzML file
func (f *MzML) AppendSoftwareInfo(id string, version string) {
	if f.content.SoftwareList == nil {
		f.content.SoftwareList = &softwareList{}
	}
	f.content.SoftwareList.Software = append(f.content.SoftwareList.Software,
		software{ID: id, Version: version})
	f.content.SoftwareList.Count = len(f.content.SoftwareList.Software)
}

// AppendDataProcessing adds info to the DataProcessing tag of the mzML file
func (f *MzML) AppendDataProcessing(proc DataProcessing) {
	if f.content.DataProcessingList == nil {
		f.content.DataProcessingList = &dataProcessingList{}
	}
	f.content.DataProcessingList.DataProcessing = append(
		f.content.DataProcessingList.DataProcessing, proc)
	f.content.DataProcessingList.Count = len(f.content.DataProcessingList.DataProcessing)
}
