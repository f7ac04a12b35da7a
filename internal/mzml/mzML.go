package mzml

import (
	"encoding/xml"
	"errors"
)

// MzML wraps the contents of the mzML file
type MzML struct {
	content mzMLContent
}

// The mzML content that we read. Only the spectrum attributes that
// RT alignment needs are parsed, everything else is kept as raw XML
// so that it can be written back unchanged.
type mzMLContent struct {
	XMLName                     xml.Name            `xml:"http://psi.hupo.org/ms/mzml mzML"`
	CvList                      rawList             `xml:"cvList"`
	FileDescription             rawList             `xml:"fileDescription"`
	ReferenceableParamGroupList *rawList            `xml:"referenceableParamGroupList"`
	SampleList                  *rawList            `xml:"sampleList"`
	SoftwareList                *softwareList       `xml:"softwareList"`
	ScanSettingsList            *rawList            `xml:"scanSettingsList"`
	InstrumentConfigurationList *rawList            `xml:"instrumentConfigurationList"`
	DataProcessingList          *dataProcessingList `xml:"dataProcessingList"`
	Run                         run                 `xml:"run"`
}

// We define a separate struct for writing XML because it is not possible
// to write namespace info otherwise
type mzMLContentWrite struct {
	XMLName                     xml.Name            `xml:"http://psi.hupo.org/ms/mzml mzML"`
	Sl1                         string              `xml:"xsi:schemaLocation,attr"`
	Version                     string              `xml:"version,attr"`
	Sl2                         string              `xml:"xmlns:xsi,attr"`
	CvList                      rawList             `xml:"cvList"`
	FileDescription             rawList             `xml:"fileDescription"`
	ReferenceableParamGroupList *rawList            `xml:"referenceableParamGroupList,omitempty"`
	SampleList                  *rawList            `xml:"sampleList,omitempty"`
	SoftwareList                *softwareList       `xml:"softwareList"`
	ScanSettingsList            *rawList            `xml:"scanSettingsList,omitempty"`
	InstrumentConfigurationList *rawList            `xml:"instrumentConfigurationList"`
	DataProcessingList          *dataProcessingList `xml:"dataProcessingList"`
	Run                         run                 `xml:"run"`
}

// rawList is an element whose children are passed through untouched
type rawList struct {
	Count int    `xml:"count,attr,omitempty"`
	XML   []byte `xml:",innerxml"`
}

// rawElement is an element of any name, passed through untouched
type rawElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	XML     []byte     `xml:",innerxml"`
}

type softwareList struct {
	Count    int        `xml:"count,attr,omitempty"`
	Software []software `xml:"software"`
}

type software struct {
	ID      string    `xml:"id,attr,omitempty"`
	Version string    `xml:"version,attr,omitempty"`
	CvPar   []CVParam `xml:"cvParam,omitempty"`
}

type dataProcessingList struct {
	Count          int              `xml:"count,attr,omitempty"`
	DataProcessing []DataProcessing `xml:"dataProcessing,omitempty"`
}

// DataProcessing contains info for the correspondingly named
// tag in mzML
type DataProcessing struct {
	ID             string             `xml:"id,attr,omitempty"`
	ProcessingMeth []ProcessingMethod `xml:"processingMethod"`
}

// ProcessingMethod contains info for the correspondingly named
// tag in mzML
type ProcessingMethod struct {
	Order       int         `xml:"order,attr"`
	SoftwareRef string      `xml:"softwareRef,attr,omitempty"`
	CvPar       []CVParam   `xml:"cvParam,omitempty"`
	UserPar     []UserParam `xml:"userParam,omitempty"`
}

type run struct {
	ID                                string            `xml:"id,attr,omitempty"`
	DefaultInstrumentConfigurationRef string            `xml:"defaultInstrumentConfigurationRef,attr,omitempty"`
	StartTimeStamp                    string            `xml:"startTimeStamp,attr,omitempty"`
	DefaultSourceFileRef              string            `xml:"defaultSourceFileRef,attr,omitempty"`
	SampleRef                         string            `xml:"sampleRef,attr,omitempty"`
	Params                            []rawElement      `xml:",any"`
	SpectrumList                      spectrumList      `xml:"spectrumList"`
	ChromatogramList                  *chromatogramList `xml:"chromatogramList,omitempty"`
}

type spectrumList struct {
	Count                    int        `xml:"count,attr"`
	DefaultDataProcessingRef string     `xml:"defaultDataProcessingRef,attr,omitempty"`
	Spectrum                 []spectrum `xml:"spectrum"`
}

type chromatogramList struct {
	Count                    int    `xml:"count,attr"`
	DefaultDataProcessingRef string `xml:"defaultDataProcessingRef,attr,omitempty"`
	XML                      []byte `xml:",innerxml"`
}

// spectrum keeps its children in schema order: param group refs,
// cvParams, userParams, scanList, then everything else (precursors,
// products, binary data) as raw XML
type spectrum struct {
	Index              int          `xml:"index,attr"`
	ID                 string       `xml:"id,attr"`
	SpotID             string       `xml:"spotID,attr,omitempty"`
	DefaultArrayLength int64        `xml:"defaultArrayLength,attr"`
	DataProcessingRef  string       `xml:"dataProcessingRef,attr,omitempty"`
	SourceFileRef      string       `xml:"sourceFileRef,attr,omitempty"`
	ParamGroupRef      []rawElement `xml:"referenceableParamGroupRef,omitempty"`
	CvPar              []CVParam    `xml:"cvParam,omitempty"`
	UserPar            []UserParam  `xml:"userParam,omitempty"`
	ScanList           *scanList    `xml:"scanList,omitempty"`
	Rest               []rawElement `xml:",any"`
}

type scanList struct {
	Count int       `xml:"count,attr,omitempty"`
	CvPar []CVParam `xml:"cvParam,omitempty"`
	Scan  []scan    `xml:"scan"`
}

type scan struct {
	SpectrumRef    string       `xml:"spectrumRef,attr,omitempty"`
	SourceFileRef  string       `xml:"sourceFileRef,attr,omitempty"`
	ExternalSpecID string       `xml:"externalSpectrumID,attr,omitempty"`
	InstrConfRef   string       `xml:"instrumentConfigurationRef,attr,omitempty"`
	ParamGroupRef  []rawElement `xml:"referenceableParamGroupRef,omitempty"`
	CvPar          []CVParam    `xml:"cvParam,omitempty"`
	UserPar        []UserParam  `xml:"userParam,omitempty"`
	Rest           []rawElement `xml:",any"`
}

// UserParam contains values and attributes of a mzML user parameter
type UserParam struct {
	Name  string `xml:"name,attr,omitempty"`
	Value string `xml:"value,attr,omitempty"`
	Type  string `xml:"type,attr,omitempty"`
}

// CVParam contains values and attributes of a mzML Controlled Vocabulary term
// (http://www.peptideatlas.org/tmp/mzML1.1.0.html)
type CVParam struct {
	CvRef         string `xml:"cvRef,attr,omitempty"`
	Accession     string `xml:"accession,attr,omitempty"`
	Name          string `xml:"name,attr,omitempty"`
	Value         string `xml:"value,attr,omitempty"`
	UnitCvRef     string `xml:"unitCvRef,attr,omitempty"`
	UnitAccession string `xml:"unitAccession,attr,omitempty"`
	UnitName      string `xml:"unitName,attr,omitempty"`
}

// CV terms used by this package
const (
	accScanStartTime = "MS:1000016"
	accMSLevel       = "MS:1000511"
	unitSecond       = "UO:0000010"
	unitMinute       = "UO:0000031"
	unitMinuteOld    = "MS:1000038"
)

var (
	// ErrInvalidScanIndex means an invalid scan index is supplied
	ErrInvalidScanIndex = errors.New("MzML: invalid scan index")
	// ErrUnknownUnit means the file contains a unit that the software cannot handle
	ErrUnknownUnit = errors.New("MzML: can't handle unit")
	// ErrNoRetentionTime means a spectrum has no scan start time
	ErrNoRetentionTime = errors.New("MzML: spectrum has no scan start time")
	// ErrNoMzML means the input contains no mzML element
	ErrNoMzML = errors.New("MzML: no mzML element found")
)
