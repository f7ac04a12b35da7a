// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package align

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrInvalidPayload is wrapped by every error caused by a malformed
	// input payload
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrMissingGroups means the payload has no "groups" field
	ErrMissingGroups = fmt.Errorf("%w: missing field \"groups\"", ErrInvalidPayload)
	// ErrMissingRTs means the payload has no "rts" field
	ErrMissingRTs = fmt.Errorf("%w: missing field \"rts\"", ErrInvalidPayload)
)

// Occurrence is one detection of a group: sample id to observed RT
type Occurrence map[string]float64

// Input is the payload handed to the aligner.
// Groups maps a group id to its occurrences, RTs maps a sample id to the
// retention times of all its scans, in scan order.
type Input struct {
	Groups map[string][]Occurrence `json:"groups"`
	RTs    map[string][]float64    `json:"rts"`
}

// Output is the result of one alignment.
// Groups maps sample id -> group id -> corrected RT, Samples maps
// sample id -> corrected scan RTs, positionally aligned with Input.RTs.
type Output struct {
	Groups  map[string]map[string]float64 `json:"groups"`
	Samples map[string][]float64          `json:"samples"`
}

type rawInput struct {
	Groups json.RawMessage `json:"groups"`
	RTs    json.RawMessage `json:"rts"`
}

// ReadInput reads and validates one payload
func ReadInput(r io.Reader) (*Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseInput(data)
}

// ParseInput decodes and validates one payload. No alignment is attempted
// on a payload that fails here.
func ParseInput(data []byte) (*Input, error) {
	var raw rawInput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if isAbsent(raw.Groups) {
		return nil, ErrMissingGroups
	}
	if isAbsent(raw.RTs) {
		return nil, ErrMissingRTs
	}

	// Pointers, so that JSON null is detected instead of becoming 0
	var groups map[string][]map[string]*float64
	if err := json.Unmarshal(raw.Groups, &groups); err != nil {
		return nil, fmt.Errorf("%w: groups: %v", ErrInvalidPayload, err)
	}
	var rts map[string][]*float64
	if err := json.Unmarshal(raw.RTs, &rts); err != nil {
		return nil, fmt.Errorf("%w: rts: %v", ErrInvalidPayload, err)
	}

	in := &Input{
		Groups: make(map[string][]Occurrence, len(groups)),
		RTs:    make(map[string][]float64, len(rts)),
	}
	for g, occs := range groups {
		nRT := 0
		list := make([]Occurrence, len(occs))
		for i, occ := range occs {
			list[i] = make(Occurrence, len(occ))
			for s, rt := range occ {
				if rt == nil {
					return nil, fmt.Errorf("%w: group %q occurrence %d: null rt for sample %q",
						ErrInvalidPayload, g, i, s)
				}
				list[i][s] = *rt
				nRT++
			}
		}
		if nRT == 0 {
			return nil, fmt.Errorf("%w: group %q has no retention times", ErrInvalidPayload, g)
		}
		in.Groups[g] = list
	}
	for s, scans := range rts {
		list := make([]float64, len(scans))
		for i, rt := range scans {
			if rt == nil {
				return nil, fmt.Errorf("%w: sample %q scan %d: null rt", ErrInvalidPayload, s, i)
			}
			list[i] = *rt
		}
		in.RTs[s] = list
	}
	return in, nil
}

func isAbsent(m json.RawMessage) bool {
	return len(m) == 0 || bytes.Equal(bytes.TrimSpace(m), []byte("null"))
}

// newOutput makes an Output that encodes empty collections as {} and []
func newOutput(samples []string) *Output {
	return &Output{
		Groups:  make(map[string]map[string]float64, len(samples)),
		Samples: make(map[string][]float64, len(samples)),
	}
}

// WriteJSON writes the output payload as a single line of JSON
func (o *Output) WriteJSON(w io.Writer) error {
	return json.NewEncoder(w).Encode(o)
}
