// Package lhinterface drives the pipetting robot: a single-slot job machine
// that renders method clusters into the vendor sample-list wire format,
// tracks validation and result reports from the robot, and applies
// successful runs to the live bed layout.
package lhinterface

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/methods"
)

// ValidationStatus is the robot's verdict on a submitted sample list.
type ValidationStatus string

const (
	ValidationUnvalidated ValidationStatus = "UNVALIDATED"
	ValidationSuccess     ValidationStatus = "SUCCESS"
	ValidationFail        ValidationStatus = "FAIL"
)

// ResultStatus summarizes the robot's per-method result reports.
type ResultStatus string

const (
	ResultEmpty      ResultStatus = "EMPTY"
	ResultIncomplete ResultStatus = "INCOMPLETE"
	ResultSuccess    ResultStatus = "SUCCESS"
	ResultFail       ResultStatus = "FAIL"
)

// successMarker is the substring the robot embeds in a notification when a
// method ran to completion.
const successMarker = "completed successfully"

// Validation is the robot's validation report for a sample list.
type Validation struct {
	ValidationType ValidationStatus `json:"validationType"`
	Message        string           `json:"message,omitempty"`
}

// ResultReport is one per-method result notification from the robot.
type ResultReport struct {
	MethodNumber  int               `json:"method_number"`
	MethodName    string            `json:"method_name"`
	Notifications map[string]string `json:"notifications"`
}

// Success reports whether any notification carries the completion marker.
func (r ResultReport) Success() bool {
	for _, v := range r.Notifications {
		if strings.Contains(v, successMarker) {
			return true
		}
	}
	return false
}

// LHJob is one sample list submitted to the robot: a cluster of methods that
// render vendor rows, plus the robot's validation and result reports.
type LHJob struct {
	ID         string              `json:"id"`
	LHID       *int                `json:"LH_id"`
	Methods    []methods.Method    `json:"methods"`
	Rows       []methods.VendorRow `json:"columns"`
	Validation *Validation         `json:"validation,omitempty"`
	Results    []ResultReport      `json:"results"`
	SampleName string              `json:"sample_name"`
	SampleDesc string              `json:"sample_description"`
	Created    time.Time           `json:"created"`
}

// NewJob wraps a method list into a job for one sample.
func NewJob(sampleName, sampleDesc string, ms []methods.Method) *LHJob {
	return &LHJob{
		ID:         uuid.NewString(),
		Methods:    ms,
		SampleName: sampleName,
		SampleDesc: sampleDesc,
		Created:    time.Now().UTC(),
	}
}

// ValidationStatus returns UNVALIDATED until the robot reports.
func (j *LHJob) ValidationStatus() ValidationStatus {
	if j.Validation == nil {
		return ValidationUnvalidated
	}
	return j.Validation.ValidationType
}

// ResultStatus derives the job outcome from the result reports received so
// far: EMPTY before any report, FAIL on any unsuccessful report, INCOMPLETE
// until every rendered row has reported, SUCCESS after.
func (j *LHJob) ResultStatus() ResultStatus {
	if len(j.Results) == 0 {
		return ResultEmpty
	}
	for _, r := range j.Results {
		if !r.Success() {
			return ResultFail
		}
	}
	if len(j.Results) < len(j.Rows) {
		return ResultIncomplete
	}
	return ResultSuccess
}

// RenderRows renders the job's methods to stringified sample-list rows and
// caches them on the job; one result report is expected per row.
func (j *LHJob) RenderRows(layout *bedlayout.LHBedLayout) []methods.VendorRow {
	var rows []methods.VendorRow
	for _, m := range j.Methods {
		if vr, ok := m.(methods.VendorRenderer); ok {
			rows = append(rows, vr.RenderVendor(j.SampleName, j.SampleDesc, layout)...)
		}
	}
	j.Rows = rows
	return rows
}

func (j *LHJob) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         string              `json:"id"`
		LHID       *int                `json:"LH_id"`
		Methods    json.RawMessage     `json:"methods"`
		Rows       []methods.VendorRow `json:"columns"`
		Validation *Validation         `json:"validation"`
		Results    []ResultReport      `json:"results"`
		SampleName string              `json:"sample_name"`
		SampleDesc string              `json:"sample_description"`
		Created    time.Time           `json:"created"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding job: %w", err)
	}
	j.ID = raw.ID
	j.LHID = raw.LHID
	j.Rows = raw.Rows
	j.Validation = raw.Validation
	j.Results = raw.Results
	j.SampleName = raw.SampleName
	j.SampleDesc = raw.SampleDesc
	j.Created = raw.Created
	j.Methods = nil
	if len(raw.Methods) > 0 {
		ms, err := methods.Default.UnmarshalList(raw.Methods)
		if err != nil {
			return err
		}
		j.Methods = ms
	}
	return nil
}
