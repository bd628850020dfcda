package lhinterface

import (
	"sort"
	"time"

	"github.com/roadmap-automation/lh-manager-sub000/pkg/methods"
)

// dateFormat is the ISO-8601-with-microseconds layout the robot expects.
const dateFormat = "2006-01-02T15:04:05.000000"

// SampleList is the vendor wire format consumed by the pipetting robot.
// Columns is nil in header-only listings.
type SampleList struct {
	Name        string               `json:"name"`
	ID          int                  `json:"id"`
	CreatedBy   string               `json:"createdBy"`
	Description string               `json:"description"`
	CreateDate  string               `json:"createDate"`
	StartDate   string               `json:"startDate"`
	EndDate     string               `json:"endDate"`
	Columns     []map[string]*string `json:"columns"`
}

// buildSampleList converts a job's cached rows into the vendor format. The
// column set is the union of every row's keys; rows missing a key carry an
// explicit null.
func buildSampleList(job *LHJob, full bool) SampleList {
	lhID := 0
	if job.LHID != nil {
		lhID = *job.LHID
	}
	created := job.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	list := SampleList{
		Name:        job.SampleName,
		ID:          lhID,
		CreatedBy:   "System",
		Description: job.SampleDesc,
		CreateDate:  created.Format(dateFormat),
		StartDate:   created.Format(dateFormat),
		EndDate:     created.Format(dateFormat),
	}
	if !full {
		return list
	}
	list.Columns = nullFilledColumns(job.Rows)
	return list
}

func nullFilledColumns(rows []methods.VendorRow) []map[string]*string {
	keys := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			keys[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	columns := make([]map[string]*string, len(rows))
	for i, row := range rows {
		col := make(map[string]*string, len(names))
		for _, k := range names {
			if v, ok := row[k]; ok {
				value := v
				col[k] = &value
			} else {
				col[k] = nil
			}
		}
		columns[i] = col
	}
	return columns
}
