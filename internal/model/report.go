package model

import (
	"encoding/json"
	"time"
)

// Report is a user-filed complaint about a repository, tag, or user.
type Report struct {
	ID           int64
	Target       Target
	Reason       string
	MaintainLink string
	Info         string
	ReportedBy   int64
	CreatedAt    time.Time
}

// MaxReportInfoLength caps the free-text portion of a report.
const MaxReportInfoLength = 280

// MaxContentIDLength caps the target content id supplied by reporters.
const MaxContentIDLength = 25

func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID           int64      `json:"id"`
		Type         TargetKind `json:"type"`
		ContentID    string     `json:"content_id"`
		Reason       string     `json:"reason"`
		MaintainLink string     `json:"maintain_link,omitempty"`
		Info         string     `json:"info"`
		ReportedBy   int64      `json:"reported_by"`
		CreatedAt    time.Time  `json:"created_at"`
	}{r.ID, r.Target.Kind(), r.Target.ContentID(), r.Reason, r.MaintainLink, r.Info, r.ReportedBy, r.CreatedAt})
}
