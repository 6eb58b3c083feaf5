package model

import (
	"encoding/json"
	"time"
)

// Log is an append-only audit record of privileged actions: tag renames,
// repository deletions, bans, report resolutions.
type Log struct {
	ID        int64
	Action    string
	Target    Target
	EnactedBy int64
	CreatedAt time.Time
}

func (l Log) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        int64      `json:"id"`
		Action    string     `json:"action"`
		Type      TargetKind `json:"type"`
		ContentID string     `json:"content_id"`
		EnactedBy int64      `json:"enacted_by"`
		CreatedAt time.Time  `json:"created_at"`
	}{l.ID, l.Action, l.Target.Kind(), l.Target.ContentID(), l.EnactedBy, l.CreatedAt})
}
