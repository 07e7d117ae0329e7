// Package events defines the payloads published for downstream consumers.
package events

import "time"

// RecordSubmitted is emitted once an office report has been persisted.
type RecordSubmitted struct {
	RecordID      string    `json:"record_id"`
	Office        string    `json:"office"`
	PeriodKey     string    `json:"period_key"`
	Consultations int       `json:"consultations"`
	FollowUps     int       `json:"follow_ups"`
	Messages      int       `json:"messages"`
	Calls         int       `json:"calls"`
	Revenue       string    `json:"revenue"`
	CreatedAt     time.Time `json:"created_at"`
}
