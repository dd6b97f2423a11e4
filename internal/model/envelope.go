package model

import "time"

type EventType string

const (
	EventSubmissionAccepted EventType = "submission.accepted"
	EventCustomerRemoved    EventType = "customer.removed"
)

// Envelope is the payload published to Kafka (via Debezium outbox SMT).
type Envelope struct {
	Type        EventType `json:"type"`
	CustomerID  int64     `json:"customer_id"`
	AccessCode  string    `json:"access_code,omitempty"`
	Period      Period    `json:"period,omitempty"`
	ArtifactRef string    `json:"artifact_ref,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// SubmissionEvent is a row of the ClickHouse projection.
type SubmissionEvent struct {
	EventType   string    `db:"event_type"   json:"event_type"`
	CustomerID  int64     `db:"customer_id"  json:"customer_id"`
	AccessCode  string    `db:"access_code"  json:"access_code"`
	PeriodKey   string    `db:"period_key"   json:"period"`
	ArtifactRef string    `db:"artifact_ref" json:"artifact_ref"`
	OccurredAt  time.Time `db:"occurred_at"  json:"occurred_at"`
}
