package model

import "time"

const (
	AggregateSubmission = "submission"
	AggregateCustomer   = "customer"
)

type OutboxEvent struct {
	ID          int64     `db:"id"`
	Aggregate   string    `db:"aggregate"`    // submission | customer
	AggregateID string    `db:"aggregate_id"` // row id as string
	Topic       string    `db:"topic"`
	Payload     []byte    `db:"payload"`
	CreatedAt   time.Time `db:"created_at"`
}
