package model

import "time"

type Customer struct {
	ID         int64     `db:"id"          json:"id"`
	Name       string    `db:"name"        json:"name"`
	AccessCode string    `db:"access_code" json:"access_code"` // immutable, unique
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}
