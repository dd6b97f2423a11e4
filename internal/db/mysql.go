package db

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/clipgate/internal/config"
	"github.com/jmoiron/sqlx"
)

// NewMySQLConnection opens the primary store. parseTime is forced on so
// DATETIME columns scan into time.Time.
func NewMySQLConnection(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("empty MySQL DSN")
	}

	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse MySQL DSN: %w", err)
	}
	mc.ParseTime = true
	cfg.DSN = mc.FormatDSN()

	return openPooled("mysql", cfg, 5*time.Second)
}
