package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrDuplicate  = errors.New("duplicate key")
	ErrForeignKey = errors.New("referenced row missing")
	// ErrRetryable is a lock wait timeout or deadlock; the statement was
	// rolled back and may succeed if repeated.
	ErrRetryable = errors.New("transient lock conflict")
)

// MySQL server error numbers.
const (
	erDupEntry          = 1062
	erNoReferencedRow   = 1452
	erNoReferencedRowV1 = 1216
	erLockWaitTimeout   = 1205
	erLockDeadlock      = 1213
)

// mapMySQLError turns constraint violations into repository sentinels; the
// unique/foreign keys are the race-resolution points of concurrent writers.
func mapMySQLError(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case erDupEntry:
		return fmt.Errorf("%w: %s", ErrDuplicate, me.Message)
	case erNoReferencedRow, erNoReferencedRowV1:
		return fmt.Errorf("%w: %s", ErrForeignKey, me.Message)
	case erLockWaitTimeout, erLockDeadlock:
		return fmt.Errorf("%w: %s", ErrRetryable, me.Message)
	default:
		return err
	}
}
