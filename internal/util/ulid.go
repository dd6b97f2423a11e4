package util

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ulid.Monotonic is not safe for concurrent use.
var (
	entropyMu sync.Mutex
	entropy   io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// New generates a new ULID string
func New() string { return NewAt(time.Now()) }

// NewAt generates a ULID for t; IDs produced within the same millisecond still sort in call order.
func NewAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

const accessCodePrefix = "CUST"

// NewAccessCode returns a customer access code, e.g. CUST01J1Z3K8...
func NewAccessCode() string { return accessCodePrefix + New() }
