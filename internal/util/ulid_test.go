package util

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAtMonotonic(t *testing.T) {
	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	prev := NewAt(ts)
	for i := 0; i < 100; i++ {
		next := NewAt(ts)
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestNewAccessCodeUnique(t *testing.T) {
	const n = 500
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code := NewAccessCode()
			mu.Lock()
			seen[code] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for code := range seen {
		assert.True(t, strings.HasPrefix(code, "CUST"))
		assert.Len(t, code, 4+26)
		break
	}
}
