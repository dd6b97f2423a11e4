package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/clipgate/internal/kafka"
	"github.com/jmehdipour/clipgate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type chanSource struct {
	in chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func newChanSource() *chanSource { return &chanSource{in: make(chan kafka.Message, 64)} }

func (s *chanSource) Fetch(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-s.in:
		return m, nil
	}
}

func (s *chanSource) Commit(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.committed = append(s.committed, m.Offset)
	}
	return nil
}

func (s *chanSource) offsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

type memSink struct {
	mu       sync.Mutex
	rows     []model.SubmissionEvent
	failures int
}

func (s *memSink) InsertBatch(_ context.Context, events []model.SubmissionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("clickhouse unavailable")
	}
	s.rows = append(s.rows, events...)
	return nil
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func envelopeMsg(t *testing.T, offset int64, env model.Envelope) kafka.Message {
	t.Helper()
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

var occurred = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

func accepted(customerID int64, period model.Period) model.Envelope {
	return model.Envelope{
		Type:        model.EventSubmissionAccepted,
		CustomerID:  customerID,
		AccessCode:  "CUSTA",
		Period:      period,
		ArtifactRef: "CUSTA/" + period.String() + "/x-clip.mp4",
		OccurredAt:  occurred,
	}
}

func newTestProjector(t *testing.T, src Source, sink Sink) *Projector {
	p := NewProjector(src, sink, zaptest.NewLogger(t))
	p.BatchSize = 3
	p.BatchWait = 20 * time.Millisecond
	p.RetryWait = 10 * time.Millisecond
	return p
}

func runAsync(p *Projector) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	return cancel, done
}

func TestProjector_WritesThenCommits(t *testing.T) {
	src, sink := newChanSource(), &memSink{}
	p := newTestProjector(t, src, sink)
	cancel, done := runAsync(p)

	src.in <- envelopeMsg(t, 1, accepted(1, "2024-05"))
	src.in <- kafka.Message{Offset: 2, Value: []byte("{not json")}
	src.in <- envelopeMsg(t, 3, accepted(2, "2024-06"))
	src.in <- envelopeMsg(t, 4, model.Envelope{Type: model.EventCustomerRemoved, CustomerID: 1, OccurredAt: occurred})

	require.Eventually(t, func() bool { return len(src.offsets()) == 4 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 3, sink.count())
	assert.ElementsMatch(t, []int64{1, 2, 3, 4}, src.offsets())
	assert.Equal(t, "submission.accepted", sink.rows[0].EventType)
	assert.Equal(t, "2024-05", sink.rows[0].PeriodKey)
	assert.Equal(t, "customer.removed", sink.rows[2].EventType)
}

func TestProjector_RetriesBeforeCommitting(t *testing.T) {
	src, sink := newChanSource(), &memSink{failures: 2}
	p := newTestProjector(t, src, sink)
	cancel, done := runAsync(p)

	src.in <- envelopeMsg(t, 7, accepted(1, "2024-06"))

	require.Eventually(t, func() bool { return len(src.offsets()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 1, sink.count())
	assert.Zero(t, sink.failures)
}

func TestProjector_FlushesOnShutdown(t *testing.T) {
	src, sink := newChanSource(), &memSink{}
	p := newTestProjector(t, src, sink)
	p.BatchWait = time.Hour
	cancel, done := runAsync(p)

	src.in <- envelopeMsg(t, 1, accepted(1, "2024-06"))
	require.Eventually(t, func() bool { return len(src.in) == 0 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, []int64{1}, src.offsets())
}

func TestProjector_RequiresSourceAndSink(t *testing.T) {
	p := NewProjector(nil, nil, nil)
	assert.Error(t, p.Run(context.Background()))
}

func TestDecodeEvent(t *testing.T) {
	env := accepted(5, "2024-06")
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	quoted, err := json.Marshal(string(raw))
	require.NoError(t, err)

	wrapped := []byte(`{"schema":{"type":"string"},"payload":` + string(quoted) + `}`)

	for name, value := range map[string][]byte{"bare": raw, "string": quoted, "connect": wrapped} {
		t.Run(name, func(t *testing.T) {
			ev, err := DecodeEvent(value)
			require.NoError(t, err)
			assert.Equal(t, model.SubmissionEvent{
				EventType:   "submission.accepted",
				CustomerID:  5,
				AccessCode:  "CUSTA",
				PeriodKey:   "2024-06",
				ArtifactRef: env.ArtifactRef,
				OccurredAt:  occurred,
			}, ev)
		})
	}
}

func TestDecodeEvent_Rejects(t *testing.T) {
	bad := [][]byte{
		nil,
		[]byte(`   `),
		[]byte(`{"type":"sms.sent","customer_id":1}`),
		[]byte(`{"type":"submission.accepted","customer_id":1,"period":"2024-13"}`),
		[]byte(`{"type":"submission.accepted","customer_id":0,"period":"2024-06"}`),
		[]byte(`{"type":"customer.removed"}`),
		[]byte(`"unterminated`),
	}
	for _, v := range bad {
		_, err := DecodeEvent(v)
		assert.Error(t, err, string(v))
	}
}
