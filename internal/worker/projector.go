package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/clipgate/internal/kafka"
	"github.com/jmehdipour/clipgate/internal/metrics"
	"github.com/jmehdipour/clipgate/internal/model"
	"go.uber.org/zap"
)

// Source is the subset of kafka.Consumer the projector needs.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// Sink receives projected rows (ClickHouse submission_events).
type Sink interface {
	InsertBatch(ctx context.Context, events []model.SubmissionEvent) error
}

// Projector:
// - fetches outbox envelopes from Kafka (Debezium outbox router),
// - batches them into SubmissionEvent rows,
// - writes a batch to ClickHouse, then commits its offsets.
//
// Delivery is at-least-once; the ClickHouse table deduplicates.
type Projector struct {
	Source Source
	Sink   Sink
	Log    *zap.Logger

	BatchSize  int           // max buffered rows per flush
	BatchWait  time.Duration // max time to wait before flush
	RetryWait  time.Duration // pause between failed flushes
	FetchPause time.Duration // pause after a fetch error
}

func NewProjector(src Source, sink Sink, log *zap.Logger) *Projector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Projector{
		Source:     src,
		Sink:       sink,
		Log:        log,
		BatchSize:  200,
		BatchWait:  500 * time.Millisecond,
		RetryWait:  time.Second,
		FetchPause: 200 * time.Millisecond,
	}
}

type batch struct {
	events []model.SubmissionEvent
	msgs   []kafka.Message // every fetched message, including skipped ones
}

func (b *batch) empty() bool { return len(b.msgs) == 0 }

func (b *batch) reset() {
	b.events = b.events[:0]
	b.msgs = b.msgs[:0]
}

// Run blocks until ctx is cancelled. Pending rows are flushed on the way out.
func (p *Projector) Run(ctx context.Context) error {
	if p.Source == nil || p.Sink == nil {
		return errors.New("projector: source and sink are required")
	}
	if p.BatchSize <= 0 {
		p.BatchSize = 200
	}
	if p.BatchWait <= 0 {
		p.BatchWait = 500 * time.Millisecond
	}
	if p.RetryWait <= 0 {
		p.RetryWait = time.Second
	}

	msgCh := make(chan kafka.Message, p.BatchSize)
	go p.fetch(ctx, msgCh)

	tick := time.NewTicker(p.BatchWait)
	defer tick.Stop()

	var b batch
	for {
		select {
		case <-ctx.Done():
			p.drain(&b)
			return nil

		case m, ok := <-msgCh:
			if !ok {
				p.drain(&b)
				return nil
			}
			p.add(&b, m)
			if len(b.msgs) >= p.BatchSize {
				p.flushUntilDone(ctx, &b)
			}

		case <-tick.C:
			p.flushUntilDone(ctx, &b)
		}
	}
}

func (p *Projector) fetch(ctx context.Context, out chan<- kafka.Message) {
	defer close(out)
	for {
		m, err := p.Source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.FetchPause):
			}
			continue
		}
		select {
		case out <- m:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Projector) add(b *batch, m kafka.Message) {
	b.msgs = append(b.msgs, m)
	ev, err := DecodeEvent(m.Value)
	if err != nil {
		// poison → commit with the batch, skip
		p.Log.Warn("skip undecodable event",
			zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}
	b.events = append(b.events, ev)
}

// flushUntilDone retries a failed flush; offsets are only committed once the
// rows are written.
func (p *Projector) flushUntilDone(ctx context.Context, b *batch) {
	for {
		err := p.flush(ctx, b)
		if err == nil || ctx.Err() != nil {
			return
		}
		p.Log.Error("projector flush failed", zap.Int("rows", len(b.events)), zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.RetryWait):
		}
	}
}

// drain makes one last attempt after shutdown was requested.
func (p *Projector) drain(b *batch) {
	if b.empty() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.flush(ctx, b); err != nil {
		p.Log.Error("projector final flush failed", zap.Int("rows", len(b.events)), zap.Error(err))
	}
}

func (p *Projector) flush(ctx context.Context, b *batch) error {
	if b.empty() {
		return nil
	}
	if len(b.events) > 0 {
		if err := p.Sink.InsertBatch(ctx, b.events); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		for _, ev := range b.events {
			metrics.ProjectedEventsTotal.WithLabelValues(ev.EventType).Inc()
		}
	}
	if err := p.Source.Commit(ctx, b.msgs...); err != nil {
		// rows are in; the next delivery of these offsets is deduplicated downstream
		p.Log.Warn("kafka commit failed", zap.Error(err))
	}
	p.Log.Debug("projector flushed", zap.Int("rows", len(b.events)), zap.Int("messages", len(b.msgs)))
	b.reset()
	return nil
}

// DecodeEvent turns an outbox message value into a projection row. It accepts
// the bare envelope, the envelope as a JSON string (unexpanded outbox payload)
// and the JsonConverter {"schema":..,"payload":..} wrapping.
func DecodeEvent(value []byte) (model.SubmissionEvent, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return model.SubmissionEvent{}, errors.New("empty message")
	}

	if value[0] == '"' {
		var inner string
		if err := json.Unmarshal(value, &inner); err != nil {
			return model.SubmissionEvent{}, fmt.Errorf("decode string payload: %w", err)
		}
		return DecodeEvent([]byte(inner))
	}

	var probe struct {
		Type    model.EventType `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(value, &probe); err != nil {
		return model.SubmissionEvent{}, fmt.Errorf("decode envelope: %w", err)
	}
	if probe.Type == "" && len(probe.Payload) > 0 {
		return DecodeEvent(probe.Payload)
	}

	var env model.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return model.SubmissionEvent{}, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Type {
	case model.EventSubmissionAccepted:
		if env.CustomerID <= 0 || !env.Period.Valid() {
			return model.SubmissionEvent{}, fmt.Errorf("incomplete %s event", env.Type)
		}
	case model.EventCustomerRemoved:
		if env.CustomerID <= 0 {
			return model.SubmissionEvent{}, fmt.Errorf("incomplete %s event", env.Type)
		}
	default:
		return model.SubmissionEvent{}, fmt.Errorf("unknown event type %q", env.Type)
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now().UTC()
	}

	return model.SubmissionEvent{
		EventType:   string(env.Type),
		CustomerID:  env.CustomerID,
		AccessCode:  env.AccessCode,
		PeriodKey:   env.Period.String(),
		ArtifactRef: env.ArtifactRef,
		OccurredAt:  env.OccurredAt.UTC(),
	}, nil
}
