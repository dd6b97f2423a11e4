package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/jmehdipour/clipgate/internal/metrics"
	"github.com/jmehdipour/clipgate/internal/model"
	"github.com/jmehdipour/clipgate/internal/repository"
	"github.com/jmehdipour/clipgate/internal/storage"
	"github.com/jmehdipour/clipgate/internal/util"
	"go.uber.org/zap"
)

var (
	ErrAlreadySubmitted = errors.New("already submitted for this period")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrStorageFailure   = errors.New("storage failure")
	ErrEmptyPayload     = errors.New("empty payload")
)

const (
	DefaultStoreTimeout = 2 * time.Minute
	maxFilenameLen      = 100
)

type Customers interface {
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
}

type Submissions interface {
	Exists(ctx context.Context, customerID int64, period model.Period) (bool, error)
	Record(ctx context.Context, s *model.Submission, payload []byte) error
}

// Service enforces one accepted submission per customer per period.
type Service struct {
	customers    Customers
	submissions  Submissions
	artifacts    storage.Store
	log          *zap.Logger
	now          func() time.Time
	storeTimeout time.Duration
}

type Option func(*Service)

// WithClock sets the server clock; its location decides the period boundary.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

func New(customers Customers, submissions Submissions, artifacts storage.Store, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		customers:    customers,
		submissions:  submissions,
		artifacts:    artifacts,
		log:          log,
		now:          time.Now,
		storeTimeout: DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentPeriod is the period an upload made now would count for.
func (s *Service) CurrentPeriod() model.Period { return model.PeriodOf(s.now()) }

// AttemptSubmit stores p and records it as the customer's submission for the
// current period. The earliest accepted attempt wins; later ones are rejected
// with ErrAlreadySubmitted and leave nothing behind.
func (s *Service) AttemptSubmit(ctx context.Context, customerID int64, p model.Payload) (model.Submission, error) {
	sub, err := s.attemptSubmit(ctx, customerID, p)
	metrics.SubmissionsTotal.WithLabelValues(outcome(err)).Inc()
	return sub, err
}

func (s *Service) attemptSubmit(ctx context.Context, customerID int64, p model.Payload) (model.Submission, error) {
	now := s.now()
	period := model.PeriodOf(now)

	c, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return model.Submission{}, fmt.Errorf("lookup customer: %w", err)
	}
	if c == nil {
		return model.Submission{}, ErrCustomerNotFound
	}

	exists, err := s.submissions.Exists(ctx, customerID, period)
	if err != nil {
		return model.Submission{}, fmt.Errorf("check submission: %w", err)
	}
	if exists {
		return model.Submission{}, ErrAlreadySubmitted
	}

	if p.Body == nil {
		return model.Submission{}, ErrEmptyPayload
	}

	ref := artifactKey(c.AccessCode, period, p.Filename)
	if err := s.store(ctx, ref, p); err != nil {
		return model.Submission{}, err
	}

	sub := model.Submission{
		CustomerID:  customerID,
		PeriodKey:   period,
		ArtifactRef: ref,
		CreatedAt:   now,
	}
	event, err := json.Marshal(model.Envelope{
		Type:        model.EventSubmissionAccepted,
		CustomerID:  customerID,
		AccessCode:  c.AccessCode,
		Period:      period,
		ArtifactRef: ref,
		OccurredAt:  now,
	})
	if err != nil {
		s.discard(ctx, ref)
		return model.Submission{}, fmt.Errorf("marshal envelope: %w", err)
	}

	if err := s.submissions.Record(ctx, &sub, event); err != nil {
		s.discard(ctx, ref)
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return model.Submission{}, ErrAlreadySubmitted
		case errors.Is(err, repository.ErrForeignKey):
			return model.Submission{}, ErrCustomerNotFound
		case errors.Is(err, repository.ErrRetryable):
			// A deadlock against a concurrent insert of the same key is
			// reported as a duplicate if the other writer won.
			if won, xerr := s.submissions.Exists(ctx, customerID, period); xerr == nil && won {
				return model.Submission{}, ErrAlreadySubmitted
			}
		}
		return model.Submission{}, fmt.Errorf("record submission: %w", err)
	}

	s.log.Info("submission accepted",
		zap.Int64("customer_id", customerID),
		zap.String("period", period.String()),
		zap.String("artifact", ref))
	return sub, nil
}

func (s *Service) store(ctx context.Context, ref string, p model.Payload) error {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	start := time.Now()
	err := s.artifacts.Put(sctx, ref, p.Body, p.Size, p.ContentType)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ArtifactStoreSeconds.WithLabelValues(result).Observe(time.Since(start).Seconds())

	if err != nil {
		// A timed out Put may have left a partial object.
		s.discard(ctx, ref)
		return fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	return nil
}

// discard removes an artifact whose submission was not recorded. It outlives
// a cancelled request but is bounded by the store timeout.
func (s *Service) discard(ctx context.Context, ref string) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()
	if err := s.artifacts.Delete(dctx, ref); err != nil {
		s.log.Warn("discard artifact", zap.String("artifact", ref), zap.Error(err))
	}
}

// HasSubmission reports whether customerID already has a submission for period.
func (s *Service) HasSubmission(ctx context.Context, customerID int64, period model.Period) (bool, error) {
	return s.submissions.Exists(ctx, customerID, period)
}

// artifactKey is <code>/<period>/<ulid>-<name>; the ULID keeps concurrent
// attempts from overwriting each other's payload.
func artifactKey(code string, period model.Period, filename string) string {
	name := sanitizeFilename(filename)
	if name == "" {
		name = "upload"
	}
	return code + "/" + period.String() + "/" + util.New() + "-" + name
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxFilenameLen {
			break
		}
	}
	return strings.TrimLeft(b.String(), ".")
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, ErrAlreadySubmitted):
		return "already_submitted"
	case errors.Is(err, ErrStorageFailure):
		return "storage_failure"
	case errors.Is(err, ErrCustomerNotFound):
		return "customer_not_found"
	}
	return "error"
}
