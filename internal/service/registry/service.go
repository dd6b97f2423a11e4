package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmehdipour/clipgate/internal/metrics"
	"github.com/jmehdipour/clipgate/internal/model"
	"github.com/jmehdipour/clipgate/internal/repository"
	"github.com/jmehdipour/clipgate/internal/util"
	"go.uber.org/zap"
)

const (
	MaxNameLength     = 200
	maxAccessCodeLen  = 64
	codeInsertRetries = 3

	DefaultCleanupTimeout = 30 * time.Second
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrInvalidCode = errors.New("invalid access code")
	ErrNotFound    = errors.New("customer not found")
)

// Customers is the persistence the registry needs.
type Customers interface {
	Insert(ctx context.Context, c *model.Customer) error
	GetByAccessCode(ctx context.Context, code string) (*model.Customer, error)
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
	List(ctx context.Context) ([]model.Customer, error)
	Delete(ctx context.Context, id int64) ([]string, error)
}

type ArtifactRemover interface {
	Delete(ctx context.Context, key string) error
}

type Issuer interface {
	Issue(code string) ([]byte, error)
}

// Service owns customer identity and access codes.
type Service struct {
	customers Customers
	artifacts ArtifactRemover
	issuer    Issuer
	log       *zap.Logger

	now            func() time.Time
	newCode        func() string
	cleanupTimeout time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithCodeGenerator(gen func() string) Option { return func(s *Service) { s.newCode = gen } }

// WithCleanupTimeout bounds the artifact deletes that follow Remove.
func WithCleanupTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cleanupTimeout = d
		}
	}
}

func New(customers Customers, artifacts ArtifactRemover, issuer Issuer, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		customers: customers,
		artifacts: artifacts,
		issuer:    issuer,
		log:       log,
		now:       time.Now,
		newCode:   util.NewAccessCode,

		cleanupTimeout: DefaultCleanupTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a customer with a fresh access code.
func (s *Service) Register(ctx context.Context, name string) (model.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Customer{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return model.Customer{}, fmt.Errorf("%w: name is longer than %d characters", ErrValidation, MaxNameLength)
	}

	c := model.Customer{Name: name, CreatedAt: s.now()}
	var err error
	for i := 0; i < codeInsertRetries; i++ {
		c.AccessCode = s.newCode()
		err = s.customers.Insert(ctx, &c)
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
		s.log.Warn("access code collision, regenerating", zap.String("code", c.AccessCode))
	}
	if err != nil {
		return model.Customer{}, fmt.Errorf("insert customer: %w", err)
	}

	metrics.CustomersTotal.WithLabelValues("registered").Inc()
	s.log.Info("customer registered", zap.Int64("customer_id", c.ID), zap.String("code", c.AccessCode))
	return c, nil
}

// Resolve maps an access code to its customer. Matching is exact and case-sensitive.
func (s *Service) Resolve(ctx context.Context, code string) (model.Customer, error) {
	if !wellFormedCode(code) {
		return model.Customer{}, fmt.Errorf("%w: malformed access code", ErrValidation)
	}

	c, err := s.customers.GetByAccessCode(ctx, code)
	if err != nil {
		return model.Customer{}, fmt.Errorf("lookup access code: %w", err)
	}
	if c == nil || c.AccessCode != code {
		return model.Customer{}, ErrInvalidCode
	}
	return *c, nil
}

func wellFormedCode(code string) bool {
	if code == "" || len(code) > maxAccessCodeLen {
		return false
	}
	for _, r := range code {
		if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

func (s *Service) Get(ctx context.Context, id int64) (model.Customer, error) {
	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return model.Customer{}, fmt.Errorf("lookup customer: %w", err)
	}
	if c == nil {
		return model.Customer{}, ErrNotFound
	}
	return *c, nil
}

// List returns all customers in creation order.
func (s *Service) List(ctx context.Context) ([]model.Customer, error) {
	return s.customers.List(ctx)
}

// Remove deletes the customer and all of its submissions, then drops the
// stored payloads. Payload cleanup failures are logged, not returned: the
// rows are already gone.
func (s *Service) Remove(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}

	refs, err := s.customers.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cleanupTimeout)
	defer cancel()
	for _, ref := range refs {
		if err := s.artifacts.Delete(cleanupCtx, ref); err != nil {
			s.log.Error("delete artifact of removed customer",
				zap.Int64("customer_id", id), zap.String("artifact", ref), zap.Error(err))
		}
	}

	metrics.CustomersTotal.WithLabelValues("removed").Inc()
	s.log.Info("customer removed", zap.Int64("customer_id", id), zap.Int("submissions", len(refs)))
	return nil
}

// AccessArtifact resolves code and renders its scannable artifact.
func (s *Service) AccessArtifact(ctx context.Context, code string) ([]byte, error) {
	if _, err := s.Resolve(ctx, code); err != nil {
		return nil, err
	}
	return s.issuer.Issue(code)
}
