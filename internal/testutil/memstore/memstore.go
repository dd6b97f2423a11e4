// Package memstore is an in-memory stand-in for the MySQL repositories, used
// by service and handler tests. It enforces the same unique keys and cascade
// as the schema in migrations/001_init.sql.
package memstore

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/jmehdipour/clipgate/internal/model"
	"github.com/jmehdipour/clipgate/internal/repository"
)

type Store struct {
	mu          sync.Mutex
	nextCust    int64
	nextSub     int64
	customers   map[int64]model.Customer
	byCode      map[string]int64
	submissions map[subKey]model.Submission
	Events      [][]byte // outbox payloads, in commit order

	// BeforeRecord runs before the unique check of Record, outside the lock.
	BeforeRecord func()
	// RecordErr, when set, fails Record after BeforeRecord has run.
	RecordErr error
}

type subKey struct {
	customerID int64
	period     model.Period
}

func New() *Store {
	return &Store{
		customers:   map[int64]model.Customer{},
		byCode:      map[string]int64{},
		submissions: map[subKey]model.Submission{},
	}
}

func (s *Store) Insert(_ context.Context, c *model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[c.AccessCode]; ok {
		return repository.ErrDuplicate
	}
	s.nextCust++
	c.ID = s.nextCust
	s.customers[c.ID] = *c
	s.byCode[c.AccessCode] = c.ID
	return nil
}

func (s *Store) GetByAccessCode(_ context.Context, code string) (*model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, nil
	}
	c := s.customers[id]
	return &c, nil
}

func (s *Store) GetByID(_ context.Context, id int64) (*model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) List(_ context.Context) ([]model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Delete(_ context.Context, id int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	var refs []string
	for k, sub := range s.submissions {
		if k.customerID == id {
			refs = append(refs, sub.ArtifactRef)
			delete(s.submissions, k)
		}
	}
	delete(s.customers, id)
	delete(s.byCode, c.AccessCode)
	sort.Strings(refs)
	return refs, nil
}

func (s *Store) Exists(_ context.Context, customerID int64, period model.Period) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.submissions[subKey{customerID, period}]
	return ok, nil
}

func (s *Store) Record(_ context.Context, sub *model.Submission, payload []byte) error {
	if s.BeforeRecord != nil {
		s.BeforeRecord()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.RecordErr != nil {
		return s.RecordErr
	}
	if _, ok := s.customers[sub.CustomerID]; !ok {
		return repository.ErrForeignKey
	}
	k := subKey{sub.CustomerID, sub.PeriodKey}
	if _, ok := s.submissions[k]; ok {
		return repository.ErrDuplicate
	}
	s.nextSub++
	sub.ID = s.nextSub
	s.submissions[k] = *sub
	s.Events = append(s.Events, payload)
	return nil
}

func (s *Store) SubmittedCustomerIDs(_ context.Context, period model.Period) (map[int64]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := map[int64]bool{}
	for k := range s.submissions {
		if k.period == period {
			set[k.customerID] = true
		}
	}
	return set, nil
}

// SubmissionCount counts rows for (customerID, period); the schema allows at most one.
func (s *Store) SubmissionCount(customerID int64, period model.Period) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.submissions {
		if k.customerID == customerID && k.period == period {
			n++
		}
	}
	return n
}

func (s *Store) CustomerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.customers)
}

// Artifacts is an in-memory artifact store.
type Artifacts struct {
	mu      sync.Mutex
	objects map[string][]byte

	PutErr    error
	DeleteErr error
	// DeleteHook runs inside Delete; it may block until ctx is done.
	DeleteHook func(ctx context.Context) error
	// PutHook runs inside Put before the body is read; it may block until ctx is done.
	PutHook func(ctx context.Context) error
}

func NewArtifacts() *Artifacts { return &Artifacts{objects: map[string][]byte{}} }

func (a *Artifacts) Put(ctx context.Context, key string, body io.Reader, _ int64, _ string) error {
	if a.PutHook != nil {
		if err := a.PutHook(ctx); err != nil {
			return err
		}
	}
	if a.PutErr != nil {
		return a.PutErr
	}
	var data []byte
	if body != nil {
		var err error
		if data, err = io.ReadAll(body); err != nil {
			return err
		}
	}
	a.mu.Lock()
	a.objects[key] = data
	a.mu.Unlock()
	return nil
}

func (a *Artifacts) Delete(ctx context.Context, key string) error {
	if a.DeleteHook != nil {
		if err := a.DeleteHook(ctx); err != nil {
			return err
		}
	}
	if a.DeleteErr != nil {
		return a.DeleteErr
	}
	a.mu.Lock()
	delete(a.objects, key)
	a.mu.Unlock()
	return nil
}

func (a *Artifacts) Exists(_ context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.objects[key]
	return ok, nil
}

func (a *Artifacts) Keys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]string, 0, len(a.objects))
	for k := range a.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a *Artifacts) Get(key string) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.objects[key]
	return b, ok
}
