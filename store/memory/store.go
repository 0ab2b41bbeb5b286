// Package memory provides an in-process store.Store. Project scopes are
// serialized with a per-project keyed lock and writes are staged until the
// scope's callback succeeds, so a rejected commit leaves no trace.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/xraph/fundledger"
	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/guard"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/store"
	"github.com/xraph/fundledger/types"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool
	locks  *guard.Keyed

	// Project storage
	projects map[string]*project.Project

	// Commitment storage, with creation order kept per project
	commitments map[string]*commitment.Commitment
	byProject   map[string][]string
	order       []string
}

// New creates an empty store. The lock timeout applies when a scope does
// not set its own.
func New(opts ...Option) *Store {
	s := &Store{
		locks:       guard.New(fundledger.DefaultLockTimeout),
		projects:    make(map[string]*project.Project),
		commitments: make(map[string]*commitment.Commitment),
		byProject:   make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures a memory Store.
type Option func(*Store)

// WithLockTimeout sets the default project lock timeout.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.locks = guard.New(d)
	}
}

// ==================== Project Store ====================

func (s *Store) CreateProject(_ context.Context, p *project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fundledger.ErrStoreClosed
	}
	if _, exists := s.projects[p.ID.String()]; exists {
		return fundledger.ErrAlreadyExists
	}
	s.projects[p.ID.String()] = cloneProject(p)
	return nil
}

func (s *Store) GetProject(_ context.Context, projectID id.ProjectID) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.projects[projectID.String()]; ok {
		return cloneProject(p), nil
	}
	return nil, fundledger.ErrProjectNotFound
}

func (s *Store) ListProjects(_ context.Context, ownerID string, opts project.ListOpts) ([]*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*project.Project, 0)
	for _, p := range s.projects {
		if ownerID == "" || p.OwnerID == ownerID {
			result = append(result, cloneProject(p))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// ==================== Commitment Store ====================

func (s *Store) GetCommitment(_ context.Context, commitmentID id.CommitmentID) (*commitment.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.commitments[commitmentID.String()]; ok {
		return cloneCommitment(c), nil
	}
	return nil, fundledger.ErrCommitmentNotFound
}

func (s *Store) ListCommitments(_ context.Context, opts commitment.ListOpts) ([]*commitment.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.order
	if !opts.ProjectID.IsNil() {
		keys = s.byProject[opts.ProjectID.String()]
	}

	result := make([]*commitment.Commitment, 0, len(keys))
	for _, k := range keys {
		c := s.commitments[k]
		if opts.InvestorID != "" && c.InvestorID != opts.InvestorID {
			continue
		}
		result = append(result, cloneCommitment(c))
	}

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) TotalCommitted(_ context.Context, projectID id.ProjectID) (types.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[projectID.String()]
	if !ok {
		return types.Money{}, fundledger.ErrProjectNotFound
	}
	return s.sumLocked(p, nil, id.Nil), nil
}

// ==================== Guarded scope ====================

func (s *Store) WithinProject(ctx context.Context, projectID id.ProjectID, opts store.TxOptions, fn store.TxFunc) error {
	timeout := opts.LockTimeout
	if timeout == 0 {
		timeout = s.locks.Timeout()
	}

	release, err := s.locks.AcquireTimeout(ctx, projectID.String(), timeout)
	if err != nil {
		if errors.Is(err, guard.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", fundledger.ErrBusy, err)
		}
		return err
	}
	defer release()

	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return err
	}

	tx := &projectTx{store: s, project: p, staged: make(map[string]*commitment.Commitment)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	return s.apply(tx)
}

func (s *Store) apply(tx *projectTx) error {
	if len(tx.staged) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fundledger.ErrStoreClosed
	}

	pid := tx.project.ID.String()
	for _, k := range tx.inserted {
		s.byProject[pid] = append(s.byProject[pid], k)
		s.order = append(s.order, k)
	}
	for k, c := range tx.staged {
		s.commitments[k] = c
	}

	if p, ok := s.projects[pid]; ok {
		p.Version++
		p.Touch()
	}
	return nil
}

// sumLocked totals a project's commitments, preferring staged versions and
// skipping exclude. Callers hold s.mu.
func (s *Store) sumLocked(p *project.Project, staged map[string]*commitment.Commitment, exclude id.CommitmentID) types.Money {
	total := types.Zero(p.Currency)
	ex := exclude.String()

	for _, k := range s.byProject[p.ID.String()] {
		if k == ex {
			continue
		}
		c := s.commitments[k]
		if sc, ok := staged[k]; ok {
			c = sc
		}
		total = total.Add(c.Amount)
	}
	return total
}

type projectTx struct {
	store    *Store
	project  *project.Project
	staged   map[string]*commitment.Commitment
	inserted []string
}

func (t *projectTx) Project() *project.Project { return t.project }

func (t *projectTx) TotalCommitted(_ context.Context, exclude id.CommitmentID) (types.Money, error) {
	t.store.mu.RLock()
	total := t.store.sumLocked(t.project, t.staged, exclude)
	t.store.mu.RUnlock()

	ex := exclude.String()
	for _, k := range t.inserted {
		if k != ex {
			total = total.Add(t.staged[k].Amount)
		}
	}
	return total, nil
}

func (t *projectTx) GetCommitment(ctx context.Context, commitmentID id.CommitmentID) (*commitment.Commitment, error) {
	if c, ok := t.staged[commitmentID.String()]; ok {
		return cloneCommitment(c), nil
	}

	c, err := t.store.GetCommitment(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	if !c.ProjectID.Equal(t.project.ID) {
		return nil, fundledger.ErrCommitmentNotFound
	}
	return c, nil
}

func (t *projectTx) InsertCommitment(_ context.Context, c *commitment.Commitment) error {
	k := c.ID.String()
	if _, ok := t.staged[k]; ok {
		return fundledger.ErrAlreadyExists
	}

	t.store.mu.RLock()
	_, exists := t.store.commitments[k]
	t.store.mu.RUnlock()
	if exists {
		return fundledger.ErrAlreadyExists
	}

	t.staged[k] = cloneCommitment(c)
	t.inserted = append(t.inserted, k)
	return nil
}

func (t *projectTx) UpdateCommitment(_ context.Context, c *commitment.Commitment) error {
	k := c.ID.String()
	if _, ok := t.staged[k]; !ok {
		t.store.mu.RLock()
		_, exists := t.store.commitments[k]
		t.store.mu.RUnlock()
		if !exists {
			return fundledger.ErrCommitmentNotFound
		}
	}

	t.staged[k] = cloneCommitment(c)
	return nil
}

// ==================== Store management ====================

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fundledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Helper functions

func paginate[T any](items []T, offset, limit int) []T {
	start := min(max(offset, 0), len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}

func cloneProject(p *project.Project) *project.Project {
	cp := *p
	cp.Metadata = maps.Clone(p.Metadata)
	return &cp
}

func cloneCommitment(c *commitment.Commitment) *commitment.Commitment {
	cp := *c
	cp.Metadata = maps.Clone(c.Metadata)
	return &cp
}
