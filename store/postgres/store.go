package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/fundledger"
	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/project"
	ledgerstore "github.com/xraph/fundledger/store"
	"github.com/xraph/fundledger/types"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Postgres error codes the guarded scope translates.
const (
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// Store implements store.Store using PostgreSQL via Grove ORM. The funding
// guard is a row lock on the project taken with SELECT ... FOR UPDATE.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("fundledger/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("fundledger/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Project Store ====================

func (s *Store) CreateProject(ctx context.Context, p *project.Project) error {
	m := toProjectModel(p)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, projectID id.ProjectID) (*project.Project, error) {
	m := new(projectModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", projectID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fundledger.ErrProjectNotFound
		}
		return nil, err
	}
	return fromProjectModel(m)
}

func (s *Store) ListProjects(ctx context.Context, ownerID string, opts project.ListOpts) ([]*project.Project, error) {
	var models []projectModel
	q := s.pg.NewSelect(&models)
	if ownerID != "" {
		q = q.Where("owner_id = $1", ownerID)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*project.Project, len(models))
	for i := range models {
		p, err := fromProjectModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Commitment Store ====================

func (s *Store) GetCommitment(ctx context.Context, commitmentID id.CommitmentID) (*commitment.Commitment, error) {
	m := new(commitmentModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", commitmentID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fundledger.ErrCommitmentNotFound
		}
		return nil, err
	}
	return fromCommitmentModel(m)
}

func (s *Store) ListCommitments(ctx context.Context, opts commitment.ListOpts) ([]*commitment.Commitment, error) {
	var models []commitmentModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if !opts.ProjectID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("project_id = $%d", argIdx), opts.ProjectID.String())
	}
	if opts.InvestorID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("investor_id = $%d", argIdx), opts.InvestorID)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromCommitmentModels(models)
}

func (s *Store) TotalCommitted(ctx context.Context, projectID id.ProjectID) (types.Money, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return types.Money{}, err
	}

	var cents int64
	err = s.pg.NewRaw(
		`SELECT COALESCE(SUM(amount_cents), 0)::BIGINT FROM fundledger_commitments WHERE project_id = $1`,
		projectID.String(),
	).Scan(ctx, &cents)
	if err != nil {
		return types.Money{}, err
	}
	return types.New(cents, p.Currency), nil
}

// ==================== Guarded scope ====================

// WithinProject opens a READ COMMITTED transaction, bounds lock waits with
// lock_timeout and locks the project row before calling fn. Any write bumps
// the project version.
func (s *Store) WithinProject(ctx context.Context, projectID id.ProjectID, opts ledgerstore.TxOptions, fn ledgerstore.TxFunc) (err error) {
	tx, err := s.pg.BeginTxQuery(ctx, &driver.TxOptions{IsolationLevel: driver.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("fundledger/postgres: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if opts.LockTimeout > 0 {
		// SET does not take bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", opts.LockTimeout.Milliseconds())
		if _, err = tx.NewRaw(stmt).Exec(ctx); err != nil {
			return mapError(err)
		}
	}

	m := new(projectModel)
	err = tx.NewSelect(m).
		Where("id = $1", projectID.String()).
		ForUpdate().
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return fundledger.ErrProjectNotFound
		}
		return mapError(err)
	}

	p, err := fromProjectModel(m)
	if err != nil {
		return err
	}

	ptx := &projectTx{tx: tx, project: p}
	if err = fn(ctx, ptx); err != nil {
		return err
	}

	if ptx.dirty {
		_, err = tx.NewRaw(
			`UPDATE fundledger_projects SET version = version + 1, updated_at = $1 WHERE id = $2`,
			now(), projectID.String(),
		).Exec(ctx)
		if err != nil {
			return mapError(err)
		}
	}

	if err = tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

type projectTx struct {
	tx      *pgdriver.PgTx
	project *project.Project
	dirty   bool
}

func (t *projectTx) Project() *project.Project { return t.project }

func (t *projectTx) TotalCommitted(ctx context.Context, exclude id.CommitmentID) (types.Money, error) {
	var cents int64
	err := t.tx.NewRaw(
		`SELECT COALESCE(SUM(amount_cents), 0)::BIGINT FROM fundledger_commitments WHERE project_id = $1 AND id <> $2`,
		t.project.ID.String(), exclude.String(),
	).Scan(ctx, &cents)
	if err != nil {
		return types.Money{}, mapError(err)
	}
	return types.New(cents, t.project.Currency), nil
}

func (t *projectTx) GetCommitment(ctx context.Context, commitmentID id.CommitmentID) (*commitment.Commitment, error) {
	m := new(commitmentModel)
	err := t.tx.NewSelect(m).
		Where("id = $1", commitmentID.String()).
		Where("project_id = $2", t.project.ID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fundledger.ErrCommitmentNotFound
		}
		return nil, mapError(err)
	}
	return fromCommitmentModel(m)
}

func (t *projectTx) InsertCommitment(ctx context.Context, c *commitment.Commitment) error {
	m := toCommitmentModel(c)
	if _, err := t.tx.NewInsert(m).Exec(ctx); err != nil {
		return mapError(err)
	}
	t.dirty = true
	return nil
}

func (t *projectTx) UpdateCommitment(ctx context.Context, c *commitment.Commitment) error {
	m := toCommitmentModel(c)
	m.UpdatedAt = now()
	res, err := t.tx.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return mapError(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fundledger.ErrCommitmentNotFound
	}
	t.dirty = true
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows matches both database/sql and pgx no-row sentinels.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

// mapError translates lock and serialization failures into ledger sentinels.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeLockNotAvailable:
		return fmt.Errorf("%w: %w", fundledger.ErrBusy, err)
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %w", fundledger.ErrConflict, err)
	case codeUniqueViolation:
		return fmt.Errorf("%w: %w", fundledger.ErrAlreadyExists, err)
	default:
		return err
	}
}
