package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
	"github.com/xraph/grove/migrate"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/xraph/fundledger"
	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/project"
	ledgerstore "github.com/xraph/fundledger/store"
	"github.com/xraph/fundledger/types"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// DefaultBusyTimeout is used when a guarded scope carries no lock timeout.
const DefaultBusyTimeout = 5 * time.Second

// Store implements store.Store using SQLite via Grove ORM. SQLite allows a
// single writer, so the guarded scope opens with a write to the project row
// and waits up to busy_timeout for the write lock.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("fundledger/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("fundledger/sqlite: migration failed: %w", err)
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
	_, err := s.sdb.NewInsert(toProjectModel(p)).Exec(ctx)
	return mapError(err)
}

func (s *Store) GetProject(ctx context.Context, projectID id.ProjectID) (*project.Project, error) {
	m := new(projectModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", projectID.String()).
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
	q := s.sdb.NewSelect(&models)
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
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
	err := s.sdb.NewSelect(m).
		Where("id = ?", commitmentID.String()).
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
	q := s.sdb.NewSelect(&models)

	if !opts.ProjectID.IsNil() {
		q = q.Where("project_id = ?", opts.ProjectID.String())
	}
	if opts.InvestorID != "" {
		q = q.Where("investor_id = ?", opts.InvestorID)
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

	result := make([]*commitment.Commitment, len(models))
	for i := range models {
		c, err := fromCommitmentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func (s *Store) TotalCommitted(ctx context.Context, projectID id.ProjectID) (types.Money, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return types.Money{}, err
	}

	var cents int64
	err = s.sdb.NewRaw(
		`SELECT COALESCE(SUM(amount_cents), 0) FROM fundledger_commitments WHERE project_id = ?`,
		projectID.String(),
	).Scan(ctx, &cents)
	if err != nil {
		return types.Money{}, err
	}
	return types.New(cents, p.Currency), nil
}

// ==================== Guarded scope ====================

// WithinProject starts a transaction whose first statement bumps the project
// version, which takes SQLite's write lock for the rest of the scope.
func (s *Store) WithinProject(ctx context.Context, projectID id.ProjectID, opts ledgerstore.TxOptions, fn ledgerstore.TxFunc) (err error) {
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = DefaultBusyTimeout
	}

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.NewRaw(fmt.Sprintf("PRAGMA busy_timeout = %d", timeout.Milliseconds())).Exec(ctx); err != nil {
		return mapError(err)
	}

	res, err := tx.NewRaw(
		`UPDATE fundledger_projects SET version = version + 1, updated_at = ? WHERE id = ?`,
		now(), projectID.String(),
	).Exec(ctx)
	if err != nil {
		return mapError(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fundledger.ErrProjectNotFound
	}

	m := new(projectModel)
	if err = tx.NewSelect(m).Where("id = ?", projectID.String()).Scan(ctx); err != nil {
		return mapError(err)
	}
	p, err := fromProjectModel(m)
	if err != nil {
		return err
	}

	if err = fn(ctx, &projectTx{tx: tx, project: p}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

type projectTx struct {
	tx      *sqlitedriver.SqliteTx
	project *project.Project
}

func (t *projectTx) Project() *project.Project { return t.project }

func (t *projectTx) TotalCommitted(ctx context.Context, exclude id.CommitmentID) (types.Money, error) {
	var cents int64
	err := t.tx.NewRaw(
		`SELECT COALESCE(SUM(amount_cents), 0) FROM fundledger_commitments WHERE project_id = ? AND id <> ?`,
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
		Where("id = ?", commitmentID.String()).
		Where("project_id = ?", t.project.ID.String()).
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
	_, err := t.tx.NewInsert(toCommitmentModel(c)).Exec(ctx)
	return mapError(err)
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
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// mapError translates SQLite lock and constraint codes into ledger sentinels.
func mapError(err error) error {
	var sqliteErr *sqlite.Error
	if err == nil || !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_BUSY_SNAPSHOT:
		return fmt.Errorf("%w: %w", fundledger.ErrConflict, err)
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %w", fundledger.ErrBusy, err)
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return fmt.Errorf("%w: %w", fundledger.ErrAlreadyExists, err)
	default:
		return err
	}
}
