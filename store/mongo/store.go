package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/fundledger"
	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/project"
	ledgerstore "github.com/xraph/fundledger/store"
	"github.com/xraph/fundledger/types"
)

// Collection name constants.
const (
	colProjects    = "fundledger_projects"
	colCommitments = "fundledger_commitments"
)

// Server error code for a write that lost to a concurrent transaction.
const codeWriteConflict = 112

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
//
// The guarded scope is optimistic: it runs in a multi-document transaction
// that first bumps the project version. A concurrent scope on the same
// project fails with a write conflict, reported as fundledger.ErrConflict so
// the ledger can retry. Transactions need a replica set or sharded cluster.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all fundledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("fundledger/mongo: migrate %s indexes: %w", col, err)
		}
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
	if _, err := s.mdb.NewInsert(toProjectModel(p)).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %w", fundledger.ErrAlreadyExists, err)
		}
		return fmt.Errorf("fundledger/mongo: create project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, projectID id.ProjectID) (*project.Project, error) {
	var m projectModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": projectID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fundledger.ErrProjectNotFound
		}
		return nil, fmt.Errorf("fundledger/mongo: get project: %w", err)
	}
	return fromProjectModel(&m)
}

func (s *Store) ListProjects(ctx context.Context, ownerID string, opts project.ListOpts) ([]*project.Project, error) {
	var models []projectModel

	filter := bson.M{}
	if ownerID != "" {
		filter["owner_id"] = ownerID
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("fundledger/mongo: list projects: %w", err)
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
	var m commitmentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": commitmentID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fundledger.ErrCommitmentNotFound
		}
		return nil, fmt.Errorf("fundledger/mongo: get commitment: %w", err)
	}
	return fromCommitmentModel(&m)
}

func (s *Store) ListCommitments(ctx context.Context, opts commitment.ListOpts) ([]*commitment.Commitment, error) {
	var models []commitmentModel

	filter := bson.M{}
	if !opts.ProjectID.IsNil() {
		filter["project_id"] = opts.ProjectID.String()
	}
	if opts.InvestorID != "" {
		filter["investor_id"] = opts.InvestorID
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("fundledger/mongo: list commitments: %w", err)
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

	cents, err := s.sumCommitments(ctx, projectID, id.Nil)
	if err != nil {
		return types.Money{}, err
	}
	return types.New(cents, p.Currency), nil
}

// sumCommitments totals amount_cents for a project. ctx may carry a session.
func (s *Store) sumCommitments(ctx context.Context, projectID id.ProjectID, exclude id.CommitmentID) (int64, error) {
	match := bson.M{"project_id": projectID.String()}
	if !exclude.IsNil() {
		match["_id"] = bson.M{"$ne": exclude.String()}
	}

	pipeline := bson.A{
		bson.M{"$match": match},
		bson.M{"$group": bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$amount_cents"},
		}},
	}

	cursor, err := s.mdb.Collection(colCommitments).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("fundledger/mongo: sum commitments: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("fundledger/mongo: decode sum: %w", err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

// ==================== Guarded scope ====================

// WithinProject runs fn inside a MongoDB transaction. Mongo transactions do
// not wait on locks, so opts.LockTimeout is not consulted; contention
// surfaces immediately as fundledger.ErrConflict.
func (s *Store) WithinProject(ctx context.Context, projectID id.ProjectID, _ ledgerstore.TxOptions, fn ledgerstore.TxFunc) (err error) {
	raw, err := s.mdb.GroveTx(ctx, 0, false)
	if err != nil {
		return mapError(err)
	}
	tx, ok := raw.(*mongodriver.MongoTx)
	if !ok {
		return fmt.Errorf("fundledger/mongo: unexpected transaction type %T", raw)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.NewUpdate((*projectModel)(nil)).
		Filter(bson.M{"_id": projectID.String()}).
		SetUpdate(bson.M{
			"$inc": bson.M{"version": 1},
			"$set": bson.M{"updated_at": now()},
		}).
		Exec(ctx)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount() == 0 {
		return fundledger.ErrProjectNotFound
	}

	var m projectModel
	if err = tx.NewFind(&m).Filter(bson.M{"_id": projectID.String()}).Scan(ctx); err != nil {
		return mapError(err)
	}
	p, err := fromProjectModel(&m)
	if err != nil {
		return err
	}

	if err = fn(ctx, &projectTx{store: s, tx: tx, project: p}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

type projectTx struct {
	store   *Store
	tx      *mongodriver.MongoTx
	project *project.Project
}

func (t *projectTx) Project() *project.Project { return t.project }

func (t *projectTx) TotalCommitted(ctx context.Context, exclude id.CommitmentID) (types.Money, error) {
	cents, err := t.store.sumCommitments(t.tx.SessionContext(ctx), t.project.ID, exclude)
	if err != nil {
		return types.Money{}, mapError(err)
	}
	return types.New(cents, t.project.Currency), nil
}

func (t *projectTx) GetCommitment(ctx context.Context, commitmentID id.CommitmentID) (*commitment.Commitment, error) {
	var m commitmentModel
	err := t.tx.NewFind(&m).
		Filter(bson.M{"_id": commitmentID.String(), "project_id": t.project.ID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fundledger.ErrCommitmentNotFound
		}
		return nil, mapError(err)
	}
	return fromCommitmentModel(&m)
}

func (t *projectTx) InsertCommitment(ctx context.Context, c *commitment.Commitment) error {
	if _, err := t.tx.NewInsert(toCommitmentModel(c)).Exec(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func (t *projectTx) UpdateCommitment(ctx context.Context, c *commitment.Commitment) error {
	m := toCommitmentModel(c)
	m.UpdatedAt = now()

	res, err := t.tx.NewUpdate(m).
		Filter(bson.M{"_id": m.ID, "project_id": m.ProjectID}).
		Exec(ctx)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount() == 0 {
		return fundledger.ErrCommitmentNotFound
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// mapError reports transaction write conflicts as fundledger.ErrConflict.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", fundledger.ErrAlreadyExists, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) &&
		(se.HasErrorCode(codeWriteConflict) || se.HasErrorLabel("TransientTransactionError")) {
		return fmt.Errorf("%w: %w", fundledger.ErrConflict, err)
	}
	if mongo.IsTimeout(err) {
		return fmt.Errorf("%w: %w", fundledger.ErrBusy, err)
	}
	return err
}

// migrationIndexes returns the index definitions for all fundledger collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colProjects: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "_id", Value: 1}}},
		},
		colCommitments: {
			{Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "investor_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{
				Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "investor_id", Value: 1}, {Key: "_id", Value: 1}},
				Options: options.Index().SetName("project_investor"),
			},
		},
	}
}
