package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the fundledger store (SQLite).
var Migrations = migrate.NewGroup("fundledger")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_fundledger_projects",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fundledger_projects (
    id                 TEXT PRIMARY KEY,
    owner_id           TEXT NOT NULL,
    title              TEXT NOT NULL DEFAULT '',
    currency           TEXT NOT NULL DEFAULT 'usd',
    funding_goal_cents INTEGER NOT NULL CHECK (funding_goal_cents > 0),
    version            INTEGER NOT NULL DEFAULT 0,
    metadata           TEXT NOT NULL DEFAULT '{}',
    created_at         TIMESTAMP NOT NULL,
    updated_at         TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fundledger_projects_owner ON fundledger_projects (owner_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS fundledger_projects`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_fundledger_commitments",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fundledger_commitments (
    id           TEXT PRIMARY KEY,
    project_id   TEXT NOT NULL REFERENCES fundledger_projects (id),
    investor_id  TEXT NOT NULL,
    amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
    currency     TEXT NOT NULL DEFAULT 'usd',
    share_bp     INTEGER NOT NULL DEFAULT 0,
    metadata     TEXT NOT NULL DEFAULT '{}',
    created_at   TIMESTAMP NOT NULL,
    updated_at   TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fundledger_commitments_project ON fundledger_commitments (project_id, created_at);
CREATE INDEX IF NOT EXISTS idx_fundledger_commitments_investor ON fundledger_commitments (investor_id, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS fundledger_commitments`)
				return err
			},
		},
	)
}
