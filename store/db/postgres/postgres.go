package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/Try3D/Eunoia/internal/profile"
	"github.com/Try3D/Eunoia/internal/version"
	"github.com/Try3D/Eunoia/store"
)

//go:embed migration/schema.sql
var schema string

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", redactDSN(profile.DSN))
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate applies the embedded schema, including the vector extension, and
// records the schema version. A database written by a newer release is refused.
func (d *DB) Migrate(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "failed to connect to postgres")
	}
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}

	var current string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM system_setting WHERE name = 'schema_version'`).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return errors.Wrap(err, "failed to read schema version")
	case version.IsVersionGreaterThan(current, version.SchemaVersion):
		return errors.Errorf("database schema %s is newer than supported %s", current, version.SchemaVersion)
	}

	if _, err := d.db.ExecContext(ctx,
		`INSERT INTO system_setting (name, value) VALUES ('schema_version', `+placeholder(1)+`)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`,
		version.SchemaVersion,
	); err != nil {
		return errors.Wrap(err, "failed to write schema version")
	}

	slog.Debug("postgres: schema migrated", "version", version.SchemaVersion)
	return nil
}

// syncSequence moves a SERIAL sequence past rows inserted with explicit ids.
func (d *DB) syncSequence(ctx context.Context, table string) error {
	_, err := d.db.ExecContext(ctx, fmt.Sprintf(
		`SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)`,
		table, table,
	))
	return errors.Wrapf(err, "failed to sync %s id sequence", table)
}

func placeholder(n int) string {
	return "$" + fmt.Sprint(n)
}

func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

// redactDSN hides the password of a postgres:// URL.
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return dsn[:scheme+3] + creds[:colon] + ":xxxxx" + dsn[at:]
	}
	return dsn
}
