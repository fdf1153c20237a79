// Package pg implements a journal in Postgresql,
// so one journal can be shared by everyone working against the same remotes.
package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/bobg/sqlutil"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/bobg/je"
	"github.com/bobg/je/journal"
)

var _ journal.Journal = &Journal{}

// Journal is a Postgresql-based journal.
type Journal struct {
	db *sql.DB
}

// Schema is the SQL that New executes.
// It creates the `je_runs` table if it does not exist.
// (If it does exist, it must have the columns and indexing described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS je_runs (
  id BIGSERIAL PRIMARY KEY,
  command TEXT NOT NULL,
  target TEXT NOT NULL,
  addr TEXT NOT NULL,
  pkg_name TEXT NOT NULL,
  pkg_version TEXT NOT NULL,
  pkg_group TEXT NOT NULL,
  started TIMESTAMP WITH TIME ZONE NOT NULL,
  step TEXT NOT NULL DEFAULT '',
  remote BOOLEAN NOT NULL DEFAULT FALSE,
  finished TIMESTAMP WITH TIME ZONE,
  err TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS je_runs_addr_idx ON je_runs (addr, remote);
`

// New produces a new Journal using `db` for storage.
// It expects to create table `je_runs`,
// or for that table already to exist with the correct schema.
// (See variable Schema.)
func New(ctx context.Context, db *sql.DB) (*Journal, error) {
	_, err := db.ExecContext(ctx, Schema)
	return &Journal{db: db}, errors.Wrap(err, "creating schema")
}

func (j *Journal) Begin(ctx context.Context, e journal.Entry) (int64, error) {
	const q = `INSERT INTO je_runs (command, target, addr, pkg_name, pkg_version, pkg_group, started) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	var id int64
	err := j.db.QueryRowContext(ctx, q, e.Command, e.Target, e.Addr, e.Package.Name, e.Package.Version, e.Package.Group, e.Started).Scan(&id)
	return id, errors.Wrap(err, "inserting run")
}

func (j *Journal) Track(ctx context.Context, id int64, step je.Step, remote bool) error {
	const q = `UPDATE je_runs SET step = $1, remote = $2 WHERE id = $3`
	return j.update(ctx, q, string(step), remote, id)
}

func (j *Journal) Finish(ctx context.Context, id int64, runErr error) error {
	const q = `UPDATE je_runs SET finished = $1, err = $2 WHERE id = $3`
	return j.update(ctx, q, time.Now(), journal.ErrString(runErr), id)
}

func (j *Journal) Forget(ctx context.Context, id int64) error {
	const q = `DELETE FROM je_runs WHERE id = $1`
	return j.update(ctx, q, id)
}

func (j *Journal) update(ctx context.Context, q string, args ...interface{}) error {
	res, err := j.db.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, "updating run")
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if aff == 0 {
		return journal.ErrNotFound
	}
	return nil
}

func (j *Journal) Stranded(ctx context.Context, addr string, f func(journal.Entry) error) error {
	const q = `SELECT id, command, target, addr, pkg_name, pkg_version, pkg_group, started, step, remote, finished, err
		FROM je_runs WHERE addr = $1 AND remote ORDER BY id`

	var entries []journal.Entry
	err := sqlutil.ForQueryRows(ctx, j.db, q, addr, func(id int64, command, target, addr, name, version, group string, started time.Time, step string, remote bool, finished sql.NullTime, errstr string) {
		e := journal.Entry{
			ID:      id,
			Command: command,
			Target:  target,
			Addr:    addr,
			Package: je.Package{Name: name, Version: version, Group: group},
			Started: started,
			Step:    je.Step(step),
			Remote:  remote,
			Err:     errstr,
		}
		if finished.Valid {
			e.Finished = finished.Time
		}
		entries = append(entries, e)
	})
	if err != nil {
		return errors.Wrap(err, "querying stranded runs")
	}

	for _, e := range entries {
		if err = f(e); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	journal.Register("pg", func(ctx context.Context, conf map[string]interface{}) (journal.Journal, error) {
		conn, ok := conf["conn"].(string)
		if !ok {
			return nil, errors.New(`missing "conn" parameter`)
		}
		db, err := sql.Open("postgres", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
