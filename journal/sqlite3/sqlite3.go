package sqlite3

import (
	"context"
	"database/sql"
	"time"

	"github.com/bobg/sqlutil"
	_ "github.com/mattn/go-sqlite3" // register the sqlite3 type for sql.Open
	"github.com/pkg/errors"

	"github.com/bobg/je"
	"github.com/bobg/je/journal"
)

var _ journal.Journal = &Journal{}

// Journal is a Sqlite-based journal.
type Journal struct {
	db *sql.DB
}

// Schema is the SQL that New executes.
// It creates the `runs` table if it does not exist.
// (If it does exist, it must have the columns described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  command TEXT NOT NULL,
  target TEXT NOT NULL,
  addr TEXT NOT NULL,
  pkg_name TEXT NOT NULL,
  pkg_version TEXT NOT NULL,
  pkg_group TEXT NOT NULL,
  started TEXT NOT NULL,
  step TEXT NOT NULL DEFAULT '',
  remote INTEGER NOT NULL DEFAULT 0,
  finished TEXT NOT NULL DEFAULT '',
  err TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS runs_addr_idx ON runs (addr, remote);
`

// New produces a new Journal using `db` for storage.
// It expects to create table `runs`,
// or for that table already to exist with the correct schema.
// (See variable Schema.)
func New(ctx context.Context, db *sql.DB) (*Journal, error) {
	_, err := db.ExecContext(ctx, Schema)
	return &Journal{db: db}, errors.Wrap(err, "creating schema")
}

// Close closes the underlying db.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) Begin(ctx context.Context, e journal.Entry) (int64, error) {
	const q = `INSERT INTO runs (command, target, addr, pkg_name, pkg_version, pkg_group, started) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	res, err := j.db.ExecContext(ctx, q, e.Command, e.Target, e.Addr, e.Package.Name, e.Package.Version, e.Package.Group, e.Started.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, errors.Wrap(err, "inserting run")
	}
	id, err := res.LastInsertId()
	return id, errors.Wrap(err, "getting run ID")
}

func (j *Journal) Track(ctx context.Context, id int64, step je.Step, remote bool) error {
	const q = `UPDATE runs SET step = $1, remote = $2 WHERE id = $3`
	return j.update(ctx, q, string(step), remote, id)
}

func (j *Journal) Finish(ctx context.Context, id int64, runErr error) error {
	const q = `UPDATE runs SET finished = $1, err = $2 WHERE id = $3`
	return j.update(ctx, q, time.Now().UTC().Format(time.RFC3339Nano), journal.ErrString(runErr), id)
}

func (j *Journal) Forget(ctx context.Context, id int64) error {
	const q = `DELETE FROM runs WHERE id = $1`
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
		FROM runs WHERE addr = $1 AND remote != 0 ORDER BY id`

	// Collect first: f may write to the journal.
	var entries []journal.Entry
	err := sqlutil.ForQueryRows(ctx, j.db, q, addr, func(id int64, command, target, addr, name, version, group, started, step string, remote bool, finished, errstr string) error {
		e := journal.Entry{
			ID:      id,
			Command: command,
			Target:  target,
			Addr:    addr,
			Package: je.Package{Name: name, Version: version, Group: group},
			Step:    je.Step(step),
			Remote:  remote,
			Err:     errstr,
		}
		var err error
		if e.Started, err = parseTime(started); err != nil {
			return err
		}
		if e.Finished, err = parseTime(finished); err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
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

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	return t, errors.Wrapf(err, "parsing time %s", s)
}

func init() {
	journal.Register("sqlite3", func(ctx context.Context, conf map[string]interface{}) (journal.Journal, error) {
		conn, ok := conf["file"].(string)
		if !ok {
			conn, ok = conf["conn"].(string)
		}
		if !ok {
			return nil, errors.New(`missing "file" parameter`)
		}
		db, err := sql.Open("sqlite3", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
