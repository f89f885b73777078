package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

type schemaObject struct {
	typ     string
	name    string
	table   string
	sql     string
	columns []string
}

// migrateTo declaratively brings the live schema in line with schema.
//
// The target schema is first materialised in a scratch in-memory database. Comparing the two catalogues gives the
// steps: undeclared tables are dropped, new tables are created and tables whose definition changed are rebuilt
// with the data of the columns both versions share. Indexes and triggers are recreated whenever they differ.
// See https://www.sqlite.org/lang_altertable.html#otheralter for the rebuild procedure.
func (db *Database) migrateTo(ctx context.Context, schema string) error {
	start := time.Now()

	target, err := db.targetCatalogue(ctx, schema)
	if err != nil {
		return fmt.Errorf("target catalogue: %w", err)
	}

	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	defer func() {
		if _, fkErr := db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to re-enable foreign keys", slog.Any("error", fkErr))
		}
	}()

	err = db.InTx(ctx, func(tx *sql.Tx) error {
		if err = db.migrateTables(ctx, tx, target); err != nil {
			return fmt.Errorf("migrate tables: %w", err)
		}
		for _, typ := range []string{"index", "trigger"} {
			if err = db.migrateDependents(ctx, tx, target, typ); err != nil {
				return fmt.Errorf("migrate %ss: %w", typ, err)
			}
		}
		return checkForeignKeys(ctx, tx)
	})
	if err != nil {
		return err
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrated database", slog.Duration("duration", time.Since(start)))
	return nil
}

// targetCatalogue executes schema against a scratch database and returns the objects it declares.
func (db *Database) targetCatalogue(ctx context.Context, schema string) ([]schemaObject, error) {
	scratch, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared", rand.Text()))
	if err != nil {
		return nil, fmt.Errorf("open scratch database: %w", err)
	}
	defer func() {
		if closeErr := scratch.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close scratch database", slog.Any("error", closeErr))
		}
	}()
	if strings.TrimSpace(schema) != "" {
		if _, err = scratch.ExecContext(ctx, schema); err != nil {
			return nil, fmt.Errorf("apply schema to scratch database: %w", err)
		}
	}
	return catalogue(ctx, scratch)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// catalogue lists the user-defined objects of q in creation order, with column names for tables.
func catalogue(ctx context.Context, q queryer) ([]schemaObject, error) {
	rows, err := q.QueryContext(ctx, `SELECT type, name, tbl_name, sql
FROM sqlite_schema
WHERE type IN ('table', 'index', 'trigger')
  AND name NOT LIKE 'sqlite_%'
  AND sql IS NOT NULL
ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query sqlite_schema: %w", err)
	}
	var objects []schemaObject
	for rows.Next() {
		var o schemaObject
		if err = rows.Scan(&o.typ, &o.name, &o.table, &o.sql); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan schema row: %w", err)
		}
		objects = append(objects, o)
	}
	if err = rows.Close(); err != nil {
		return nil, fmt.Errorf("close schema rows: %w", err)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("schema rows: %w", err)
	}

	for i := range objects {
		if objects[i].typ != "table" {
			continue
		}
		if objects[i].columns, err = columnNames(ctx, q, objects[i].name); err != nil {
			return nil, err
		}
	}
	return objects, nil
}

func columnNames(ctx context.Context, q queryer, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM PRAGMA_TABLE_INFO(?)", table)
	if err != nil {
		return nil, fmt.Errorf("query columns of %s: %w", table, err)
	}
	defer rows.Close()
	var columns []string
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		columns = append(columns, name)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	return columns, nil
}

func find(objects []schemaObject, typ, name string) (schemaObject, bool) {
	i := slices.IndexFunc(objects, func(o schemaObject) bool { return o.typ == typ && o.name == name })
	if i < 0 {
		return schemaObject{}, false
	}
	return objects[i], true
}

// sameSQL ignores the quoting SQLite adds when a table is renamed.
func sameSQL(a, b string) bool {
	return strings.ReplaceAll(a, `"`, "") == strings.ReplaceAll(b, `"`, "")
}

func (db *Database) exec(ctx context.Context, tx *sql.Tx, msg string, query string) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, msg, slog.String("query", query))
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return nil
}

func (db *Database) migrateTables(ctx context.Context, tx *sql.Tx, target []schemaObject) error {
	live, err := catalogue(ctx, tx)
	if err != nil {
		return fmt.Errorf("live catalogue: %w", err)
	}

	for _, l := range live {
		if _, ok := find(target, "table", l.name); l.typ == "table" && !ok {
			if err = db.exec(ctx, tx, "dropping table", fmt.Sprintf("DROP TABLE %q", l.name)); err != nil {
				return err
			}
		}
	}

	for _, t := range target {
		if t.typ != "table" {
			continue
		}
		l, ok := find(live, "table", t.name)
		switch {
		case !ok:
			err = db.exec(ctx, tx, "creating table", t.sql)
		case !sameSQL(l.sql, t.sql):
			err = db.rebuildTable(ctx, tx, l, t)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// rebuildTable replaces live with the definition in target, copying the columns they share.
func (db *Database) rebuildTable(ctx context.Context, tx *sql.Tx, live, target schemaObject) error {
	tempName := target.name + "_migration_temp"
	createTemp := strings.Replace(target.sql, target.name, tempName, 1)
	if err := db.exec(ctx, tx, "creating rebuilt table", createTemp); err != nil {
		return err
	}

	var common []string
	for _, c := range target.columns {
		if slices.Contains(live.columns, c) {
			common = append(common, fmt.Sprintf("%q", c))
		}
	}
	if len(common) > 0 {
		cols := strings.Join(common, ", ")
		copySQL := fmt.Sprintf("INSERT INTO %q (%s) SELECT %s FROM %q", tempName, cols, cols, live.name)
		if err := db.exec(ctx, tx, "copying table data", copySQL); err != nil {
			return err
		}
	}

	if err := db.exec(ctx, tx, "dropping old table", fmt.Sprintf("DROP TABLE %q", live.name)); err != nil {
		return err
	}
	rename := fmt.Sprintf("ALTER TABLE %q RENAME TO %q", tempName, target.name)
	return db.exec(ctx, tx, "renaming rebuilt table", rename)
}

// migrateDependents synchronises indexes or triggers. It runs after migrateTables because rebuilding a table drops
// the objects attached to it.
func (db *Database) migrateDependents(ctx context.Context, tx *sql.Tx, target []schemaObject, typ string) error {
	live, err := catalogue(ctx, tx)
	if err != nil {
		return fmt.Errorf("live catalogue: %w", err)
	}
	keyword := strings.ToUpper(typ)

	for _, l := range live {
		if l.typ != typ {
			continue
		}
		if t, ok := find(target, typ, l.name); !ok || !sameSQL(l.sql, t.sql) {
			if err = db.exec(ctx, tx, "dropping "+typ, fmt.Sprintf("DROP %s %q", keyword, l.name)); err != nil {
				return err
			}
		}
	}
	for _, t := range target {
		if t.typ != typ {
			continue
		}
		if l, ok := find(live, typ, t.name); !ok || !sameSQL(l.sql, t.sql) {
			if err = db.exec(ctx, tx, "creating "+typ, t.sql); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkForeignKeys(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		var table string
		var rowid sql.NullInt64
		var parent string
		var fkid int
		if err = rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("scan foreign key violation: %w", err)
		}
		return fmt.Errorf("foreign key violation in %s referencing %s", table, parent)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("foreign key check rows: %w", err)
	}
	return nil
}
