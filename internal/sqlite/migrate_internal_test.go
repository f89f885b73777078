package sqlite

import (
	"testing"

	"github.com/myrjola/runcoach/internal/testhelpers"
)

func TestDatabase_migrateTo(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		schemas  []string
		queries  []string
		wantFail bool
	}{
		{
			name:    "empty schema",
			schemas: []string{""},
			queries: []string{"SELECT * FROM sqlite_schema"},
		},
		{
			name:    "create table",
			schemas: []string{"CREATE TABLE runs (id TEXT PRIMARY KEY, distance_km REAL)"},
			queries: []string{"INSERT INTO runs (id, distance_km) VALUES ('a', 5.2)"},
		},
		{
			name: "drop table",
			schemas: []string{
				"CREATE TABLE runs (id TEXT PRIMARY KEY, distance_km REAL)",
				"",
			},
			queries:  []string{"SELECT * FROM runs"},
			wantFail: true,
		},
		{
			name: "added column",
			schemas: []string{
				"CREATE TABLE runs (id TEXT PRIMARY KEY)",
				"CREATE TABLE runs (id TEXT PRIMARY KEY, notes TEXT NOT NULL DEFAULT '')",
			},
			queries: []string{"INSERT INTO runs (id, notes) VALUES ('a', 'easy')"},
		},
		{
			name: "removed column",
			schemas: []string{
				"CREATE TABLE runs (id TEXT PRIMARY KEY, notes TEXT)",
				"CREATE TABLE runs (id TEXT PRIMARY KEY)",
			},
			queries:  []string{"INSERT INTO runs (id, notes) VALUES ('a', 'b')"},
			wantFail: true,
		},
		{
			name: "index survives table rebuild",
			schemas: []string{
				"CREATE TABLE runs (id TEXT PRIMARY KEY, day TEXT); CREATE INDEX runs_day_idx ON runs (day)",
				"CREATE TABLE runs (id TEXT PRIMARY KEY, day TEXT, notes TEXT); CREATE INDEX runs_day_idx ON runs (day)",
			},
			queries: []string{"DROP INDEX runs_day_idx"},
		},
		{
			name: "dropped index",
			schemas: []string{
				"CREATE TABLE runs (id TEXT PRIMARY KEY, day TEXT); CREATE INDEX runs_day_idx ON runs (day)",
				"CREATE TABLE runs (id TEXT PRIMARY KEY, day TEXT)",
			},
			queries:  []string{"DROP INDEX runs_day_idx"},
			wantFail: true,
		},
		{
			name: "changed trigger",
			schemas: []string{
				`CREATE TABLE runs (id TEXT PRIMARY KEY);
				 CREATE TRIGGER runs_guard AFTER INSERT ON runs BEGIN SELECT RAISE(FAIL, 'blocked'); END;`,
				`CREATE TABLE runs (id TEXT PRIMARY KEY);
				 CREATE TRIGGER runs_guard AFTER INSERT ON runs BEGIN SELECT 1; END;`,
			},
			queries: []string{"INSERT INTO runs (id) VALUES ('a')"},
		},
		{
			name:    "application schema",
			schemas: []string{schemaDefinition, schemaDefinition},
			queries: []string{
				`INSERT INTO session_feedback (id, user_id, session_date, perceived_exertion)
				 VALUES ('f1', 'u1', '2024-01-03', 6)`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := t.Context()
			logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
			db, err := connect(ctx, ":memory:", logger)
			if err != nil {
				t.Fatalf("connect: %v", err)
			}
			t.Cleanup(func() {
				if err = db.Close(); err != nil {
					t.Errorf("close: %v", err)
				}
			})

			for _, schema := range tt.schemas {
				if err = db.migrateTo(ctx, schema); err != nil {
					t.Fatalf("migrateTo: %v", err)
				}
			}

			for _, query := range tt.queries {
				_, err = db.ReadWrite.ExecContext(ctx, query)
				if tt.wantFail && err == nil {
					t.Errorf("expected query %q to fail", query)
				}
				if !tt.wantFail && err != nil {
					t.Errorf("query %q: %v", query, err)
				}
			}
		})
	}
}

func TestDatabase_migrateToKeepsRows(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db, err := connect(ctx, ":memory:", testhelpers.NewLogger(testhelpers.NewWriter(t)))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = db.migrateTo(ctx, "CREATE TABLE runs (id TEXT PRIMARY KEY, distance_km REAL)"); err != nil {
		t.Fatalf("initial migrateTo: %v", err)
	}
	if _, err = db.ReadWrite.ExecContext(ctx, "INSERT INTO runs (id, distance_km) VALUES ('kept', 8.5)"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err = db.migrateTo(ctx,
		"CREATE TABLE runs (id TEXT PRIMARY KEY, distance_km REAL, notes TEXT NOT NULL DEFAULT '')"); err != nil {
		t.Fatalf("second migrateTo: %v", err)
	}

	var (
		distance float64
		notes    string
	)
	if err = db.ReadOnly.QueryRowContext(ctx, "SELECT distance_km, notes FROM runs WHERE id = 'kept'").
		Scan(&distance, &notes); err != nil {
		t.Fatalf("select kept row: %v", err)
	}
	if distance != 8.5 || notes != "" {
		t.Errorf("got distance %v notes %q, want 8.5 and empty notes", distance, notes)
	}
}
