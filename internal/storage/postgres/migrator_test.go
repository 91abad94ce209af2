package postgres

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrationsFromFS_Success(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0001_init.up.sql": {
			Data: []byte("CREATE TABLE test_a (id INT);"),
		},
		"sql/migrations/0001_init.down.sql": {
			Data: []byte("DROP TABLE IF EXISTS test_a;"),
		},
		"sql/migrations/0002_more.up.sql": {
			Data: []byte("CREATE TABLE test_b (id INT);"),
		},
		"sql/migrations/0002_more.down.sql": {
			Data: []byte("DROP TABLE IF EXISTS test_b;"),
		},
	}

	migrations, err := loadMigrationsFromFS(fsys)
	if err != nil {
		t.Fatalf("loadMigrationsFromFS failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}

	if migrations[0].Version != 1 || migrations[0].Name != "init" {
		t.Fatalf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[1].Version != 2 || migrations[1].Name != "more" {
		t.Fatalf("unexpected second migration: %+v", migrations[1])
	}
}

func TestLoadMigrationsFromFS_MissingDown(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0001_init.up.sql": {
			Data: []byte("CREATE TABLE test_a (id INT);"),
		},
	}

	_, err := loadMigrationsFromFS(fsys)
	if err == nil {
		t.Fatal("expected error for missing down migration")
	}
	if !strings.Contains(err.Error(), "both up and down") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadMigrationsFromFS_InvalidFilename(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/not_a_migration.sql": {
			Data: []byte("SELECT 1;"),
		},
	}

	_, err := loadMigrationsFromFS(fsys)
	if err == nil {
		t.Fatal("expected error for invalid migration file name")
	}
}

func TestLoadMigrationsFromFS_EmptyFile(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0001_init.up.sql": {
			Data: []byte("   \n"),
		},
		"sql/migrations/0001_init.down.sql": {
			Data: []byte("DROP TABLE IF EXISTS test;"),
		},
	}

	_, err := loadMigrationsFromFS(fsys)
	if err == nil {
		t.Fatal("expected error for empty migration file body")
	}
}

func TestLoadMigrationsFromFS_Embedded(t *testing.T) {
	t.Parallel()

	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		t.Fatalf("embedded migrations are invalid: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 embedded migrations, got %d", len(migrations))
	}
	if !strings.Contains(migrations[0].UpSQL, "order_products") {
		t.Fatal("first migration must create order_products")
	}
	if !strings.Contains(migrations[1].UpSQL, "outbox_messages") {
		t.Fatal("second migration must create outbox_messages")
	}
}

func TestPlanMigrations(t *testing.T) {
	t.Parallel()

	all := []migration{
		{Version: 1, Name: "a"},
		{Version: 2, Name: "b"},
		{Version: 3, Name: "c"},
	}

	versions := func(plan []migration) []int64 {
		out := make([]int64, 0, len(plan))
		for _, m := range plan {
			out = append(out, m.Version)
		}
		return out
	}

	tests := []struct {
		name      string
		applied   []int64
		direction migrationDirection
		steps     int
		want      []int64
	}{
		{name: "up all", direction: migrationUp, want: []int64{1, 2, 3}},
		{name: "up one", direction: migrationUp, steps: 1, want: []int64{1}},
		{name: "up skips applied", applied: []int64{1}, direction: migrationUp, want: []int64{2, 3}},
		{name: "up nothing left", applied: []int64{1, 2, 3}, direction: migrationUp, want: []int64{}},
		{name: "down newest first", applied: []int64{1, 2, 3}, direction: migrationDown, steps: 2, want: []int64{3, 2}},
		{name: "down more than applied", applied: []int64{1}, direction: migrationDown, steps: 5, want: []int64{1}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			plan, err := planMigrations(all, tt.applied, tt.direction, tt.steps)
			if err != nil {
				t.Fatalf("plan failed: %v", err)
			}
			got := versions(plan)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestPlanMigrations_UnknownAppliedVersion(t *testing.T) {
	t.Parallel()

	_, err := planMigrations([]migration{{Version: 1, Name: "a"}}, []int64{1, 7}, migrationDown, 1)
	if err == nil || !strings.Contains(err.Error(), "unknown migration version 7") {
		t.Fatalf("expected unknown version error, got %v", err)
	}
}

func TestVerifyApplied(t *testing.T) {
	t.Parallel()

	all := []migration{{Version: 1, Name: "catalog_and_orders"}, {Version: 2, Name: "outbox"}}

	if err := verifyApplied(all, map[int64]string{1: "catalog_and_orders"}); err != nil {
		t.Fatalf("matching names must pass: %v", err)
	}
	if err := verifyApplied(all, map[int64]string{}); err != nil {
		t.Fatalf("empty schema must pass: %v", err)
	}

	err := verifyApplied(all, map[int64]string{1: "catalog_and_orders", 2: "legacy_outbox"})
	if err == nil || !strings.Contains(err.Error(), `applied as "legacy_outbox"`) {
		t.Fatalf("expected name drift error, got %v", err)
	}
}

func TestSortedVersions(t *testing.T) {
	t.Parallel()

	got := sortedVersions(map[int64]string{3: "c", 1: "a", 2: "b"})
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("unexpected order: %v", got)
	}
}
