package repo

import (
	"testing"
	"testing/fstest"
)

func TestLoadMigrationsOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_later.sql":  {Data: []byte("SELECT 10;")},
		"migrations/002_second.sql": {Data: []byte("SELECT 2;")},
		"migrations/README.md":      {Data: []byte("ignored")},
		"migrations/draft.sql":      {Data: []byte("ignored")},
		"migrations/abc_x.sql":      {Data: []byte("ignored")},
	}

	got, err := loadMigrations(fsys)
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(got))
	}
	if got[0].version != 2 || got[1].version != 10 {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	got, err := loadMigrations(migrationsFS)
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(got) == 0 || got[0].version != 1 {
		t.Fatalf("expected 001 migration first, got %+v", got)
	}
}
