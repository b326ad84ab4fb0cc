package repo

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "nope", "lessons.db"))
	if err == nil {
		t.Fatalf("expected error for missing parent directory")
	}
}

func TestOpenSQLite_AndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lessons.db")
	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	// Schema usable end to end.
	l, err := CreateLesson(context.Background(), db, "outline", "title")
	if err != nil {
		t.Fatalf("CreateLesson after migrate: %v", err)
	}
	if _, err := GetLesson(context.Background(), db, l.ID); err != nil {
		t.Fatalf("GetLesson after migrate: %v", err)
	}
}
