package data

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// Creates a database for testing. For the sake of simplicity, this only uses the
// SQLite engine and creates a new database on every invocation since it is relatively
// cheap to do so.
func setUpDatabase(t *testing.T) *gorm.DB {
	testDBFile := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(testDBFile))
	if err != nil {
		t.Fatalf("error initializing test database: %s", err)
	}

	if err = db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("error auto migrating db: %s", err)
	}
	return db
}

func TestInitialize(t *testing.T) {
	db, err := Initialize(EngineSQLite, filepath.Join(t.TempDir(), "warp.db"), false)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer Shutdown(db)

	for _, model := range Models() {
		if !db.Migrator().HasTable(model) {
			t.Errorf("expected table for %T to be migrated", model)
		}
	}
}

func TestInitialize_UnknownEngine(t *testing.T) {
	if _, err := Initialize("mongo", "", false); err == nil {
		t.Fatal("expected error for unsupported engine")
	}
}
