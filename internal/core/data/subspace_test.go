package data

import (
	"bytes"
	"log"
	"testing"

	"github.com/go-test/deep"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dcrodman/warpserver/internal/subspace"
)

func TestSubspaceStore(t *testing.T) {
	store := &SubspaceStore{DB: setUpDatabase(t)}

	_, ok, err := store.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if ok {
		t.Fatal("expected empty store to have no snapshot")
	}

	first := subspace.Subspace{ID: 3, ReferenceTick: 1000, SimulationTime: 12.5, Rate: 0.5}
	if err := store.SaveLatest(first); err != nil {
		t.Fatalf("SaveLatest() error = %v", err)
	}
	second := subspace.Subspace{ID: 4, ReferenceTick: 2000, SimulationTime: 99.25, Rate: 1}
	if err := store.SaveLatest(second); err != nil {
		t.Fatalf("SaveLatest() error = %v", err)
	}

	got, ok, err := store.LoadLatest()
	if err != nil || !ok {
		t.Fatalf("LoadLatest() = %v, %v", ok, err)
	}
	if diff := deep.Equal(second, got); diff != nil {
		t.Error(diff)
	}

	var rows int64
	store.DB.Model(&SubspaceSnapshot{}).Count(&rows)
	if rows != 1 {
		t.Errorf("expected a single snapshot row, got %d", rows)
	}
}

func TestSubspaceStore_EmptyLoadDoesNotLogError(t *testing.T) {
	var buf bytes.Buffer
	db := setUpDatabase(t).Session(&gorm.Session{
		Logger: logger.New(log.New(&buf, "", 0), logger.Config{LogLevel: logger.Error}),
	})
	store := &SubspaceStore{DB: db}

	if _, ok, err := store.LoadLatest(); err != nil || ok {
		t.Fatalf("LoadLatest() = %v, %v", ok, err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected nothing logged for a missing snapshot, got %q", buf.String())
	}
}
