package data

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dcrodman/warpserver/internal/subspace"
)

// snapshotRowID is the primary key of the only row in the snapshot table.
const snapshotRowID = 1

// SubspaceSnapshot is the most advanced subspace at the time it was saved.
type SubspaceSnapshot struct {
	ID             uint64 `gorm:"primaryKey"`
	SubspaceID     int32
	ReferenceTick  int64
	SimulationTime float64
	Rate           float32
}

// SubspaceStore implements subspace.Store on top of the database.
type SubspaceStore struct {
	DB *gorm.DB
}

func (s *SubspaceStore) SaveLatest(latest subspace.Subspace) error {
	snapshot := &SubspaceSnapshot{
		ID:             snapshotRowID,
		SubspaceID:     latest.ID,
		ReferenceTick:  latest.ReferenceTick,
		SimulationTime: latest.SimulationTime,
		Rate:           latest.Rate,
	}
	return s.DB.Clauses(clause.OnConflict{UpdateAll: true}).Create(snapshot).Error
}

func (s *SubspaceStore) LoadLatest() (subspace.Subspace, bool, error) {
	// Find rather than First, which logs a missing row as an error on every
	// fresh start.
	var snapshot SubspaceSnapshot
	result := s.DB.Where("id = ?", snapshotRowID).Limit(1).Find(&snapshot)
	if result.Error != nil {
		return subspace.Subspace{}, false, result.Error
	}
	if result.RowsAffected == 0 {
		return subspace.Subspace{}, false, nil
	}
	return subspace.Subspace{
		ID:             snapshot.SubspaceID,
		ReferenceTick:  snapshot.ReferenceTick,
		SimulationTime: snapshot.SimulationTime,
		Rate:           snapshot.Rate,
	}, true, nil
}
