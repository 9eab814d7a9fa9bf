package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/metalearn/core/progress"
)

type progressRepository struct {
	db *progressTable
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db.progress}
}

func (repo *progressRepository) FetchProgressForUser(_ context.Context, userID string) ([]progress.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := make([]progress.Record, 0)
	for _, rec := range repo.db.rows {
		if rec.UserID == userID {
			records = append(records, *rec)
		}
	}
	return records, nil
}

func (repo *progressRepository) UpsertProgress(_ context.Context, rec progress.Record) (progress.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, row := range repo.db.rows {
		if row.UserID == rec.UserID && row.ModuleName == rec.ModuleName {
			row.Progress = rec.Progress
			row.Struggling = rec.Struggling
			row.LastActive = rec.LastActive
			row.UpdatedAt = rec.UpdatedAt
			return *row, nil
		}
	}

	rec.ID = uuid.New().String()
	repo.db.rows = append(repo.db.rows, &rec)
	return rec, nil
}
