package inmemdb

import (
	"context"

	"github.com/trezcool/metalearn/core/file"
)

type fileRepository struct {
	db *fileTable
}

var _ file.Repository = (*fileRepository)(nil) // interface compliance check

func NewFileRepository(db *DB) file.Repository {
	return &fileRepository{db: db.file}
}

func (repo *fileRepository) CreateFile(_ context.Context, f file.File) (file.File, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[f.ID] = &f
	repo.db.order = append(repo.db.order, f.ID)
	return f, nil
}

func (repo *fileRepository) ListFiles(_ context.Context, ownerID string) ([]file.File, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	files := make([]file.File, 0)
	for _, id := range repo.db.order {
		if f := repo.db.table[id]; f.OwnerID == ownerID {
			files = append(files, *f)
		}
	}
	return files, nil
}

func (repo *fileRepository) GetFile(_ context.Context, id string) (file.File, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if f, ok := repo.db.table[id]; ok {
		return *f, nil
	}
	return file.File{}, file.ErrNotFound
}

func (repo *fileRepository) DeleteFile(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return file.ErrNotFound
	}
	delete(repo.db.table, id)
	for i, oid := range repo.db.order {
		if oid == id {
			repo.db.order = append(repo.db.order[:i], repo.db.order[i+1:]...)
			break
		}
	}
	return nil
}
