package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/metalearn/core"
	"github.com/trezcool/metalearn/core/file"
)

const fileColumns = `id, owner_id, original_filename, stored_path, content_type, size, created_at`

type fileRow struct {
	ID               string    `db:"id"`
	OwnerID          string    `db:"owner_id"`
	OriginalFilename string    `db:"original_filename"`
	StoredPath       string    `db:"stored_path"`
	ContentType      string    `db:"content_type"`
	Size             int64     `db:"size"`
	CreatedAt        time.Time `db:"created_at"`
}

func (r fileRow) toFile() file.File {
	return file.File{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		OriginalFilename: r.OriginalFilename,
		StoredPath:       r.StoredPath,
		ContentType:      r.ContentType,
		Size:             r.Size,
		CreatedAt:        r.CreatedAt.UTC(),
	}
}

type fileRepository struct {
	repository
}

var _ file.Repository = (*fileRepository)(nil) // interface compliance check

func NewFileRepository(exec core.DBExecutor) *fileRepository {
	return &fileRepository{repository{exec: exec}}
}

func (repo fileRepository) CreateFile(ctx context.Context, f file.File) (file.File, error) {
	f.CreatedAt = f.CreatedAt.UTC()
	row := fileRow{
		ID:               f.ID,
		OwnerID:          f.OwnerID,
		OriginalFilename: f.OriginalFilename,
		StoredPath:       f.StoredPath,
		ContentType:      f.ContentType,
		Size:             f.Size,
		CreatedAt:        f.CreatedAt,
	}
	q := `INSERT INTO file (` + fileColumns + `)
		VALUES (:id, :owner_id, :original_filename, :stored_path, :content_type, :size, :created_at)`
	if _, err := repo.exec.NamedExecContext(ctx, q, row); err != nil {
		return file.File{}, errors.Wrap(err, "inserting file")
	}
	return f, nil
}

func (repo fileRepository) ListFiles(ctx context.Context, ownerID string) ([]file.File, error) {
	q := `SELECT ` + fileColumns + ` FROM file WHERE owner_id = ? ORDER BY created_at, id`

	var rows []fileRow
	if err := repo.exec.SelectContext(ctx, &rows, repo.rebind(q), ownerID); err != nil {
		return nil, errors.Wrap(err, "querying files")
	}
	files := make([]file.File, 0, len(rows))
	for _, r := range rows {
		files = append(files, r.toFile())
	}
	return files, nil
}

func (repo fileRepository) GetFile(ctx context.Context, id string) (file.File, error) {
	q := `SELECT ` + fileColumns + ` FROM file WHERE id = ?`

	var row fileRow
	if err := repo.exec.GetContext(ctx, &row, repo.rebind(q), id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return file.File{}, file.ErrNotFound
		}
		return file.File{}, errors.Wrap(err, "finding file")
	}
	return row.toFile(), nil
}

func (repo fileRepository) DeleteFile(ctx context.Context, id string) error {
	res, err := repo.exec.ExecContext(ctx, repo.rebind(`DELETE FROM file WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "deleting file")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return file.ErrNotFound
	}
	return nil
}
