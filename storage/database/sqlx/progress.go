package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/metalearn/core"
	"github.com/trezcool/metalearn/core/progress"
)

const progressColumns = `id, user_id, module_name, progress, struggling, last_active, created_at, updated_at`

type progressRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	ModuleName string    `db:"module_name"`
	Progress   float64   `db:"progress"`
	Struggling bool      `db:"struggling"`
	LastActive null.Time `db:"last_active"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func toProgressRow(rec progress.Record) progressRow {
	row := progressRow{
		ID:         rec.ID,
		UserID:     rec.UserID,
		ModuleName: rec.ModuleName,
		Progress:   rec.Progress,
		Struggling: rec.Struggling,
		CreatedAt:  rec.CreatedAt.UTC(),
		UpdatedAt:  rec.UpdatedAt.UTC(),
	}
	if rec.LastActive != nil {
		row.LastActive = null.TimeFrom(rec.LastActive.UTC())
	}
	return row
}

func (r progressRow) toRecord() progress.Record {
	rec := progress.Record{
		ID:         r.ID,
		UserID:     r.UserID,
		ModuleName: r.ModuleName,
		Progress:   r.Progress,
		Struggling: r.Struggling,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.LastActive.Valid {
		la := r.LastActive.Time.UTC()
		rec.LastActive = &la
	}
	return rec
}

type progressRepository struct {
	repository
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(exec core.DBExecutor) *progressRepository {
	return &progressRepository{repository{exec: exec}}
}

func (repo progressRepository) FetchProgressForUser(ctx context.Context, userID string) ([]progress.Record, error) {
	q := `SELECT ` + progressColumns + ` FROM progress WHERE user_id = ? ORDER BY created_at, module_name`

	var rows []progressRow
	if err := repo.exec.SelectContext(ctx, &rows, repo.rebind(q), userID); err != nil {
		return nil, errors.Wrap(err, "querying progress")
	}
	records := make([]progress.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toRecord())
	}
	return records, nil
}

// UpsertProgress relies on the (user_id, module_name) unique index; created_at is kept on update.
func (repo progressRepository) UpsertProgress(ctx context.Context, rec progress.Record) (progress.Record, error) {
	rec.ID = uuid.New().String()
	q := `INSERT INTO progress (` + progressColumns + `)
		VALUES (:id, :user_id, :module_name, :progress, :struggling, :last_active, :created_at, :updated_at)
		ON CONFLICT (user_id, module_name) DO UPDATE SET
			progress = excluded.progress,
			struggling = excluded.struggling,
			last_active = excluded.last_active,
			updated_at = excluded.updated_at`
	if _, err := repo.exec.NamedExecContext(ctx, q, toProgressRow(rec)); err != nil {
		return progress.Record{}, errors.Wrap(err, "upserting progress")
	}

	var row progressRow
	q = `SELECT ` + progressColumns + ` FROM progress WHERE user_id = ? AND module_name = ?`
	if err := repo.exec.GetContext(ctx, &row, repo.rebind(q), rec.UserID, rec.ModuleName); err != nil {
		return progress.Record{}, errors.Wrap(err, "fetching upserted progress")
	}
	return row.toRecord(), nil
}
