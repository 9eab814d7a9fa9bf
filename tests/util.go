// Package testutil holds helpers shared by the test suites.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/metalearn/core"
	"github.com/trezcool/metalearn/core/progress"
	"github.com/trezcool/metalearn/core/user"
	"github.com/trezcool/metalearn/storage/database"
)

// PrepareDB opens a fresh migrated in-memory sqlite database, closed at the end of the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	goose.SetLogger(goose.NopLogger())

	db, err := database.Open(core.NewTestConfig())
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db, "up"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// SetProgress upserts a progress record; a zero lastActive is stored as NULL.
func SetProgress(
	t *testing.T,
	repo progress.Repository,
	userID, module string,
	pct float64,
	struggling bool,
	lastActive time.Time,
) progress.Record {
	t.Helper()
	now := time.Now().UTC()
	rec := progress.Record{
		UserID:     userID,
		ModuleName: module,
		Progress:   pct,
		Struggling: struggling,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if !lastActive.IsZero() {
		la := lastActive.UTC()
		rec.LastActive = &la
	}
	rec, err := repo.UpsertProgress(context.Background(), rec)
	if err != nil {
		t.Fatalf("SetProgress() failed: %v", err)
	}
	return rec
}
