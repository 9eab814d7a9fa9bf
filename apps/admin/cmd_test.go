package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/metalearn/core"
	"github.com/trezcool/metalearn/core/progress"
	"github.com/trezcool/metalearn/core/user"
	sqlxrepos "github.com/trezcool/metalearn/storage/database/sqlx"
	testutil "github.com/trezcool/metalearn/tests"
)

type testEnv struct {
	cli          *commandLine
	out          *bytes.Buffer
	usrRepo      user.Repository
	progressRepo progress.Repository
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.PrepareDB(t)
	progressRepo := sqlxrepos.NewProgressRepository(db)
	progressSvc, err := progress.NewService(progressRepo, progress.DefaultThreshold)
	require.NoError(t, err)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	out := new(bytes.Buffer)
	env := &testEnv{
		out:          out,
		usrRepo:      sqlxrepos.NewUserRepository(db),
		progressRepo: progressRepo,
	}
	env.cli = &commandLine{
		db:          db,
		usrRepo:     env.usrRepo,
		progressSvc: progressSvc,
		validate:    validate,
		out:         out,
	}
	return env
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), tt.wantErrStr)
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	env := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.out.Reset()
			tt.check(t, env.cli.run(append([]string{"admin"}, tt.args...)))
			assert.Contains(t, env.out.String(), "Usage:")
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	env := setup(t)

	orig := migrateFunc
	t.Cleanup(func() { migrateFunc = orig })
	migrateFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, env.cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_migrateRuns(t *testing.T) {
	env := setup(t)
	assert.NoError(t, env.cli.run([]string{"admin", "migrate", "version"}))
}

func Test_commandLine_addUser(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, pwd: "pwd", wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "tom@test.cd"}, wantErr: errHelp},
		{name: "invalid email", args: []string{"adduser", "-email", "lol"}, pwd: "pwd", wantErrStr: "enter a valid email address"},
		{name: "invalid role", args: []string{"adduser", "-email", "tom@test.cd", "-role", "janitor"}, pwd: "pwd", wantErrStr: "unknown role"},
		{name: "create teacher", args: []string{"adduser", "-email", " Tom@Test.cd", "-name", "Tom", "-role", "teacher"}, pwd: "s3cr3tpwd"},
		{name: "promote to admin", args: []string{"adduser", "-email", "tom@test.cd", "-admin"}, pwd: "n3wpwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			tt.check(t, env.cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	usr, err := env.usrRepo.GetUser(ctx, user.GetFilter{Email: "tom@test.cd"})
	require.NoError(t, err)
	assert.Equal(t, "Tom", usr.Name)
	assert.Equal(t, user.RoleAdmin, usr.Role)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("n3wpwd"))

	users, err := env.usrRepo.QueryUsers(ctx, user.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func Test_commandLine_resetPassword(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.usrRepo, "User", "awe@test.cd", "mdr", user.RoleStudent, true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", "AWE@test.cd"}, pwd: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			tt.check(t, env.cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	refreshed, err := env.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NotEqual(t, usr.PasswordHash, refreshed.PasswordHash)
	assert.NoError(t, refreshed.CheckPassword("lmao"))
}

func Test_commandLine_setProgress(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.usrRepo, "Alice", "alice@test.cd", "", user.RoleStudent, true)

	tests := []cliTest{
		{name: "no args", args: []string{"setprogress"}, wantErr: errHelp},
		{name: "no module", args: []string{"setprogress", "-email", "alice@test.cd", "-progress", "10"}, wantErr: errHelp},
		{name: "user not found", args: []string{"setprogress", "-email", "bob@test.cd", "-module", "Ohm", "-progress", "10"}, wantErr: user.ErrNotFound},
		{name: "progress missing", args: []string{"setprogress", "-email", "alice@test.cd", "-module", "Ohm"}, wantErrStr: "progress"},
		{name: "progress out of range", args: []string{"setprogress", "-email", "alice@test.cd", "-module", "Ohm", "-progress", "101"}, wantErrStr: "progress"},
		{name: "bad progress flag", args: []string{"setprogress", "-email", "alice@test.cd", "-module", "Ohm", "-progress", "lol"}, wantErrStr: "invalid value"},
		{name: "set", args: []string{"setprogress", "-email", "alice@test.cd", "-module", "Electrical Basics", "-progress", "50"}},
		{name: "set struggling", args: []string{"setprogress", "-email", "alice@test.cd", "-module", "Advanced Circuits", "-progress", "30", "-struggling"}},
		{name: "update", args: []string{"setprogress", "-email", "alice@test.cd", "-module", "Electrical Basics", "-progress", "75.5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, env.cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	recs, err := env.progressRepo.FetchProgressForUser(context.Background(), usr.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Electrical Basics", recs[0].ModuleName)
	assert.Equal(t, 75.5, recs[0].Progress)
	assert.Equal(t, "Advanced Circuits", recs[1].ModuleName)
	assert.True(t, recs[1].Struggling)
	assert.NotNil(t, recs[1].LastActive)
}

func Test_commandLine_recommend(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.usrRepo, "Alice", "alice@test.cd", "", user.RoleStudent, true)
	lastActive := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	testutil.SetProgress(t, env.progressRepo, usr.ID, "Electrical Basics", 50, false, lastActive)
	testutil.SetProgress(t, env.progressRepo, usr.ID, "Advanced Circuits", 30, true, time.Time{})
	testutil.SetProgress(t, env.progressRepo, usr.ID, "Safety", 90, false, lastActive)

	tests := []struct {
		name        string
		args        []string
		wantErr     error
		wantModules []string
	}{
		{name: "no args", args: []string{"recommend"}, wantErr: errHelp},
		{name: "user not found", args: []string{"recommend", "-email", "bob@test.cd"}, wantErr: user.ErrNotFound},
		{name: "default threshold", args: []string{"recommend", "-email", "alice@test.cd"}, wantModules: []string{"Electrical Basics", "Advanced Circuits"}},
		{name: "low threshold", args: []string{"recommend", "-email", "alice@test.cd", "-threshold", "40"}, wantModules: []string{"Advanced Circuits"}},
		{name: "high threshold", args: []string{"recommend", "-email", "alice@test.cd", "-threshold", "100"}, wantModules: []string{"Electrical Basics", "Advanced Circuits", "Safety"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.out.Reset()
			err := env.cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)

			var got []progress.Recommendation
			require.NoError(t, json.Unmarshal(env.out.Bytes(), &got))
			modules := make([]string, 0, len(got))
			for _, r := range got {
				modules = append(modules, r.ModuleName)
			}
			assert.Equal(t, tt.wantModules, modules)
		})
	}

	t.Run("threshold out of range", func(t *testing.T) {
		err := env.cli.run([]string{"admin", "recommend", "-email", "alice@test.cd", "-threshold", "120"})
		assert.True(t, core.IsValidationError(err))
	})
}
