package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/metalearn/core/progress"
	"github.com/trezcool/metalearn/core/user"
	"github.com/trezcool/metalearn/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	migrateFunc      = database.Migrate  // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db          *sqlx.DB
	usrRepo     user.Repository
	progressSvc progress.Service
	validate    *validator.Validate
	out         io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run a goose migration command (up, down, status, redo, version, ...)")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL [-name NAME] [-role ROLE] [-admin] - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  setprogress -email EMAIL -module MODULE -progress PCT [-struggling] - set a student's module progress")
	fmt.Fprintln(cli.out, "  recommend -email EMAIL [-threshold PCT] - print the remediation recommendations of a student")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		cmd := cli.newFlagSet("adduser")
		email := cmd.String("email", "", "The user's email. The password will be prompted next.")
		name := cmd.String("name", "", "The user's name.")
		role := cmd.String("role", user.RoleStudent, "The user's role: student, teacher or admin.")
		isAdmin := cmd.Bool("admin", false, "Shorthand for -role admin.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			cmd.Usage()
			return errHelp
		}
		if *isAdmin {
			*role = user.RoleAdmin
		}
		_, err = cli.addUser(*name, *email, *role, pwd)
		return err

	case "resetpassword":
		cmd := cli.newFlagSet("resetpassword")
		email := cmd.String("email", "", "The user's email. The password will be prompted next.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*email, pwd)

	case "setprogress":
		cmd := cli.newFlagSet("setprogress")
		email := cmd.String("email", "", "The student's email.")
		module := cmd.String("module", "", "The module name.")
		pct := cmd.Float64("progress", -1, "The progress percentage, between 0 and 100.")
		struggling := cmd.Bool("struggling", false, "Whether the student is struggling with the module.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" || *module == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.setProgress(*email, *module, *pct, *struggling)

	case "recommend":
		cmd := cli.newFlagSet("recommend")
		email := cmd.String("email", "", "The student's email.")
		threshold := cmd.Float64("threshold", -1, "Override the configured threshold (0-100).")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" {
			cmd.Usage()
			return errHelp
		}
		var thr *float64
		if *threshold >= 0 {
			thr = threshold
		}
		return cli.recommend(*email, thr)

	default:
		cli.printUsage()
		return errHelp
	}
}
