package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/metalearn/core"
	"github.com/trezcool/metalearn/core/user"
)

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, email, role, pwd string) (user.User, error) {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	role = core.CleanString(role, true /* lower */)

	if err := cli.validate.Var(email, "required,email,max=255"); err != nil {
		return user.User{}, core.NewFieldValidationError("email", errors.New("enter a valid email address"))
	}
	if err := cli.validate.Var(role, "required,role"); err != nil {
		return user.User{}, core.NewFieldValidationError("role", errors.Errorf("unknown role %q", role))
	}

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	create := false
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, err
		}
		create = true
		usr = user.User{Email: email, CreatedAt: now}
	}

	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	usr.Role = role
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, errors.Wrap(err, "hashing password")
	}

	if create {
		return cli.usrRepo.CreateUser(ctx, usr)
	}
	return cli.usrRepo.UpdateUser(ctx, usr)
}
