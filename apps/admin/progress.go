package main

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trezcool/metalearn/core"
	"github.com/trezcool/metalearn/core/progress"
	"github.com/trezcool/metalearn/core/user"
)

func (cli *commandLine) findUser(ctx context.Context, email string) (user.User, error) {
	return cli.usrRepo.GetUser(ctx, user.GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// setProgress upserts the progress of the student owning email on module.
func (cli *commandLine) setProgress(email, module string, pct float64, struggling bool) error {
	ctx := context.Background()
	usr, err := cli.findUser(ctx, email)
	if err != nil {
		return err
	}

	data := progress.SetRecord{
		UserID:     usr.ID,
		ModuleName: module,
		Progress:   &pct,
		Struggling: struggling,
	}
	if err = data.Validate(cli.validate); err != nil {
		return err
	}
	rec, err := cli.progressSvc.Set(ctx, data)
	if err != nil {
		return err
	}
	return cli.printJSON(rec)
}

// recommend prints the recommender output for the student owning email.
func (cli *commandLine) recommend(email string, threshold *float64) error {
	ctx := context.Background()
	usr, err := cli.findUser(ctx, email)
	if err != nil {
		return err
	}
	recs, err := cli.progressSvc.RecommendRemediation(ctx, usr.ID, threshold)
	if err != nil {
		return err
	}
	return cli.printJSON(recs)
}

func (cli *commandLine) printJSON(v interface{}) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encoding output")
}
