// Package digest mails each active student the remediation recommendations of the virtual tutor.
package digest

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/metalearn/core"
	"github.com/trezcool/metalearn/core/progress"
	"github.com/trezcool/metalearn/core/user"
)

const templateName = "remediation_digest"

type (
	Service struct {
		usrSvc      user.Service
		progressSvc progress.Service
		mailSvc     core.EmailService
		logger      core.Logger
	}

	templateData struct {
		Name            string
		Recommendations []progress.Recommendation
	}
)

func NewService(usrSvc user.Service, progressSvc progress.Service, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		usrSvc:      usrSvc,
		progressSvc: progressSvc,
		mailSvc:     mailSvc,
		logger:      logger,
	}
}

// Start runs the digest on the cron schedule until ctx is done.
// An empty schedule disables the digest.
func (s *Service) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		s.logger.Info("remediation digest disabled")
		return nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(schedule, func() {
		sent, err := s.Run(ctx)
		if err != nil {
			s.logger.Error(fmt.Sprintf("remediation digest: %v", err), err)
			return
		}
		s.logger.Info("remediation digest sent", map[string]interface{}{"sent": sent})
	})
	if err != nil {
		return errors.Wrapf(err, "scheduling remediation digest %q", schedule)
	}

	c.Start()
	s.logger.Info("remediation digest scheduled", map[string]interface{}{"schedule": schedule})

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Run mails the recommendations to every active student having some and returns the number of mails sent.
// A failure for one student is logged and does not stop the run.
func (s *Service) Run(ctx context.Context) (int, error) {
	active := true
	students, err := s.usrSvc.Query(ctx, user.QueryFilter{Roles: []string{user.RoleStudent}, IsActive: &active})
	if err != nil {
		return 0, errors.Wrap(err, "querying students")
	}

	messages := make([]*core.EmailMessage, 0, len(students))
	for _, usr := range students {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		recs, err := s.progressSvc.RecommendRemediation(ctx, usr.ID, nil)
		if err != nil {
			s.logger.Error(fmt.Sprintf("recommending remediation: %v", err), err, usr)
			continue
		}
		if len(recs) == 0 {
			continue
		}
		messages = append(messages, digestMail(usr, recs))
	}

	if len(messages) > 0 {
		s.mailSvc.SendMessages(messages...)
	}
	return len(messages), nil
}

func digestMail(usr user.User, recs []progress.Recommendation) *core.EmailMessage {
	name := usr.Name
	if name == "" {
		name = usr.Email
	}
	return &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Your learning recommendations",
		TemplateName: templateName,
		TemplateData: templateData{Name: name, Recommendations: recs},
	}
}
