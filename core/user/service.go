package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/metalearn/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	// GetFilter looks a single user up by one of its unique fields; ID takes precedence.
	GetFilter struct {
		ID    string
		Email string
	}

	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service interface {
		Register(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter QueryFilter) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	service struct {
		repo     Repository
		mailSvc  core.EmailService
		tokenGen *tokenGenerator
		nowFunc  func() time.Time
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:     repo,
		mailSvc:  mailSvc,
		tokenGen: newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		nowFunc:  time.Now,
	}
}

func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.repo.CheckEmailUniqueness(ctx, nu.Email); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, core.NewFieldValidationError("email", ErrEmailExists)
		}
		return User{}, errors.Wrap(err, "checking email uniqueness")
	}

	now := svc.nowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Role == "" {
		usr.Role = RoleStudent
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{Email: email})
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = svc.nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = svc.nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// RequestPasswordReset mails a password reset link to the active user owning email.
// ErrNotFound is returned for unknown or inactive users; callers should not leak it.
func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}

	svc.mailSvc.SendMessages(svc.passwordResetMail(usr))
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	errInvalid := core.NewValidationError(errors.New("invalid or expired password reset link"))

	id, err := decodeUID(data.UID)
	if err != nil {
		return errInvalid
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return errInvalid
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokenGen.verifyToken(usr, data.Token); err != nil {
		return errInvalid
	}

	_, err = svc.SetPassword(ctx, usr, data.Password)
	return err
}

func (svc *service) passwordResetMail(usr User) *core.EmailMessage {
	name := usr.Name
	if name == "" {
		name = usr.Email
	}
	return &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  name,
			"UID":   EncodeUID(usr),
			"Token": svc.tokenGen.makeToken(usr),
		},
	}
}
