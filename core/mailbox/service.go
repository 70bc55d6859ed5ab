package mailbox

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("email account not found")
	ErrAddressExists = errors.New("address already in use")

	errEmptyLocalPart = "cannot build an email address from this name"
	errWrongStatus    = "this action is not allowed on a %s account"

	maxAddressSuffix = 1000
	pwdAlphabet      = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	pwdLen           = 10
)

type (
	// Provisioner manages mailboxes on the mail server.
	Provisioner interface {
		CreateMailbox(ctx context.Context, acct EmailAccount, password string) error
		SetPassword(ctx context.Context, address, password string) error
		SetSuspended(ctx context.Context, address string, suspended bool) error
		DeleteMailbox(ctx context.Context, address string) error
	}

	Repository interface {
		// CreateAccount returns ErrAddressExists when the address is taken.
		CreateAccount(ctx context.Context, acct EmailAccount) (EmailAccount, error)
		// QueryAccounts applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of names, address or personal email.
		QueryAccounts(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]EmailAccount, error)
		GetAccount(ctx context.Context, id string) (EmailAccount, error)
		AddressExists(ctx context.Context, address string) (bool, error)
		UpdateAccount(ctx context.Context, acct EmailAccount) (EmailAccount, error)
		DeleteAccount(ctx context.Context, id string) error
	}

	ServiceInterface interface {
		Provision(na NewEmailAccount, createdBy string) (EmailAccount, error)
		RetryFailed(id string) (EmailAccount, error)
		Suspend(id string) (EmailAccount, error)
		Reactivate(id string) (EmailAccount, error)
		ResetPassword(id string) (EmailAccount, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]EmailAccount, error)
		Get(id string) (EmailAccount, error)
		Delete(id string) error
	}

	Service struct {
		repo        Repository
		provisioner Provisioner
		mailSvc     core.EmailService
		domain      string
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, provisioner Provisioner, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:        repo,
		provisioner: provisioner,
		mailSvc:     mailSvc,
		domain:      conf.Mailbox.Domain,
	}
}

// ProvisionError is returned when the provisioner refused or failed to act on a mailbox.
type ProvisionError struct {
	Account EmailAccount
	Err     error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning %s: %v", e.Account.Address, e.Err)
}

func IsProvisionError(err error) bool {
	_, ok := errors.Cause(err).(*ProvisionError)
	return ok
}

func newPassword() (string, error) {
	pwd, err := core.RandomString(pwdLen, pwdAlphabet)
	if err != nil {
		return "", err
	}
	// satisfy the usual complexity rules of mail servers
	return pwd + "#1", nil
}

// nextAddress returns the first free `first.last[N]@domain` address.
func (svc *Service) nextAddress(ctx context.Context, local string) (string, error) {
	for n := 1; n <= maxAddressSuffix; n++ {
		candidate := local
		if n > 1 {
			candidate = fmt.Sprintf("%s%d", local, n)
		}
		addr := candidate + "@" + svc.domain
		exists, err := svc.repo.AddressExists(ctx, addr)
		if err != nil {
			return "", errors.Wrap(err, "checking address")
		}
		if !exists {
			return addr, nil
		}
	}
	return "", core.NewValidationError(ErrAddressExists, core.FieldError{Field: "last_name", Error: ErrAddressExists.Error()})
}

// Provision reserves an address, creates the mailbox and mails the credentials to the personal email.
// When the provisioner fails, the account is kept as failed and a *ProvisionError is returned.
func (svc *Service) Provision(na NewEmailAccount, createdBy string) (EmailAccount, error) {
	ctx := context.Background()

	local := LocalPart(na.FirstName, na.LastName)
	if local == "" {
		return EmailAccount{}, core.NewValidationError(nil,
			core.FieldError{Field: "first_name", Error: errEmptyLocalPart},
			core.FieldError{Field: "last_name", Error: errEmptyLocalPart},
		)
	}

	now := core.Now()
	acct := EmailAccount{
		UserID:        na.UserID,
		FirstName:     na.FirstName,
		LastName:      na.LastName,
		Kind:          na.Kind,
		PersonalEmail: na.PersonalEmail,
		Status:        StatusPending,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if acct.Address, err = svc.nextAddress(ctx, local); err != nil {
			return EmailAccount{}, err
		}
		var created EmailAccount
		if created, err = svc.repo.CreateAccount(ctx, acct); err == nil {
			acct = created
			break
		}
		if errors.Cause(err) != ErrAddressExists {
			return EmailAccount{}, errors.Wrap(err, "creating account")
		}
	}
	if err != nil {
		return EmailAccount{}, errors.Wrap(err, "reserving address")
	}

	return svc.create(ctx, acct)
}

func (svc *Service) create(ctx context.Context, acct EmailAccount) (EmailAccount, error) {
	pwd, err := newPassword()
	if err != nil {
		return EmailAccount{}, errors.Wrap(err, "generating password")
	}

	acct.UpdatedAt = core.Now()
	if pErr := svc.provisioner.CreateMailbox(ctx, acct, pwd); pErr != nil {
		acct.Status = StatusFailed
		acct.FailureReason = pErr.Error()
		if acct, err = svc.repo.UpdateAccount(ctx, acct); err != nil {
			return EmailAccount{}, errors.Wrap(err, "updating account")
		}
		return acct, &ProvisionError{Account: acct, Err: pErr}
	}

	acct.Status = StatusActive
	acct.FailureReason = ""
	acct.ProvisionedAt = acct.UpdatedAt
	if acct, err = svc.repo.UpdateAccount(ctx, acct); err != nil {
		return EmailAccount{}, errors.Wrap(err, "updating account")
	}
	svc.sendCredentials(acct, pwd)
	return acct, nil
}

func (svc *Service) sendCredentials(acct EmailAccount, pwd string) {
	if acct.PersonalEmail == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: acct.FullName(), Address: acct.PersonalEmail}},
		Subject:      "Your email account",
		TemplateName: "mailbox_credentials",
		TemplateData: map[string]interface{}{
			"Name":     acct.FullName(),
			"Address":  acct.Address,
			"Password": pwd,
		},
	})
}

// getWithStatus returns the account when its status is one of statuses.
func (svc *Service) getWithStatus(ctx context.Context, id string, statuses ...string) (EmailAccount, error) {
	acct, err := svc.repo.GetAccount(ctx, id)
	if err != nil {
		return EmailAccount{}, err
	}
	if !core.StringInSlice(acct.Status, statuses) {
		return EmailAccount{}, core.NewValidationError(fmt.Errorf(errWrongStatus, acct.Status))
	}
	return acct, nil
}

func (svc *Service) RetryFailed(id string) (EmailAccount, error) {
	ctx := context.Background()
	acct, err := svc.getWithStatus(ctx, id, StatusFailed, StatusPending)
	if err != nil {
		return EmailAccount{}, err
	}
	return svc.create(ctx, acct)
}

func (svc *Service) setSuspended(id string, suspended bool) (EmailAccount, error) {
	ctx := context.Background()
	from, to := StatusActive, StatusSuspended
	if !suspended {
		from, to = StatusSuspended, StatusActive
	}
	acct, err := svc.getWithStatus(ctx, id, from)
	if err != nil {
		return EmailAccount{}, err
	}
	if err = svc.provisioner.SetSuspended(ctx, acct.Address, suspended); err != nil {
		return EmailAccount{}, &ProvisionError{Account: acct, Err: err}
	}
	acct.Status = to
	acct.UpdatedAt = core.Now()
	return svc.repo.UpdateAccount(ctx, acct)
}

func (svc *Service) Suspend(id string) (EmailAccount, error) {
	return svc.setSuspended(id, true)
}

func (svc *Service) Reactivate(id string) (EmailAccount, error) {
	return svc.setSuspended(id, false)
}

// ResetPassword sets a new temporary password and mails it to the personal email.
func (svc *Service) ResetPassword(id string) (EmailAccount, error) {
	ctx := context.Background()
	acct, err := svc.getWithStatus(ctx, id, StatusActive)
	if err != nil {
		return EmailAccount{}, err
	}
	pwd, err := newPassword()
	if err != nil {
		return EmailAccount{}, errors.Wrap(err, "generating password")
	}
	if err = svc.provisioner.SetPassword(ctx, acct.Address, pwd); err != nil {
		return EmailAccount{}, &ProvisionError{Account: acct, Err: err}
	}
	acct.UpdatedAt = core.Now()
	if acct, err = svc.repo.UpdateAccount(ctx, acct); err != nil {
		return EmailAccount{}, errors.Wrap(err, "updating account")
	}
	svc.sendCredentials(acct, pwd)
	return acct, nil
}

func (svc *Service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]EmailAccount, error) {
	return svc.repo.QueryAccounts(context.Background(), filter, ordering)
}

func (svc *Service) Get(id string) (EmailAccount, error) {
	return svc.repo.GetAccount(context.Background(), id)
}

// Delete deprovisions the mailbox when one exists, then removes the account.
func (svc *Service) Delete(id string) error {
	ctx := context.Background()
	acct, err := svc.repo.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if acct.Status == StatusActive || acct.Status == StatusSuspended {
		if err = svc.provisioner.DeleteMailbox(ctx, acct.Address); err != nil {
			return &ProvisionError{Account: acct, Err: err}
		}
	}
	return svc.repo.DeleteAccount(ctx, id)
}
