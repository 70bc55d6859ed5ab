package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/mailbox"
)

const emailAccountColumns = `id, user_id, first_name, last_name, address, kind, personal_email, status, failure_reason,
	created_by, created_at, updated_at, provisioned_at`

var emailAccountOrdering = map[string]string{
	"address":        "address",
	"last_name":      "last_name",
	"status":         "status",
	"created_at":     "created_at",
	"provisioned_at": "provisioned_at",
}

type emailAccountRow struct {
	ID            string      `db:"id"`
	UserID        null.String `db:"user_id"`
	FirstName     string      `db:"first_name"`
	LastName      string      `db:"last_name"`
	Address       string      `db:"address"`
	Kind          string      `db:"kind"`
	PersonalEmail string      `db:"personal_email"`
	Status        string      `db:"status"`
	FailureReason string      `db:"failure_reason"`
	CreatedBy     null.String `db:"created_by"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
	ProvisionedAt null.Time   `db:"provisioned_at"`
}

func toEmailAccountRow(acct mailbox.EmailAccount) emailAccountRow {
	return emailAccountRow{
		ID:            acct.ID,
		UserID:        nullString(acct.UserID),
		FirstName:     acct.FirstName,
		LastName:      acct.LastName,
		Address:       acct.Address,
		Kind:          acct.Kind,
		PersonalEmail: acct.PersonalEmail,
		Status:        acct.Status,
		FailureReason: acct.FailureReason,
		CreatedBy:     nullString(acct.CreatedBy),
		CreatedAt:     acct.CreatedAt.UTC(),
		UpdatedAt:     acct.UpdatedAt.UTC(),
		ProvisionedAt: nullTime(acct.ProvisionedAt),
	}
}

func (r emailAccountRow) account() mailbox.EmailAccount {
	return mailbox.EmailAccount{
		ID:            r.ID,
		UserID:        r.UserID.String,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Address:       r.Address,
		Kind:          r.Kind,
		PersonalEmail: r.PersonalEmail,
		Status:        r.Status,
		FailureReason: r.FailureReason,
		CreatedBy:     r.CreatedBy.String,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		ProvisionedAt: timeOf(r.ProvisionedAt),
	}
}

type emailAccountRepository struct {
	db *sqlx.DB
}

var _ mailbox.Repository = (*emailAccountRepository)(nil)

func NewEmailAccountRepository(db *sqlx.DB) *emailAccountRepository {
	return &emailAccountRepository{db: db}
}

func (repo emailAccountRepository) CreateAccount(ctx context.Context, acct mailbox.EmailAccount) (mailbox.EmailAccount, error) {
	acct.ID = uuid.New().String()
	q := `INSERT INTO email_account (` + emailAccountColumns + `)
		VALUES (:id, :user_id, :first_name, :last_name, :address, :kind, :personal_email, :status, :failure_reason,
			:created_by, :created_at, :updated_at, :provisioned_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toEmailAccountRow(acct)); err != nil {
		if isUniqueViolation(err, "email_account_address_key") {
			return mailbox.EmailAccount{}, mailbox.ErrAddressExists
		}
		return mailbox.EmailAccount{}, errors.Wrap(err, "inserting email account")
	}
	return acct, nil
}

func (repo emailAccountRepository) QueryAccounts(ctx context.Context, filter *mailbox.QueryFilter, ordering []core.DBOrdering) ([]mailbox.EmailAccount, error) {
	var where whereClause
	if filter != nil {
		if filter.Search != "" {
			val := contains(filter.Search)
			where.add("(first_name ILIKE ? OR last_name ILIKE ? OR address ILIKE ? OR personal_email ILIKE ?)",
				val, val, val, val)
		}
		if len(filter.Status) > 0 {
			where.add("status = ANY(?)", pq.Array(filter.Status))
		}
		if filter.Kind != "" {
			where.add("kind = ?", filter.Kind)
		}
	}
	q := `SELECT ` + emailAccountColumns + ` FROM email_account` + where.String() +
		` ORDER BY ` + core.OrderBy(ordering, emailAccountOrdering, "created_at DESC")

	var rows []emailAccountRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying email accounts")
	}
	accounts := make([]mailbox.EmailAccount, 0, len(rows))
	for _, r := range rows {
		accounts = append(accounts, r.account())
	}
	return accounts, nil
}

func (repo emailAccountRepository) GetAccount(ctx context.Context, id string) (mailbox.EmailAccount, error) {
	if !validUUID(id) {
		return mailbox.EmailAccount{}, mailbox.ErrNotFound
	}
	var row emailAccountRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+emailAccountColumns+` FROM email_account WHERE id = $1`, id); err != nil {
		return mailbox.EmailAccount{}, trapNoRowsErr(err, mailbox.ErrNotFound, "finding email account")
	}
	return row.account(), nil
}

func (repo emailAccountRepository) AddressExists(ctx context.Context, address string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM email_account WHERE address = $1)`, address)
	return exists, errors.Wrap(err, "checking address")
}

func (repo emailAccountRepository) UpdateAccount(ctx context.Context, acct mailbox.EmailAccount) (mailbox.EmailAccount, error) {
	q := `UPDATE email_account SET user_id = :user_id, first_name = :first_name, last_name = :last_name,
		personal_email = :personal_email, status = :status, failure_reason = :failure_reason,
		updated_at = :updated_at, provisioned_at = :provisioned_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toEmailAccountRow(acct))
	if err != nil {
		return mailbox.EmailAccount{}, errors.Wrap(err, "updating email account")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mailbox.EmailAccount{}, mailbox.ErrNotFound
	}
	return acct, nil
}

func (repo emailAccountRepository) DeleteAccount(ctx context.Context, id string) error {
	if !validUUID(id) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM email_account WHERE id = $1`, id)
	return errors.Wrap(err, "deleting email account")
}
