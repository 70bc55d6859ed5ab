package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/mailbox"
)

var emailAccountFields = map[string]field[mailbox.EmailAccount]{
	"address":        func(a mailbox.EmailAccount) interface{} { return a.Address },
	"last_name":      func(a mailbox.EmailAccount) interface{} { return a.LastName },
	"status":         func(a mailbox.EmailAccount) interface{} { return a.Status },
	"created_at":     func(a mailbox.EmailAccount) interface{} { return a.CreatedAt },
	"provisioned_at": func(a mailbox.EmailAccount) interface{} { return a.ProvisionedAt },
}

type emailAccountRepository struct {
	db *DB
}

var _ mailbox.Repository = (*emailAccountRepository)(nil)

func NewEmailAccountRepository(db *DB) *emailAccountRepository {
	return &emailAccountRepository{db: db}
}

func (repo *emailAccountRepository) addressExists(address string) bool {
	for _, a := range repo.db.accounts {
		if a.Address == address {
			return true
		}
	}
	return false
}

func (repo *emailAccountRepository) CreateAccount(_ context.Context, acct mailbox.EmailAccount) (mailbox.EmailAccount, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.addressExists(acct.Address) {
		return mailbox.EmailAccount{}, mailbox.ErrAddressExists
	}
	acct.ID = uuid.New().String()
	repo.db.accounts[acct.ID] = acct
	return acct, nil
}

func (repo *emailAccountRepository) QueryAccounts(_ context.Context, filter *mailbox.QueryFilter, ordering []core.DBOrdering) ([]mailbox.EmailAccount, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	accounts := make([]mailbox.EmailAccount, 0, len(repo.db.accounts))
	for _, a := range repo.db.accounts {
		if filter != nil {
			if filter.Search != "" && !containsFold(filter.Search, a.FirstName, a.LastName, a.Address, a.PersonalEmail) {
				continue
			}
			if len(filter.Status) > 0 && !core.StringInSlice(a.Status, filter.Status) {
				continue
			}
			if filter.Kind != "" && a.Kind != filter.Kind {
				continue
			}
		}
		accounts = append(accounts, a)
	}
	sortRows(accounts, ordering, emailAccountFields, core.DBOrdering{Field: "created_at"})
	return accounts, nil
}

func (repo *emailAccountRepository) GetAccount(_ context.Context, id string) (mailbox.EmailAccount, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if acct, ok := repo.db.accounts[id]; ok {
		return acct, nil
	}
	return mailbox.EmailAccount{}, mailbox.ErrNotFound
}

func (repo *emailAccountRepository) AddressExists(_ context.Context, address string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.addressExists(address), nil
}

func (repo *emailAccountRepository) UpdateAccount(_ context.Context, acct mailbox.EmailAccount) (mailbox.EmailAccount, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.accounts[acct.ID]
	if !ok {
		return mailbox.EmailAccount{}, mailbox.ErrNotFound
	}
	// address, kind and creator never change
	acct.Address = orig.Address
	acct.Kind = orig.Kind
	acct.CreatedBy = orig.CreatedBy
	acct.CreatedAt = orig.CreatedAt
	repo.db.accounts[acct.ID] = acct
	return acct, nil
}

func (repo *emailAccountRepository) DeleteAccount(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.accounts, id)
	return nil
}
