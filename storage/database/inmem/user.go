package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/user"
)

var userFields = map[string]field[user.User]{
	"name":       func(u user.User) interface{} { return u.Name },
	"username":   func(u user.User) interface{} { return u.Username },
	"email":      func(u user.User) interface{} { return u.Email },
	"created_at": func(u user.User) interface{} { return u.CreatedAt },
	"last_login": func(u user.User) interface{} { return u.LastLogin },
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) checkUniqueness(username, email string, excludedUsers ...user.User) error {
	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.users {
		if excluded[usr.ID] {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.checkUniqueness(username, email, excludedUsers...)
}

func (repo *userRepository) insert(usr user.User) (user.User, error) {
	if err := repo.checkUniqueness(usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}
	usr.ID = uuid.New().String()
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	return repo.insert(usr)
}

func (repo *userRepository) CreateUsers(_ context.Context, users []user.User) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	var created []string
	for _, usr := range users {
		usr, err := repo.insert(usr)
		if err != nil {
			for _, id := range created {
				delete(repo.db.users, id)
			}
			return err
		}
		created = append(created, usr.ID)
	}
	return nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		if filter != nil {
			// users with search keyword matching any Name, Username or Email ?
			if filter.Search != "" && !containsFold(filter.Search, u.Name, u.Username, u.Email) {
				continue
			}
			// users with any of the specified roles
			if len(filter.Roles) > 0 {
				var hasRole bool
				for _, r := range filter.Roles {
					if u.RoleStartsWith(r) {
						hasRole = true
						break
					}
				}
				if !hasRole {
					continue
				}
			}
			if filter.IsActive != nil && u.IsActive != *filter.IsActive {
				continue
			}
			if !inRange(u.CreatedAt, filter.CreatedFrom, filter.CreatedTo) {
				continue
			}
		}
		users = append(users, u)
	}
	sortRows(users, ordering, userFields, core.DBOrdering{Field: "created_at"})
	return users, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.users {
		switch {
		case filter.Username != "":
			if usr.Username == filter.Username {
				return usr, nil
			}
		case filter.Email != "":
			if usr.Email == filter.Email {
				return usr, nil
			}
		case filter.UsernameOrEmail != "":
			if usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail {
				return usr, nil
			}
		default:
			return user.User{}, user.ErrNotFound
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUniqueness(usr.Username, usr.Email, usr); err != nil {
		return user.User{}, err
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.users[id]; ok {
			delete(repo.db.users, id)
			n++
		}
	}
	return n, nil
}
