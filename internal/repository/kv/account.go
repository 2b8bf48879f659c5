package kv

import (
	"context"
	"sync"

	"github.com/sakif/ticketflow/internal/apperror"
	"github.com/sakif/ticketflow/internal/model"
	"github.com/sakif/ticketflow/internal/repository"
	"github.com/sakif/ticketflow/internal/storage"
)

var _ repository.AccountRepository = (*AccountRepo)(nil)

// AccountRepo stores accounts as a JSON array under KeyAccounts.
type AccountRepo struct {
	store storage.Storage
	mu    sync.Mutex
}

func NewAccountRepo(store storage.Storage) *AccountRepo {
	return &AccountRepo{store: store}
}

func (r *AccountRepo) load(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	if _, err := loadJSON(ctx, r.store, KeyAccounts, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// FindByEmail matches the email exactly; no case folding.
func (r *AccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].Email == email {
			a := accounts[i]
			return &a, nil
		}
	}
	return nil, apperror.NotFound("account", email)
}

func (r *AccountRepo) Create(ctx context.Context, account *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.load(ctx)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if a.Email == account.Email {
			return apperror.DuplicateAccount()
		}
	}
	return saveJSON(ctx, r.store, KeyAccounts, append(accounts, *account))
}
