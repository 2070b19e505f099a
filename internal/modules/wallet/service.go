// README: Wallet ledger service: registration, balances, and atomic transfers.
package wallet

import (
	"context"
	"errors"
	"time"

	"hail/internal/types"
)

var (
	ErrNotFound          = errors.New("account not found")
	ErrNameTaken         = errors.New("account name already taken")
	ErrValidation        = errors.New("invalid wallet operation")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type RegisterCommand struct {
	Name         string
	PasswordHash string
	Role         types.Role
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Account, error) {
	if cmd.Name == "" || cmd.PasswordHash == "" || !cmd.Role.Valid() {
		return nil, ErrValidation
	}
	a := &Account{
		ID:           types.NewID(),
		Name:         cmd.Name,
		PasswordHash: cmd.PasswordHash,
		Role:         cmd.Role,
		Balance:      types.NewMoney(0),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Account, error) {
	return s.store.GetAccount(ctx, id)
}

func (s *Service) GetByName(ctx context.Context, name string) (*Account, error) {
	return s.store.GetByName(ctx, name)
}

func (s *Service) Balance(ctx context.Context, id types.ID) (types.Money, error) {
	a, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return types.Money{}, err
	}
	return a.Balance, nil
}

// Deposit credits the account. A zero amount is a successful no-op.
func (s *Service) Deposit(ctx context.Context, id types.ID, amount int64) (types.Money, error) {
	if amount < 0 {
		return types.Money{}, ErrValidation
	}
	if amount == 0 {
		return s.Balance(ctx, id)
	}
	balance, err := s.store.Deposit(ctx, id, amount)
	if err != nil {
		return types.Money{}, err
	}
	return types.NewMoney(balance), nil
}

func (s *Service) Withdraw(ctx context.Context, id types.ID, amount int64) (types.Money, error) {
	if amount < 0 {
		return types.Money{}, ErrValidation
	}
	if amount == 0 {
		return s.Balance(ctx, id)
	}
	balance, err := s.store.Withdraw(ctx, id, amount)
	if err != nil {
		return types.Money{}, err
	}
	return types.NewMoney(balance), nil
}

// Transfer moves amount from payer to payee as one atomic unit: either both
// balances change by exactly amount or neither does.
func (s *Service) Transfer(ctx context.Context, payer, payee types.ID, amount int64) error {
	if amount < 0 {
		return ErrValidation
	}
	if amount == 0 {
		return nil
	}
	return s.store.Transfer(ctx, payer, payee, amount)
}

func (s *Service) SetOnline(ctx context.Context, id types.ID) error {
	return s.store.SetPresence(ctx, id, true)
}

func (s *Service) SetOffline(ctx context.Context, id types.ID) error {
	return s.store.SetPresence(ctx, id, false)
}

func (s *Service) UpdatePosition(ctx context.Context, id types.ID, pos types.Point) error {
	return s.store.UpdatePosition(ctx, id, pos, time.Now().UTC())
}

func (s *Service) CountByRole(ctx context.Context) (map[types.Role]int, error) {
	return s.store.CountByRole(ctx)
}
