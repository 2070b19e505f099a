// README: Ledger invariant tests over the in-memory store (run with -race).
package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hail/internal/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewMemoryStore())
}

func registerFunded(t *testing.T, svc *Service, name string, role types.Role, balance int64) *Account {
	t.Helper()
	a, err := svc.Register(context.Background(), RegisterCommand{
		Name:         name,
		PasswordHash: "x",
		Role:         role,
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	if balance > 0 {
		if _, err := svc.Deposit(context.Background(), a.ID, balance); err != nil {
			t.Fatalf("fund %s: %v", name, err)
		}
	}
	return a
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []RegisterCommand{
		{Name: "", PasswordHash: "x", Role: types.RoleRequester},
		{Name: "ali", PasswordHash: "", Role: types.RoleRequester},
		{Name: "ali", PasswordHash: "x", Role: "rider"},
	}
	for i, cmd := range cases {
		if _, err := svc.Register(ctx, cmd); err != ErrValidation {
			t.Errorf("case %d: got %v, want ErrValidation", i, err)
		}
	}

	a, err := svc.Register(ctx, RegisterCommand{Name: "ali", PasswordHash: "x", Role: types.RoleRequester})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if a.CreatedAt.Location() != time.UTC {
		t.Errorf("created_at location = %v, want UTC", a.CreatedAt.Location())
	}
	if _, err := svc.Register(ctx, RegisterCommand{Name: "ali", PasswordHash: "y", Role: types.RoleProvider}); err != ErrNameTaken {
		t.Errorf("duplicate name: got %v, want ErrNameTaken", err)
	}
}

func TestDepositWithdraw(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a := registerFunded(t, svc, "ali", types.RoleRequester, 0)

	bal, err := svc.Deposit(ctx, a.ID, 1000)
	if err != nil || bal.Amount != 1000 {
		t.Fatalf("deposit: bal=%v err=%v", bal, err)
	}
	bal, err = svc.Withdraw(ctx, a.ID, 400)
	if err != nil || bal.Amount != 600 {
		t.Fatalf("withdraw: bal=%v err=%v", bal, err)
	}
	if _, err := svc.Withdraw(ctx, a.ID, 601); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("overdraw: got %v, want ErrInsufficientFunds", err)
	}
	if _, err := svc.Deposit(ctx, a.ID, -5); err != ErrValidation {
		t.Errorf("negative deposit: got %v, want ErrValidation", err)
	}

	// Zero amounts are no-ops that report the balance.
	bal, err = svc.Deposit(ctx, a.ID, 0)
	if err != nil || bal.Amount != 600 {
		t.Errorf("zero deposit: bal=%v err=%v", bal, err)
	}
	bal, err = svc.Withdraw(ctx, a.ID, 0)
	if err != nil || bal.Amount != 600 {
		t.Errorf("zero withdraw: bal=%v err=%v", bal, err)
	}

	if _, err := svc.Deposit(ctx, "missing", 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("deposit to missing account: got %v, want ErrNotFound", err)
	}
}

func TestTransfer(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	payer := registerFunded(t, svc, "payer", types.RoleRequester, 500)
	payee := registerFunded(t, svc, "payee", types.RoleProvider, 0)

	if err := svc.Transfer(ctx, payer.ID, payee.ID, 300); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	assertBalance(t, svc, payer.ID, 200)
	assertBalance(t, svc, payee.ID, 300)

	// Insufficient funds leaves both sides untouched.
	if err := svc.Transfer(ctx, payer.ID, payee.ID, 201); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraw transfer: got %v, want ErrInsufficientFunds", err)
	}
	assertBalance(t, svc, payer.ID, 200)
	assertBalance(t, svc, payee.ID, 300)

	if err := svc.Transfer(ctx, payer.ID, payee.ID, 0); err != nil {
		t.Errorf("zero transfer: %v", err)
	}
	if err := svc.Transfer(ctx, payer.ID, "missing", 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("transfer to missing account: got %v, want ErrNotFound", err)
	}
	assertBalance(t, svc, payer.ID, 200)
}

func TestConcurrentTransfersConserveTotal(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a := registerFunded(t, svc, "a", types.RoleRequester, 10000)
	b := registerFunded(t, svc, "b", types.RoleProvider, 10000)

	// Opposing transfers hammer both accounts; totals must be conserved and
	// no balance may go negative.
	const workers = 8
	const rounds = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := a.ID, b.ID
			if i%2 == 1 {
				from, to = b.ID, a.ID
			}
			for j := 0; j < rounds; j++ {
				err := svc.Transfer(ctx, from, to, 7)
				if err != nil && !errors.Is(err, ErrInsufficientFunds) {
					t.Errorf("transfer: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	balA, _ := svc.Balance(ctx, a.ID)
	balB, _ := svc.Balance(ctx, b.ID)
	if balA.Amount < 0 || balB.Amount < 0 {
		t.Fatalf("negative balance: a=%d b=%d", balA.Amount, balB.Amount)
	}
	if balA.Amount+balB.Amount != 20000 {
		t.Fatalf("total = %d, want 20000", balA.Amount+balB.Amount)
	}
}

func assertBalance(t *testing.T, svc *Service, id types.ID, want int64) {
	t.Helper()
	bal, err := svc.Balance(context.Background(), id)
	if err != nil {
		t.Fatalf("balance %s: %v", id, err)
	}
	if bal.Amount != want {
		t.Fatalf("balance %s = %d, want %d", id, bal.Amount, want)
	}
}
