// README: Account store contract and the PostgreSQL implementation. Transfer
// locks both rows in id order inside one transaction.
package wallet

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hail/internal/types"
)

type Store interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, id types.ID) (*Account, error)
	GetByName(ctx context.Context, name string) (*Account, error)
	Deposit(ctx context.Context, id types.ID, amount int64) (int64, error)
	Withdraw(ctx context.Context, id types.ID, amount int64) (int64, error)
	Transfer(ctx context.Context, payer, payee types.ID, amount int64) error
	SetPresence(ctx context.Context, id types.ID, online bool) error
	UpdatePosition(ctx context.Context, id types.ID, pos types.Point, at time.Time) error
	CountByRole(ctx context.Context) (map[types.Role]int, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateAccount(ctx context.Context, a *Account) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (id, name, password_hash, role, balance, online, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(a.ID), a.Name, a.PasswordHash, string(a.Role), a.Balance.Amount, a.Online, a.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrNameTaken
	}
	return err
}

const accountColumns = `id, name, password_hash, role, balance, online, position_lat, position_lng, last_active_at, created_at`

func (s *PGStore) GetAccount(ctx context.Context, id types.ID) (*Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, string(id))
	return scanAccount(row)
}

func (s *PGStore) GetByName(ctx context.Context, name string) (*Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE name = $1`, name)
	return scanAccount(row)
}

func (s *PGStore) Deposit(ctx context.Context, id types.ID, amount int64) (int64, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE accounts SET balance = balance + $1 WHERE id = $2
		RETURNING balance`, amount, string(id))
	var balance int64
	err := row.Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return balance, err
}

func (s *PGStore) Withdraw(ctx context.Context, id types.ID, amount int64) (int64, error) {
	// The balance guard in the WHERE clause makes check-and-debit a single
	// statement; a concurrent withdrawal cannot interleave between them.
	row := s.db.QueryRow(ctx, `
		UPDATE accounts SET balance = balance - $1
		WHERE id = $2 AND balance >= $1
		RETURNING balance`, amount, string(id))
	var balance int64
	err := row.Scan(&balance)
	if !errors.Is(err, pgx.ErrNoRows) {
		return balance, err
	}

	if _, err := s.GetAccount(ctx, id); err != nil {
		return 0, err
	}
	return 0, ErrInsufficientFunds
}

func (s *PGStore) Transfer(ctx context.Context, payer, payee types.ID, amount int64) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := TransferTx(ctx, tx, payer, payee, amount); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// TransferTx runs the two-leg transfer inside the caller's transaction. The
// settlement store reuses it so the funds movement and the payment record
// share one commit boundary.
func TransferTx(ctx context.Context, tx pgx.Tx, payer, payee types.ID, amount int64) error {
	// Lock rows in id order to avoid deadlock between opposing transfers.
	first, second := payer, payee
	if first > second {
		first, second = second, first
	}
	var firstBalance, secondBalance int64
	if err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, string(first)).Scan(&firstBalance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, string(second)).Scan(&secondBalance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	payerBalance := firstBalance
	if payer != first {
		payerBalance = secondBalance
	}
	if payerBalance < amount {
		return ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance - $1 WHERE id = $2`, amount, string(payer)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1 WHERE id = $2`, amount, string(payee)); err != nil {
		return err
	}
	return nil
}

func (s *PGStore) SetPresence(ctx context.Context, id types.ID, online bool) error {
	_, err := s.db.Exec(ctx, `
		UPDATE accounts SET online = $1, last_active_at = NOW() WHERE id = $2`,
		online, string(id))
	return err
}

func (s *PGStore) UpdatePosition(ctx context.Context, id types.ID, pos types.Point, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE accounts
		SET position_lat = $1, position_lng = $2, online = TRUE, last_active_at = $3
		WHERE id = $4`,
		pos.Lat, pos.Lng, at, string(id))
	return err
}

func (s *PGStore) CountByRole(ctx context.Context) (map[types.Role]int, error) {
	rows, err := s.db.Query(ctx, `SELECT role, COUNT(*) FROM accounts GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[types.Role]int)
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		out[types.Role(role)] = n
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	var lat, lng sql.NullFloat64
	var lastActive sql.NullTime
	err := row.Scan(
		&a.ID, &a.Name, &a.PasswordHash, &a.Role, &a.Balance.Amount, &a.Online,
		&lat, &lng, &lastActive, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Balance.Currency = types.DefaultCurrency
	if lat.Valid && lng.Valid {
		a.Position = &types.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if lastActive.Valid {
		t := lastActive.Time
		a.LastActiveAt = &t
	}
	return &a, nil
}
