// README: Settlement persistence. The postgres store commits the payment
// record and both wallet legs in a single transaction, with a partial unique
// index on ride_id guarding against double settlement.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hail/internal/modules/wallet"
	"hail/internal/types"
)

var ErrAlreadyPaid = errors.New("payment: ride already settled")

type Store interface {
	// CreateCompleted moves the funds and records the settlement atomically.
	// Returns ErrAlreadyPaid when a completed settlement for the ride exists,
	// wallet.ErrInsufficientFunds when the payer cannot cover the amount.
	CreateCompleted(ctx context.Context, s *Settlement) error
	GetByRide(ctx context.Context, rideID types.ID) (*Settlement, error)
	ListByAccount(ctx context.Context, accountID types.ID) ([]*Settlement, error)
	// EarningsTotal sums completed settlement amounts paid out to the account.
	EarningsTotal(ctx context.Context, payeeID types.ID) (int64, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateCompleted(ctx context.Context, stl *Settlement) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Insert first so the unique index claims the ride before funds move.
	_, err = tx.Exec(ctx, `
		INSERT INTO payments (id, ride_id, payer_id, payee_id, amount, currency, status, method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(stl.ID), string(stl.RideID), string(stl.PayerID), string(stl.PayeeID),
		stl.Amount.Amount, stl.Amount.Currency, string(stl.Status), stl.Method, stl.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyPaid
		}
		return fmt.Errorf("payment insert: %w", err)
	}

	if err := wallet.TransferTx(ctx, tx, stl.PayerID, stl.PayeeID, stl.Amount.Amount); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) GetByRide(ctx context.Context, rideID types.ID) (*Settlement, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, ride_id, payer_id, payee_id, amount, currency, status, method, created_at
		FROM payments WHERE ride_id = $1 AND status = 'completed'`, string(rideID))
	stl, err := scanSettlement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return stl, err
}

func (s *PGStore) ListByAccount(ctx context.Context, accountID types.ID) ([]*Settlement, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ride_id, payer_id, payee_id, amount, currency, status, method, created_at
		FROM payments WHERE payer_id = $1 OR payee_id = $1
		ORDER BY created_at DESC`, string(accountID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Settlement
	for rows.Next() {
		stl, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, stl)
	}
	return out, rows.Err()
}

func (s *PGStore) EarningsTotal(ctx context.Context, payeeID types.ID) (int64, error) {
	var total int64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE payee_id = $1 AND status = 'completed'`, string(payeeID)).Scan(&total)
	return total, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettlement(row rowScanner) (*Settlement, error) {
	var (
		stl                                  Settlement
		id, rideID, payerID, payeeID, status string
		created                              time.Time
	)
	err := row.Scan(&id, &rideID, &payerID, &payeeID, &stl.Amount.Amount, &stl.Amount.Currency, &status, &stl.Method, &created)
	if err != nil {
		return nil, err
	}
	stl.ID = types.ID(id)
	stl.RideID = types.ID(rideID)
	stl.PayerID = types.ID(payerID)
	stl.PayeeID = types.ID(payeeID)
	stl.Status = Status(status)
	stl.CreatedAt = created
	return &stl, nil
}
