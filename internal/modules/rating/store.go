// README: Rating persistence. One rating per rater per ride, enforced by a
// unique constraint.
package rating

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hail/internal/types"
)

var ErrDuplicate = errors.New("rating: already rated this ride")

type Store interface {
	Insert(ctx context.Context, r *Rating) error
	ListByRecipient(ctx context.Context, recipientID types.ID) ([]*Rating, error)
	Summarize(ctx context.Context, recipientID types.ID) (Summary, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Insert(ctx context.Context, r *Rating) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ratings (id, ride_id, rater_id, recipient_id, score, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(r.ID), string(r.RideID), string(r.RaterID), string(r.RecipientID),
		r.Score, r.Comment, r.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *PGStore) ListByRecipient(ctx context.Context, recipientID types.ID) ([]*Rating, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ride_id, rater_id, recipient_id, score, comment, created_at
		FROM ratings WHERE recipient_id = $1
		ORDER BY created_at DESC`, string(recipientID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Rating
	for rows.Next() {
		var (
			r                        Rating
			id, rideID, rater, recip string
		)
		if err := rows.Scan(&id, &rideID, &rater, &recip, &r.Score, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.ID = types.ID(id)
		r.RideID = types.ID(rideID)
		r.RaterID = types.ID(rater)
		r.RecipientID = types.ID(recip)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *PGStore) Summarize(ctx context.Context, recipientID types.ID) (Summary, error) {
	var sum Summary
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(AVG(score), 0), COUNT(*) FROM ratings
		WHERE recipient_id = $1`, string(recipientID)).Scan(&sum.Average, &sum.Count)
	if errors.Is(err, pgx.ErrNoRows) {
		return Summary{}, nil
	}
	return sum, err
}
