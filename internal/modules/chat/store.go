// README: Chat persistence, history ordered oldest first.
package chat

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"hail/internal/types"
)

type Store interface {
	Insert(ctx context.Context, m *Message) error
	History(ctx context.Context, rideID types.ID, limit int) ([]*Message, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Insert(ctx context.Context, m *Message) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO chat_messages (id, ride_id, sender_id, body, sent_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(m.ID), string(m.RideID), string(m.SenderID), m.Body, m.SentAt,
	)
	return err
}

func (s *PGStore) History(ctx context.Context, rideID types.ID, limit int) ([]*Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ride_id, sender_id, body, sent_at FROM (
			SELECT id, ride_id, sender_id, body, sent_at
			FROM chat_messages WHERE ride_id = $1
			ORDER BY sent_at DESC LIMIT $2
		) recent ORDER BY sent_at ASC`, string(rideID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var (
			m                  Message
			id, rideID, sender string
		)
		if err := rows.Scan(&id, &rideID, &sender, &m.Body, &m.SentAt); err != nil {
			return nil, err
		}
		m.ID = types.ID(id)
		m.RideID = types.ID(rideID)
		m.SenderID = types.ID(sender)
		out = append(out, &m)
	}
	return out, rows.Err()
}
