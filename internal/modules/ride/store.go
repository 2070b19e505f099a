// README: Ride store contract and the PostgreSQL implementation.
package ride

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hail/internal/types"
)

// Store is the persistence contract for requests and their offers. AcceptOffer
// and UpdateStatus are compare-and-swap operations: they return false instead
// of writing when another writer got there first.
type Store interface {
	CreateRequest(ctx context.Context, r *Request) error
	GetRequest(ctx context.Context, id types.ID) (*Request, error)
	ListOpen(ctx context.Context) ([]*Request, error)
	ListByParticipant(ctx context.Context, accountID types.ID) ([]*Request, error)
	ListExpiredCandidates(ctx context.Context, cutoff time.Time) ([]*Request, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error)
	InsertOffer(ctx context.Context, o *Offer) error
	GetOffer(ctx context.Context, id types.ID) (*Offer, error)
	ListOffers(ctx context.Context, rideID types.ID) ([]*Offer, error)
	AcceptOffer(ctx context.Context, r *Request, o *Offer, now time.Time) (bool, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const requestColumns = `
	id, requester_id, provider_id,
	pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	pickup_address, dropoff_address,
	offered_fare, accepted_fare, suggested_min_fare, suggested_max_fare,
	vehicle_class, status, status_version, distance_km,
	created_at, started_at, completed_at, cancelled_at`

func (s *PGStore) CreateRequest(ctx context.Context, r *Request) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rides (
			id, requester_id, provider_id,
			pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			pickup_address, dropoff_address,
			offered_fare, accepted_fare, suggested_min_fare, suggested_max_fare,
			vehicle_class, status, status_version, distance_km, created_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17, $18
		)`,
		string(r.ID),
		string(r.RequesterID),
		idPtr(r.ProviderID),
		r.Pickup.Lat, r.Pickup.Lng,
		r.Dropoff.Lat, r.Dropoff.Lng,
		r.PickupAddress, r.DropoffAddress,
		r.OfferedFare.Amount,
		moneyPtr(r.AcceptedFare),
		moneyPtr(r.SuggestedMin),
		moneyPtr(r.SuggestedMax),
		string(r.VehicleClass),
		string(r.Status),
		r.StatusVersion,
		r.DistanceKm,
		r.CreatedAt,
	)
	return err
}

func (s *PGStore) GetRequest(ctx context.Context, id types.ID) (*Request, error) {
	row := s.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM rides WHERE id = $1`, string(id))
	return scanRequest(row)
}

func (s *PGStore) ListOpen(ctx context.Context) ([]*Request, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM rides
		WHERE status = $1
		ORDER BY created_at DESC`, string(StatusOpen))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (s *PGStore) ListByParticipant(ctx context.Context, accountID types.ID) ([]*Request, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM rides
		WHERE requester_id = $1 OR provider_id = $1
		ORDER BY created_at DESC`, string(accountID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (s *PGStore) ListExpiredCandidates(ctx context.Context, cutoff time.Time) ([]*Request, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM rides
		WHERE status = $1 AND created_at < $2`, string(StatusOpen), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET status = $1,
		    status_version = status_version + 1,
		    completed_at = CASE WHEN $1 = 'settled' THEN NOW() ELSE completed_at END,
		    cancelled_at = CASE WHEN $1 IN ('cancelled', 'expired') THEN NOW() ELSE cancelled_at END
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to), string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) InsertOffer(ctx context.Context, o *Offer) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ride_offers (id, ride_id, provider_id, fare, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(o.ID), string(o.RideID), string(o.ProviderID),
		o.Fare.Amount, string(o.Status), o.CreatedAt,
	)
	return err
}

func (s *PGStore) GetOffer(ctx context.Context, id types.ID) (*Offer, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, ride_id, provider_id, fare, status, created_at
		FROM ride_offers WHERE id = $1`, string(id))
	return scanOffer(row)
}

func (s *PGStore) ListOffers(ctx context.Context, rideID types.ID) ([]*Offer, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ride_id, provider_id, fare, status, created_at
		FROM ride_offers
		WHERE ride_id = $1
		ORDER BY created_at ASC`, string(rideID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// AcceptOffer performs the acceptance commit: the request flips to matched
// with the winning provider and fare, the target offer is accepted, and every
// sibling pending offer is rejected, all in one transaction guarded by the
// (status, status_version) compare-and-swap on the ride row.
func (s *PGStore) AcceptOffer(ctx context.Context, r *Request, o *Offer, now time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET status = $1,
		    status_version = status_version + 1,
		    provider_id = $2,
		    accepted_fare = $3,
		    started_at = $4
		WHERE id = $5 AND status = $6 AND status_version = $7`,
		string(StatusMatched), string(o.ProviderID), o.Fare.Amount, now,
		string(r.ID), string(StatusOpen), r.StatusVersion,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE ride_offers SET status = $1 WHERE id = $2`,
		string(OfferAccepted), string(o.ID),
	); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE ride_offers SET status = $1 WHERE ride_id = $2 AND id <> $3 AND status = $4`,
		string(OfferRejected), string(r.ID), string(o.ID), string(OfferPending),
	); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var r Request
	var providerID sql.NullString
	var acceptedFare, suggestedMin, suggestedMax sql.NullInt64
	var distanceKm sql.NullFloat64
	var startedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&r.ID, &r.RequesterID, &providerID,
		&r.Pickup.Lat, &r.Pickup.Lng, &r.Dropoff.Lat, &r.Dropoff.Lng,
		&r.PickupAddress, &r.DropoffAddress,
		&r.OfferedFare.Amount, &acceptedFare, &suggestedMin, &suggestedMax,
		&r.VehicleClass, &r.Status, &r.StatusVersion, &distanceKm,
		&r.CreatedAt, &startedAt, &completedAt, &cancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.OfferedFare.Currency = types.DefaultCurrency
	if providerID.Valid {
		p := types.ID(providerID.String)
		r.ProviderID = &p
	}
	r.AcceptedFare = moneyFromNull(acceptedFare)
	r.SuggestedMin = moneyFromNull(suggestedMin)
	r.SuggestedMax = moneyFromNull(suggestedMax)
	if distanceKm.Valid {
		d := distanceKm.Float64
		r.DistanceKm = &d
	}
	r.StartedAt = timeFromNull(startedAt)
	r.CompletedAt = timeFromNull(completedAt)
	r.CancelledAt = timeFromNull(cancelledAt)
	return &r, nil
}

func scanRequests(rows pgx.Rows) ([]*Request, error) {
	var out []*Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanOffer(row rowScanner) (*Offer, error) {
	var o Offer
	err := row.Scan(&o.ID, &o.RideID, &o.ProviderID, &o.Fare.Amount, &o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Fare.Currency = types.DefaultCurrency
	return &o, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func moneyPtr(v *types.Money) *int64 {
	if v == nil {
		return nil
	}
	n := v.Amount
	return &n
}

func moneyFromNull(v sql.NullInt64) *types.Money {
	if !v.Valid {
		return nil
	}
	m := types.NewMoney(v.Int64)
	return &m
}

func timeFromNull(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
