// README: Fare suggestion. A chain of suggesters is tried in order and the
// local rate table is the terminal fallback, so ride creation never blocks on
// an external pricing dependency.
package pricing

import (
	"context"
	"errors"
	"math"

	"hail/internal/types"
)

var ErrUnavailable = errors.New("pricing: suggester unavailable")

// Suggester produces a fare band for a trip. Implementations must return
// min <= max in the default currency.
type Suggester interface {
	Suggest(ctx context.Context, distanceKm float64, class types.VehicleClass) (min, max types.Money, err error)
}

// Band ratios applied to a point estimate.
const (
	bandLow  = 0.9
	bandHigh = 1.2
)

type rate struct {
	base  int64 // flat component
	perKm int64
}

var rateTable = map[types.VehicleClass]rate{
	types.VehicleBike:  {base: 50, perKm: 40},
	types.VehicleCar:   {base: 100, perKm: 60},
	types.VehicleACCar: {base: 150, perKm: 100},
}

// Table is the local rate-card suggester. It never fails.
type Table struct{}

func (Table) Suggest(ctx context.Context, distanceKm float64, class types.VehicleClass) (types.Money, types.Money, error) {
	r, ok := rateTable[class]
	if !ok {
		r = rateTable[types.VehicleCar]
	}
	estimate := float64(r.base) + float64(r.perKm)*distanceKm
	return band(estimate)
}

func band(estimate float64) (types.Money, types.Money, error) {
	min := types.NewMoney(int64(math.Round(estimate * bandLow)))
	max := types.NewMoney(int64(math.Round(estimate * bandHigh)))
	return min, max, nil
}

// Chain tries each suggester in order and falls through on error. The caller
// should terminate the chain with Table so a suggestion always comes back.
type Chain []Suggester

func (c Chain) Suggest(ctx context.Context, distanceKm float64, class types.VehicleClass) (types.Money, types.Money, error) {
	var lastErr error = ErrUnavailable
	for _, s := range c {
		min, max, err := s.Suggest(ctx, distanceKm, class)
		if err == nil {
			return min, max, nil
		}
		lastErr = err
	}
	return types.Money{}, types.Money{}, lastErr
}

// DistanceKm is the great-circle distance between two points.
func DistanceKm(a, b types.Point) float64 {
	const earthRadiusKm = 6371.0
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
