// README: Client for the external fare suggestion service. Short timeout;
// failures surface as ErrUnavailable so the chain falls through.
package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"hail/internal/types"
)

const fareRequestTimeout = 2 * time.Second

type HTTPSuggester struct {
	url    string
	client *http.Client
}

func NewHTTPSuggester(url string) *HTTPSuggester {
	return &HTTPSuggester{
		url:    url,
		client: &http.Client{Timeout: fareRequestTimeout},
	}
}

type fareRequest struct {
	DistanceKm  float64 `json:"distance_km"`
	VehicleType string  `json:"vehicle_type"`
}

type fareResponse struct {
	MinFare int64 `json:"min_fare"`
	MaxFare int64 `json:"max_fare"`
}

func (s *HTTPSuggester) Suggest(ctx context.Context, distanceKm float64, class types.VehicleClass) (types.Money, types.Money, error) {
	body, err := json.Marshal(fareRequest{DistanceKm: distanceKm, VehicleType: string(class)})
	if err != nil {
		return types.Money{}, types.Money{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return types.Money{}, types.Money{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return types.Money{}, types.Money{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Money{}, types.Money{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out fareResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.Money{}, types.Money{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if out.MinFare <= 0 || out.MaxFare < out.MinFare {
		return types.Money{}, types.Money{}, fmt.Errorf("%w: bad fare band", ErrUnavailable)
	}
	return types.NewMoney(out.MinFare), types.NewMoney(out.MaxFare), nil
}
