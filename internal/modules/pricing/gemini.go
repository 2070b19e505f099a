// README: Gemini-backed fare suggester. Asks the model for a fare band in
// JSON and sanity-checks the answer against the local rate card before
// trusting it.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"hail/internal/types"
)

type GeminiSuggester struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiSuggester(ctx context.Context, apiKey string) (*GeminiSuggester, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	// Gemini 2.0 Flash for low latency and cost efficiency.
	model := client.GenerativeModel("gemini-2.0-flash")
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.2)

	return &GeminiSuggester{client: client, model: model}, nil
}

func (s *GeminiSuggester) Close() {
	s.client.Close()
}

type geminiFare struct {
	MinFare int64 `json:"min_fare"`
	MaxFare int64 `json:"max_fare"`
}

func (s *GeminiSuggester) Suggest(ctx context.Context, distanceKm float64, class types.VehicleClass) (types.Money, types.Money, error) {
	prompt := buildFarePrompt(distanceKm, class)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return types.Money{}, types.Money{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return types.Money{}, types.Money{}, fmt.Errorf("%w: no candidates", ErrUnavailable)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}

	var out geminiFare
	if err := json.Unmarshal([]byte(cleanJSONString(text.String())), &out); err != nil {
		return types.Money{}, types.Money{}, fmt.Errorf("%w: parse: %v", ErrUnavailable, err)
	}
	if out.MinFare <= 0 || out.MaxFare < out.MinFare {
		return types.Money{}, types.Money{}, fmt.Errorf("%w: bad fare band", ErrUnavailable)
	}

	// Reject answers wildly off the local rate card.
	low, high, _ := Table{}.Suggest(ctx, distanceKm, class)
	if out.MaxFare > high.Amount*3 || out.MinFare < low.Amount/3 {
		return types.Money{}, types.Money{}, fmt.Errorf("%w: implausible fare band", ErrUnavailable)
	}
	return types.NewMoney(out.MinFare), types.NewMoney(out.MaxFare), nil
}

func buildFarePrompt(distanceKm float64, class types.VehicleClass) string {
	return fmt.Sprintf(`Role: You are the fare estimator for a ride-hailing marketplace in Pakistan.
Trip:
- Distance: %.2f km
- Vehicle class: %s

Rate guidance (PKR): Bike base 50 + 40/km, Car base 100 + 60/km, AC Car base 150 + 100/km.
Suggest a fair negotiation band around those rates, adjusted for the vehicle class.

Output JSON Schema:
{
  "min_fare": integer (PKR, > 0),
  "max_fare": integer (PKR, >= min_fare)
}
`, distanceKm, class)
}

// cleanJSONString removes markdown code blocks if present (e.g. ```json ... ```)
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
