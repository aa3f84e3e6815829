package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowenginer/meta-hub/destination"
)

// cannedTestPayload is the sample body the dry-run test endpoint sends;
// it never touches the Event Store.
var cannedTestPayload = map[string]any{
	"test":      true,
	"source":    "meta-hub",
	"message":   "This is a test delivery from meta-hub.",
	"timestamp": "2024-01-01T00:00:00Z",
}

// Test builds a canned sample payload and invokes the Destination Client
// once against destinationID, returning the AttemptResult directly with no
// persistence.
func (s *Service) Test(ctx context.Context, tenantID, destinationID string) (destination.AttemptResult, error) {
	dest, err := s.destinations.Get(ctx, tenantID, destinationID)
	if err != nil {
		return destination.AttemptResult{}, fmt.Errorf("loading destination: %w", err)
	}

	body, err := json.Marshal(cannedTestPayload)
	if err != nil {
		return destination.AttemptResult{}, fmt.Errorf("marshaling test payload: %w", err)
	}

	result := s.client.Call(ctx, dest, "test", 1, body)
	return result, nil
}
