package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/google/uuid"

	"github.com/medichain/medichain-api/pkg/circuitbreaker"
)

// Client is a pass-through caller to the external recommendation service.
// Responses are cached briefly; recommendations tolerate a few minutes of
// staleness, unlike access checks.
type Client struct {
	endpoint string
	http     *http.Client
	cb       *circuitbreaker.CircuitBreaker
	cache    *gocache.Cache
}

type Config struct {
	Endpoint string
	CacheTTL time.Duration
}

func NewClient(config Config) *Client {
	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Client{
		endpoint: config.Endpoint,
		http:     &http.Client{Timeout: 20 * time.Second},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "ml-recommend",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		cache: gocache.New(ttl, 2*ttl),
	}
}

// GetRecommendation forwards the patient id and requester role and returns
// the service's structured opinion unparsed.
func (c *Client) GetRecommendation(ctx context.Context, patientID uuid.UUID, requesterRole string) (json.RawMessage, error) {
	cacheKey := patientID.String() + ":" + requesterRole
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(json.RawMessage), nil
	}

	payload, err := json.Marshal(map[string]string{
		"patient_id": patientID.String(),
		"role":       requesterRole,
	})
	if err != nil {
		return nil, err
	}

	var result json.RawMessage
	err = c.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("recommendation request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("recommendation service returned %d", resp.StatusCode)
		}

		return json.NewDecoder(resp.Body).Decode(&result)
	})
	if err != nil {
		return nil, err
	}

	c.cache.Set(cacheKey, result, gocache.DefaultExpiration)
	return result, nil
}
