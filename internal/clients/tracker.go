// internal/clients/tracker.go
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"querydesk/internal/common/logger"
	"querydesk/internal/models"
)

var (
	ErrTrackerTimeout      = errors.New("TRACKER_API_TIMEOUT")
	ErrTrackerSearchFailed = errors.New("TRACKER_SEARCH_FAILED")
)

// TrackerClient searches the primary issue tracker over HTTP. Results are
// already scoped server-side to the named organization.
type TrackerClient struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries int
	logger     logger.Logger
}

type trackerSearchResponse struct {
	Issues []models.Document `json:"issues"`
	Total  int               `json:"total"`
}

func NewTrackerClient(baseURL, apiKey string, timeout time.Duration, maxRetries int, log logger.Logger) *TrackerClient {
	if log == nil {
		log = logger.Nop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &TrackerClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		logger:     log.WithFields(map[string]interface{}{"client": "tracker"}),
	}
}

func (c *TrackerClient) SearchByOrganization(ctx context.Context, organization, query string) ([]models.Document, error) {
	params := url.Values{}
	params.Set("organization", organization)
	params.Set("q", query)
	endpoint := c.baseURL + "/api/issues/search?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrTrackerTimeout
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTrackerSearchFailed, err)
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrTrackerTimeout
			}
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: status %d", ErrTrackerSearchFailed, resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, lastErr
			}
			continue
		}

		var parsed trackerSearchResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: decode error: %v", ErrTrackerSearchFailed, err)
			continue
		}

		c.logger.Debug("tracker search completed", map[string]interface{}{
			"organization": organization,
			"hits":         len(parsed.Issues),
		})
		if parsed.Issues == nil {
			return []models.Document{}, nil
		}
		return parsed.Issues, nil
	}

	if lastErr == nil {
		lastErr = ErrTrackerSearchFailed
	}
	return nil, lastErr
}
