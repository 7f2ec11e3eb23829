// internal/clients/helpcenter.go
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"querydesk/internal/common/logger"
	"querydesk/internal/models"
)

var (
	ErrHelpCenterSearchFailed = errors.New("HELPCENTER_SEARCH_FAILED")
	ErrHelpCenterTimeout      = errors.New("HELPCENTER_SEARCH_TIMEOUT")
)

// HelpCenterClient searches the help-center index, filtered to documents
// visible to the requester's role.
type HelpCenterClient struct {
	client *elasticsearch.Client
	index  string
	limit  int
	logger logger.Logger
}

func NewHelpCenterClient(client *elasticsearch.Client, index string, limit int, log logger.Logger) *HelpCenterClient {
	if log == nil {
		log = logger.Nop()
	}
	if limit <= 0 {
		limit = 10
	}
	return &HelpCenterClient{
		client: client,
		index:  index,
		limit:  limit,
		logger: log.WithFields(map[string]interface{}{"client": "helpcenter"}),
	}
}

func (c *HelpCenterClient) Search(ctx context.Context, query, role string) ([]models.Document, error) {
	body, _ := json.Marshal(buildHelpCenterQuery(query, role))

	from := 0
	size := c.limit
	req := esapi.SearchRequest{
		Index: []string{c.index},
		Body:  strings.NewReader(string(body)),
		From:  &from,
		Size:  &size,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrHelpCenterTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrHelpCenterSearchFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrHelpCenterSearchFailed, res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.Document `json:"_source"`
				Score  float64         `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrHelpCenterSearchFailed, err)
	}

	docs := make([]models.Document, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		docs = append(docs, hit.Source)
	}

	c.logger.Debug("help center search completed", map[string]interface{}{
		"role": role,
		"hits": len(docs),
	})
	return docs, nil
}

// buildHelpCenterQuery builds the role-filtered article search query.
func buildHelpCenterQuery(query, role string) map[string]interface{} {
	mustClauses := []interface{}{
		map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^3", "content^2", "tags"},
				"type":   "best_fields",
			},
		},
	}

	filterClauses := []interface{}{}
	if role != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"visible_to_roles": role},
		})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   mustClauses,
				"filter": filterClauses,
			},
		},
	}
}
