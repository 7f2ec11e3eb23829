// internal/clients/clients_test.go
package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerClientSearchByOrganization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/issues/search", r.URL.Path)
		assert.Equal(t, "AcmeCorp", r.URL.Query().Get("organization"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"issues":[{"title":"DB timeout","description":"pool exhausted"}],"total":1}`))
	}))
	defer server.Close()

	c := NewTrackerClient(server.URL, "test-key", 2*time.Second, 3, nil)
	docs, err := c.SearchByOrganization(context.Background(), "AcmeCorp", "database timeout")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "DB timeout", docs[0].Title())
}

func TestTrackerClientEmptyResultIsNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"issues":[],"total":0}`))
	}))
	defer server.Close()

	c := NewTrackerClient(server.URL, "", 2*time.Second, 3, nil)
	docs, err := c.SearchByOrganization(context.Background(), "AcmeCorp", "q")
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestTrackerClientRetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"issues":[{"title":"ok"}]}`))
	}))
	defer server.Close()

	c := NewTrackerClient(server.URL, "", 2*time.Second, 3, nil)
	docs, err := c.SearchByOrganization(context.Background(), "AcmeCorp", "q")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, docs, 1)
}

func TestTrackerClientDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := NewTrackerClient(server.URL, "", 2*time.Second, 3, nil)
	_, err := c.SearchByOrganization(context.Background(), "AcmeCorp", "q")
	assert.ErrorIs(t, err, ErrTrackerSearchFailed)
	assert.Equal(t, 1, calls)
}

func TestTextGenClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		w.Write([]byte(`{"text":"Here is a summary."}`))
	}))
	defer server.Close()

	c := NewTextGenClient(server.URL, "", "support-v1", 2*time.Second, 3, nil)
	text, err := c.Complete(context.Background(), "summarize this")
	require.NoError(t, err)
	assert.Equal(t, "Here is a summary.", text)
}

func TestTextGenClientEmptyCompletionIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"   "}`))
	}))
	defer server.Close()

	c := NewTextGenClient(server.URL, "", "", 2*time.Second, 3, nil)
	_, err := c.Complete(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrTextGenFailed)
}

func TestTextGenClientTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"text":"too late"}`))
	}))
	defer server.Close()

	c := NewTextGenClient(server.URL, "", "", 50*time.Millisecond, 1, nil)
	_, err := c.Complete(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrTextGenTimeout)
}

func TestBuildHelpCenterQueryRoleFilter(t *testing.T) {
	q := buildHelpCenterQuery("reset password", "customer")
	boolQuery := q["query"].(map[string]interface{})["bool"].(map[string]interface{})
	filters := boolQuery["filter"].([]interface{})
	require.Len(t, filters, 1)
	term := filters[0].(map[string]interface{})["term"].(map[string]interface{})
	assert.Equal(t, "customer", term["visible_to_roles"])

	// No role, no filter clause.
	open := buildHelpCenterQuery("reset password", "")
	openBool := open["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Empty(t, openBool["filter"])
}
